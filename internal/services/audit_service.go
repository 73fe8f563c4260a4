package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"finbot/internal/logger"
	"finbot/internal/models"
)

// Audit actions recorded for budget, transaction and chat access changes.
const (
	AuditRegister                 = "REGISTER"
	AuditLogin                    = "LOGIN"
	AuditCreateBudget             = "CREATE_BUDGET"
	AuditUpdateBudget             = "UPDATE_BUDGET"
	AuditDeleteBudget             = "DELETE_BUDGET"
	AuditRecalculateBudget        = "RECALCULATE_BUDGET"
	AuditCreateTransaction        = "CREATE_TRANSACTION"
	AuditUpdateTransaction        = "UPDATE_TRANSACTION"
	AuditDeleteTransaction        = "DELETE_TRANSACTION"
	AuditCreateActivationCode     = "CREATE_ACTIVATION_CODE"
	AuditExtendActivationCode     = "EXTEND_ACTIVATION_CODE"
	AuditDeactivateActivationCode = "DEACTIVATE_ACTIVATION_CODE"
	AuditActivateChatLink         = "ACTIVATE_CHAT_LINK"
	AuditRestartBot               = "RESTART_BOT"
)

// Resource types referenced by audit entries.
const (
	ResourceUser           = "user"
	ResourceBudget         = "budget"
	ResourceTransaction    = "transaction"
	ResourceActivationCode = "activation_code"
	ResourceChatLink       = "chat_link"
	ResourceBot            = "bot"
)

type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates an AuditServicer writing to the audit_logs table.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log records who changed which budget, transaction, code or link. A failed
// write is logged and dropped; the request it belongs to has already succeeded.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      s.encodeChanges(action, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("Failed to write audit entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}

func (s *auditService) encodeChanges(action string, changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		s.log.Warnw("Audit changes are not JSON encodable", "action", action, "error", err)
		return "{}"
	}
	return string(data)
}
