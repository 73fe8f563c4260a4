package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"finbot/internal/chat"
	apperrors "finbot/internal/errors"
	"finbot/internal/pagination"
	"finbot/internal/services"
)

var errBotNotConfigured = &apperrors.AppError{Code: "BOT_NOT_CONFIGURED", Message: "No chat bot is configured", StatusCode: http.StatusServiceUnavailable}

// BotController is the part of the chat bot an operator can drive.
type BotController interface {
	Status() chat.Status
	Restart(ctx context.Context) error
}

// AdminHandler serves operator endpoints: activation codes and the chat bot.
type AdminHandler struct {
	activationService services.ActivationServicer
	auditService      services.AuditServicer
	bot               BotController
	botCtx            context.Context
}

// NewAdminHandler creates a new AdminHandler. bot may be nil when no chat
// channel is configured; botCtx bounds the lifetime of a restarted bot.
func NewAdminHandler(activationService services.ActivationServicer, auditService services.AuditServicer, bot BotController, botCtx context.Context) *AdminHandler {
	if botCtx == nil {
		botCtx = context.Background()
	}
	return &AdminHandler{
		activationService: activationService,
		auditService:      auditService,
		bot:               bot,
		botCtx:            botCtx,
	}
}

// CreateCodeRequest asks for a new activation code.
type CreateCodeRequest struct {
	UserID        string `json:"userId" binding:"required,uuid"`
	Duration      string `json:"duration"`
	MaxIdentities int    `json:"maxIdentities" binding:"omitempty,min=1,max=10"`
}

// ExtendCodeRequest pushes a code's expiry.
type ExtendCodeRequest struct {
	Duration string `json:"duration"`
}

// parseDuration accepts Go durations ("72h") and whole days ("7d"). Empty
// means the service default.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid duration, use e.g. 7d or 72h")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid duration, use e.g. 7d or 72h")
	}
	return d, nil
}

// CreateCode issues an activation code for a user
// @Summary     Create activation code
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCodeRequest true "Code parameters"
// @Success     201 {object} SuccessResponse{data=models.ActivationCode} "Code created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/activation-codes [post]
func (h *AdminHandler) CreateCode(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	duration, err := parseDuration(req.Duration)
	if err != nil {
		respondWithError(c, err)
		return
	}

	code, err := h.activationService.CreateCode(adminID, req.UserID, duration, req.MaxIdentities)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(adminID, services.AuditCreateActivationCode, services.ResourceActivationCode, code.ID, c.ClientIP(),
		map[string]interface{}{"userId": req.UserID, "maxIdentities": code.MaxIdentities})

	respond(c, http.StatusCreated, code)
}

// ListCodes lists activation codes
// @Summary     List activation codes
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       active query bool   false "Only usable codes"
// @Param       userId query string false "Codes of one user"
// @Param       page   query int    false "Page number"
// @Param       limit  query int    false "Page size (max 100)"
// @Success     200 {object} SuccessResponse{data=pagination.PageResponse[models.ActivationCode]} "Codes"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /admin/activation-codes [get]
func (h *AdminHandler) ListCodes(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	active, err := parseBoolQuery(c, "active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter := services.ActivationCodeFilter{UserID: c.Query("userId")}
	if active != nil {
		filter.ActiveOnly = *active
	}

	codes, err := h.activationService.ListCodes(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, codes)
}

// ExtendCode pushes a code's expiry and that of the identities it bound
// @Summary     Extend activation code
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       code    path string            true  "Activation code"
// @Param       request body ExtendCodeRequest false "Extension"
// @Success     200 {object} SuccessResponse{data=models.ActivationCode} "Extended code"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Code not found"
// @Router      /admin/activation-codes/{code}/extend [post]
func (h *AdminHandler) ExtendCode(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExtendCodeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}
	duration, err := parseDuration(req.Duration)
	if err != nil {
		respondWithError(c, err)
		return
	}

	code, err := h.activationService.ExtendCode(c.Param("code"), duration)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(adminID, services.AuditExtendActivationCode, services.ResourceActivationCode, code.ID, c.ClientIP(),
		map[string]interface{}{"expiresAt": code.ExpiresAt})

	respond(c, http.StatusOK, code)
}

// DeactivateCode disables a code and the identities it bound
// @Summary     Deactivate activation code
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       code path string true "Activation code"
// @Success     200 {object} MessageResponse "Code deactivated"
// @Failure     404 {object} ErrorResponse "Code not found"
// @Router      /admin/activation-codes/{code}/deactivate [post]
func (h *AdminHandler) DeactivateCode(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	code := c.Param("code")
	if err := h.activationService.DeactivateCode(code); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(adminID, services.AuditDeactivateActivationCode, services.ResourceActivationCode, code, c.ClientIP(), nil)

	respondMessage(c, "Activation code deactivated")
}

// BotStatus reports the chat bot state
// @Summary     Chat bot status
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} SuccessResponse{data=chat.Status} "Status"
// @Failure     503 {object} ErrorResponse "No bot configured"
// @Router      /admin/bot/status [get]
func (h *AdminHandler) BotStatus(c *gin.Context) {
	if h.bot == nil {
		respondWithError(c, errBotNotConfigured)
		return
	}
	respond(c, http.StatusOK, h.bot.Status())
}

// BotRestart stops and starts the chat bot
// @Summary     Restart chat bot
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} SuccessResponse{data=chat.Status} "Status after restart"
// @Failure     500 {object} ErrorResponse "Restart failed"
// @Failure     503 {object} ErrorResponse "No bot configured"
// @Router      /admin/bot/restart [post]
func (h *AdminHandler) BotRestart(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if h.bot == nil {
		respondWithError(c, errBotNotConfigured)
		return
	}

	if err := h.bot.Restart(h.botCtx); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Log(adminID, services.AuditRestartBot, services.ResourceBot, string(h.bot.Status().Channel), c.ClientIP(), nil)

	respond(c, http.StatusOK, h.bot.Status())
}
