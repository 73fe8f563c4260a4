package services

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
	"finbot/internal/pagination"
)

const (
	activationCodeLength = 10
	maxIdentitiesPerCode = 10
)

// activationService issues activation codes and binds chat identities to
// users with them.
type activationService struct {
	db              *gorm.DB
	defaultDuration time.Duration
	now             func() time.Time
}

// NewActivationService creates a new ActivationServicer. defaultDuration is
// used when a code is created without an explicit validity.
func NewActivationService(db *gorm.DB, defaultDuration time.Duration) ActivationServicer {
	if defaultDuration <= 0 {
		defaultDuration = 7 * 24 * time.Hour
	}
	return &activationService{db: db, defaultDuration: defaultDuration, now: time.Now}
}

// generateCode returns an upper-case base32 code from crypto/rand.
func generateCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return code[:activationCodeLength], nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateCode issues a code for userID.
func (s *activationService) CreateCode(createdBy, userID string, duration time.Duration, maxIdentities int) (*models.ActivationCode, error) {
	if duration <= 0 {
		duration = s.defaultDuration
	}
	if maxIdentities == 0 {
		maxIdentities = 1
	}
	if maxIdentities < 0 || maxIdentities > maxIdentitiesPerCode {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "maxIdentities must be between 1 and 10")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	code, err := generateCode()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	ac := &models.ActivationCode{
		Code:          code,
		UserID:        userID,
		CreatedBy:     createdBy,
		ExpiresAt:     s.now().UTC().Add(duration),
		MaxIdentities: maxIdentities,
		IsActive:      true,
	}
	if err := s.db.Create(ac).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ac, nil
}

func (s *activationService) findCode(db *gorm.DB, code string) (*models.ActivationCode, error) {
	var ac models.ActivationCode
	if err := db.Where("code = ?", normalizeCode(code)).First(&ac).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrActivationCodeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &ac, nil
}

func checkUsable(ac *models.ActivationCode, now time.Time) error {
	if ac.Expired(now) {
		return apperrors.ErrActivationCodeExpired
	}
	if ac.Remaining() == 0 {
		return apperrors.ErrActivationCodeExhausted
	}
	return nil
}

// VerifyCode reports whether code can still bind an identity.
func (s *activationService) VerifyCode(code string) (*models.ActivationCode, error) {
	ac, err := s.findCode(s.db, code)
	if err != nil {
		return nil, err
	}
	if err := checkUsable(ac, s.now()); err != nil {
		return nil, err
	}
	return ac, nil
}

// Activate binds (channel, identity) to the code's user until the code
// expires. Re-activating an identity already bound by the same code does not
// consume another use.
func (s *activationService) Activate(code string, channel models.ChatChannel, identity string) (*models.ChatLink, error) {
	identity = strings.TrimSpace(identity)
	if !channel.Valid() || identity == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "channel and identity are required")
	}

	now := s.now().UTC()
	var link models.ChatLink

	err := s.db.Transaction(func(tx *gorm.DB) error {
		ac, err := s.findCode(tx, code)
		if err != nil {
			return err
		}
		if ac.Expired(now) {
			return apperrors.ErrActivationCodeExpired
		}

		err = tx.Where("channel = ? AND identity = ?", channel, identity).First(&link).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if exists && link.Valid(now) {
			if link.UserID != ac.UserID {
				return apperrors.ErrIdentityAlreadyLinked
			}
			if link.ActivationCodeID == ac.ID {
				return nil
			}
		}

		res := tx.Model(&models.ActivationCode{}).
			Where("id = ? AND used_count < max_identities AND is_active = ? AND expires_at > ?", ac.ID, true, now).
			Update("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrActivationCodeExhausted
		}

		if exists {
			res := tx.Model(&models.ChatLink{}).Where("id = ?", link.ID).Updates(map[string]interface{}{
				"user_id":            ac.UserID,
				"activation_code_id": ac.ID,
				"is_active":          true,
				"activated_at":       now,
				"expires_at":         ac.ExpiresAt,
			})
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			link.UserID = ac.UserID
			link.ActivationCodeID = ac.ID
			link.IsActive = true
			link.ActivatedAt = now
			link.ExpiresAt = ac.ExpiresAt
			return nil
		}

		link = models.ChatLink{
			UserID:           ac.UserID,
			Channel:          channel,
			Identity:         identity,
			ActivationCodeID: ac.ID,
			IsActive:         true,
			ActivatedAt:      now,
			ExpiresAt:        ac.ExpiresAt,
		}
		if err := tx.Create(&link).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetUserLinks lists the chat identities bound to userID.
func (s *activationService) GetUserLinks(userID string) ([]models.ChatLink, error) {
	links := []models.ChatLink{}
	if err := s.db.Where("user_id = ?", userID).Order("activated_at DESC").Find(&links).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return links, nil
}

// ResolveIdentity returns the valid link for a chat identity and records the
// message against it.
func (s *activationService) ResolveIdentity(channel models.ChatChannel, identity string) (*models.ChatLink, error) {
	now := s.now().UTC()

	var link models.ChatLink
	err := s.db.Where("channel = ? AND identity = ? AND is_active = ? AND expires_at > ?", channel, strings.TrimSpace(identity), true, now).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrChatLinkNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	err = s.db.Model(&models.ChatLink{}).Where("id = ?", link.ID).Updates(map[string]interface{}{
		"message_count":   gorm.Expr("message_count + 1"),
		"last_message_at": now,
	}).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	link.MessageCount++
	link.LastMessageAt = &now
	return &link, nil
}

// ListCodes returns a page of activation codes, newest first.
func (s *activationService) ListCodes(page pagination.PageRequest, filter ActivationCodeFilter) (*pagination.PageResponse[models.ActivationCode], error) {
	page.Defaults()

	base := s.db.Model(&models.ActivationCode{})
	if filter.ActiveOnly {
		base = base.Where("is_active = ? AND expires_at > ? AND used_count < max_identities", true, s.now().UTC())
	}
	if filter.UserID != "" {
		base = base.Where("user_id = ?", filter.UserID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var codes []models.ActivationCode
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&codes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(codes, page.Page, page.Limit, totalItems)
	return &result, nil
}

// ExtendCode pushes the code's expiry, and that of every identity it bound,
// duration past the later of now and the current expiry. An expired code is
// reactivated.
func (s *activationService) ExtendCode(code string, duration time.Duration) (*models.ActivationCode, error) {
	if duration <= 0 {
		duration = s.defaultDuration
	}

	var ac *models.ActivationCode
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		ac, err = s.findCode(tx, code)
		if err != nil {
			return err
		}

		from := s.now().UTC()
		if ac.ExpiresAt.After(from) {
			from = ac.ExpiresAt
		}
		ac.ExpiresAt = from.Add(duration)
		ac.IsActive = true

		if err := tx.Model(ac).Updates(map[string]interface{}{"expires_at": ac.ExpiresAt, "is_active": true}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		err = tx.Model(&models.ChatLink{}).
			Where("activation_code_id = ?", ac.ID).
			Updates(map[string]interface{}{"expires_at": ac.ExpiresAt, "is_active": true}).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ac, nil
}

// DeactivateCode disables the code and every identity it bound.
func (s *activationService) DeactivateCode(code string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ac, err := s.findCode(tx, code)
		if err != nil {
			return err
		}
		if err := tx.Model(ac).Update("is_active", false).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Model(&models.ChatLink{}).Where("activation_code_id = ?", ac.ID).Update("is_active", false).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// ExpireStale deactivates codes and links whose expiry has passed.
func (s *activationService) ExpireStale(now time.Time) (int64, int64, error) {
	now = now.UTC()

	codes := s.db.Model(&models.ActivationCode{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	if codes.Error != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, codes.Error)
	}

	links := s.db.Model(&models.ChatLink{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	if links.Error != nil {
		return codes.RowsAffected, 0, apperrors.Wrap(apperrors.ErrInternalServer, links.Error)
	}
	return codes.RowsAffected, links.RowsAffected, nil
}
