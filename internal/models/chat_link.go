package models

import "time"

// ChatChannel names a messaging network.
type ChatChannel string

const (
	ChatChannelTelegram ChatChannel = "telegram"
	ChatChannelWhatsApp ChatChannel = "whatsapp"
)

// Valid reports whether c is a supported channel.
func (c ChatChannel) Valid() bool {
	return c == ChatChannelTelegram || c == ChatChannelWhatsApp
}

// ChatLink binds a chat identity (a Telegram user id, a phone number) to a
// user account for a limited time.
type ChatLink struct {
	Base
	UserID           string      `gorm:"type:uuid;not null;index" json:"userId"`
	Channel          ChatChannel `gorm:"size:32;not null;uniqueIndex:idx_chat_identity" json:"channel"`
	Identity         string      `gorm:"size:64;not null;uniqueIndex:idx_chat_identity" json:"identity"`
	ActivationCodeID string      `gorm:"type:uuid" json:"-"`
	IsActive         bool        `gorm:"not null" json:"isActive"`
	ActivatedAt      time.Time   `json:"activatedAt"`
	ExpiresAt        time.Time   `gorm:"not null;index" json:"expiresAt"`
	LastMessageAt    *time.Time  `json:"lastMessageAt,omitempty"`
	MessageCount     int64       `gorm:"not null;default:0" json:"messageCount"`
}

// Valid reports whether the link may be used to act for its user at now.
func (l *ChatLink) Valid(now time.Time) bool {
	return l.IsActive && now.Before(l.ExpiresAt)
}
