package models

import "time"

// ActivationCode lets a user bind up to MaxIdentities chat identities to
// their account until ExpiresAt.
type ActivationCode struct {
	Base
	Code          string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	UserID        string    `gorm:"type:uuid;not null;index" json:"userId"`
	CreatedBy     string    `gorm:"type:uuid" json:"createdBy,omitempty"`
	ExpiresAt     time.Time `gorm:"not null;index" json:"expiresAt"`
	MaxIdentities int       `gorm:"not null;default:1" json:"maxIdentities"`
	UsedCount     int       `gorm:"not null;default:0" json:"usedCount"`
	IsActive      bool      `gorm:"not null" json:"isActive"`
}

// Expired reports whether the code can no longer be used at now, regardless
// of remaining uses.
func (c *ActivationCode) Expired(now time.Time) bool {
	return !c.IsActive || !now.Before(c.ExpiresAt)
}

// Remaining returns how many more identities may be bound.
func (c *ActivationCode) Remaining() int {
	if n := c.MaxIdentities - c.UsedCount; n > 0 {
		return n
	}
	return 0
}
