package models

import "time"

// PasswordResetToken stores the sha256 of a reset token, never the token itself.
type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	TokenHash string    `gorm:"type:varchar(64);uniqueIndex:uq_password_resets_token;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (PasswordResetToken) TableName() string {
	return "password_resets"
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
