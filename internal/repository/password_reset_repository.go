package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"gorm.io/gorm"
)

// ErrResetTokenUsed is returned when a token was redeemed by someone else first.
var ErrResetTokenUsed = errors.New("reset token already used")

type PasswordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// ReplaceForUser drops any earlier tokens of the user and stores token.
func (r *PasswordResetRepository) ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", token.UserID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return translateError(tx.Create(token).Error)
	})
}

// GetValid returns the unexpired token with the given hash, or nil.
func (r *PasswordResetRepository) GetValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", tokenHash, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// Redeem deletes token and sets the owner's password hash in one
// transaction. Only the caller whose delete removed the row gets to change
// the password.
func (r *PasswordResetRepository) Redeem(ctx context.Context, token *models.PasswordResetToken, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND token_hash = ?", token.ID, token.TokenHash).Delete(&models.PasswordResetToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrResetTokenUsed
		}

		res = tx.Model(&models.User{}).Where("id = ?", token.UserID).Update("password_hash", passwordHash)
		if res.Error != nil {
			return translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DeleteExpired purges tokens whose expiry is not after now.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
