package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/outbox"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/internal/utils"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
)

// Mailer delivers outgoing mail.
type Mailer interface {
	Send(ctx context.Context, mail outbox.Mail) error
}

type PasswordResetService struct {
	resetRepo *repository.PasswordResetRepository
	userRepo  *repository.UserRepository
	mailer    Mailer
	appURL    string
	ttl       time.Duration
	now       func() time.Time
}

func NewPasswordResetService(
	resetRepo *repository.PasswordResetRepository,
	userRepo *repository.UserRepository,
	mailer Mailer,
	appURL string,
	ttl time.Duration,
	now func() time.Time,
) *PasswordResetService {
	if now == nil {
		now = time.Now
	}
	return &PasswordResetService{
		resetRepo: resetRepo,
		userRepo:  userRepo,
		mailer:    mailer,
		appURL:    strings.TrimRight(appURL, "/"),
		ttl:       ttl,
		now:       now,
	}
}

// RequestReset issues a token for the account behind email and mails the
// reset link. Unknown emails succeed silently so accounts cannot be probed.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrEmailRequired
	}

	s.purgeExpired(ctx)

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Log.Error("Failed to look up reset email", zap.Error(err))
		return err
	}
	if user == nil {
		logger.Log.Debug("Password reset requested for unknown email")
		return nil
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return err
	}

	record := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: utils.SHA256Hex(token),
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.resetRepo.ReplaceForUser(ctx, record); err != nil {
		logger.Log.Error("Failed to store reset token", zap.Uint("user_id", user.ID), zap.Error(err))
		return err
	}

	link := fmt.Sprintf("%s/password/reset?token=%s", s.appURL, url.QueryEscape(token))
	mail := outbox.Mail{
		To:      user.Email,
		Subject: "Reset your StoryLine password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n",
			user.Username, s.ttl, link),
	}
	if err := s.mailer.Send(ctx, mail); err != nil {
		logger.Log.Error("Failed to queue reset mail", zap.Uint("user_id", user.ID), zap.Error(err))
		return err
	}

	logger.Log.Info("Password reset issued", zap.Uint("user_id", user.ID))
	return nil
}

// ValidToken reports whether token can still be used.
func (s *PasswordResetService) ValidToken(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	s.purgeExpired(ctx)
	record, err := s.resetRepo.GetValid(ctx, utils.SHA256Hex(token), s.now().UTC())
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// Reset sets a new password for the owner of token and burns the token.
func (s *PasswordResetService) Reset(ctx context.Context, token, password, passwordConfirm string) error {
	if password != passwordConfirm {
		return ErrPasswordMismatch
	}

	s.purgeExpired(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	record, err := s.resetRepo.GetValid(ctx, utils.SHA256Hex(token), s.now().UTC())
	if err != nil {
		return err
	}
	if record == nil {
		logger.Log.Warn("Password reset with invalid or expired token")
		return ErrInvalidResetToken
	}

	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.resetRepo.Redeem(ctx, record, hash); err != nil {
		if errors.Is(err, repository.ErrResetTokenUsed) {
			logger.Log.Warn("Password reset token redeemed concurrently", zap.Uint("user_id", record.UserID))
			return ErrInvalidResetToken
		}
		logger.Log.Error("Failed to update password", zap.Uint("user_id", record.UserID), zap.Error(err))
		return err
	}

	logger.Log.Info("Password reset completed", zap.Uint("user_id", record.UserID))
	return nil
}

func (s *PasswordResetService) purgeExpired(ctx context.Context) {
	n, err := s.resetRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		logger.Log.Warn("Failed to purge expired reset tokens", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Log.Debug("Purged expired reset tokens", zap.Int64("count", n))
	}
}
