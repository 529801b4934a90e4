package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/metrics"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/notification"
	"github.com/tech-arch1tect/backyard/services/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MsgPasswordResetSent     = "If an account exists for this email, a password reset link has been sent."
	MsgPasswordResetDone     = "Password has been reset successfully."
	MsgPasswordResetDisabled = "Password reset is disabled."
	MsgResetTokenInvalid     = "The password reset token is invalid."
	MsgResetTokenExpired     = "The password reset token has expired."
)

var (
	ErrPasswordResetDisabled     = errors.New("password reset is disabled")
	ErrPasswordResetTokenInvalid = errors.New("invalid or expired password reset token")
	ErrPasswordResetTokenExpired = errors.New("password reset token has expired")
	ErrPasswordResetTokenUsed    = errors.New("password reset token has already been used")
)

type PasswordResetInput struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirmInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Service) generateSecureToken() (string, error) {
	bytes := make([]byte, s.config.Auth.PasswordResetTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func disabledError() *apierror.Error {
	return apierror.New(apierror.KindNotFound, http.StatusNotFound, MsgPasswordResetDisabled)
}

// RequestPasswordReset sends a reset link when email belongs to an account.
// Unknown addresses succeed silently so the endpoint cannot be used to
// probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, input PasswordResetInput) error {
	if !s.config.Auth.PasswordResetEnabled {
		return disabledError()
	}
	if err := s.validator.Fields(input).Err(); err != nil {
		s.metrics.Flow(metrics.FlowPasswordReset, err)
		return err
	}

	return s.inTx(ctx, metrics.FlowPasswordReset, func(tx *gorm.DB) error {
		user, err := s.users.WithDB(tx).FindByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				s.logger.Info("password reset requested for unknown email")
				return nil
			}
			return err
		}

		resetToken, err := s.createPasswordResetToken(ctx, tx, user.Email)
		if err != nil {
			return err
		}

		data := map[string]any{
			"FirstName":      user.FirstName,
			"ResetURL":       s.resetURL(resetToken.Token),
			"ExpiryDuration": s.config.Auth.PasswordResetExpiry.String(),
		}
		if err := s.notifier.WithDB(tx).Email(ctx, user.Email, notification.EventResetPasswordEmail, data); err != nil {
			return err
		}

		s.logger.Info("password reset email sent", logging.UserID(user.ID))
		return nil
	})
}

func (s *Service) resetURL(token string) string {
	return fmt.Sprintf("%s/reset-password/?token=%s", s.config.App.URL, url.QueryEscape(token))
}

// createPasswordResetToken stores a fresh token and marks earlier unused
// tokens for the same email as used.
func (s *Service) createPasswordResetToken(ctx context.Context, tx *gorm.DB, email string) (*PasswordResetToken, error) {
	token, err := s.generateSecureToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := tx.WithContext(ctx).Model(&PasswordResetToken{}).
		Where("email = ? AND used = ?", email, false).
		Updates(map[string]any{"used": true, "used_at": now}).Error; err != nil {
		return nil, fmt.Errorf("failed to invalidate previous reset tokens: %w", err)
	}

	resetToken := &PasswordResetToken{
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(s.config.Auth.PasswordResetExpiry),
	}
	if err := tx.WithContext(ctx).Create(resetToken).Error; err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}
	return resetToken, nil
}

func validatePasswordResetToken(ctx context.Context, tx *gorm.DB, token string) (*PasswordResetToken, error) {
	var resetToken PasswordResetToken
	if err := tx.WithContext(ctx).Where("token = ?", token).First(&resetToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPasswordResetTokenInvalid
		}
		return nil, fmt.Errorf("failed to validate password reset token: %w", err)
	}
	if resetToken.Used {
		return nil, ErrPasswordResetTokenUsed
	}
	if time.Now().After(resetToken.ExpiresAt) {
		return nil, ErrPasswordResetTokenExpired
	}
	return &resetToken, nil
}

// ConfirmPasswordReset redeems token and stores the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, input PasswordResetConfirmInput) error {
	if !s.config.Auth.PasswordResetEnabled {
		return disabledError()
	}

	fields := s.validator.Fields(input)
	if input.Password != "" {
		for _, problem := range s.users.PasswordProblems(input.Password) {
			fields.Add("password", problem)
		}
	}
	if err := fields.Err(); err != nil {
		s.metrics.Flow(metrics.FlowResetConfirm, err)
		return err
	}

	return s.inTx(ctx, metrics.FlowResetConfirm, func(tx *gorm.DB) error {
		resetToken, err := validatePasswordResetToken(ctx, tx, input.Token)
		if err != nil {
			s.logger.Warn("password reset token rejected", zap.Error(err))
			switch {
			case errors.Is(err, ErrPasswordResetTokenExpired):
				return apierror.Expired(MsgResetTokenExpired)
			case errors.Is(err, ErrPasswordResetTokenInvalid), errors.Is(err, ErrPasswordResetTokenUsed):
				return apierror.NotFound(MsgResetTokenInvalid)
			default:
				return err
			}
		}

		if err := s.users.WithDB(tx).SetPassword(ctx, resetToken.Email, input.Password); err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return apierror.NotFound(MsgResetTokenInvalid)
			}
			return err
		}

		now := time.Now()
		resetToken.Used = true
		resetToken.UsedAt = &now
		if err := tx.WithContext(ctx).Save(resetToken).Error; err != nil {
			return fmt.Errorf("failed to mark password reset token as used: %w", err)
		}

		s.logger.Info("password reset completed", logging.Email(resetToken.Email))
		return nil
	})
}
