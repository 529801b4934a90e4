package revocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrEmptyToken = errors.New("cannot revoke an empty token")

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger.Named("revocation")}
}

func (s *Service) WithDB(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

// Revoke appends token to the blacklist. Revoking the same token twice
// stores two rows, which is harmless.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.RevokeSession(ctx, token, "")
}

// RevokeSession blacklists token and, when sessionID is set, the whole
// session it belongs to.
func (s *Service) RevokeSession(ctx context.Context, token, sessionID string) error {
	if token == "" {
		return ErrEmptyToken
	}

	entry := &BlacklistedToken{Token: token, TokenHash: hashToken(token), SessionID: sessionID}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error("failed to blacklist token", zap.Error(err))
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	s.logger.Info("token blacklisted", zap.String("token_hash", entry.TokenHash[:16]))
	return nil
}

// IsRevoked looks the token up by hash and confirms the literal value.
func (s *Service) IsRevoked(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&BlacklistedToken{}).
		Where("token_hash = ? AND token = ?", hashToken(token), token).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return count > 0, nil
}

// IsSessionRevoked reports whether the session sessionID was ended. Tokens
// without a sid are never revoked this way.
func (s *Service) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&BlacklistedToken{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check session blacklist: %w", err)
	}
	return count > 0, nil
}
