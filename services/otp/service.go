package otp

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	pqotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/notification"
	"github.com/tech-arch1tect/backyard/services/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MsgOTPSent   = "OTP has been sent to your registered account"
	MsgIncorrect = "The information provided is incorrect"
	MsgExpired   = "OTP has been Expired"
)

// Hint tells the client a code is on its way and how long to wait before
// asking for another.
type Hint struct {
	Message string `json:"message"`
	OTPTime int    `json:"otp_time"`
}

type Service struct {
	cfg      config.OTPConfig
	db       *gorm.DB
	users    *users.Service
	notifier *notification.Service
	now      func() time.Time
	logger   *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, userService *users.Service, notifier *notification.Service, logger *logging.Service) *Service {
	return &Service{
		cfg:      cfg.OTP,
		db:       db,
		users:    userService,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.Named("otp"),
	}
}

// WithDB returns a copy bound to tx, including the user store and notifier.
func (s *Service) WithDB(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	clone.users = s.users.WithDB(tx)
	clone.notifier = s.notifier.WithDB(tx)
	return &clone
}

// WithClock replaces the time source used for stamping and expiring codes.
func (s *Service) WithClock(now func() time.Time) *Service {
	clone := *s
	clone.now = now
	return &clone
}

func (s *Service) Window() time.Duration {
	return s.cfg.ResendWindow
}

// StageFor picks the code pool for user: LOGIN once the account is active.
func StageFor(user *users.User) Stage {
	if user.IsActive {
		return StageLogin
	}
	return StageSignup
}

// Issue stores a fresh code for user and sends it. Earlier unconsumed codes
// are left in place.
func (s *Service) Issue(ctx context.Context, user *users.User) (*Hint, error) {
	stage := StageFor(user)
	event := notification.EventSignUpOTPEmail
	if stage == StageLogin {
		event = notification.EventLoginOTPEmail
	}
	return s.issue(ctx, user, stage, event)
}

// Resend issues another code to the user bound to (email, token).
func (s *Service) Resend(ctx context.Context, email, token string) (*Hint, error) {
	user, err := s.users.FindByEmailAndToken(ctx, email, token)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, apierror.NotFound(MsgIncorrect)
		}
		return nil, err
	}
	return s.issue(ctx, user, StageFor(user), notification.EventResendOTPEmail)
}

func (s *Service) issue(ctx context.Context, user *users.User, stage Stage, event notification.Event) (*Hint, error) {
	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	record := &OneTimeCode{
		Email:     user.Email,
		Code:      code,
		Stage:     stage,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to store one-time code: %w", err)
	}

	err = s.notifier.Email(ctx, user.Email, event, map[string]any{
		"FirstName":     user.FirstName,
		"OTP":           code,
		"ExpiryMinutes": int(s.cfg.ResendWindow.Minutes()),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("one-time code issued",
		logging.UserID(user.ID),
		zap.Stringer("stage", stage),
		zap.Stringer("event", event))

	return &Hint{Message: MsgOTPSent, OTPTime: int(s.cfg.ResendWindow.Seconds())}, nil
}

// Verify redeems the oldest unconsumed code matching (code, email, stage).
func (s *Service) Verify(ctx context.Context, code, email string, stage Stage) (*OneTimeCode, error) {
	var record OneTimeCode
	err := s.db.WithContext(ctx).
		Where("code = ? AND email = ? AND stage = ? AND is_valid = ?", code, users.NormalizeEmail(email), stage, false).
		Order("created_at, id").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("one-time code not found", logging.Email(email), zap.Stringer("stage", stage))
			return nil, apierror.NotFound(MsgIncorrect)
		}
		return nil, fmt.Errorf("failed to load one-time code: %w", err)
	}

	if record.CreatedAt.Before(s.now().Add(-s.cfg.ResendWindow)) {
		s.logger.Warn("expired one-time code presented", zap.Uint("code_id", record.ID))
		return nil, apierror.Expired(MsgExpired)
	}

	if err := s.consume(ctx, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// consume flips is_valid only while the row is still unconsumed, so two
// concurrent redemptions of the same code cannot both succeed.
func (s *Service) consume(ctx context.Context, record *OneTimeCode) error {
	result := s.db.WithContext(ctx).
		Model(&OneTimeCode{}).
		Where("id = ? AND is_valid = ?", record.ID, false).
		Update("is_valid", true)
	if result.Error != nil {
		return fmt.Errorf("failed to consume one-time code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Warn("one-time code already consumed", zap.Uint("code_id", record.ID))
		return apierror.NotFound(MsgIncorrect)
	}
	record.IsValid = true
	return nil
}

// generateCode derives a code from HOTP over a throwaway random secret.
func (s *Service) generateCode() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate code secret: %w", err)
	}
	var counter [8]byte
	if _, err := rand.Read(counter[:]); err != nil {
		return "", fmt.Errorf("failed to generate code counter: %w", err)
	}

	return hotp.GenerateCodeCustom(
		base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret),
		binary.BigEndian.Uint64(counter[:]),
		hotp.ValidateOpts{Digits: pqotp.Digits(s.cfg.Digits), Algorithm: pqotp.AlgorithmSHA1},
	)
}
