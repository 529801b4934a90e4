package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MsgSendFailed = "Error in sending email, please try again later."

var ErrUnsupportedChannel = errors.New("notification channel not supported")

type Mailer interface {
	SendTemplate(templateName string, to []string, subject string, data map[string]any) error
}

type Service struct {
	db      *gorm.DB
	mailer  Mailer
	appName string
	logger  *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, mailer Mailer, logger *logging.Service) *Service {
	return &Service{db: db, mailer: mailer, appName: cfg.App.Name, logger: logger.Named("notification")}
}

// WithDB returns a copy of the service bound to tx, so the audit row commits
// or rolls back with the caller's writes.
func (s *Service) WithDB(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

// Notify delivers event to email and records the delivery. Delivery happens
// before the audit insert; a failed send surfaces as a validation error so
// the surrounding transaction aborts.
func (s *Service) Notify(ctx context.Context, email string, channel Channel, event Event, data map[string]any) error {
	if channel != ChannelEmail {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}

	payload := map[string]any{"AppName": s.appName, "Email": email}
	for k, v := range data {
		payload[k] = v
	}

	if err := s.mailer.SendTemplate(event.String(), []string{email}, event.Subject(), payload); err != nil {
		s.logger.Error("notification delivery failed",
			zap.Error(err),
			logging.Email(email),
			zap.Stringer("event", event))
		return apierror.Validation(MsgSendFailed)
	}

	record := &Notification{Email: email, Channel: channel, Event: event, IsSent: true}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	s.logger.Info("notification sent",
		logging.Email(email),
		zap.Stringer("channel", channel),
		zap.Stringer("event", event))
	return nil
}

// Email is Notify on the email channel.
func (s *Service) Email(ctx context.Context, email string, event Event, data map[string]any) error {
	return s.Notify(ctx, email, ChannelEmail, event, data)
}
