package notification

import (
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/mail"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideNotificationService(cfg *config.Config, db *gorm.DB, mailer *mail.Service, logger *logging.Service) *Service {
	return NewService(cfg, db, mailer, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideNotificationService),
)
