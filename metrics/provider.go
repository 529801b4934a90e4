package metrics

import (
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideMetrics),
	fx.Invoke(watchDatabase),
)

// ProvideMetrics returns nil when metrics are disabled.
func ProvideMetrics(cfg *config.Config) *Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return New()
}

func watchDatabase(m *Metrics, db *gorm.DB, logger *logging.Service) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("database stats not exported", zap.Error(err))
		return
	}
	if err := m.WatchDB(sqlDB, "backyard"); err != nil {
		logger.Warn("database stats not exported", zap.Error(err))
	}
}
