package config

import "go.uber.org/fx"

// NewProvider supplies cfg when given, otherwise loads it from the environment.
func NewProvider(cfg *Config) fx.Option {
	if cfg != nil {
		return fx.Supply(cfg)
	}

	return fx.Provide(func() (*Config, error) {
		loaded := &Config{}
		if err := LoadConfig(loaded); err != nil {
			return nil, err
		}
		return loaded, nil
	})
}
