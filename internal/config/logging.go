// Public domain.

package config

import (
	"fmt"

	"go.uber.org/zap"
)

// LoggingConfig selects the logger.  Development gives human readable
// console output; otherwise logs are JSON.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

func (c LoggingConfig) validate() error {
	if _, err := zap.ParseAtomicLevel(c.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Logger builds the configured logger.
func (c LoggingConfig) Logger() (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	return zc.Build()
}
