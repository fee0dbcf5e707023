package config

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", c.Level)
		}
		zc.Level = level
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger, nil
}
