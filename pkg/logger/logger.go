package logger

import (
	"github.com/cozy-creator/bg-remover/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	switch cfg.Environment {
	case "production", "prod":
		c := zap.NewProductionConfig()
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		c.EncoderConfig.TimeKey = "timestamp"
		return c.Build()
	case "test":
		return zap.NewExample(), nil
	default:
		return zap.NewDevelopment()
	}
}

func MustNewLogger(cfg *config.Config) *zap.Logger {
	return zap.Must(NewLogger(cfg))
}

func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	l, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger = l
	zap.ReplaceGlobals(l)
	return l, nil
}

// GetLogger returns the process logger, or a no-op logger before InitLogger.
func GetLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}
