package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the application logger, named "querytube". When debug is
// true, uses development config (human-readable, debug level); otherwise
// production config (JSON, info level) with ISO 8601 timestamps.
func NewLogger(debug bool) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logger, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}
	return logger.Named("querytube"), nil
}
