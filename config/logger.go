package config

import (
	"go.uber.org/zap"
)

// NewLogger returns a JSON production logger, or a console logger in development.
func NewLogger(cfg Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
