// Package logger owns the process-wide zap instance.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	instance *zap.SugaredLogger
	once     sync.Once
)

// New builds the shared sugared logger for the given environment. The first
// call decides the configuration; later calls return the same instance.
func New(env string) (*zap.SugaredLogger, error) {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if env == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		var l *zap.Logger
		l, err = cfg.Build()
		if err != nil {
			return
		}
		instance = l.Named("pairchat").Sugar()
	})
	return instance, err
}
