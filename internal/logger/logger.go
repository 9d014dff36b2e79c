package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Debug level adds caller annotations.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = lvl != zapcore.DebugLevel
	cfg.DisableStacktrace = lvl != zapcore.DebugLevel

	return cfg.Build()
}

func Named(base *zap.Logger, name string) *zap.SugaredLogger {
	return base.Named(name).Sugar()
}
