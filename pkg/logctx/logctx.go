// Package logctx threads a *zap.SugaredLogger through context.Context,
// the same shape the teacher threads knative's logging package through
// context (logging.FromContext/logging.WithLogger). zap is used directly
// here since knative is not wired into a standalone simulator.
package logctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

var fallback = zap.NewNop().Sugar()

// ToContext returns a new context carrying the supplied logger.
func ToContext(ctx context.Context, log *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger carried on ctx, or a no-op logger if
// none was attached. Never panics, unlike the teacher's settings.FromContext,
// since logging must never be the reason a simulation run crashes.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && log != nil {
		return log
	}
	return fallback
}

// New builds the process logger. level is one of zap's standard level
// names (debug, info, warn, error); an unrecognized name falls back to info.
func New(level string) *zap.SugaredLogger {
	var lvl zap.AtomicLevel
	switch level {
	case "debug":
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		lvl = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		lvl = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
