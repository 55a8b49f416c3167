// Package logger builds the structured zap logger shared by every component
// and carries a per-cycle trace ID through context.Context.
package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const cycleIDKey ctxKey = "cycle_id"

// Init creates a JSON logger writing to stdout with the service name embedded.
// level is a zap level name ("debug", "info", "warn", "error").
func Init(service, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return New(service, lvl, zapcore.AddSync(os.Stdout)), nil
}

// New builds a JSON logger on an arbitrary sink. Used by Init and by tests
// that capture output.
func New(service string, level zapcore.Level, sink zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	return zap.New(core, zap.AddCaller()).With(zap.String("service", service))
}

// WithCycleID stores a poll-cycle ID in the context for downstream logging.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleID extracts the cycle ID from context. Returns "" if not set.
func CycleID(ctx context.Context) string {
	if v, ok := ctx.Value(cycleIDKey).(string); ok {
		return v
	}
	return ""
}

// NewCycleID creates a cycle ID from the symbol and cycle start time.
// Format: "{symbol}-{unixNano}".
func NewCycleID(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, ts.UnixNano())
}

// Fields returns the zap fields carried by ctx.
// Usage: log.Info("msg", logger.Fields(ctx)...)
func Fields(ctx context.Context) []zap.Field {
	id := CycleID(ctx)
	if id == "" {
		return nil
	}
	return []zap.Field{zap.String("cycle_id", id)}
}
