package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level string
	// File, when set, receives a copy of every entry with size based rotation.
	File string
}

// NewLogger builds a production ready structured logger.
func NewLogger(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if opts.File == "" {
		return logger, nil
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		LocalTime:  true,
		Compress:   true,
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), fileWriter, cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// WithOperation enriches the logger with operation and request identifiers.
func WithOperation(logger *zap.Logger, operation, requestID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return logger.With(fields...)
}

type contextKey string

const requestIDKey contextKey = "requestID"

// ContextWithRequestID stores the request identifier on ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier stored on ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(requestIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}
