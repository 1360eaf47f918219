// Package logger holds the process-wide zerolog logger.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Logger is silent until Init is called.
var Logger = zerolog.Nop()

// Init configures the global logger. Development mode writes to a console writer.
func Init(serviceName string, isDevelopment bool) {
	InitWriter(serviceName, isDevelopment, os.Stdout)
}

// InitWriter is Init with an explicit destination.
func InitWriter(serviceName string, isDevelopment bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if isDevelopment {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Logger = Logger
}

// WithContext returns the logger enriched with the active trace, if any.
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Logger
	span := trace.SpanFromContext(ctx)
	if sc := span.SpanContext(); sc.IsValid() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}

func Info(ctx context.Context) *zerolog.Event  { return WithContext(ctx).Info() }
func Error(ctx context.Context) *zerolog.Event { return WithContext(ctx).Error() }
func Debug(ctx context.Context) *zerolog.Event { return WithContext(ctx).Debug() }
func Warn(ctx context.Context) *zerolog.Event  { return WithContext(ctx).Warn() }

// SetLevel sets the global log level, defaulting to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
