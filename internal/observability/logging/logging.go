package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"movies-api/internal/observability/metrics"
)

// Config selects the level, output format, and destination of a logger.
// Format is "json" (default) or "text".
type Config struct {
	Level  string
	Writer io.Writer
	Format string
}

// Init builds a logger from cfg and installs it as the slog default.
func Init(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}

// New builds a structured logger writing to cfg.Writer, or stdout.
func New(cfg Config) *slog.Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	options := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		return slog.New(slog.NewTextHandler(writer, options))
	}
	return slog.New(slog.NewJSONHandler(writer, options))
}

// parseLevel accepts slog's level names plus "warning"; anything else is info.
func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With("component", component)
}

type contextKey int

const (
	requestIDKey contextKey = iota
	subjectKey
	loggerKey
)

// ContextWithRequestID stores a non-blank request ID on ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withTrimmedValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// ContextWithSubject stores the authenticated username so audit and request
// logs can name who deleted a movie.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return withTrimmedValue(ctx, subjectKey, subject)
}

func withTrimmedValue(ctx context.Context, key contextKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger stored by ContextWithLogger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey).(*slog.Logger)
	return logger
}

// WithContext adds the request_id and subject carried by ctx to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return nil
	}
	if requestID, ok := stringValue(ctx, requestIDKey); ok {
		logger = logger.With("request_id", requestID)
	}
	if subject, ok := stringValue(ctx, subjectKey); ok {
		logger = logger.With("subject", subject)
	}
	return logger
}

// RequestLoggerConfig configures RequestLogger. Fields appends extra
// attributes, such as the resolved client IP, to each entry.
type RequestLoggerConfig struct {
	Logger *slog.Logger
	Fields func(r *http.Request) []any
}

// RequestLogger logs one entry per completed request: info for 1xx-4xx,
// error for 5xx.
func RequestLogger(cfg RequestLoggerConfig) func(http.Handler) http.Handler {
	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := metrics.NewResponseRecorder(w)
			start := time.Now()
			next.ServeHTTP(recorder, r)

			status := recorder.Status()
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", recorder.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if cfg.Fields != nil {
				attrs = append(attrs, cfg.Fields(r)...)
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			WithContext(r.Context(), base).Log(r.Context(), level, "request completed", attrs...)
		})
	}
}
