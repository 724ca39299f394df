package logging

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to InfoLevel.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel
	case "warn", "WARN", "warning":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fields represents structured log fields
type Fields map[string]interface{}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// WithRequestID returns a context carrying the request ID for log correlation
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID, or "" when absent
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithUserID returns a context carrying the authenticated user ID
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// StructuredLogger provides structured JSON logging with context.
// Output is produced by a zap core; the public API keeps the
// ctx-first, Fields-based calling convention used across the codebase.
type StructuredLogger struct {
	zl       atomic.Pointer[zap.Logger]
	level    zap.AtomicLevel
	service  string
	version  string
	hostname string
}

// NewStructuredLogger creates a new structured logger writing to stdout
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	hostname, _ := os.Hostname()

	l := &StructuredLogger{
		level:    zap.NewAtomicLevelAt(level.zapLevel()),
		service:  service,
		version:  version,
		hostname: hostname,
	}
	l.zl.Store(l.build(zapcore.Lock(os.Stdout)))
	return l
}

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() *StructuredLogger {
	l := NewStructuredLogger("nop", "0.0.0", FatalLevel)
	l.SetOutput(io.Discard)
	return l
}

func (l *StructuredLogger) build(out zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.CallerKey = "file"
	encCfg.StacktraceKey = "stack_trace"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), out, l.level)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.AddStacktrace(zapcore.FatalLevel),
	).With(
		zap.String("service", l.service),
		zap.String("version", l.version),
		zap.String("hostname", l.hostname),
	)
}

// SetOutput sets the output destination for logs
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.zl.Store(l.build(zapcore.AddSync(w)))
}

// SetLevel sets the minimum log level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Sync flushes any buffered log entries
func (l *StructuredLogger) Sync() error {
	return l.zl.Load().Sync()
}

// Debug logs a debug message with structured fields
func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, DebugLevel, message, fields, nil)
}

// Info logs an info message with structured fields
func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, InfoLevel, message, fields, nil)
}

// Warn logs a warning message with structured fields
func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, WarnLevel, message, fields, nil)
}

// Error logs an error message with structured fields and error details
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, ErrorLevel, message, fields, err)
}

// Fatal logs a fatal message and exits the program
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, FatalLevel, message, fields, err)
}

func (l *StructuredLogger) log(ctx context.Context, level LogLevel, message string, fields Fields, err error) {
	zl := l.zl.Load()

	zlevel := level.zapLevel()
	if !zl.Core().Enabled(zlevel) {
		return
	}

	zf := make([]zap.Field, 0, 4)
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", map[string]interface{}(fields)))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		zf = append(zf, zap.String("request_id", requestID))
	}
	if userID, ok := UserIDFromContext(ctx); ok {
		zf = append(zf, zap.Int64("user_id", userID))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}

	switch level {
	case DebugLevel:
		zl.Debug(message, zf...)
	case InfoLevel:
		zl.Info(message, zf...)
	case WarnLevel:
		zl.Warn(message, zf...)
	case ErrorLevel:
		zl.Error(message, zf...)
	case FatalLevel:
		zl.Fatal(message, zf...)
	}
}

// WithFields creates a new logger with additional fields
func (l *StructuredLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{
		logger: l,
		fields: fields,
	}
}

// ContextLogger wraps StructuredLogger with additional context fields
type ContextLogger struct {
	logger *StructuredLogger
	fields Fields
}

// Debug logs a debug message with context fields
func (c *ContextLogger) Debug(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, DebugLevel, message, c.mergeFields(fields), nil)
}

// Info logs an info message with context fields
func (c *ContextLogger) Info(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, InfoLevel, message, c.mergeFields(fields), nil)
}

// Warn logs a warning message with context fields
func (c *ContextLogger) Warn(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, WarnLevel, message, c.mergeFields(fields), nil)
}

// Error logs an error message with context fields
func (c *ContextLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	c.logger.log(ctx, ErrorLevel, message, c.mergeFields(fields), err)
}

// mergeFields merges context fields with provided fields
func (c *ContextLogger) mergeFields(fields Fields) Fields {
	merged := make(Fields, len(c.fields)+len(fields))

	for k, v := range c.fields {
		merged[k] = v
	}

	// Provided fields win over context fields
	for k, v := range fields {
		merged[k] = v
	}

	return merged
}
