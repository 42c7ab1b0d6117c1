// Package logging provides structured logging with trace ID propagation
// for the orchestrator engine and its control plane.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

const (
	// TraceIDKey is the context key for the request/run trace ID.
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for the active run ID.
	RunIDKey ContextKey = "run_id"
)

// Logger wraps logrus.Logger with engine-specific helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new Logger for the given service name.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a logger from LOG_LEVEL / LOG_FORMAT, defaulting to
// info/json when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry carrying the service name plus any
// trace/run IDs found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if runID := ctx.Value(RunIDKey); runID != nil {
		entry = entry.WithField("run_id", runID)
	}
	return entry
}

// WithFields returns an entry with service plus custom fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError returns an entry with service plus an error field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"service": l.service, "error": err.Error()})
}

// NewTraceID returns a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from ctx, or "" if absent.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRunID attaches a run ID to ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID extracts the run ID from ctx, or "" if absent.
func GetRunID(ctx context.Context) string {
	if v, ok := ctx.Value(RunIDKey).(string); ok {
		return v
	}
	return ""
}

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("http request")
}

// LogStepTransition logs a step's state-machine transition within a run.
func (l *Logger) LogStepTransition(ctx context.Context, runID, stepID, stepName, from, to string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"run_id":    runID,
		"step_id":   stepID,
		"step_name": stepName,
		"from":      from,
		"to":        to,
	}).Info("step transition")
}

// LogVerification logs the outcome of a verification.
func (l *Logger) LogVerification(ctx context.Context, runID, stepID, connector string, passed bool, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"run_id":    runID,
		"step_id":   stepID,
		"connector": connector,
		"passed":    passed,
	})
	if err != nil {
		entry.WithError(err).Warn("verification failed")
		return
	}
	entry.Debug("verification evaluated")
}

// LogAudit logs a run-level audit event (started, cancelled, completed).
func (l *Logger) LogAudit(ctx context.Context, action, runID, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action": action,
		"run_id": runID,
		"result": result,
		"audit":  true,
	}).Info("audit")
}

// Global default logger, mirroring the teacher's package-level accessor.
var defaultLogger *Logger

// InitDefault initializes the process-wide default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the process-wide logger, lazily creating a fallback
// if InitDefault was never called.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("stepflow", "info", "json")
	}
	return defaultLogger
}
