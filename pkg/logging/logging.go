package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the handler used to render log records.
type Format string

const (
	// FormatText renders key=value lines.
	FormatText Format = "text"

	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

// ParseFormat converts "text" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

var defaultLogger atomic.Pointer[slog.Logger]

// Init configures the process-wide logger. Records from controller-runtime
// (logr) and client-go (klog) are routed to the same handler.
// This should be called once at application startup.
func Init(level LogLevel, format Format, output io.Writer) {
	opts := &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	defaultLogger.Store(logger)
	slog.SetDefault(logger)

	ctrllog.SetLogger(logr.FromSlogHandler(handler))
	klog.SetSlogLogger(logger)
}

// InitForCLI initializes text logging, as used by interactive commands.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	Init(filterLevel, FormatText, output)
}

// Logger returns the configured logger, or a discarding one before Init.
func Logger() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func logInternal(ctx context.Context, level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	logger := defaultLogger.Load()
	if logger == nil || !logger.Enabled(ctx, level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	attrs := make([]slog.Attr, 0, 3)
	attrs = append(attrs, slog.String("subsystem", subsystem))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}

	logger.LogAttrs(ctx, level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(context.Background(), LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(context.Background(), LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(context.Background(), LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(context.Background(), LevelError, subsystem, err, messageFmt, args...)
}

// DebugContext logs a debug message with the trace id found in ctx.
func DebugContext(ctx context.Context, subsystem string, messageFmt string, args ...interface{}) {
	logInternal(ctx, LevelDebug, subsystem, nil, messageFmt, args...)
}

// InfoContext logs an informational message with the trace id found in ctx.
func InfoContext(ctx context.Context, subsystem string, messageFmt string, args ...interface{}) {
	logInternal(ctx, LevelInfo, subsystem, nil, messageFmt, args...)
}

// WarnContext logs a warning message with the trace id found in ctx.
func WarnContext(ctx context.Context, subsystem string, messageFmt string, args ...interface{}) {
	logInternal(ctx, LevelWarn, subsystem, nil, messageFmt, args...)
}

// ErrorContext logs an error message with the trace id found in ctx.
func ErrorContext(ctx context.Context, subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(ctx, LevelError, subsystem, err, messageFmt, args...)
}
