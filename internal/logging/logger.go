// Package logging provides structured logging for memoryd, adapted from
// the teacher's hand-rolled StructuredLogger. It keeps the JSON-by-default,
// trace-ID-aware design but drives level/format from internal/config
// instead of ad hoc env vars, and adds a color console format for local
// development (wiring github.com/fatih/color, used elsewhere in the
// teacher tree only for its REPL).
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Logger is the structured logging interface used throughout memoryd.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})

	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})
	DebugContext(ctx context.Context, msg string, fields ...interface{})

	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// LogEntry is a single structured log record.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// ContextKey namespaces values stored on a context.Context.
type ContextKey string

// TraceIDKey is the context key under which a request's trace ID is stored.
const TraceIDKey ContextKey = "trace_id"

// LogLevel orders log severities from most to least verbose.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Format selects how a StructuredLogger renders entries.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// StructuredLogger writes LogEntry records as JSON or, for local
// development, as colorized single lines.
type StructuredLogger struct {
	level     LogLevel
	traceID   string
	component string
	format    Format
}

// NewLogger builds a StructuredLogger at the given level, defaulting to
// JSON output.
func NewLogger(level LogLevel) Logger {
	return &StructuredLogger{level: level, format: FormatJSON}
}

// NewLoggerWithFormat builds a StructuredLogger with an explicit format,
// driven by config.LoggingConfig.Format ("json" or "console").
func NewLoggerWithFormat(level LogLevel, format Format) Logger {
	if format != FormatConsole {
		format = FormatJSON
	}
	return &StructuredLogger{level: level, format: format}
}

// NewLoggerWithTrace builds a StructuredLogger pre-populated with a trace ID.
func NewLoggerWithTrace(level LogLevel, traceID string) Logger {
	return &StructuredLogger{level: level, traceID: traceID, format: FormatJSON}
}

func (l *StructuredLogger) WithTraceID(traceID string) Logger {
	return &StructuredLogger{level: l.level, traceID: traceID, component: l.component, format: l.format}
}

func (l *StructuredLogger) WithComponent(component string) Logger {
	return &StructuredLogger{level: l.level, traceID: l.traceID, component: component, format: l.format}
}

func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	if l.level <= INFO {
		l.logEntry("INFO", msg, "", fields...)
	}
}

func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.level <= INFO {
		l.logEntry("INFO", msg, l.extractTraceID(ctx), fields...)
	}
}

func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	if l.level <= WARN {
		l.logEntry("WARN", msg, "", fields...)
	}
}

func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.level <= WARN {
		l.logEntry("WARN", msg, l.extractTraceID(ctx), fields...)
	}
}

func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	if l.level <= ERROR {
		l.logEntry("ERROR", msg, "", fields...)
	}
}

func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.level <= ERROR {
		l.logEntry("ERROR", msg, l.extractTraceID(ctx), fields...)
	}
}

func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	if l.level <= DEBUG {
		l.logEntry("DEBUG", msg, "", fields...)
	}
}

func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.level <= DEBUG {
		l.logEntry("DEBUG", msg, l.extractTraceID(ctx), fields...)
	}
}

func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.logEntry("FATAL", msg, "", fields...)
	os.Exit(1)
}

func (l *StructuredLogger) logEntry(level, msg, contextTraceID string, fields ...interface{}) {
	traceID := l.traceID
	if contextTraceID != "" {
		traceID = contextTraceID
	}

	_, file, line, ok := runtime.Caller(3)
	if !ok {
		file = "unknown"
		line = 0
	} else {
		parts := strings.Split(file, "/")
		file = parts[len(parts)-1]
	}

	fieldMap := make(map[string]interface{})
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key := fmt.Sprintf("%v", fields[i])
			fieldMap[key] = fields[i+1]
		} else {
			fieldMap[fmt.Sprintf("field_%d", i)] = fields[i]
		}
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		TraceID:   traceID,
		Component: l.component,
		File:      file,
		Line:      line,
		Fields:    fieldMap,
	}

	if l.format == FormatConsole {
		l.outputConsole(entry)
	} else {
		l.outputJSON(entry)
	}
}

func (l *StructuredLogger) outputJSON(entry LogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

var levelColor = map[string]*color.Color{
	"DEBUG": color.New(color.FgCyan),
	"INFO":  color.New(color.FgGreen),
	"WARN":  color.New(color.FgYellow, color.Bold),
	"ERROR": color.New(color.FgRed, color.Bold),
	"FATAL": color.New(color.FgWhite, color.BgRed, color.Bold),
}

// outputConsole renders a single colorized line, for interactive use
// (terminal dev runs, not the JSON format used in production).
func (l *StructuredLogger) outputConsole(entry LogEntry) {
	var parts []string
	parts = append(parts, color.New(color.Faint).Sprint(entry.Timestamp))

	levelTag := fmt.Sprintf("[%-5s]", entry.Level)
	if c, ok := levelColor[entry.Level]; ok {
		levelTag = c.Sprint(levelTag)
	}
	parts = append(parts, levelTag)

	if entry.Component != "" {
		parts = append(parts, color.New(color.FgMagenta).Sprintf("(%s)", entry.Component))
	}
	if entry.TraceID != "" {
		parts = append(parts, fmt.Sprintf("trace:%.8s", entry.TraceID))
	}

	parts = append(parts, entry.Message)

	for k, v := range entry.Fields {
		parts = append(parts, color.New(color.Faint).Sprintf("%s=%v", k, v))
	}

	if entry.File != "" && entry.Line > 0 {
		parts = append(parts, color.New(color.Faint).Sprintf("(%s:%d)", entry.File, entry.Line))
	}

	fmt.Println(strings.Join(parts, " "))
}

func (l *StructuredLogger) extractTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GenerateTraceID returns a fresh random trace ID.
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace ID to ctx, generating one if traceID is empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID reads the trace ID attached to ctx, if any.
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// ParseLogLevel parses a config string ("debug", "info", ...) into a LogLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// ParseFormat parses a config string ("json", "console") into a Format.
func ParseFormat(format string) Format {
	if strings.EqualFold(format, string(FormatConsole)) {
		return FormatConsole
	}
	return FormatJSON
}
