package logger

import (
	"encoding/json"
	"io"
	"log"
	"maps"
	"os"
	"strings"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Logger represents a configurable logger instance
type Logger struct {
	level  Level
	logger *log.Logger
}

// logEntry represents a structured log entry
type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a new logger with simple parameters
func New(level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		level:  ParseLevel(level),
		logger: log.New(output, "", 0),
	}
}

// Discard returns a logger that drops everything. Handy in tests and as a
// fallback when a caller passes a nil logger.
func Discard() *Logger {
	return New("FATAL", io.Discard)
}

// ParseLevel converts a level name to Level, defaulting to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l.level <= level
}

func (l *Logger) writeLogEntry(level Level, message string, fields map[string]any) {
	if l.level > level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     getLevelName(level),
		Message:   message,
		Fields:    fields,
	}

	if data, err := json.Marshal(entry); err == nil {
		l.logger.Println(string(data))
	} else {
		// Fields can carry arbitrary task parameters; fall back if they don't encode
		l.logger.Printf("[%s] %s", entry.Level, message)
	}
}

func getLevelName(level Level) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func first(fields []map[string]any) map[string]any {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Core logging methods - always structured
func (l *Logger) Debug(message string, fields ...map[string]any) {
	l.writeLogEntry(DEBUG, message, first(fields))
}

func (l *Logger) Info(message string, fields ...map[string]any) {
	l.writeLogEntry(INFO, message, first(fields))
}

func (l *Logger) Warn(message string, fields ...map[string]any) {
	l.writeLogEntry(WARN, message, first(fields))
}

func (l *Logger) Error(message string, fields ...map[string]any) {
	l.writeLogEntry(ERROR, message, first(fields))
}

func taskFields(taskID string, fields []map[string]any) map[string]any {
	allFields := map[string]any{
		"task_id": taskID,
		"type":    "task",
	}
	if len(fields) > 0 && fields[0] != nil {
		maps.Copy(allFields, fields[0])
	}
	return allFields
}

// Task logs a lifecycle event for a single task at INFO.
func (l *Logger) Task(taskID, message string, fields ...map[string]any) {
	l.writeLogEntry(INFO, message, taskFields(taskID, fields))
}

// TaskDebug is Task at DEBUG, used for the chattier transitions.
func (l *Logger) TaskDebug(taskID, message string, fields ...map[string]any) {
	l.writeLogEntry(DEBUG, message, taskFields(taskID, fields))
}

// TaskFailure logs a task-scoped error at ERROR.
func (l *Logger) TaskFailure(taskID, message string, err error, fields ...map[string]any) {
	allFields := taskFields(taskID, fields)
	if err != nil {
		allFields["error"] = err.Error()
	}
	l.writeLogEntry(ERROR, message, allFields)
}

// Deprecated emits a WARN entry pointing callers at the replacement API.
func (l *Logger) Deprecated(api, replacement string) {
	l.writeLogEntry(WARN, api+" is deprecated, use "+replacement+" instead", map[string]any{
		"type":        "deprecation",
		"api":         api,
		"replacement": replacement,
	})
}

func (l *Logger) HTTP(method, path string, statusCode int, duration time.Duration, fields ...map[string]any) {
	allFields := map[string]any{
		"http_method": method,
		"http_path":   path,
		"http_status": statusCode,
		"duration_ns": duration.Nanoseconds(),
		"type":        "http_request",
	}

	if len(fields) > 0 && fields[0] != nil {
		maps.Copy(allFields, fields[0])
	}

	l.writeLogEntry(INFO, "HTTP request completed", allFields)
}
