/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package logging provides the structured logging framework for FlySearch.

The logging package implements a small leveled logger with:
  - Multiple log levels (DEBUG, INFO, WARN, ERROR)
  - Structured logging with ordered key-value fields
  - Component-based loggers for easy filtering
  - Context loggers carrying per-query fields (query_id, stage)
  - Text output (colored only on a terminal) or JSON lines

Usage:

	logger := logging.NewLogger("search")
	qlog := logger.With("query_id", id, "stage", "narrow")
	qlog.Warn("Fetch failed", "table", "dog", "attribute", "owner_id", "error", err)

Global settings (level, output, JSON mode) are read at write time, so
loggers created before configuration is loaded still honor it.
*/
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// Level represents the severity of a log message.
type Level int

const (
	// DEBUG level for detailed debugging information.
	DEBUG Level = iota
	// INFO level for general operational information.
	INFO
	// WARN level for warning conditions.
	WARN
	// ERROR level for error conditions.
	ERROR
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown names map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Entry represents a single log entry with all its metadata.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Message   string
	Fields    []Field
}

// MarshalJSON encodes the entry as a flat JSON object. Fields keep their
// insertion order; error values are rendered with Error().
func (e Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(e.Fields)+4)
	for _, f := range e.Fields {
		if err, ok := f.Value.(error); ok {
			m[f.Key] = err.Error()
			continue
		}
		m[f.Key] = f.Value
	}
	m["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	m["level"] = e.Level.String()
	m["component"] = e.Component
	m["message"] = e.Message
	return json.Marshal(m)
}

// Config holds logger configuration options.
type Config struct {
	Level    Level
	Output   io.Writer
	JSONMode bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:    INFO,
		Output:   os.Stderr,
		JSONMode: false,
	}
}

var (
	globalConfig = DefaultConfig()
	globalMu     sync.RWMutex
	writeMu      sync.Mutex
)

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level Level) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.Level = level
}

// SetGlobalOutput sets the global log output.
func SetGlobalOutput(w io.Writer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.Output = w
}

// SetJSONMode enables or disables JSON output mode.
func SetJSONMode(enabled bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.JSONMode = enabled
}

// Configure applies a complete configuration at once.
func Configure(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	globalConfig = cfg
}

// Logger provides structured logging for one component.
type Logger struct {
	component string
}

// NewLogger creates a new Logger for the specified component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()

	if level < cfg.Level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	if cfg.JSONMode {
		writeJSON(cfg.Output, entry)
	} else {
		writeText(cfg.Output, entry)
	}
}

// toFields converts alternating key/value arguments into fields.
func toFields(args []interface{}) []Field {
	if len(args) == 0 {
		return nil
	}
	fields := make([]Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		fields = append(fields, Field{Key: key, Value: args[i+1]})
	}
	if len(args)%2 != 0 {
		fields = append(fields, Field{Key: "extra", Value: args[len(args)-1]})
	}
	return fields
}

func writeJSON(w io.Writer, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(w, "ERROR: failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

var levelColors = map[Level]string{
	DEBUG: "\033[36m",
	INFO:  "\033[32m",
	WARN:  "\033[33m",
	ERROR: "\033[31m",
}

// isTerminal reports whether w is a terminal file descriptor.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeText writes: 2006-01-02T15:04:05.000Z [LEVEL] [component] message key=value ...
func writeText(w io.Writer, entry Entry) {
	var b strings.Builder
	b.WriteString(entry.Timestamp.Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	if isTerminal(w) {
		fmt.Fprintf(&b, "%s[%-5s]\033[0m", levelColors[entry.Level], entry.Level)
	} else {
		fmt.Fprintf(&b, "[%-5s]", entry.Level)
	}
	fmt.Fprintf(&b, " [%s] %s", entry.Component, entry.Message)
	for _, f := range entry.Fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	fmt.Fprintln(w, b.String())
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, msg, toFields(args))
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, msg, toFields(args))
}

// Warn logs a message at WARN level.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, msg, toFields(args))
}

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, msg, toFields(args))
}

// With returns a logger that prefixes every entry with the given fields.
func (l *Logger) With(args ...interface{}) *ContextLogger {
	return &ContextLogger{logger: l, fields: toFields(args)}
}

// ContextLogger is a logger with pre-set context fields.
type ContextLogger struct {
	logger *Logger
	fields []Field
}

// With returns a new context logger with additional fields appended.
func (c *ContextLogger) With(args ...interface{}) *ContextLogger {
	fields := make([]Field, 0, len(c.fields)+len(args)/2)
	fields = append(fields, c.fields...)
	fields = append(fields, toFields(args)...)
	return &ContextLogger{logger: c.logger, fields: fields}
}

func (c *ContextLogger) merge(args []interface{}) []Field {
	extra := toFields(args)
	fields := make([]Field, 0, len(c.fields)+len(extra))
	fields = append(fields, c.fields...)
	return append(fields, extra...)
}

// Debug logs a message at DEBUG level with context fields.
func (c *ContextLogger) Debug(msg string, args ...interface{}) {
	c.logger.log(DEBUG, msg, c.merge(args))
}

// Info logs a message at INFO level with context fields.
func (c *ContextLogger) Info(msg string, args ...interface{}) {
	c.logger.log(INFO, msg, c.merge(args))
}

// Warn logs a message at WARN level with context fields.
func (c *ContextLogger) Warn(msg string, args ...interface{}) {
	c.logger.log(WARN, msg, c.merge(args))
}

// Error logs a message at ERROR level with context fields.
func (c *ContextLogger) Error(msg string, args ...interface{}) {
	c.logger.log(ERROR, msg, c.merge(args))
}

// ============================================================================
// Query Tracking
// ============================================================================

// QueryContext tracks one search invocation for logging.
type QueryContext struct {
	ID        string
	StartTime time.Time
	Source    string // "cli", "http", ...
	Logger    *ContextLogger
}

// NewQueryContext creates a query context with a fresh query id.
func NewQueryContext(logger *Logger, source string) *QueryContext {
	id := uuid.New().String()
	return &QueryContext{
		ID:        id,
		StartTime: time.Now(),
		Source:    source,
		Logger:    logger.With("query_id", id),
	}
}

// Duration returns the duration since the query started.
func (q *QueryContext) Duration() time.Duration {
	return time.Since(q.StartTime)
}

// DurationMs returns the duration in milliseconds.
func (q *QueryContext) DurationMs() float64 {
	return float64(q.Duration().Microseconds()) / 1000.0
}

// LogComplete logs a completed query.
func (q *QueryContext) LogComplete(path string, rows int) {
	q.Logger.Info("Query completed",
		"source", q.Source,
		"path", path,
		"rows", rows,
		"duration_ms", fmt.Sprintf("%.2f", q.DurationMs()),
	)
}

// LogError logs a failed query.
func (q *QueryContext) LogError(err error) {
	q.Logger.Warn("Query failed",
		"source", q.Source,
		"error", err,
		"duration_ms", fmt.Sprintf("%.2f", q.DurationMs()),
	)
}
