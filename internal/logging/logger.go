package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name case-insensitively. Unknown names map to
// LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format.
	FormatJSON
)

// ParseFormat parses a string into a Format.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
	// WithRequestID returns a new logger with the given request ID.
	WithRequestID(requestID string) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...any) Logger
}

// logger is the default implementation of Logger. Clones share the output
// and its mutex.
type logger struct {
	level     Level
	format    Format
	out       *output
	fields    map[string]any
	requestID string
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path opened for appending.
	Output string
}

// New creates a Logger from cfg. It fails when a file output cannot be
// opened.
func New(cfg Config) (Logger, error) {
	var w io.Writer
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", cfg.Output, err)
		}
		w = f
	}
	return NewWriter(w, ParseLevel(cfg.Level), ParseFormat(cfg.Format)), nil
}

// NewWriter creates a Logger writing to w.
func NewWriter(w io.Writer, level Level, format Format) Logger {
	return &logger{
		level:  level,
		format: format,
		out:    &output{w: w},
		fields: make(map[string]any),
	}
}

// NewDefault creates a Logger at info level writing text to stderr.
func NewDefault() Logger {
	return NewWriter(os.Stderr, LevelInfo, FormatText)
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	return nopLogger{}
}

func (l *logger) Debug(msg string, keysAndValues ...any) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...any) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...any) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...any) {
	l.log(LevelError, msg, keysAndValues)
}

// WithRequestID returns a new logger with the given request ID.
func (l *logger) WithRequestID(requestID string) Logger {
	c := l.clone()
	c.requestID = requestID
	return c
}

// WithFields returns a new logger with the given fields.
func (l *logger) WithFields(keysAndValues ...any) Logger {
	c := l.clone()
	addPairs(c.fields, keysAndValues)
	return c
}

func (l *logger) clone() *logger {
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &logger{
		level:     l.level,
		format:    l.format,
		out:       l.out,
		fields:    fields,
		requestID: l.requestID,
	}
}

// addPairs copies key-value pairs into m. Errors are stored as their
// message so both formats render them.
func addPairs(m map[string]any, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		v := keysAndValues[i+1]
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		m[key] = v
	}
}

func (l *logger) log(level Level, msg string, keysAndValues []any) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.fields)+len(keysAndValues)/2+4)
	for k, v := range l.fields {
		entry[k] = v
	}
	addPairs(entry, keysAndValues)
	entry["ts"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.requestID != "" {
		entry["request_id"] = l.requestID
	}

	var line string
	if l.format == FormatJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			line = fmt.Sprintf(`{"ts":%q,"level":"error","msg":"failed to marshal log entry"}`, entry["ts"])
		} else {
			line = string(data)
		}
	} else {
		line = formatText(entry)
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	fmt.Fprintln(l.out.w, line)
}

// formatText renders ts, level, msg and request_id first, then the other
// fields sorted by key.
func formatText(entry map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", entry["ts"], entry["level"], entry["msg"])
	if reqID, ok := entry["request_id"]; ok {
		fmt.Fprintf(&b, " request_id=%v", reqID)
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "ts", "level", "msg", "request_id":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry[k])
	}
	return b.String()
}

// nopLogger is a no-op logger that discards all output.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any)          {}
func (nopLogger) Info(string, ...any)           {}
func (nopLogger) Warn(string, ...any)           {}
func (nopLogger) Error(string, ...any)          {}
func (n nopLogger) WithRequestID(string) Logger { return n }
func (n nopLogger) WithFields(...any) Logger    { return n }
