package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Logger is the structured logging surface the engine and the simulation
// driver emit through. Args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewNoopLogger returns a logger that discards everything. It is the default
// when no logger option is supplied.
func NewNoopLogger() Logger { return noopLogger{} }

// JSONLogEntry is one serialized log record emitted by JSONLogger.
type JSONLogEntry struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
	Time    time.Time      `json:"time"`
}

// JSONLogger writes one JSON object per log call and retains entries for
// inspection in tests.
type JSONLogger struct {
	mu      sync.Mutex
	enc     *json.Encoder
	entries []JSONLogEntry
}

// NewJSONLogger constructs a logger writing JSON lines to w. A nil writer
// retains entries without emitting them.
func NewJSONLogger(w io.Writer) *JSONLogger {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONLogger{enc: enc}
}

// Entries returns a copy of all retained log entries.
func (l *JSONLogger) Entries() []JSONLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]JSONLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *JSONLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *JSONLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *JSONLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *JSONLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *JSONLogger) log(level, msg string, args []any) {
	var fields map[string]any
	if len(args) > 0 {
		fields = make(map[string]any, len(args)/2)
		for i := 0; i+1 < len(args); i += 2 {
			key, ok := args[i].(string)
			if !ok {
				continue
			}
			fields[key] = args[i+1]
		}
	}
	entry := JSONLogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
		Time:    time.Now().UTC(),
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if l.enc != nil {
		_ = l.enc.Encode(entry)
	}
	l.mu.Unlock()
}

// MetricsRecorder receives operation outcomes and population-level gauges.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	SetGauge(name string, value float64)
}

// TraceSpan is one in-flight traced operation; End records its outcome.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around engine operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}
