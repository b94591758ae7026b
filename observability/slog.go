package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(attrs(fields)...)}
}

func (s *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		v := f.Value()
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		out = append(out, slog.Any(f.Key(), v))
	}
	return out
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// LogTracer reports finished spans as debug log lines with their duration.
func LogTracer(l Logger) Tracer { return logTracer{l: OrNop(l)} }

type logTracer struct{ l Logger }

func (t logTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{l: t.l, name: name, start: time.Now()}
}

type logSpan struct {
	mu    sync.Mutex
	l     Logger
	name  string
	start time.Time
	tags  []Field
	err   error
}

func (s *logSpan) SetTag(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, anyField{key, value})
}

func (s *logSpan) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *logSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := append([]Field{String("span", s.name), Float("ms", float64(time.Since(s.start).Microseconds())/1000)}, s.tags...)
	if s.err != nil {
		s.l.Warn("span failed", append(fields, Error("error", s.err))...)
		return
	}
	s.l.Debug("span finished", fields...)
}

type anyField struct {
	key string
	val interface{}
}

func (f anyField) Key() string        { return f.key }
func (f anyField) Value() interface{} { return f.val }

// Entry is a log line captured by MemoryLogger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// MemoryLogger records entries in memory. Loggers derived through With share
// the same entry list.
type MemoryLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  []Field
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (m *MemoryLogger) Debug(msg string, fields ...Field) { m.add("debug", msg, fields) }
func (m *MemoryLogger) Info(msg string, fields ...Field)  { m.add("info", msg, fields) }
func (m *MemoryLogger) Warn(msg string, fields ...Field)  { m.add("warn", msg, fields) }
func (m *MemoryLogger) Error(msg string, fields ...Field) { m.add("error", msg, fields) }

func (m *MemoryLogger) With(fields ...Field) Logger {
	return &MemoryLogger{mu: m.mu, entries: m.entries, fields: append(append([]Field(nil), m.fields...), fields...)}
}

func (m *MemoryLogger) add(level, msg string, fields []Field) {
	e := Entry{Level: level, Message: msg, Fields: make(map[string]interface{}, len(m.fields)+len(fields))}
	for _, f := range m.fields {
		e.Fields[f.Key()] = f.Value()
	}
	for _, f := range fields {
		e.Fields[f.Key()] = f.Value()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.entries = append(*m.entries, e)
}

// Entries returns a copy of everything logged so far.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), *m.entries...)
}

// Count returns how many entries were logged at level.
func (m *MemoryLogger) Count(level string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
