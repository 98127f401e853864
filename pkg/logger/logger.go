// Package logger writes the JSON log lines of the HTTP API and the command
// handlers. Each line carries the UTC timestamp and the studio calendar day,
// so a payment or roll call logged near midnight is filed under the day the
// studio sees it.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// Level is the severity of a line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps LOG_LEVEL values to a Level. Unknown values give
// LevelInfo; "fatal" is treated as error since nothing here exits the process.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "FATAL":
		return LevelError
	default:
		return LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Field is one key of the "fields" object.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field   { return Field{Key: key, Value: value} }

// Err renders err as its message; a nil error is omitted.
func Err(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{Key: "error", Value: err.Error()}
}

// ── studio fields ──

func StudentID(id string) Field   { return String("student_id", id) }
func ClassID(id string) Field     { return String("class_id", id) }
func PaymentID(id string) Field   { return String("payment_id", id) }
func Count(n int) Field           { return Int("count", n) }
func Component(name string) Field { return String("component", name) }

// Amount logs money with two decimals, as it appears on receipts.
func Amount(v decimal.Decimal) Field { return String("amount", v.StringFixed(2)) }

// Date logs the studio calendar day of t.
func Date(t time.Time) Field { return String("date", timeutil.FormatDateStr(t)) }

// Phone logs a student phone number with all but the last three digits
// masked. Log lines leave the studio; phone numbers should not.
func Phone(raw string) Field {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) <= 3 {
		return String("phone", strings.Repeat("*", len(digits)))
	}
	return String("phone", strings.Repeat("*", len(digits)-3)+string(digits[len(digits)-3:]))
}

// Latency logs a request or job duration in milliseconds.
func Latency(d time.Duration) Field {
	return Field{Key: "latency_ms", Value: float64(d.Microseconds()) / 1000}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// Entry is the JSON shape of one line.
type Entry struct {
	Time      string         `json:"time"`
	StudioDay string         `json:"studio_day"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// sink is shared by a logger and every logger derived from it, so lines
// from concurrent requests never interleave.
type sink struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func (s *sink) write(e *Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"time":%q,"level":%q,"msg":%q}`, e.Time, e.Level, e.Message))
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(data)
}

// Options configures New.
type Options struct {
	Output    io.Writer
	Level     Level
	AddCaller bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Logger is a leveled JSON logger with bound fields. It is safe for
// concurrent use.
type Logger struct {
	sink   *sink
	level  Level
	caller bool
	fields []Field
}

// New creates a logger.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Logger{
		sink:   &sink{out: opts.Output, now: opts.Now},
		level:  opts.Level,
		caller: opts.AddCaller,
	}
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns a process-wide info logger on stdout.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(Options{Level: LevelInfo})
	})
	return defaultLog
}

// With returns a logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{sink: l.sink, level: l.level, caller: l.caller, fields: merged}
}

// RequestIDKey is the field key of the HTTP request id.
const RequestIDKey = "request_id"

// WithRequestID binds the HTTP request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// Enabled reports whether lines at level are written.
func (l *Logger) Enabled(level Level) bool { return level >= l.level }

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	now := l.sink.now()
	e := &Entry{
		Time:      now.UTC().Format(time.RFC3339Nano),
		StudioDay: timeutil.FormatDateStr(now),
		Level:     level.String(),
		Message:   msg,
	}

	if l.caller {
		// log <- Info/Warn/... <- caller
		if _, file, line, ok := runtime.Caller(2); ok {
			if i := strings.LastIndex(file, "/"); i >= 0 {
				file = file[i+1:]
			}
			e.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	if n := len(l.fields) + len(fields); n > 0 {
		e.Fields = make(map[string]any, n)
		for _, group := range [][]Field{l.fields, fields} {
			for _, f := range group {
				if f.Key != "" {
					e.Fields[f.Key] = f.Value
				}
			}
		}
	}

	l.sink.write(e)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
