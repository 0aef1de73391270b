// Package log is the structured JSON logger shared by the session, the sync
// loop and the CLI. Every entry carries the session identity.
package log

import (
	"io"
	"maps"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/craneview/types"
)

// LevelEnv names the environment variable that sets the minimum level
// (debug, info, warn, error). Unset or invalid means info.
const LevelEnv = "CRANEVIEW_LOG_LEVEL"

// Logger writes one JSON object per entry.
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
	// identity and name are kept so WithOutput can rebuild on a new core.
	identity []zap.Field
	name     string
}

// NewLogger logs to stderr with session_id and endpoint on every entry.
func NewLogger(meta *types.SessionMeta) *Logger {
	return newLogger(meta, os.Stderr, levelFromEnv())
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

func levelFromEnv() zapcore.Level {
	lvl, err := zapcore.ParseLevel(os.Getenv(LevelEnv))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func newLogger(meta *types.SessionMeta, w io.Writer, lvl zapcore.Level) *Logger {
	level := zap.NewAtomicLevelAt(lvl)
	var identity []zap.Field
	if meta != nil {
		identity = append(identity, zap.String("session_id", meta.SessionID))
		if meta.Endpoint != "" {
			identity = append(identity, zap.String("endpoint", meta.Endpoint))
		}
	}
	return &Logger{zap: zap.New(jsonCore(w, level)).With(identity...), level: level, identity: identity}
}

func jsonCore(w io.Writer, level zapcore.LevelEnabler) zapcore.Core {
	enc := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "component",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), level)
}

// WithOutput returns a copy writing to w. Identity fields and level carry
// over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	z := zap.New(jsonCore(w, l.level)).With(l.identity...)
	if l.name != "" {
		z = z.Named(l.name)
	}
	return &Logger{zap: z, level: l.level, identity: l.identity, name: l.name}
}

// Named tags entries with a component name. Nested names join with dots.
func (l *Logger) Named(component string) *Logger {
	name := component
	if l.name != "" {
		name = l.name + "." + component
	}
	return &Logger{zap: l.zap.Named(component), level: l.level, identity: l.identity, name: name}
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(lvl zapcore.Level) {
	l.level.SetLevel(lvl)
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write(zapcore.DebugLevel, message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(zapcore.InfoLevel, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(zapcore.WarnLevel, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(zapcore.ErrorLevel, message, fields)
}

// write puts fields at the top level of the entry in key order.
func (l *Logger) write(lvl zapcore.Level, message string, fields map[string]any) {
	ce := l.zap.Check(lvl, message)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
