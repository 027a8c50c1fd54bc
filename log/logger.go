// Package log provides structured stderr logging with session context.
//
// Stdout belongs to the git-lfs protocol, so every log entry goes to stderr.
// git-lfs surfaces agent stderr when GIT_TRACE is set.
package log

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/lfs-agent/types"
)

// DefaultLevel is the level used when none is configured.
const DefaultLevel = zapcore.WarnLevel

// Logger provides structured logging with session context.
// All log entries include session_id, tool and remote.
type Logger struct {
	zap *zap.Logger
}

// ParseLevel parses a level name (debug, info, warn, error).
// An empty name yields DefaultLevel.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return DefaultLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return DefaultLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// NewLoggerWithWriter creates a logger writing to the specified writer.
func NewLoggerWithWriter(session *types.SessionMeta, w io.Writer, level zapcore.Level) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)

	contextFields := []zap.Field{
		zap.String("session_id", session.SessionID),
		zap.String("tool", session.Tool),
	}
	if session.Remote != "" {
		contextFields = append(contextFields, zap.String("remote", session.Remote))
	}

	return &Logger{zap: zap.New(core).With(contextFields...)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Enabled reports whether entries at level would be written.
// Used to skip building expensive debug fields.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. Errors are ignored: stderr may already be
// closed by the parent process.
func (l *Logger) Sync() {
	_ = l.zap.Sync()
}
