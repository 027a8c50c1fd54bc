// Package diag records failed transfers in an append-only, rotating log file.
//
// Records are forensic: one line per failure holding the command that ran,
// its captured output and the request line that triggered it. Nothing reads
// them back. Failing to write a record never fails the transfer session.
package diag

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pithecene-io/lfs-agent/types"
)

// Rotation defaults, used when FileConfig leaves them zero.
const (
	DefaultMaxSizeMB  = 1
	DefaultMaxBackups = 3
	DefaultFileName   = "errors.log"
)

// MaxOutputBytes caps the tool output kept in a record.
const MaxOutputBytes = 64 * 1024

// Record describes one failed transfer.
type Record struct {
	SessionID string
	Operation types.EventKind
	OID       string
	// Command is the argv that was run (or attempted).
	Command []string
	// ExitCode is the tool's exit status, -1 if it never exited normally.
	ExitCode int
	// Output is the tool's combined stdout and stderr.
	Output []byte
	// Err is the spawn or wait error, if any.
	Err error
	// Request is the raw inbound line.
	Request string
}

// Sink receives failure records.
type Sink interface {
	Record(rec *Record)
	Close() error
}

// FileConfig configures a rotating file sink.
type FileConfig struct {
	// Path is the log file path.
	Path string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// LogSink writes records through a zap console encoder.
type LogSink struct {
	zap    *zap.Logger
	closer io.Closer
}

// NewFileSink creates a sink appending to a rotating file.
// The file and its directory are created on the first record, so a session
// without failures leaves no trace on disk. Internal write errors are
// reported to errOut.
func NewFileSink(cfg FileConfig, errOut io.Writer) *LogSink {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return newLogSink(rotator, rotator, errOut)
}

// NewWriterSink creates a sink writing records to w.
func NewWriterSink(w io.Writer) *LogSink {
	return newLogSink(w, nil, io.Discard)
}

func newLogSink(w io.Writer, closer io.Closer, errOut io.Writer) *LogSink {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.ErrorLevel,
	)
	return &LogSink{
		zap:    zap.New(core, zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(errOut)))),
		closer: closer,
	}
}

// Record appends one line describing rec.
func (s *LogSink) Record(rec *Record) {
	fields := []zap.Field{
		zap.String("oid", rec.OID),
		zap.String("command", shellquote.Join(rec.Command...)),
		zap.Int("exit_code", rec.ExitCode),
		zap.String("output", truncateOutput(rec.Output)),
		zap.String("request", rec.Request),
	}
	if rec.SessionID != "" {
		fields = append(fields, zap.String("session_id", rec.SessionID))
	}
	if rec.Err != nil {
		fields = append(fields, zap.String("error", rec.Err.Error()))
	}
	s.zap.Error(string(rec.Operation)+" failed", fields...)
}

// Close flushes and closes the underlying file.
func (s *LogSink) Close() error {
	_ = s.zap.Sync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Nop is a sink that drops every record.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(*Record) {}

// Close implements Sink.
func (Nop) Close() error { return nil }

// DefaultPath returns ~/.git-lfs-agent-<tool>/logs/errors.log, falling back
// to the system temp directory when the home directory is unknown.
func DefaultPath(tool string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".git-lfs-agent-"+tool, "logs", DefaultFileName)
}

func truncateOutput(out []byte) string {
	s := strings.TrimRight(string(out), "\n")
	if len(s) > MaxOutputBytes {
		return s[:MaxOutputBytes] + "...(truncated)"
	}
	return s
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = Nop{}
)
