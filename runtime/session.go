package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/lfs-agent/adapter"
	"github.com/pithecene-io/lfs-agent/diag"
	"github.com/pithecene-io/lfs-agent/ipc"
	"github.com/pithecene-io/lfs-agent/log"
	"github.com/pithecene-io/lfs-agent/metrics"
	"github.com/pithecene-io/lfs-agent/types"
)

// DecodeErrorPolicy selects what happens when an inbound line cannot be
// decoded.
type DecodeErrorPolicy string

const (
	// DecodeErrorsAbort ends the session with an error (the process exits 2).
	DecodeErrorsAbort DecodeErrorPolicy = "abort"
	// DecodeErrorsRespond writes an error response and keeps reading.
	DecodeErrorsRespond DecodeErrorPolicy = "respond"
)

// DefaultNotifyTimeout bounds publishing the session summary.
const DefaultNotifyTimeout = 15 * time.Second

// ParseDecodeErrorPolicy parses a policy name. Empty yields DecodeErrorsAbort.
func ParseDecodeErrorPolicy(name string) (DecodeErrorPolicy, error) {
	switch DecodeErrorPolicy(name) {
	case "", DecodeErrorsAbort:
		return DecodeErrorsAbort, nil
	case DecodeErrorsRespond:
		return DecodeErrorsRespond, nil
	default:
		return "", fmt.Errorf("invalid decode error policy %q: must be %q or %q",
			name, DecodeErrorsAbort, DecodeErrorsRespond)
	}
}

// SessionConfig configures a single agent session.
type SessionConfig struct {
	// Input carries inbound messages (stdin).
	Input io.Reader
	// Output receives responses (stdout).
	Output io.Writer
	// Session is the session identity.
	Session *types.SessionMeta
	// Transferer performs the transfers.
	Transferer Transferer
	// Sink receives failure records. If nil, records are discarded.
	Sink diag.Sink
	// Logger is the stderr logger. If nil, nothing is logged.
	Logger *log.Logger
	// Collector is the metrics collector for this session.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// DecodeErrors is the decode error policy (default abort).
	DecodeErrors DecodeErrorPolicy
	// Adapter publishes the session summary. Optional.
	Adapter adapter.Adapter
	// NotifyTimeout bounds the summary publish (default DefaultNotifyTimeout).
	NotifyTimeout time.Duration
}

// SessionResult summarizes a finished session.
type SessionResult struct {
	// Terminated is true when the session ended with a terminate event.
	Terminated bool
	// Lines is the number of non-blank lines read.
	Lines int64
	// Duration is the total session duration.
	Duration time.Duration
	// Metrics is the final metrics snapshot.
	Metrics metrics.Snapshot
}

// Session runs the event loop of one agent process.
type Session struct {
	config     *SessionConfig
	logger     *log.Logger
	dispatcher *Dispatcher
}

// NewSession creates a new session.
func NewSession(config *SessionConfig) *Session {
	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Session{
		config: config,
		logger: logger,
		dispatcher: NewDispatcher(&DispatcherConfig{
			Session:    config.Session,
			Transferer: config.Transferer,
			Sink:       config.Sink,
			Logger:     logger,
			Collector:  config.Collector,
		}),
	}
}

// Run reads and answers events until terminate or end of input.
//
// Execution flow:
//  1. Read one line (EOF ends the session)
//  2. Decode it, applying the decode error policy on failure
//  3. Dispatch it and write the response, if any
//  4. Stop after terminate without reading further
//
// The summary is logged and published however the loop ends. A non-nil
// error means the session was aborted: a decode error under the abort
// policy, unwritable output, or ctx cancelled. Cancellation is checked
// before each read, so an in-flight transfer still gets its response.
func (s *Session) Run(ctx context.Context) (*SessionResult, error) {
	start := time.Now()
	result := &SessionResult{}

	err := s.loop(ctx, result)

	result.Terminated = s.dispatcher.State() == StateDone
	result.Duration = time.Since(start)
	result.Metrics = s.config.Collector.Snapshot()
	s.finish(ctx, result, start, err)

	return result, err
}

func (s *Session) loop(ctx context.Context, result *SessionResult) error {
	reader := ipc.NewLineReader(s.config.Input)
	encoder := ipc.NewLineEncoder(s.config.Output)

	for s.dispatcher.State() != StateDone {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted after %d lines: %w", result.Lines, err)
		}

		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			s.logger.Warn("input ended before terminate", map[string]any{
				"lines": result.Lines,
			})
			return nil
		}
		if err != nil {
			return err
		}
		result.Lines++
		if s.logger.Enabled(zapcore.DebugLevel) {
			s.logger.Debug("line received", map[string]any{
				"line":    result.Lines,
				"request": string(line),
			})
		}

		ev, err := ipc.DecodeEvent(line)
		if err != nil {
			resp, abortErr := s.handleDecodeError(err, line, result.Lines)
			if abortErr != nil {
				return abortErr
			}
			if err := encoder.Write(resp); err != nil {
				return err
			}
			continue
		}

		resp, err := s.dispatcher.Dispatch(ctx, ev, line)
		if err != nil {
			return fmt.Errorf("line %d: %w", result.Lines, err)
		}
		if resp == nil {
			continue
		}
		if err := encoder.Write(resp); err != nil {
			return err
		}
	}
	return nil
}

// handleDecodeError applies the decode error policy. It returns either the
// response to write or the error that aborts the session.
func (s *Session) handleDecodeError(err error, line []byte, lineNo int64) (types.Response, error) {
	s.config.Collector.IncDecodeErrors()

	fields := map[string]any{
		"line":    lineNo,
		"error":   err.Error(),
		"request": string(line),
	}

	if s.config.DecodeErrors != DecodeErrorsRespond {
		s.logger.Error("invalid message", fields)
		return nil, fmt.Errorf("line %d: %w", lineNo, err)
	}

	s.logger.Warn("invalid message", fields)
	oid := types.InitErrorOID
	if decodeErr, ok := ipc.AsDecodeError(err); ok && decodeErr.OID != "" {
		oid = decodeErr.OID
	}
	return types.NewTransferError(oid, "Invalid message: "+err.Error()), nil
}

// finish logs the session summary and publishes it when an adapter is
// configured. Publish failures are logged only.
func (s *Session) finish(ctx context.Context, result *SessionResult, start time.Time, runErr error) {
	fields := result.Metrics.Fields()
	fields["terminated"] = result.Terminated
	fields["lines"] = result.Lines
	fields["duration_ms"] = result.Duration.Milliseconds()
	if runErr != nil {
		fields["error"] = runErr.Error()
		s.logger.Error("session aborted", fields)
	} else {
		s.logger.Info("session finished", fields)
	}

	if s.config.Adapter == nil || s.config.Session == nil {
		return
	}

	timeout := s.config.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	// The summary still goes out when ctx was cancelled by a signal.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	event := adapter.NewSessionCompletedEvent(
		s.config.Session,
		s.dispatcher.Init(),
		result.Terminated,
		result.Metrics,
		start,
		start.Add(result.Duration),
	)
	if err := s.config.Adapter.Publish(pubCtx, event); err != nil {
		s.logger.Warn("failed to publish session summary", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.logger.Debug("session summary published", map[string]any{"session_id": event.SessionID})
}
