package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/lfs-agent/diag"
	"github.com/pithecene-io/lfs-agent/log"
	"github.com/pithecene-io/lfs-agent/metrics"
	"github.com/pithecene-io/lfs-agent/types"
)

// Failure messages carried in transfer error responses.
const (
	MessageUploadFailed   = "Upload failed"
	MessageDownloadFailed = "Download failed"
)

// ErrUnexpectedEvent is returned for an event variant the dispatcher does not
// know. It indicates a decoder/dispatcher mismatch and aborts the session.
var ErrUnexpectedEvent = errors.New("unexpected event variant")

// ErrSessionDone is returned when an event is dispatched after terminate.
var ErrSessionDone = errors.New("event after terminate")

// State is the dispatcher lifecycle state.
type State int

// Dispatcher states.
const (
	StateAwaitingInit State = iota
	StateActive
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingInit:
		return "awaiting_init"
	case StateActive:
		return "active"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Session identifies the session in diagnostics.
	Session *types.SessionMeta
	// Transferer performs uploads and downloads.
	Transferer Transferer
	// Sink receives a record per failed transfer. Nil discards.
	Sink diag.Sink
	// Logger is the structured stderr logger. Nil discards.
	Logger *log.Logger
	// Collector receives transfer counters. Nil-safe.
	Collector *metrics.Collector
}

// Dispatcher maps each decoded event to at most one response.
// Transfers run synchronously, one at a time, in input order.
type Dispatcher struct {
	config *DispatcherConfig
	logger *log.Logger
	sink   diag.Sink
	state  State
	init   *types.InitEvent
}

// NewDispatcher creates a dispatcher in StateAwaitingInit.
func NewDispatcher(config *DispatcherConfig) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}
	var sink diag.Sink = diag.Nop{}
	if config.Sink != nil {
		sink = config.Sink
	}
	return &Dispatcher{
		config: config,
		logger: logger,
		sink:   sink,
		state:  StateAwaitingInit,
	}
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	return d.state
}

// Init returns the init event seen by the dispatcher, or nil.
func (d *Dispatcher) Init() *types.InitEvent {
	return d.init
}

// Dispatch handles one event. line is the raw inbound message, kept for
// diagnostics. A nil response means nothing is written (terminate).
// Transfer failures are reported through the response, never as error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev types.Event, line []byte) (types.Response, error) {
	if d.state == StateDone {
		return nil, ErrSessionDone
	}

	if ev != nil && ev.Kind().IsTransfer() {
		d.checkInit(ev)
	}

	switch ev := ev.(type) {
	case *types.InitEvent:
		return d.handleInit(ev), nil
	case *types.UploadEvent:
		return d.handleUpload(ctx, ev, line), nil
	case *types.DownloadEvent:
		return d.handleDownload(ctx, ev, line), nil
	case *types.TerminateEvent:
		d.state = StateDone
		d.logger.Debug("terminate received", nil)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedEvent, ev)
	}
}

func (d *Dispatcher) handleInit(ev *types.InitEvent) types.Response {
	if d.init != nil {
		d.logger.Warn("repeated init", map[string]any{"operation": ev.Operation})
	}
	d.init = ev
	d.state = StateActive
	d.logger.Info("session initialized", map[string]any{
		"operation":            ev.Operation,
		"git_remote":           ev.Remote,
		"concurrent":           ev.Concurrent,
		"concurrent_transfers": ev.ConcurrentTransfers,
	})
	return types.EmptyResponse{}
}

// checkInit warns about transfers that arrive before init. They are
// processed anyway.
func (d *Dispatcher) checkInit(ev types.Event) {
	if d.state == StateAwaitingInit {
		d.logger.Warn("transfer before init", map[string]any{
			"event": string(ev.Kind()),
			"oid":   types.OIDOf(ev),
		})
	}
}

func (d *Dispatcher) handleUpload(ctx context.Context, ev *types.UploadEvent, line []byte) types.Response {
	d.config.Collector.IncTransferStarted(metrics.DirectionUpload)
	d.logger.Debug("upload started", map[string]any{"oid": ev.OID, "size": ev.Size, "path": ev.Path})

	result := d.config.Transferer.Upload(ctx, ev)
	d.traceResult(result)
	if !result.Succeeded() {
		d.recordFailure(types.EventKindUpload, metrics.DirectionUpload, ev.OID, result, line)
		return types.NewTransferError(ev.OID, MessageUploadFailed)
	}

	d.config.Collector.RecordTransferSuccess(metrics.DirectionUpload, ev.Size, result.Duration)
	d.logger.Info("upload complete", map[string]any{
		"oid":         ev.OID,
		"size":        ev.Size,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return types.NewUploadComplete(ev.OID)
}

func (d *Dispatcher) handleDownload(ctx context.Context, ev *types.DownloadEvent, line []byte) types.Response {
	d.config.Collector.IncTransferStarted(metrics.DirectionDownload)
	d.logger.Debug("download started", map[string]any{"oid": ev.OID, "size": ev.Size})

	result := d.config.Transferer.Download(ctx, ev)
	d.traceResult(result)
	if !result.Succeeded() {
		d.recordFailure(types.EventKindDownload, metrics.DirectionDownload, ev.OID, result, line)
		return types.NewTransferError(ev.OID, MessageDownloadFailed)
	}

	d.config.Collector.RecordTransferSuccess(metrics.DirectionDownload, ev.Size, result.Duration)
	d.logger.Info("download complete", map[string]any{
		"oid":         ev.OID,
		"size":        ev.Size,
		"path":        result.Path,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return types.NewDownloadComplete(ev.OID, result.Path)
}

// traceResult logs the command that ran and how it ended.
func (d *Dispatcher) traceResult(result *TransferResult) {
	if !d.logger.Enabled(zapcore.DebugLevel) {
		return
	}
	d.logger.Debug("tool finished", map[string]any{
		"command":     shellquote.Join(result.Command...),
		"exit_code":   result.ExitCode,
		"duration_ms": result.Duration.Milliseconds(),
		"output":      string(result.Output),
	})
}

func (d *Dispatcher) recordFailure(kind types.EventKind, dir metrics.Direction, oid string, result *TransferResult, line []byte) {
	d.config.Collector.RecordTransferFailure(dir, result.Duration)
	if result.SpawnFailed {
		d.config.Collector.IncSpawnFailure()
	}
	if result.TimedOut {
		d.config.Collector.IncTimeout()
	}

	fields := map[string]any{
		"oid":       oid,
		"exit_code": result.ExitCode,
	}
	if result.Err != nil {
		fields["error"] = result.Err.Error()
	}
	d.logger.Error(string(kind)+" failed", fields)

	var sessionID string
	if d.config.Session != nil {
		sessionID = d.config.Session.SessionID
	}
	d.sink.Record(&diag.Record{
		SessionID: sessionID,
		Operation: kind,
		OID:       oid,
		Command:   result.Command,
		ExitCode:  result.ExitCode,
		Output:    result.Output,
		Err:       result.Err,
		Request:   string(line),
	})
}
