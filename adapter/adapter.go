// Package adapter defines the notification boundary for finished sessions.
//
// When a session ends, a summary of its transfers can be published to a
// downstream system (a webhook or a redis channel) so that failed pushes and
// pulls on build machines are visible without reading per-user log files.
// Publishing is best effort and never changes the protocol outcome.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/lfs-agent/metrics"
	"github.com/pithecene-io/lfs-agent/types"
)

// EventTypeSessionCompleted is the event_type of every published payload.
const EventTypeSessionCompleted = "session_completed"

// SessionCompletedEvent is the payload published when a session ends.
type SessionCompletedEvent struct {
	ContractVersion    string `json:"contract_version"`
	EventType          string `json:"event_type"` // always "session_completed"
	SessionID          string `json:"session_id"`
	AgentVersion       string `json:"agent_version"`
	Tool               string `json:"tool"`
	Remote             string `json:"remote"`
	Operation          string `json:"operation,omitempty"` // from init: upload or download
	GitRemote          string `json:"git_remote,omitempty"`
	Terminated         bool   `json:"terminated"` // false when input ended before terminate
	UploadsSucceeded   int64  `json:"uploads_succeeded"`
	UploadsFailed      int64  `json:"uploads_failed"`
	DownloadsSucceeded int64  `json:"downloads_succeeded"`
	DownloadsFailed    int64  `json:"downloads_failed"`
	BytesUploaded      int64  `json:"bytes_uploaded"`
	BytesDownloaded    int64  `json:"bytes_downloaded"`
	DecodeErrors       int64  `json:"decode_errors"`
	Timestamp          string `json:"timestamp"` // ISO 8601
	DurationMs         int64  `json:"duration_ms"`
}

// NewSessionCompletedEvent builds the payload from session identity and its
// final metrics snapshot.
func NewSessionCompletedEvent(session *types.SessionMeta, initEv *types.InitEvent, terminated bool, snap metrics.Snapshot, started, ended time.Time) *SessionCompletedEvent {
	event := &SessionCompletedEvent{
		ContractVersion:    types.NotifyContractVersion,
		EventType:          EventTypeSessionCompleted,
		SessionID:          session.SessionID,
		AgentVersion:       types.Version,
		Tool:               session.Tool,
		Remote:             session.Remote,
		Terminated:         terminated,
		UploadsSucceeded:   snap.UploadsSucceeded,
		UploadsFailed:      snap.UploadsFailed,
		DownloadsSucceeded: snap.DownloadsSucceeded,
		DownloadsFailed:    snap.DownloadsFailed,
		BytesUploaded:      snap.BytesUploaded,
		BytesDownloaded:    snap.BytesDownloaded,
		DecodeErrors:       snap.DecodeErrors,
		Timestamp:          ended.UTC().Format(time.RFC3339),
		DurationMs:         ended.Sub(started).Milliseconds(),
	}
	if initEv != nil {
		event.Operation = initEv.Operation
		event.GitRemote = initEv.Remote
	}
	return event
}

// Adapter publishes session completion events to a downstream system.
// Implementations must be safe for single use per session.
type Adapter interface {
	// Publish sends a session completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
