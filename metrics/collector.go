// Package metrics provides per-session transfer counters.
//
// The Collector accumulates counters during a single agent session. It is a
// leaf package with no internal dependencies. A snapshot is logged and
// published when the session ends.
package metrics

import (
	"sync"
	"time"
)

// Direction labels a transfer.
type Direction string

// Transfer directions.
const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Snapshot is an immutable point-in-time view of the session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Uploads
	UploadsStarted   int64
	UploadsSucceeded int64
	UploadsFailed    int64
	BytesUploaded    int64

	// Downloads
	DownloadsStarted   int64
	DownloadsSucceeded int64
	DownloadsFailed    int64
	BytesDownloaded    int64

	// Tool
	SpawnFailures int64
	Timeouts      int64
	ToolTime      time.Duration

	// Protocol
	DecodeErrors int64

	// Dimensions (informational, set at construction)
	Tool      string
	SessionID string
}

// Failures returns the total number of failed transfers.
func (s Snapshot) Failures() int64 {
	return s.UploadsFailed + s.DownloadsFailed
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	uploadsStarted   int64
	uploadsSucceeded int64
	uploadsFailed    int64
	bytesUploaded    int64

	downloadsStarted   int64
	downloadsSucceeded int64
	downloadsFailed    int64
	bytesDownloaded    int64

	spawnFailures int64
	timeouts      int64
	toolTime      time.Duration

	decodeErrors int64

	tool      string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(tool, sessionID string) *Collector {
	return &Collector{
		tool:      tool,
		sessionID: sessionID,
	}
}

// IncTransferStarted records that a subprocess is about to run.
func (c *Collector) IncTransferStarted(dir Direction) {
	if c == nil {
		return
	}
	c.mu.Lock()
	switch dir {
	case DirectionUpload:
		c.uploadsStarted++
	case DirectionDownload:
		c.downloadsStarted++
	}
	c.mu.Unlock()
}

// RecordTransferSuccess records a transfer whose tool exited 0.
// size is the object size announced by git-lfs.
func (c *Collector) RecordTransferSuccess(dir Direction, size uint64, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	switch dir {
	case DirectionUpload:
		c.uploadsSucceeded++
		c.bytesUploaded += int64(size)
	case DirectionDownload:
		c.downloadsSucceeded++
		c.bytesDownloaded += int64(size)
	}
	c.toolTime += elapsed
	c.mu.Unlock()
}

// RecordTransferFailure records a transfer that failed for any reason.
func (c *Collector) RecordTransferFailure(dir Direction, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	switch dir {
	case DirectionUpload:
		c.uploadsFailed++
	case DirectionDownload:
		c.downloadsFailed++
	}
	c.toolTime += elapsed
	c.mu.Unlock()
}

// IncSpawnFailure records a tool that could not be started.
func (c *Collector) IncSpawnFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.spawnFailures++
	c.mu.Unlock()
}

// IncTimeout records a tool killed by its profile timeout.
func (c *Collector) IncTimeout() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.timeouts++
	c.mu.Unlock()
}

// IncDecodeErrors records an inbound line that failed to decode.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		UploadsStarted:   c.uploadsStarted,
		UploadsSucceeded: c.uploadsSucceeded,
		UploadsFailed:    c.uploadsFailed,
		BytesUploaded:    c.bytesUploaded,

		DownloadsStarted:   c.downloadsStarted,
		DownloadsSucceeded: c.downloadsSucceeded,
		DownloadsFailed:    c.downloadsFailed,
		BytesDownloaded:    c.bytesDownloaded,

		SpawnFailures: c.spawnFailures,
		Timeouts:      c.timeouts,
		ToolTime:      c.toolTime,

		DecodeErrors: c.decodeErrors,

		Tool:      c.tool,
		SessionID: c.sessionID,
	}
}

// Fields renders the snapshot as structured log fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"uploads_started":     s.UploadsStarted,
		"uploads_succeeded":   s.UploadsSucceeded,
		"uploads_failed":      s.UploadsFailed,
		"bytes_uploaded":      s.BytesUploaded,
		"downloads_started":   s.DownloadsStarted,
		"downloads_succeeded": s.DownloadsSucceeded,
		"downloads_failed":    s.DownloadsFailed,
		"bytes_downloaded":    s.BytesDownloaded,
		"spawn_failures":      s.SpawnFailures,
		"timeouts":            s.Timeouts,
		"tool_time_ms":        s.ToolTime.Milliseconds(),
		"decode_errors":       s.DecodeErrors,
	}
}
