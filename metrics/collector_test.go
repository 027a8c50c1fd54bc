package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_TransferCounters(t *testing.T) {
	c := NewCollector("rclone", "sess-001")

	c.IncTransferStarted(DirectionUpload)
	c.RecordTransferSuccess(DirectionUpload, 100, 2*time.Millisecond)
	c.IncTransferStarted(DirectionUpload)
	c.RecordTransferFailure(DirectionUpload, time.Millisecond)
	c.IncTransferStarted(DirectionDownload)
	c.RecordTransferSuccess(DirectionDownload, 40, time.Millisecond)
	c.IncTransferStarted(DirectionDownload)
	c.IncSpawnFailure()
	c.RecordTransferFailure(DirectionDownload, 0)
	c.IncTimeout()
	c.IncDecodeErrors()

	s := c.Snapshot()

	if s.UploadsStarted != 2 || s.UploadsSucceeded != 1 || s.UploadsFailed != 1 {
		t.Errorf("uploads = %d/%d/%d, want 2/1/1", s.UploadsStarted, s.UploadsSucceeded, s.UploadsFailed)
	}
	if s.DownloadsStarted != 2 || s.DownloadsSucceeded != 1 || s.DownloadsFailed != 1 {
		t.Errorf("downloads = %d/%d/%d, want 2/1/1", s.DownloadsStarted, s.DownloadsSucceeded, s.DownloadsFailed)
	}
	if s.BytesUploaded != 100 {
		t.Errorf("BytesUploaded = %d, want 100", s.BytesUploaded)
	}
	if s.BytesDownloaded != 40 {
		t.Errorf("BytesDownloaded = %d, want 40", s.BytesDownloaded)
	}
	if s.SpawnFailures != 1 || s.Timeouts != 1 || s.DecodeErrors != 1 {
		t.Errorf("spawn/timeouts/decode = %d/%d/%d, want 1/1/1", s.SpawnFailures, s.Timeouts, s.DecodeErrors)
	}
	if s.ToolTime != 4*time.Millisecond {
		t.Errorf("ToolTime = %v, want 4ms", s.ToolTime)
	}
	if s.Failures() != 2 {
		t.Errorf("Failures() = %d, want 2", s.Failures())
	}
	if s.Tool != "rclone" || s.SessionID != "sess-001" {
		t.Errorf("dimensions = %q/%q", s.Tool, s.SessionID)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// None of these may panic.
	c.IncTransferStarted(DirectionUpload)
	c.RecordTransferSuccess(DirectionUpload, 1, time.Second)
	c.RecordTransferFailure(DirectionDownload, time.Second)
	c.IncSpawnFailure()
	c.IncTimeout()
	c.IncDecodeErrors()

	s := c.Snapshot()
	if s.UploadsStarted != 0 || s.Tool != "" {
		t.Errorf("nil collector snapshot should be zero, got %+v", s)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("scp", "sess-002")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncTransferStarted(DirectionDownload)
			c.RecordTransferSuccess(DirectionDownload, 10, 0)
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.DownloadsStarted != 50 || s.DownloadsSucceeded != 50 {
		t.Errorf("downloads = %d/%d, want 50/50", s.DownloadsStarted, s.DownloadsSucceeded)
	}
	if s.BytesDownloaded != 500 {
		t.Errorf("BytesDownloaded = %d, want 500", s.BytesDownloaded)
	}
}

func TestSnapshot_Fields(t *testing.T) {
	c := NewCollector("rclone", "sess-003")
	c.IncTransferStarted(DirectionUpload)
	c.RecordTransferSuccess(DirectionUpload, 7, 1500*time.Millisecond)

	fields := c.Snapshot().Fields()
	if fields["uploads_succeeded"] != int64(1) {
		t.Errorf("uploads_succeeded = %v", fields["uploads_succeeded"])
	}
	if fields["bytes_uploaded"] != int64(7) {
		t.Errorf("bytes_uploaded = %v", fields["bytes_uploaded"])
	}
	if fields["tool_time_ms"] != int64(1500) {
		t.Errorf("tool_time_ms = %v", fields["tool_time_ms"])
	}
}
