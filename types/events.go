// Package types defines the git-lfs custom transfer protocol messages.
//
// Wire format reference:
// https://github.com/git-lfs/git-lfs/blob/main/docs/custom-transfers.md
//
//nolint:revive // types is a common Go package naming convention
package types

// EventKind is the value of the "event" tag on an inbound message.
type EventKind string

// Inbound event kinds.
const (
	EventKindInit      EventKind = "init"
	EventKindUpload    EventKind = "upload"
	EventKindDownload  EventKind = "download"
	EventKindTerminate EventKind = "terminate"
)

// IsTransfer returns true for events that require a subprocess invocation.
func (k EventKind) IsTransfer() bool {
	return k == EventKindUpload || k == EventKindDownload
}

// Event is one decoded inbound message.
// Implemented by *InitEvent, *UploadEvent, *DownloadEvent and *TerminateEvent.
type Event interface {
	Kind() EventKind
}

// Action is the optional remote endpoint descriptor git-lfs attaches to
// transfer events. It is carried for diagnostics only; remote locations are
// built from the configured remote argument.
type Action struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header,omitempty"`
}

// InitEvent is sent once, before any transfer.
type InitEvent struct {
	// Operation is "upload" or "download".
	Operation string `json:"operation"`
	// Remote is the git remote name.
	Remote string `json:"remote"`
	// Concurrent reports whether git-lfs allows concurrent transfers.
	// Accepted but not honored: transfers always run one at a time.
	Concurrent bool `json:"concurrent"`
	// ConcurrentTransfers is the concurrency hint from git-lfs.
	ConcurrentTransfers uint64 `json:"concurrenttransfers"`
}

// Kind implements Event.
func (*InitEvent) Kind() EventKind { return EventKindInit }

// UploadEvent requests that the local file at Path be stored under OID.
type UploadEvent struct {
	OID    string  `json:"oid"`
	Size   uint64  `json:"size"`
	Path   string  `json:"path"`
	Action *Action `json:"action,omitempty"`
}

// Kind implements Event.
func (*UploadEvent) Kind() EventKind { return EventKindUpload }

// DownloadEvent requests that the object OID be fetched to a local path.
type DownloadEvent struct {
	OID    string  `json:"oid"`
	Size   uint64  `json:"size"`
	Action *Action `json:"action,omitempty"`
}

// Kind implements Event.
func (*DownloadEvent) Kind() EventKind { return EventKindDownload }

// TerminateEvent is sent once, last. It gets no response.
type TerminateEvent struct{}

// Kind implements Event.
func (*TerminateEvent) Kind() EventKind { return EventKindTerminate }

// OIDOf returns the oid carried by a transfer event, or "" for other events.
func OIDOf(ev Event) string {
	switch e := ev.(type) {
	case *UploadEvent:
		return e.OID
	case *DownloadEvent:
		return e.OID
	default:
		return ""
	}
}
