package types

import "github.com/google/uuid"

// SessionMeta identifies one agent process from start to Terminate.
// All log entries, diagnostic records and notifications carry it.
type SessionMeta struct {
	// SessionID is a random UUID assigned at startup.
	SessionID string
	// Tool is the selected tool profile name.
	Tool string
	// Remote is the remote argument objects are stored under.
	Remote string
}

// NewSessionMeta creates session metadata with a fresh session ID.
func NewSessionMeta(tool, remote string) *SessionMeta {
	return &SessionMeta{
		SessionID: uuid.NewString(),
		Tool:      tool,
		Remote:    remote,
	}
}
