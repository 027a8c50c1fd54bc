// Package ipc implements the newline-delimited JSON codec spoken with git-lfs.
//
// Every inbound line is one event object, every outbound line is one
// response object. Responses are flushed as soon as they are written because
// git-lfs blocks reading our stdout line by line.
package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/lfs-agent/types"
)

// DecodeErrorKind classifies event decoding errors.
type DecodeErrorKind int

const (
	// DecodeErrorSyntax indicates the line is not a JSON object.
	DecodeErrorSyntax DecodeErrorKind = iota
	// DecodeErrorUnknownEvent indicates the event tag is unknown, or an
	// untagged message matches no variant.
	DecodeErrorUnknownEvent
	// DecodeErrorMissingField indicates a required field is absent or null.
	DecodeErrorMissingField
	// DecodeErrorInvalidField indicates a field has the wrong type or an
	// unusable value.
	DecodeErrorInvalidField
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorSyntax:
		return "syntax"
	case DecodeErrorUnknownEvent:
		return "unknown_event"
	case DecodeErrorMissingField:
		return "missing_field"
	case DecodeErrorInvalidField:
		return "invalid_field"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DecodeError represents a line that could not be decoded into an event.
type DecodeError struct {
	Kind DecodeErrorKind
	// Field is the offending field name, when known.
	Field string
	// OID is the oid read from the message before decoding failed, if any.
	// Used to address an error response when decode errors are not fatal.
	OID string
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = fmt.Sprintf("field %q: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AsDecodeError returns the *DecodeError in err's chain, if any.
func AsDecodeError(err error) (*DecodeError, bool) {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr, true
	}
	return nil, false
}

// message is an inbound object split into raw fields.
type message map[string]json.RawMessage

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// has reports whether name is present with a non-null value.
func (m message) has(name string) bool {
	raw, ok := m[name]
	return ok && !isNull(raw)
}

// require decodes the required field name into dst.
func (m message) require(name string, dst any) error {
	raw, ok := m[name]
	if !ok || isNull(raw) {
		return &DecodeError{Kind: DecodeErrorMissingField, Field: name, Msg: "required"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Kind: DecodeErrorInvalidField, Field: name, Msg: "wrong type", Err: err}
	}
	return nil
}

// optional decodes name into dst when present and non-null.
func (m message) optional(name string, dst any) error {
	if !m.has(name) {
		return nil
	}
	if err := json.Unmarshal(m[name], dst); err != nil {
		return &DecodeError{Kind: DecodeErrorInvalidField, Field: name, Msg: "wrong type", Err: err}
	}
	return nil
}

// peekOID returns the oid as a string if one is readable, else "".
func (m message) peekOID() string {
	var oid string
	if raw, ok := m["oid"]; ok {
		_ = json.Unmarshal(raw, &oid)
	}
	return oid
}

// DecodeEvent decodes one inbound line into a typed event.
//
// The "event" tag selects the variant and that variant's required fields are
// then validated; unknown extra fields are ignored. A message without a tag
// is matched structurally: Init, Upload and Download are tried in that order
// and the first whose required fields are all present and well typed is
// returned. Terminate is only ever selected by its tag.
//
// All failures are returned as *DecodeError.
func DecodeEvent(line []byte) (types.Event, error) {
	var m message
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, &DecodeError{Kind: DecodeErrorSyntax, Msg: "invalid JSON object", Err: err}
	}
	if m == nil {
		return nil, &DecodeError{Kind: DecodeErrorSyntax, Msg: "message is not a JSON object"}
	}

	ev, err := decodeMessage(m)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			decodeErr.OID = m.peekOID()
		}
		return nil, err
	}
	return ev, nil
}

func decodeMessage(m message) (types.Event, error) {
	if !m.has("event") {
		return decodeUntagged(m)
	}

	var tag string
	if err := m.require("event", &tag); err != nil {
		return nil, err
	}

	switch types.EventKind(tag) {
	case types.EventKindInit:
		return decodeInit(m)
	case types.EventKindUpload:
		return decodeUpload(m)
	case types.EventKindDownload:
		return decodeDownload(m)
	case types.EventKindTerminate:
		return &types.TerminateEvent{}, nil
	default:
		return nil, &DecodeError{
			Kind: DecodeErrorUnknownEvent,
			Msg:  fmt.Sprintf("unknown event %q", tag),
		}
	}
}

// untaggedVariants lists the variants tried for untagged messages, in
// priority order.
var untaggedVariants = []struct {
	kind   types.EventKind
	decode func(message) (types.Event, error)
}{
	{types.EventKindInit, func(m message) (types.Event, error) { return decodeInit(m) }},
	{types.EventKindUpload, func(m message) (types.Event, error) { return decodeUpload(m) }},
	{types.EventKindDownload, func(m message) (types.Event, error) { return decodeDownload(m) }},
}

// decodeUntagged is the structural fallback for messages without a tag. The
// first variant whose required fields all decode wins. When none does, the
// error names why the closest variant was rejected.
func decodeUntagged(m message) (types.Event, error) {
	closest := closestVariant(m)
	var closestErr error
	for _, variant := range untaggedVariants {
		ev, err := variant.decode(m)
		if err == nil {
			return ev, nil
		}
		if variant.kind == closest {
			closestErr = err
		}
	}
	return nil, &DecodeError{
		Kind: DecodeErrorUnknownEvent,
		Msg:  "message has no event tag and matches no event",
		Err:  closestErr,
	}
}

// closestVariant guesses which variant an untagged message was meant to be,
// for error reporting only.
func closestVariant(m message) types.EventKind {
	switch {
	case m.has("operation"):
		return types.EventKindInit
	case m.has("oid") && m.has("path"):
		return types.EventKindUpload
	case m.has("oid"):
		return types.EventKindDownload
	default:
		return ""
	}
}

func decodeInit(m message) (*types.InitEvent, error) {
	var ev types.InitEvent
	if err := m.require("operation", &ev.Operation); err != nil {
		return nil, err
	}
	if err := m.require("remote", &ev.Remote); err != nil {
		return nil, err
	}
	if err := m.require("concurrent", &ev.Concurrent); err != nil {
		return nil, err
	}
	if err := m.require("concurrenttransfers", &ev.ConcurrentTransfers); err != nil {
		return nil, err
	}
	return &ev, nil
}

func decodeUpload(m message) (*types.UploadEvent, error) {
	var ev types.UploadEvent
	if err := decodeObject(m, &ev.OID, &ev.Size, &ev.Action); err != nil {
		return nil, err
	}
	if err := m.require("path", &ev.Path); err != nil {
		return nil, err
	}
	if ev.Path == "" {
		return nil, &DecodeError{Kind: DecodeErrorInvalidField, Field: "path", Msg: "must not be empty"}
	}
	return &ev, nil
}

func decodeDownload(m message) (*types.DownloadEvent, error) {
	var ev types.DownloadEvent
	if err := decodeObject(m, &ev.OID, &ev.Size, &ev.Action); err != nil {
		return nil, err
	}
	return &ev, nil
}

// decodeObject decodes the fields shared by upload and download.
func decodeObject(m message, oid *string, size *uint64, action **types.Action) error {
	if err := m.require("oid", oid); err != nil {
		return err
	}
	if err := ValidateOID(*oid); err != nil {
		return err
	}
	if err := m.require("size", size); err != nil {
		return err
	}
	return m.optional("action", action)
}

// ValidateOID rejects oids that cannot safely name a file.
// Downloads land at <tempdir>/<oid>, so separators and dot names are refused.
func ValidateOID(oid string) error {
	switch {
	case oid == "":
		return &DecodeError{Kind: DecodeErrorInvalidField, Field: "oid", Msg: "must not be empty"}
	case oid == "." || oid == "..", strings.ContainsAny(oid, `/\`):
		return &DecodeError{Kind: DecodeErrorInvalidField, Field: "oid", Msg: fmt.Sprintf("cannot be used as a file name: %q", oid)}
	}
	return nil
}

// Encode serializes a response as one line of JSON without the trailing
// newline. HTML escaping is disabled so paths are written verbatim.
func Encode(resp types.Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, fmt.Errorf("encode %T: %w", resp, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
