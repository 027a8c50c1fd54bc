package ipc

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pithecene-io/lfs-agent/types"
)

func TestLineReader_Lines(t *testing.T) {
	input := "first\r\n\n   \nsecond\nthird"
	r := NewLineReader(strings.NewReader(input))

	for _, want := range []string{"first", "second", "third"} {
		line, err := r.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if string(line) != want {
			t.Errorf("line = %q, want %q", line, want)
		}
	}

	if _, err := r.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestLineReader_LongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	r := NewLineReader(strings.NewReader(long + "\n"))

	line, err := r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if len(line) != len(long) {
		t.Errorf("len = %d, want %d", len(line), len(long))
	}
}

func TestLineReader_Empty(t *testing.T) {
	r := NewLineReader(strings.NewReader(""))
	if _, err := r.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestLineReader_ReadError(t *testing.T) {
	r := NewLineReader(errReader{})
	_, err := r.ReadLine()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected read error, got %v", err)
	}
}

// flushRecorder records how many bytes were visible after each Write call.
type flushRecorder struct {
	bytes.Buffer
	writes int
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.writes++
	return f.Buffer.Write(p)
}

func TestLineEncoder_WritesAndFlushes(t *testing.T) {
	var out flushRecorder
	enc := NewLineEncoder(&out)

	if err := enc.Write(types.EmptyResponse{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := out.String(); got != "{}\n" {
		t.Fatalf("after first write got %q, want %q", got, "{}\n")
	}

	if err := enc.Write(types.NewUploadComplete("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	want := "{}\n{\"event\":\"complete\",\"oid\":\"abc\"}\n"
	if got := out.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if out.writes != 2 {
		t.Errorf("underlying writes = %d, want one per response", out.writes)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestLineEncoder_WriteError(t *testing.T) {
	enc := NewLineEncoder(failWriter{})
	if err := enc.Write(types.EmptyResponse{}); err == nil {
		t.Error("expected error from failing writer")
	}
}
