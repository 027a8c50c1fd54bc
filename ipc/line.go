package ipc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/lfs-agent/types"
)

// LineReader reads inbound messages one line at a time.
type LineReader struct {
	reader *bufio.Reader
}

// NewLineReader creates a new line reader.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{reader: bufio.NewReader(r)}
}

// ReadLine returns the next non-blank line without its line terminator.
// Lines may be of any length. A final line without a trailing newline is
// returned normally; the following call returns io.EOF.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more lines)
//   - any other error from the underlying reader
func (l *LineReader) ReadLine() ([]byte, error) {
	for {
		line, err := l.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read line: %w", err)
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

// LineEncoder writes responses, one JSON object per line.
// Each Write is a single locked write followed by a flush, so lines are never
// interleaved and git-lfs sees every response as soon as it is produced.
type LineEncoder struct {
	mu     sync.Mutex
	writer *bufio.Writer
}

// NewLineEncoder creates a new line encoder.
func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{writer: bufio.NewWriter(w)}
}

// Write encodes resp, appends a newline and flushes.
func (e *LineEncoder) Write(resp types.Response) error {
	data, err := Encode(resp)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.writer.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := e.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
