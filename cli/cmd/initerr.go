package cmd

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lfs-agent/ipc"
	"github.com/pithecene-io/lfs-agent/types"
)

// Exit codes.
const (
	exitSuccess       = 0
	exitConfigError   = 1
	exitProtocolAbort = 2
)

// InitError is a configuration problem found before the event loop starts.
// It is reported to git-lfs as an initialize error response.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func initErrorf(format string, args ...any) *InitError {
	return &InitError{Err: fmt.Errorf(format, args...)}
}

// ReportInitError writes err as a single initialize error response to w
// and returns the exit error for the configuration exit code.
func ReportInitError(w io.Writer, err error) error {
	if writeErr := ipc.NewLineEncoder(w).Write(types.NewInitError(err.Error())); writeErr != nil {
		return cli.Exit(fmt.Sprintf("git-lfs-agent: %v (reporting failed: %v)", err, writeErr), exitConfigError)
	}
	return cli.Exit("git-lfs-agent: "+err.Error(), exitConfigError)
}
