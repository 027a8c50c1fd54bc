package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pithecene-io/lfs-agent/diag"
	"github.com/pithecene-io/lfs-agent/iox"
	"github.com/pithecene-io/lfs-agent/types"
)

// TempPattern is the os.MkdirTemp / os.CreateTemp pattern for downloads.
const TempPattern = "git-lfs-agent-*"

// waitDelay bounds how long Wait keeps draining output after the tool
// was killed, in case it left children holding the pipe open.
const waitDelay = 5 * time.Second

// Transferer moves single objects between the local disk and the remote.
type Transferer interface {
	Upload(ctx context.Context, ev *types.UploadEvent) *TransferResult
	Download(ctx context.Context, ev *types.DownloadEvent) *TransferResult
}

// TransferResult is the outcome of one tool invocation.
type TransferResult struct {
	// Command is the argv that was (or would have been) executed.
	Command []string
	// ExitCode is the tool's exit status, -1 when it never ran or was killed.
	ExitCode int
	// Output is the combined stdout and stderr, truncated for diagnostics.
	Output []byte
	// Err is set when the tool could not be run or was stopped.
	Err error
	// SpawnFailed reports that the process never started.
	SpawnFailed bool
	// TimedOut reports that the profile timeout killed the tool.
	TimedOut bool
	// Duration is the wall time of the invocation.
	Duration time.Duration
	// Path is the local object path of a successful download.
	Path string
}

// Succeeded reports whether the tool ran and exited with status 0.
func (r *TransferResult) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

// InvokerConfig configures a ToolInvoker.
type InvokerConfig struct {
	// Profile is the tool to invoke.
	Profile ToolProfile
	// Remote is the remote argument; objects live at Remote + "/" + oid.
	Remote string
	// TempDir is the parent of download temp allocations.
	// Empty uses the system temp directory.
	TempDir string
}

// ToolInvoker runs an external copy tool once per transfer.
type ToolInvoker struct {
	config *InvokerConfig
}

// NewToolInvoker creates a new tool invoker.
func NewToolInvoker(config *InvokerConfig) *ToolInvoker {
	return &ToolInvoker{config: config}
}

// Upload copies ev.Path to the remote location of ev.OID.
func (v *ToolInvoker) Upload(ctx context.Context, ev *types.UploadEvent) *TransferResult {
	argv := v.config.Profile.Argv(ev.Path, RemoteLocation(v.config.Remote, ev.OID))
	return v.run(ctx, argv)
}

// Download copies the remote object into a fresh temp allocation.
// The allocation is removed again when the transfer fails.
func (v *ToolInvoker) Download(ctx context.Context, ev *types.DownloadEvent) *TransferResult {
	source := RemoteLocation(v.config.Remote, ev.OID)

	dest, path, err := v.allocate(ev.OID)
	if err != nil {
		return &TransferResult{
			Command:  v.config.Profile.Argv(source, v.tempRoot()),
			ExitCode: -1,
			Err:      err,
		}
	}

	result := v.run(ctx, v.config.Profile.Argv(source, dest))
	if !result.Succeeded() {
		iox.DiscardRemoveAll(dest)
		return result
	}
	result.Path = path
	return result
}

// allocate creates the download destination and returns it together with
// the path the object will have once the tool has run.
func (v *ToolInvoker) allocate(oid string) (dest, path string, err error) {
	if v.config.Profile.DownloadInto == DownloadIntoFile {
		f, err := os.CreateTemp(v.config.TempDir, TempPattern)
		if err != nil {
			return "", "", fmt.Errorf("failed to create temp file: %w", err)
		}
		name := f.Name()
		if err := f.Close(); err != nil {
			iox.DiscardRemoveAll(name)
			return "", "", fmt.Errorf("failed to close temp file: %w", err)
		}
		return name, name, nil
	}

	dir, err := os.MkdirTemp(v.config.TempDir, TempPattern)
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	return dir, filepath.Join(dir, oid), nil
}

func (v *ToolInvoker) tempRoot() string {
	if v.config.TempDir != "" {
		return v.config.TempDir
	}
	return os.TempDir()
}

// run executes argv and waits for it. Stdin is the null device so the
// tool can never consume protocol input.
func (v *ToolInvoker) run(ctx context.Context, argv []string) *TransferResult {
	result := &TransferResult{Command: argv, ExitCode: -1}

	if timeout := v.config.Profile.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	if len(v.config.Profile.Env) > 0 {
		cmd.Env = append(os.Environ(), v.config.Profile.Env...)
	}
	output := newCappedBuffer(diag.MaxOutputBytes)
	cmd.Stdout = output
	cmd.Stderr = output

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Output = output.Bytes()

	if err == nil {
		result.ExitCode = 0
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Err = fmt.Errorf("%s timed out after %s", argv[0], v.config.Profile.Timeout)
	case ctx.Err() != nil:
		result.Err = fmt.Errorf("%s interrupted: %w", argv[0], ctx.Err())
	case errors.As(err, &exitErr):
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		}
		if result.ExitCode < 0 {
			// killed by a signal nobody here sent
			result.Err = err
		}
	default:
		result.SpawnFailed = cmd.Process == nil
		result.Err = fmt.Errorf("failed to run %s: %w", argv[0], err)
	}
	return result
}

// cappedBuffer keeps the first limit bytes written and drops the rest.
// Writes always report full success so the tool is never blocked.
type cappedBuffer struct {
	buf   []byte
	limit int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf
}
