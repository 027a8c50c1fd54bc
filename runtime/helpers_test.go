package runtime

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pithecene-io/lfs-agent/diag"
)

// Stub tools. Each receives <source> <destination> as its arguments, like
// rclone copy and scp.
const (
	// copyTool copies the source into the destination (file or directory).
	copyTool = "#!/bin/sh\nexec cp \"$1\" \"$2\"\n"
	okTool   = "#!/bin/sh\nexit 0\n"
	failTool = "#!/bin/sh\necho \"copy failed: $*\" >&2\nexit 1\n"
	hungTool = "#!/bin/sh\nexec sleep 30\n"
	// argsTool records its argv, one per line, into $ARGS_FILE.
	argsTool = "#!/bin/sh\nfor a; do echo \"$a\"; done > \"$ARGS_FILE\"\n"
)

// writeTool writes an executable script into a temp directory and returns
// its path.
func writeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	return path
}

// stubProfile returns a profile running script with no subcommand.
func stubProfile(t *testing.T, script string) ToolProfile {
	t.Helper()
	return ToolProfile{
		Name:         "stub",
		Command:      writeTool(t, script),
		DownloadInto: DownloadIntoDir,
	}
}

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// readFile returns the content of path or fails the test.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// dirEntries returns the names in dir.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// recordingSink keeps every record it receives.
type recordingSink struct {
	mu      sync.Mutex
	records []*diag.Record
	closed  bool
}

func (s *recordingSink) Record(rec *diag.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) all() []*diag.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*diag.Record(nil), s.records...)
}
