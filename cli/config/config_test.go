package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/lfs-agent/diag"
	"github.com/pithecene-io/lfs-agent/runtime"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `remote: "gdrive:lfs-store"
tool: rclone
decode_errors: respond

tools:
  rclone:
    args: "--retries 1 --config '/etc/rclone config.conf'"
    timeout: 30m
    env:
      RCLONE_VERBOSE: "1"
  mycopy:
    command: /usr/local/bin/mycopy
    download_into: file

log:
  level: debug
  dir: /var/log/lfs
  file: failures.log
  max_size_mb: 5
  max_backups: 2

notify:
  type: webhook
  url: https://hooks.example.com/lfs
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Top-level fields
	assertEqual(t, "remote", cfg.Remote, "gdrive:lfs-store")
	assertEqual(t, "tool", cfg.Tool, "rclone")
	assertEqual(t, "decode_errors", cfg.DecodeErrors, "respond")

	// Tools
	if len(cfg.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(cfg.Tools))
	}
	assertEqual(t, "tools.rclone.args", cfg.Tools["rclone"].Args, "--retries 1 --config '/etc/rclone config.conf'")
	if cfg.Tools["rclone"].Timeout.Duration != 30*time.Minute {
		t.Errorf("expected tools.rclone.timeout=30m, got %v", cfg.Tools["rclone"].Timeout.Duration)
	}
	assertEqual(t, "tools.mycopy.download_into", cfg.Tools["mycopy"].DownloadInto, "file")

	// Log
	assertEqual(t, "log.level", cfg.Log.Level, "debug")
	assertEqual(t, "log.dir", cfg.Log.Dir, "/var/log/lfs")
	if cfg.Log.MaxSizeMB != 5 || cfg.Log.MaxBackups != 2 {
		t.Errorf("expected rotation 5MB/2 backups, got %d/%d", cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	}

	// Notify
	assertEqual(t, "notify.type", cfg.Notify.Type, "webhook")
	assertEqual(t, "notify.url", cfg.Notify.URL, "https://hooks.example.com/lfs")
	if cfg.Notify.Timeout.Duration != 10*time.Second {
		t.Errorf("expected notify.timeout=10s, got %v", cfg.Notify.Timeout.Duration)
	}
	if cfg.Notify.Retries == nil || *cfg.Notify.Retries != 3 {
		t.Errorf("expected notify.retries=3")
	}
	if cfg.Notify.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization header")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote != "" {
		t.Errorf("expected empty remote, got %q", cfg.Remote)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REMOTE", "s3:expanded")
	t.Setenv("TEST_TOKEN", "secret")
	t.Setenv("TEST_URL", "")

	yaml := `remote: ${TEST_REMOTE}
notify:
  type: webhook
  url: ${TEST_URL:-https://default.example.com}
  headers:
    Authorization: Bearer ${TEST_TOKEN}
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "remote", cfg.Remote, "s3:expanded")
	assertEqual(t, "notify.url", cfg.Notify.URL, "https://default.example.com")
	assertEqual(t, "notify.headers", cfg.Notify.Headers["Authorization"], "Bearer secret")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `remote: r:b
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `tools:
  rclone:
    comand: rclone
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "comand") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.Remote != "" {
		t.Errorf("expected empty remote, got %q", cfg.Remote)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.Tool != "" {
		t.Errorf("expected empty tool, got %q", cfg.Tool)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	// retries: 0 should parse as *int(0), not nil.
	yaml := `notify:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notify.Retries == nil {
		t.Fatal("expected retries to be non-nil (*int(0)), got nil")
	}
	if *cfg.Notify.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Notify.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	yaml := `notify:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notify.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Notify.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `notify:
  timeout: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	yaml := `tools:
  rclone:
    timeout: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tools["rclone"].Timeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Tools["rclone"].Timeout.Duration)
	}
}

func TestLoad_RedisNotifyConfig(t *testing.T) {
	yaml := `notify:
  type: redis
  url: redis://localhost:6379/0
  channel: lfs:sessions
  history_key: lfs:sessions:history
  history_limit: 50
  timeout: 5s
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "notify.type", cfg.Notify.Type, "redis")
	assertEqual(t, "notify.channel", cfg.Notify.Channel, "lfs:sessions")
	assertEqual(t, "notify.history_key", cfg.Notify.HistoryKey, "lfs:sessions:history")
	if cfg.Notify.HistoryLimit != 50 {
		t.Errorf("expected history_limit=50, got %d", cfg.Notify.HistoryLimit)
	}
}

func TestProfiles_BuiltinsWithoutTools(t *testing.T) {
	cfg := &Config{}
	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	want := runtime.BuiltinProfiles()
	if len(profiles) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(profiles))
	}
	for name, p := range want {
		got := profiles[name]
		if got.Command != p.Command || got.Subcommand != p.Subcommand || !slices.Equal(got.Args, p.Args) {
			t.Errorf("profile %s = %+v, want %+v", name, got, p)
		}
	}
}

func TestProfiles_OverrideBuiltin(t *testing.T) {
	cfg := &Config{
		Tools: map[string]ToolConfig{
			"rclone": {
				Args:    "--retries 1 --config '/etc/rclone config.conf'",
				Timeout: Duration{Duration: time.Minute},
				Env:     map[string]string{"B": "2", "A": "1"},
			},
		},
	}
	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}

	p := profiles["rclone"]
	assertEqual(t, "command", p.Command, "rclone")
	assertEqual(t, "subcommand", p.Subcommand, "copy")
	wantArgs := []string{"--retries", "1", "--config", "/etc/rclone config.conf"}
	if !slices.Equal(p.Args, wantArgs) {
		t.Errorf("args = %q, want %q", p.Args, wantArgs)
	}
	if p.Timeout != time.Minute {
		t.Errorf("timeout = %v, want 1m", p.Timeout)
	}
	if !slices.Equal(p.Env, []string{"A=1", "B=2"}) {
		t.Errorf("env = %q, want sorted A=1 B=2", p.Env)
	}
	if p.DownloadInto != runtime.DownloadIntoDir {
		t.Errorf("download_into = %q, want dir", p.DownloadInto)
	}

	got := p.Argv("/tmp/f", "r:b/abc")
	want := []string{"rclone", "copy", "--retries", "1", "--config", "/etc/rclone config.conf", "/tmp/f", "r:b/abc"}
	if !slices.Equal(got, want) {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestProfiles_ClearSubcommand(t *testing.T) {
	empty := ""
	cfg := &Config{Tools: map[string]ToolConfig{"rclone": {Command: "rclone-copy", Subcommand: &empty}}}
	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	p := profiles["rclone"]
	got := p.Argv("a", "b")
	if !slices.Equal(got, []string{"rclone-copy", "a", "b"}) {
		t.Errorf("argv = %q", got)
	}
}

func TestProfiles_NewTool(t *testing.T) {
	cfg := &Config{Tools: map[string]ToolConfig{
		"mycopy": {Command: "/usr/local/bin/mycopy", DownloadInto: "file"},
	}}
	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	p, ok := profiles["mycopy"]
	if !ok {
		t.Fatal("expected mycopy profile")
	}
	assertEqual(t, "name", p.Name, "mycopy")
	if p.DownloadInto != runtime.DownloadIntoFile {
		t.Errorf("download_into = %q, want file", p.DownloadInto)
	}
	if _, ok := profiles["scp"]; !ok {
		t.Error("built-in scp profile lost")
	}
}

func TestProfiles_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		tools   map[string]ToolConfig
		wantErr string
	}{
		{"new tool without command", map[string]ToolConfig{"mycopy": {Args: "-v"}}, "command is required"},
		{"bad download_into", map[string]ToolConfig{"scp": {DownloadInto: "tree"}}, "download_into"},
		{"unbalanced quotes", map[string]ToolConfig{"rclone": {Args: "--config 'oops"}}, "tools.rclone.args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Tools: tt.tools}
			_, err := cfg.Profiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Profiles() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLogConfig_DiagFileConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		log  LogConfig
		want string
	}{
		{"defaults", LogConfig{}, diag.DefaultPath("rclone")},
		{"dir", LogConfig{Dir: "/var/log/lfs"}, "/var/log/lfs/errors.log"},
		{"dir with home", LogConfig{Dir: "~/logs"}, filepath.Join(home, "logs", "errors.log")},
		{"file only", LogConfig{File: "x.log"}, filepath.Join(filepath.Dir(diag.DefaultPath("rclone")), "x.log")},
		{"dir and file", LogConfig{Dir: "/var/log/lfs", File: "x.log"}, "/var/log/lfs/x.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.log.DiagFileConfig("rclone")
			assertEqual(t, "path", got.Path, tt.want)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := DefaultPath(); got != "" {
		t.Errorf("DefaultPath() = %q, want empty when no file exists", got)
	}

	dir := filepath.Join(home, DefaultDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte("tool: scp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	assertEqual(t, "DefaultPath()", DefaultPath(), path)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		input string
		want  string
	}{
		{"~", home},
		{"~/logs", filepath.Join(home, "logs")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~user/logs", "~user/logs"},
	}
	for _, tt := range tests {
		assertEqual(t, tt.input, ExpandHome(tt.input), tt.want)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
