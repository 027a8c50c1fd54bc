package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/pithecene-io/lfs-agent/diag"
	"github.com/pithecene-io/lfs-agent/runtime"
)

// Config represents a git-lfs-agent config.yaml file.
// All values are optional. Command-line arguments and flags always override
// config values.
type Config struct {
	// Remote is used when no remote argument is given on the command line.
	Remote       string                `yaml:"remote"`
	Tool         string                `yaml:"tool"`
	DecodeErrors string                `yaml:"decode_errors"`
	Tools        map[string]ToolConfig `yaml:"tools"`
	Log          LogConfig             `yaml:"log"`
	Notify       NotifyConfig          `yaml:"notify"`
}

// ToolConfig overrides or defines a transfer tool profile.
// Unset fields keep the built-in profile's values.
type ToolConfig struct {
	Command string `yaml:"command"`
	// Subcommand is a pointer so an empty string can clear a built-in one.
	Subcommand *string `yaml:"subcommand"`
	// Args is a shell-quoted argument string, e.g. "--retries 1 --config 'a b'".
	Args         string            `yaml:"args"`
	DownloadInto string            `yaml:"download_into"`
	Timeout      Duration          `yaml:"timeout"`
	Env          map[string]string `yaml:"env"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the stderr log level (debug, info, warn, error).
	Level string `yaml:"level"`
	// Dir is the diagnostic log directory (default ~/.git-lfs-agent-<tool>/logs).
	Dir string `yaml:"dir"`
	// File is the diagnostic log file name (default errors.log).
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	// Disabled turns the diagnostic log off.
	Disabled bool `yaml:"disabled"`
}

// NotifyConfig holds session summary notification settings.
type NotifyConfig struct {
	// Type is "webhook", "redis", or empty for no notifications.
	Type         string            `yaml:"type"`
	URL          string            `yaml:"url"`
	Channel      string            `yaml:"channel,omitempty"`
	HistoryKey   string            `yaml:"history_key,omitempty"`
	HistoryLimit int64             `yaml:"history_limit,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Timeout      Duration          `yaml:"timeout,omitempty"`
	Retries      *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Profiles returns the built-in tool profiles merged with the tools section.
// A tools entry named like a built-in overrides only the fields it sets;
// any other name defines a new profile and must set command.
func (c *Config) Profiles() (map[string]runtime.ToolProfile, error) {
	profiles := runtime.BuiltinProfiles()

	// Sorted for deterministic error reporting
	for _, name := range slices.Sorted(maps.Keys(c.Tools)) {
		profile, err := c.Tools[name].apply(name, profiles[name])
		if err != nil {
			return nil, err
		}
		profiles[name] = profile
	}
	return profiles, nil
}

func (tc ToolConfig) apply(name string, base runtime.ToolProfile) (runtime.ToolProfile, error) {
	profile := base
	profile.Name = name
	if tc.Command != "" {
		profile.Command = ExpandHome(tc.Command)
	}
	if tc.Subcommand != nil {
		profile.Subcommand = *tc.Subcommand
	}
	if tc.Args != "" {
		args, err := shellquote.Split(tc.Args)
		if err != nil {
			return runtime.ToolProfile{}, fmt.Errorf("tools.%s.args: %w", name, err)
		}
		profile.Args = args
	}
	if tc.DownloadInto != "" {
		profile.DownloadInto = runtime.DownloadInto(tc.DownloadInto)
	}
	if profile.DownloadInto == "" {
		profile.DownloadInto = runtime.DownloadIntoDir
	}
	if tc.Timeout.Duration != 0 {
		profile.Timeout = tc.Timeout.Duration
	}
	if len(tc.Env) > 0 {
		env := make([]string, 0, len(tc.Env))
		for _, key := range slices.Sorted(maps.Keys(tc.Env)) {
			env = append(env, key+"="+tc.Env[key])
		}
		profile.Env = env
	}

	if err := profile.Validate(); err != nil {
		return runtime.ToolProfile{}, err
	}
	return profile, nil
}

// DiagFileConfig returns the diagnostic log settings for tool.
func (l LogConfig) DiagFileConfig(tool string) diag.FileConfig {
	path := diag.DefaultPath(tool)
	if l.Dir != "" {
		path = filepath.Join(ExpandHome(l.Dir), diag.DefaultFileName)
	}
	if l.File != "" {
		path = filepath.Join(filepath.Dir(path), l.File)
	}
	return diag.FileConfig{
		Path:       path,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}
