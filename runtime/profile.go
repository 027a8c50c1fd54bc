package runtime

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DownloadInto selects what a download hands to the tool as destination.
type DownloadInto string

const (
	// DownloadIntoDir passes a fresh empty directory; the tool keeps the
	// remote basename, so the object lands at <dir>/<oid>.
	DownloadIntoDir DownloadInto = "dir"
	// DownloadIntoFile passes a fresh empty file that the tool overwrites.
	DownloadIntoFile DownloadInto = "file"
)

// ToolProfile describes how to invoke one transfer tool.
type ToolProfile struct {
	// Name is the profile name (used in log paths and notifications).
	Name string
	// Command is the executable, looked up in PATH when not absolute.
	Command string
	// Subcommand is placed right after the command ("copy" for rclone).
	// Empty for tools without subcommands.
	Subcommand string
	// Args are extra arguments placed before source and destination.
	Args []string
	// DownloadInto selects the download destination kind (default dir).
	DownloadInto DownloadInto
	// Timeout bounds one invocation. Zero means no limit.
	Timeout time.Duration
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
}

// Built-in profile names.
const (
	ProfileRclone = "rclone"
	ProfileScp    = "scp"
)

// BuiltinProfiles returns the profiles available without a config file.
func BuiltinProfiles() map[string]ToolProfile {
	return map[string]ToolProfile{
		ProfileRclone: {
			Name:         ProfileRclone,
			Command:      "rclone",
			Subcommand:   "copy",
			DownloadInto: DownloadIntoDir,
		},
		ProfileScp: {
			Name:         ProfileScp,
			Command:      "scp",
			Args:         []string{"-B"},
			DownloadInto: DownloadIntoDir,
		},
	}
}

// ProfileNames returns the sorted names of profiles.
func ProfileNames(profiles map[string]ToolProfile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the profile can be invoked.
func (p ToolProfile) Validate() error {
	if p.Command == "" {
		return fmt.Errorf("tool profile %q: command is required", p.Name)
	}
	switch p.DownloadInto {
	case "", DownloadIntoDir, DownloadIntoFile:
	default:
		return fmt.Errorf("tool profile %q: download_into must be %q or %q, got %q",
			p.Name, DownloadIntoDir, DownloadIntoFile, p.DownloadInto)
	}
	if p.Timeout < 0 {
		return errors.New("tool profile " + p.Name + ": timeout must not be negative")
	}
	return nil
}

// Argv builds <command> [subcommand] [args...] <source> <destination>.
func (p ToolProfile) Argv(source, destination string) []string {
	argv := make([]string, 0, 4+len(p.Args))
	argv = append(argv, p.Command)
	if p.Subcommand != "" {
		argv = append(argv, p.Subcommand)
	}
	argv = append(argv, p.Args...)
	return append(argv, source, destination)
}
