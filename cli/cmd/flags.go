// Package cmd provides the git-lfs-agent command line.
package cmd

import "github.com/urfave/cli/v2"

// Environment variables read as flag fallbacks.
const (
	EnvTool     = "GIT_LFS_AGENT_TOOL"
	EnvConfig   = "GIT_LFS_AGENT_CONFIG"
	EnvLogLevel = "GIT_LFS_AGENT_LOG_LEVEL"
)

// Flag names.
const (
	FlagTmpdir   = "tmpdir"
	FlagTool     = "tool"
	FlagConfig   = "config"
	FlagLogLevel = "log-level"
)

// AgentFlags returns the agent's flags. None has a Value default so that
// IsSet distinguishes an explicit choice from the config file's.
func AgentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  FlagTmpdir,
			Usage: "Existing directory for download temp files (default: system temp dir)",
		},
		&cli.StringFlag{
			Name:    FlagTool,
			Usage:   "Transfer tool profile: rclone, scp, or one defined in the config file (default: rclone)",
			EnvVars: []string{EnvTool},
		},
		&cli.StringFlag{
			Name:    FlagConfig,
			Usage:   "Path to config.yaml (default: ~/.git-lfs-agent/config.yaml if present)",
			EnvVars: []string{EnvConfig},
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Usage:   "Stderr log level: debug, info, warn, error (default: warn)",
			EnvVars: []string{EnvLogLevel},
		},
	}
}

// hoistedFlags are the flags that take a value and may appear anywhere in
// the argument list.
var hoistedFlags = map[string]bool{
	FlagTmpdir:   true,
	FlagTool:     true,
	FlagConfig:   true,
	FlagLogLevel: true,
}
