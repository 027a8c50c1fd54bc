package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/lfs-agent/cli/config"
	"github.com/pithecene-io/lfs-agent/diag"
	"github.com/pithecene-io/lfs-agent/iox"
	"github.com/pithecene-io/lfs-agent/log"
	"github.com/pithecene-io/lfs-agent/metrics"
	"github.com/pithecene-io/lfs-agent/runtime"
	"github.com/pithecene-io/lfs-agent/types"
)

// settings is the fully resolved agent configuration.
type settings struct {
	tmpdir       string
	profile      runtime.ToolProfile
	remote       string
	level        zapcore.Level
	decodeErrors runtime.DecodeErrorPolicy
	log          config.LogConfig
	notify       config.NotifyConfig
}

// resolveSettings merges flags, environment, and the config file.
// Flags and environment win over the file. Every error is an *InitError.
func resolveSettings(c *cli.Context) (*settings, error) {
	s := &settings{}

	if c.IsSet(FlagTmpdir) {
		dir := c.String(FlagTmpdir)
		info, err := os.Stat(dir)
		switch {
		case err != nil:
			return nil, initErrorf("tmpdir %q: %w", dir, err)
		case !info.IsDir():
			return nil, initErrorf("tmpdir %q is not a directory", dir)
		}
		s.tmpdir = dir
	}

	cfg := &config.Config{}
	configPath := c.String(FlagConfig)
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	if configPath != "" {
		loaded, err := config.Load(config.ExpandHome(configPath))
		if err != nil {
			return nil, &InitError{Err: err}
		}
		cfg = loaded
	}
	s.log = cfg.Log
	s.notify = cfg.Notify

	toolName := firstNonEmpty(c.String(FlagTool), cfg.Tool, runtime.ProfileRclone)
	profiles, err := cfg.Profiles()
	if err != nil {
		return nil, &InitError{Err: err}
	}
	profile, ok := profiles[toolName]
	if !ok {
		return nil, initErrorf("unknown tool %q (available: %s)",
			toolName, strings.Join(runtime.ProfileNames(profiles), ", "))
	}
	s.profile = profile

	s.remote = firstNonEmpty(strings.Join(c.Args().Slice(), " "), cfg.Remote)
	if s.remote == "" {
		return nil, initErrorf("missing remote argument")
	}

	s.level, err = log.ParseLevel(firstNonEmpty(c.String(FlagLogLevel), cfg.Log.Level))
	if err != nil {
		return nil, &InitError{Err: err}
	}

	s.decodeErrors, err = runtime.ParseDecodeErrorPolicy(cfg.DecodeErrors)
	if err != nil {
		return nil, &InitError{Err: err}
	}

	return s, nil
}

// agentAction runs one protocol session over the app's reader and writer.
func agentAction(c *cli.Context) error {
	s, err := resolveSettings(c)
	if err != nil {
		return ReportInitError(c.App.Writer, err)
	}

	session := types.NewSessionMeta(s.profile.Name, s.remote)
	logger := log.NewLoggerWithWriter(session, c.App.ErrWriter, s.level)
	defer logger.Sync()

	pub, err := buildAdapter(s.notify)
	if err != nil {
		return ReportInitError(c.App.Writer, &InitError{Err: err})
	}
	if pub != nil {
		defer iox.DiscardClose(pub)
	}

	var sink diag.Sink = diag.Nop{}
	if !s.log.Disabled {
		sink = diag.NewFileSink(s.log.DiagFileConfig(s.profile.Name), c.App.ErrWriter)
	}
	defer iox.DiscardClose(sink)

	logger.Debug("agent starting", map[string]any{
		"version":       types.Version,
		"command":       s.profile.Command,
		"tmpdir":        s.tmpdir,
		"decode_errors": string(s.decodeErrors),
	})

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("signal received, stopping", map[string]any{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	runner := runtime.NewSession(&runtime.SessionConfig{
		Input:   c.App.Reader,
		Output:  c.App.Writer,
		Session: session,
		Transferer: runtime.NewToolInvoker(&runtime.InvokerConfig{
			Profile: s.profile,
			Remote:  s.remote,
			TempDir: s.tmpdir,
		}),
		Sink:          sink,
		Logger:        logger,
		Collector:     metrics.NewCollector(session.Tool, session.SessionID),
		DecodeErrors:  s.decodeErrors,
		Adapter:       pub,
		NotifyTimeout: notifyBudget(s.notify),
	})

	if _, err := runner.Run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("git-lfs-agent: %v", err), exitProtocolAbort)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
