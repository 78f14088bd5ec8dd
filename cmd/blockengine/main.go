package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"blockengine/internal/config"
	"blockengine/internal/host"
	"blockengine/internal/repl"
	"blockengine/internal/viewer"
)

const (
	appName     = "blockengine"
	historyFile = ".blockengine_history"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "test":
		os.Exit(cmdTest(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "view":
		os.Exit(cmdView(os.Args[2:]))
	case "dump":
		os.Exit(cmdDump(os.Args[2:]))
	case "new":
		os.Exit(cmdNew(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`BlockEngine

Usage:
  %s run [-config f] [-place p.json] [script.lua ...]   Run scripts headless until idle.
  %s test [-config f] [dir]                            Run script tests (default from config).
  %s repl [-config f] [-place p.json]                  Start the Lua REPL.
  %s view [-config f] [-place p.json] [script.lua ...] Open the 3D viewer.
  %s dump [-config f] [-place p.json] [script.lua ...] Run to idle and print the place as JSON.
  %s new [-test] [-dir d] <ScriptName>                 Create a script or test skeleton.

`, appName, appName, appName, appName, appName, appName)
}

// common holds the flags every command takes.
type common struct {
	configPath string
	place      string
}

func newFlags(name string) (*flag.FlagSet, *common) {
	c := &common{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.configPath, "config", "blockengine.toml", "config file")
	fs.StringVar(&c.place, "place", "", "place file to load")
	return fs, c
}

// setup loads the config and builds a logger and host from it.
func setup(c *common, clock string) (*host.Host, *slog.Logger, error) {
	boot := host.NewLogger(config.Default().Log, os.Stderr)
	cfg, err := config.Load(c.configPath, boot)
	if err != nil {
		return nil, boot, err
	}
	if clock != "" {
		cfg.Scheduler.Clock = clock
	}
	if err := cfg.Validate(); err != nil {
		return nil, boot, err
	}
	logger := host.NewLogger(cfg.Log, os.Stderr)
	h, err := host.New(host.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, logger, err
	}
	return h, logger, nil
}

// start loads the place, if any, starts its scripts and then the given
// script files.
func start(h *host.Host, c *common, files []string) error {
	if c.place != "" {
		if err := h.LoadPlace(c.place); err != nil {
			return fmt.Errorf("load place: %w", err)
		}
		n := h.StartScripts()
		h.Logger.Info("place loaded", "path", c.place, "scripts", n)
	}
	for _, f := range files {
		if err := h.RunFile(f); err != nil {
			return err
		}
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fail(logger *slog.Logger, msg string, err error) int {
	logger.Error(msg, "err", err)
	return 1
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(args []string) int {
	fs, c := newFlags("run")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.place == "" && fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s run [-place p.json] [script.lua ...]\n", appName)
		return 2
	}
	h, logger, err := setup(c, "")
	if err != nil {
		return fail(logger, "startup failed", err)
	}
	defer h.Close()

	if err := start(h, c, fs.Args()); err != nil {
		return fail(logger, "start failed", err)
	}
	ctx, stop := signalContext()
	defer stop()
	if err := h.RunToIdle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail(logger, "run failed", err)
	}
	if n := len(h.Failures()); n > 0 {
		logger.Warn("scripts raised errors", "count", n)
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// test
// -----------------------------------------------------------------------------

func cmdTest(args []string) int {
	fs, c := newFlags("test")
	pattern := fs.String("pattern", "", "test file glob (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	boot := host.NewLogger(config.Default().Log, os.Stderr)
	cfg, err := config.Load(c.configPath, boot)
	if err != nil {
		return fail(boot, "load config", err)
	}
	dir := cfg.Scripts.TestDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	if *pattern != "" {
		cfg.Scripts.Pattern = *pattern
	}

	ctx, stop := signalContext()
	defer stop()
	opts := host.Options{Config: cfg, Logger: host.NewLogger(cfg.Log, os.Stderr), Output: io.Discard}
	report, err := host.RunTests(ctx, opts, dir, cfg.Scripts.Pattern, os.Stdout)
	if err != nil {
		return fail(opts.Logger, "run tests", err)
	}
	if report.Failed() > 0 {
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(args []string) int {
	fs, c := newFlags("repl")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	h, logger, err := setup(c, "")
	if err != nil {
		return fail(logger, "startup failed", err)
	}
	defer h.Close()
	if err := start(h, c, fs.Args()); err != nil {
		return fail(logger, "start failed", err)
	}

	ctx, stop := signalContext()
	defer stop()
	if err := repl.Run(ctx, h, os.Stdin, os.Stdout, historyPath()); err != nil && !errors.Is(err, context.Canceled) {
		return fail(logger, "repl", err)
	}
	return 0
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFile)
}

// -----------------------------------------------------------------------------
// view
// -----------------------------------------------------------------------------

func cmdView(args []string) int {
	fs, c := newFlags("view")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	// The viewer steps once per frame, so waits follow real time.
	h, logger, err := setup(c, "wall")
	if err != nil {
		return fail(logger, "startup failed", err)
	}
	defer h.Close()
	if err := start(h, c, fs.Args()); err != nil {
		return fail(logger, "start failed", err)
	}
	viewer.New(h, h.Config.Window).Run()
	return 0
}

// -----------------------------------------------------------------------------
// dump
// -----------------------------------------------------------------------------

func cmdDump(args []string) int {
	fs, c := newFlags("dump")
	out := fs.String("o", "", "write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	h, logger, err := setup(c, "virtual")
	if err != nil {
		return fail(logger, "startup failed", err)
	}
	defer h.Close()
	if err := start(h, c, fs.Args()); err != nil {
		return fail(logger, "start failed", err)
	}
	ctx, stop := signalContext()
	defer stop()
	if err := h.RunToIdle(ctx); err != nil {
		logger.Warn("scripts did not settle", "err", err)
	}

	if *out != "" && *out != "-" {
		if err := h.SavePlace(*out); err != nil {
			return fail(logger, "save place", err)
		}
		return 0
	}
	if err := h.Dump(os.Stdout); err != nil {
		return fail(logger, "dump", err)
	}
	return 0
}
