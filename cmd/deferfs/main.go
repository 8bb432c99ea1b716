// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

// Command deferfs mounts a deferfs passthrough filesystem: every
// mutating operation against the mountpoint is forwarded to the
// backing directory, ordered so that two operations on the same path
// complete in the order the kernel submitted them even when one of
// them runs on a worker goroutine after the syscall that submitted it
// has already returned.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/samuell/deferfs/lib/config"
	"github.com/samuell/deferfs/lib/deferfs"
	"github.com/samuell/deferfs/lib/deferfs/fuseadapter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "deferfs: %v\n", err)
		os.Exit(1)
	}
}

// mountConfig holds the parts of the command line that are not
// deferfs.Options fields: where to mount, what to mount over, and how
// to report on the process once it is running.
type mountConfig struct {
	mountpoint  string
	backing     string
	statsSocket string
	logLevel    string
	allowOther  bool
}

// parseArgs parses args (normally os.Args[1:]) into a mountConfig and
// an effective deferfs.Options, applying config file, environment, and
// explicit flag overrides in that order of increasing precedence. A
// nil error with a zero mountConfig means --help was requested and
// flagSet already printed usage.
func parseArgs(args []string) (mountConfig, deferfs.Options, error) {
	var cfg mountConfig
	var configPath string

	options := config.Default()

	flagSet := pflag.NewFlagSet("deferfs", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.mountpoint, "mountpoint", "", "directory to mount the filesystem at (required)")
	flagSet.StringVar(&cfg.backing, "backing", "", "directory operations are passed through to (required)")
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file overriding the defaults")
	flagSet.StringVar(&cfg.statsSocket, "stats-socket", "", "Unix socket path to stream stats for deferfs-top (disabled if empty)")
	flagSet.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&cfg.allowOther, "allow-other", false, "allow other users to access the mount (requires user_allow_other)")

	flagged := config.Default()
	flagSet.BoolVar(&flagged.EagerLink, "eager-link", options.EagerLink, "return from link(2) before the syscall runs")
	flagSet.BoolVar(&flagged.EagerChmod, "eager-chmod", options.EagerChmod, "return from chmod(2) before the syscall runs")
	flagSet.BoolVar(&flagged.EagerUtimens, "eager-utimens", options.EagerUtimens, "return from utimensat(2) before the syscall runs")
	flagSet.BoolVar(&flagged.EagerChown, "eager-chown", options.EagerChown, "return from chown(2) before the syscall runs")
	flagSet.BoolVar(&flagged.EagerClose, "eager-close", options.EagerClose, "return from release/flush before close(2) runs")
	flagSet.BoolVar(&flagged.EagerFsync, "eager-fsync", options.EagerFsync, "return from fsync(2) before the syscall runs")
	flagSet.BoolVar(&flagged.EagerCreate, "eager-create", options.EagerCreate, "return create's open(2) before the syscall runs")
	flagSet.BoolVar(&flagged.VeryEagerAccess, "very-eager-access", options.VeryEagerAccess, "return success from access(2) without a barrier")
	flagSet.BoolVar(&flagged.EagerAccess, "eager-access", options.EagerAccess, "run access(2) on a worker after a barrier")
	flagSet.BoolVar(&flagged.CloseVeryLate, "close-very-late", options.CloseVeryLate, "defer close(2) to process teardown")
	flagSet.BoolVar(&flagged.RestrictiveDirs, "restrictive-dirs", options.RestrictiveDirs, "widen directory-read barriers to the whole filesystem")
	flagSet.BoolVar(&flagged.IgnoreFsync, "ignore-fsync", options.IgnoreFsync, "make fsync(2) a no-op")
	flagSet.IntVar(&flagged.WorkerThreads, "worker-threads", options.WorkerThreads, "worker pool size (0 means GOMAXPROCS)")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			flagSet.PrintDefaults()
			return mountConfig{}, deferfs.Options{}, nil
		}
		return mountConfig{}, deferfs.Options{}, err
	}

	if cfg.mountpoint == "" {
		return mountConfig{}, deferfs.Options{}, fmt.Errorf("--mountpoint is required")
	}
	if cfg.backing == "" {
		return mountConfig{}, deferfs.Options{}, fmt.Errorf("--backing is required")
	}

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return mountConfig{}, deferfs.Options{}, err
		}
		options = loaded
	}
	options = config.LoadEnv(options)

	flagSet.Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "eager-link":
			options.EagerLink, _ = flagSet.GetBool("eager-link")
		case "eager-chmod":
			options.EagerChmod, _ = flagSet.GetBool("eager-chmod")
		case "eager-utimens":
			options.EagerUtimens, _ = flagSet.GetBool("eager-utimens")
		case "eager-chown":
			options.EagerChown, _ = flagSet.GetBool("eager-chown")
		case "eager-close":
			options.EagerClose, _ = flagSet.GetBool("eager-close")
		case "eager-fsync":
			options.EagerFsync, _ = flagSet.GetBool("eager-fsync")
		case "eager-create":
			options.EagerCreate, _ = flagSet.GetBool("eager-create")
		case "very-eager-access":
			options.VeryEagerAccess, _ = flagSet.GetBool("very-eager-access")
		case "eager-access":
			options.EagerAccess, _ = flagSet.GetBool("eager-access")
		case "close-very-late":
			options.CloseVeryLate, _ = flagSet.GetBool("close-very-late")
		case "restrictive-dirs":
			options.RestrictiveDirs, _ = flagSet.GetBool("restrictive-dirs")
		case "ignore-fsync":
			options.IgnoreFsync, _ = flagSet.GetBool("ignore-fsync")
		case "worker-threads":
			options.WorkerThreads, _ = flagSet.GetInt("worker-threads")
		}
	})

	if err := options.Validate(); err != nil {
		return mountConfig{}, deferfs.Options{}, err
	}

	return cfg, options, nil
}

func run() error {
	cfg, options, err := parseArgs(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.mountpoint == "" {
		// --help was requested; usage is already printed.
		return nil
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", cfg.logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dispatcher := deferfs.NewDispatcher(options, logger)

	server, err := fuseadapter.Mount(fuseadapter.Options{
		Mountpoint: cfg.mountpoint,
		Backing:    cfg.backing,
		Dispatcher: dispatcher,
		AllowOther: cfg.allowOther,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.statsSocket != "" {
		go func() {
			if err := serveStats(ctx, cfg.statsSocket, dispatcher, logger); err != nil {
				logger.Error("stats socket stopped", "error", err)
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	logger.Info("deferfs unmounting", "mountpoint", cfg.mountpoint)
	cancel()

	unmountErr := server.Unmount()
	if unmountErr != nil {
		logger.Error("unmount failed", "error", unmountErr)
	}

	for _, closeErr := range dispatcher.Shutdown() {
		logger.Error("close failed during shutdown", "error", closeErr)
	}

	if unmountErr != nil {
		return fmt.Errorf("unmount: %w", unmountErr)
	}
	return nil
}
