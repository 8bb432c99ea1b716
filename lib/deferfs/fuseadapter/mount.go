// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samuell/deferfs/lib/deferfs"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures a deferfs FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// Created if it does not exist.
	Mountpoint string

	// Backing is the directory the mount passes operations through
	// to.
	Backing string

	// Dispatcher is the ordering engine every operation adapter
	// submits through. Required.
	Dispatcher *deferfs.Dispatcher

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Mount mounts the passthrough filesystem at options.Mountpoint. The
// caller must call Unmount on the returned Server when done.
//
// Entry, attribute, and negative-lookup caching are disabled: because
// mutations can complete asynchronously after the call that submitted
// them returns, letting the kernel cache any of these would let a
// client observe a stale result despite every operation here already
// enforcing the per-path happens-before order server-side.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("deferfs: mountpoint is required")
	}
	if options.Backing == "" {
		return nil, fmt.Errorf("deferfs: backing directory is required")
	}
	if options.Dispatcher == nil {
		return nil, fmt.Errorf("deferfs: dispatcher is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("deferfs: creating mountpoint %s: %w", options.Mountpoint, err)
	}

	state := &fsRoot{
		backing: options.Backing,
		disp:    options.Dispatcher,
		logger:  options.Logger,
	}
	root := &passthroughNode{root: state}

	noCache := 0 * time.Second
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &noCache,
		AttrTimeout:     &noCache,
		NegativeTimeout: &noCache,
		MountOptions: fuse.MountOptions{
			FsName:     "deferfs",
			Name:       "deferfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("deferfs: mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("deferfs mounted", "mountpoint", options.Mountpoint, "backing", options.Backing)
	return server, nil
}
