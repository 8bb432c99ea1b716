// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/samuell/deferfs/lib/codec"
	"github.com/samuell/deferfs/lib/deferfs"
)

// statsInterval is how often a connected deferfs-top client receives a
// fresh StatsSnapshot.
const statsInterval = 500 * time.Millisecond

// serveStats listens on socketPath and streams a StatsSnapshot to
// every connected client every statsInterval, until ctx is cancelled.
// Each connection gets its own monotonic sequence counter starting at
// zero, so a client can tell it connected fresh rather than resuming
// an existing stream.
//
// Modeled on this codebase's existing Unix-socket service pattern,
// simplified from request-response to one-way push: there is nothing
// for a deferfs-top client to ask for beyond "send me the current
// numbers."
func serveStats(ctx context.Context, socketPath string, disp *deferfs.Dispatcher, logger *slog.Logger) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer func() {
		listener.Close()
		os.Remove(socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("stats socket listening", "path", socketPath)

	var active sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			logger.Error("stats socket accept failed", "error", err)
			continue
		}

		active.Add(1)
		go func() {
			defer active.Done()
			streamStats(ctx, conn, disp, logger)
		}()
	}

	active.Wait()
	return nil
}

func streamStats(ctx context.Context, conn net.Conn, disp *deferfs.Dispatcher, logger *slog.Logger) {
	defer conn.Close()

	encoder := codec.NewEncoder(conn)
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var sequence uint64
	for {
		snapshot := codec.SnapshotFrom(disp.Stats(), sequence)
		if err := encoder.Encode(snapshot); err != nil {
			logger.Debug("stats client disconnected", "error", err)
			return
		}
		sequence++

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
