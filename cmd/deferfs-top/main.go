// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

// Command deferfs-top is a terminal dashboard for a running deferfs
// daemon. It dials the daemon's stats socket and redraws as each
// snapshot arrives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	var socketPath string

	flagSet := pflag.NewFlagSet("deferfs-top", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "stats-socket", "", "Unix socket path the deferfs daemon is streaming stats on (required)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			flagSet.PrintDefaults()
			return
		}
		fmt.Fprintf(os.Stderr, "deferfs-top: %v\n", err)
		os.Exit(1)
	}

	if socketPath == "" {
		fmt.Fprintln(os.Stderr, "deferfs-top: --stats-socket is required")
		os.Exit(1)
	}

	program := tea.NewProgram(newModel(socketPath))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "deferfs-top: %v\n", err)
		os.Exit(1)
	}
}
