// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samuell/deferfs/lib/codec"
)

// keyMap is the dashboard's key binding set. Only two actions exist,
// so this exists mainly to keep View's help line and Update's dispatch
// from drifting apart.
type keyMap struct {
	Reconnect key.Binding
	Quit      key.Binding
}

var defaultKeyMap = keyMap{
	Reconnect: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reconnect"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// snapshotMsg carries one decoded StatsSnapshot from the reader
// goroutine to the bubbletea Update loop.
type snapshotMsg codec.StatsSnapshot

// connErrMsg reports that the connection to the daemon failed or
// dropped.
type connErrMsg struct{ err error }

type model struct {
	socketPath string
	conn       net.Conn
	decoder    *codec.Decoder
	spinner    spinner.Model

	latest     codec.StatsSnapshot
	lastUpdate time.Time
	lastError  error
	connected  bool
}

func newModel(socketPath string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = helpStyle
	return model{socketPath: socketPath, spinner: s}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.dial, m.spinner.Tick)
}

// dial connects to the daemon's stats socket. Reconnection is left to
// the user (press r) rather than automatic, since a daemon that is
// down usually means the mount itself is down and retrying blindly
// just spams the terminal.
func (m model) dial() tea.Msg {
	conn, err := net.Dial("unix", m.socketPath)
	if err != nil {
		return connErrMsg{err}
	}
	return dialedMsg{conn}
}

type dialedMsg struct{ conn net.Conn }

func readNext(decoder *codec.Decoder) tea.Cmd {
	return func() tea.Msg {
		var snapshot codec.StatsSnapshot
		if err := decoder.Decode(&snapshot); err != nil {
			return connErrMsg{err}
		}
		return snapshotMsg(snapshot)
	}
}

func (m model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, defaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, defaultKeyMap.Reconnect):
			if !m.connected {
				return m, m.dial
			}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.connected {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case dialedMsg:
		m.conn = msg.conn
		m.decoder = codec.NewDecoder(msg.conn)
		m.connected = true
		m.lastError = nil
		return m, readNext(m.decoder)

	case snapshotMsg:
		m.latest = codec.StatsSnapshot(msg)
		m.lastUpdate = time.Now()
		return m, readNext(m.decoder)

	case connErrMsg:
		m.connected = false
		m.lastError = msg.err
		if m.conn != nil {
			m.conn.Close()
			m.conn = nil
		}
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var b string
	b += titleStyle.Render("deferfs — live dispatcher stats") + "\n"
	b += helpStyle.Render(m.socketPath) + "\n\n"

	if !m.connected {
		status := m.spinner.View() + " connecting…"
		if m.lastError != nil {
			status = errorStyle.Render(fmt.Sprintf("disconnected: %v", m.lastError))
		}
		b += status + "\n\n"
		b += helpStyle.Render(fmt.Sprintf("%s reconnect · %s quit", defaultKeyMap.Reconnect.Help().Key, defaultKeyMap.Quit.Help().Key)) + "\n"
		return b
	}

	row := func(label string, value any) string {
		return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value)) + "\n"
	}

	b += row("sequence", m.latest.Sequence)
	b += row("pending events", m.latest.PendingEvents)
	b += row("known paths", m.latest.KnownPaths)
	b += row("allocated handles", m.latest.AllocatedHandles)
	b += row("queued tasks", m.latest.QueuedTasks)
	b += row("deferred closes", m.latest.DeferredCloses)

	b += "\n" + helpStyle.Render(fmt.Sprintf("updated %s ago · q to quit", time.Since(m.lastUpdate).Round(time.Millisecond)))
	return b
}
