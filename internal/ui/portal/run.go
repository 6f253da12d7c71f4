// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/educagestao/educagestao-tui/internal/session"
)

// bridgeBuffer bounds the messages waiting for the event loop.
const bridgeBuffer = 64

// bridge forwards messages from manager subscribers and the file watcher
// into the program. send never blocks: subscribers run on timer goroutines
// and from inside tea.Cmds, and a blocked subscriber would stall them.
type bridge struct {
	ch     chan tea.Msg
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newBridge(logger *slog.Logger) *bridge {
	return &bridge{
		ch:     make(chan tea.Msg, bridgeBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case <-b.done:
	case b.ch <- msg:
	default:
		// The periodic re-check reconciles a dropped transition.
		b.logger.Warn("ui_message_dropped", slog.String("type", fmt.Sprintf("%T", msg)))
	}
}

// forward delivers queued messages to send until stop is called.
func (b *bridge) forward(send func(tea.Msg)) {
	for {
		select {
		case <-b.done:
			return
		case msg := <-b.ch:
			send(msg)
		}
	}
}

func (b *bridge) stop() {
	b.once.Do(func() { close(b.done) })
}

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	logger := m.opts.Logger

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx))

	b := newBridge(logger)
	defer b.stop()

	unsubscribe := opts.Sessions.Subscribe(func(ev session.Event) {
		b.send(sessionEventMsg{event: ev})
	})
	defer unsubscribe()

	if opts.SessionFile != "" {
		watcher, err := session.NewFileWatcher(opts.SessionFile, session.DefaultWatchDebounce, func() {
			b.send(sessionFileChangedMsg{})
		}, logger)
		if err == nil {
			err = watcher.Watch()
		}
		if err != nil {
			logger.Warn("session_watch_unavailable", slog.Any("error", err))
		}
		if watcher != nil {
			defer watcher.Close()
		}
	}

	go b.forward(p.Send)

	_, err := p.Run()
	return err
}
