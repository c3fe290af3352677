package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/state"
	"github.com/parleychat/parley/transport"
	"github.com/parleychat/parley/ui"
)

func main() {
	serverURL := flag.String("server", "", "server URL, overrides the config file")
	logFile := flag.String("log", "", "log file path, overrides the config file")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	// stdout belongs to the UI, logs go to a file
	if f := openLog(cfg.LogFile); f != nil {
		defer f.Close()
		logrus.SetOutput(f)
	}

	sess := session.New()
	store := state.NewStore()
	adapter := transport.NewAdapter(cfg.ServerURL, sess, cfg.policy(), store)

	// sized past the transport's pending buffer so a replay burst from the
	// update loop never blocks against its own drain
	events := make(chan parley.Event, 128)
	adapter.Subscribe(func(ev parley.Event) { events <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer close(events)
		// the websocket needs a bearer token, so hold off until login
		for !sess.Authenticated() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
		if err := adapter.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.Errorf("push connection ended: %v", err)
		}
	}()

	p := tea.NewProgram(ui.New(adapter, sess, store, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logrus.Fatal(err)
	}
}

func openLog(path string) *os.File {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return f
}
