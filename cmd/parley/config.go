package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/parleychat/parley/transport"
)

// config is read from ~/.parley/config.toml. Every field has a default
// so a missing file just means a local server.
type config struct {
	ServerURL string    `toml:"server_url"`
	LogFile   string    `toml:"log_file"`
	Reconnect reconnect `toml:"reconnect"`
}

type reconnect struct {
	Attempts     int `toml:"attempts"`
	DelaySeconds int `toml:"delay_seconds"`
}

func (c config) policy() transport.Policy {
	p := transport.DefaultPolicy
	if c.Reconnect.Attempts > 0 {
		p.MaxAttempts = c.Reconnect.Attempts
	}
	if c.Reconnect.DelaySeconds > 0 {
		p.Delay = time.Duration(c.Reconnect.DelaySeconds) * time.Second
	}
	return p
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".parley"), nil
}

// loadConfig reads the config file when present and falls back to
// defaults when it is not.
func loadConfig() (config, error) {
	cfg := config{
		ServerURL: "http://localhost:8080",
	}

	dir, err := configDir()
	if err != nil {
		return cfg, err
	}
	cfg.LogFile = filepath.Join(dir, "parley.log")

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "reading %s", path)
	}
	return cfg, nil
}
