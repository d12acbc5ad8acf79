package sqlite

import (
	"errors"
	"fmt"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "conversations.db"
)

// Config holds the SQLite conversation store configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/conversations.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// MaxTurns bounds each user's stored history. Defaults to 6.
	MaxTurns int `yaml:"max_turns"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = conversation.DefaultMaxTurns
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	var errs []error
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout))
	}
	if c.MaxTurns < 1 {
		errs = append(errs, errors.New("sqlite: max_turns must be at least 1"))
	}
	return errors.Join(errs...)
}
