// Package sqlite implements a persistent conversation store module backed
// by SQLite. It uses modernc.org/sqlite (pure Go, no CGO) in WAL mode and
// registers itself as the process conversation store, replacing the
// in-memory default.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ conversation.Store = (*Store)(nil)
	_ core.Configurable  = (*Module)(nil)
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
	_ core.Stopper       = (*Module)(nil)
)

// Module provides a SQLite-backed conversation.Store.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := openDB(m.config.Path, options{
		wal:         m.config.walEnabled(),
		busyTimeout: m.config.BusyTimeout,
	})
	if err != nil {
		return err
	}

	m.store = newStore(db, m.config.MaxTurns)
	ctx.RegisterService(conversation.StoreService, m.store)

	m.logger.Info("sqlite conversation store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"max_turns", m.config.MaxTurns,
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}

	if err := m.store.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite conversation store stopping")
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Store returns the conversation store.
func (m *Module) Store() *Store {
	return m.store
}
