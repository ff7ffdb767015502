package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper creates the record table for one backend, typically with
// CREATE TABLE IF NOT EXISTS issued through repo.Exec.
type DDLBootstrapper func(ctx context.Context, repo Repository, def TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the bootstrapper for kind. Backends call
// it from init.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureRecordTable creates cfg.Table with the record layout using the
// bootstrapper registered for cfg.Kind.
func EnsureRecordTable(ctx context.Context, cfg Config, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", cfg.Kind)
	}
	return fn(ctx, repo, RecordTable(cfg.Table))
}
