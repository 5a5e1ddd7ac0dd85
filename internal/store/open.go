package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/vburojevic/readtime/internal/config"
)

// Backend names accepted in store.backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open builds the KV selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (KV, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}
	if backend == BackendMemory {
		return NewMemoryKV(), nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		p, err := DefaultPath(backend)
		if err != nil {
			return nil, err
		}
		path = p
	}

	switch backend {
	case BackendFile:
		return NewFileKV(path)
	case BackendSQLite:
		return NewSQLiteKV(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store backend %q (use file, sqlite or memory)", cfg.Backend)
	}
}
