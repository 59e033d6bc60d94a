// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/angelar/arsession/internal/config"
	"github.com/angelar/arsession/internal/database"
	gormstorage "github.com/angelar/arsession/internal/storage/gorm"
	"github.com/angelar/arsession/internal/storage/memory"
	sqlitestorage "github.com/angelar/arsession/internal/storage/sqlite"
	wsstorage "github.com/angelar/arsession/internal/storage/websocket"

	"github.com/rs/zerolog"
)

// Dependencies are shared by all backends.
type Dependencies struct {
	Logger zerolog.Logger
	// Slog is used by the streaming backend; nil falls back to slog.Default.
	Slog *slog.Logger
	Tag  string
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: deps.Logger,
			Tag:    deps.Tag,
		}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:         cfg.SQLite.Path,
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     sqlitestorage.DumpPath(cfg.Memory.OutputDir, cfg.SQLite.Path),
		}, deps.Logger, deps.Tag)
	case "websocket":
		return wsstorage.New(wsstorage.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
			Tag:    deps.Tag,
		}, deps.Slog), nil
	case "memory", "":
		return memory.New(cfg.Memory, deps.Tag), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
