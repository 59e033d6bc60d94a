// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend; the SQLite-specific parts are opening the
// database (in memory or on disk) and the periodic VACUUM INTO dump of an
// in-memory database.
package sqlitestorage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/angelar/arsession/internal/database"
	gormstorage "github.com/angelar/arsession/internal/storage/gorm"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DumpFileName is the file an in-memory database is dumped to.
const DumpFileName = "arsession.db"

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string // empty keeps the database in memory
	DumpInterval time.Duration
	DumpPath     string // target of the periodic VACUUM INTO dumps
}

// DumpPath returns where an in-memory database should be dumped. A
// database that already lives on disk needs no dump.
func DumpPath(outputDir, path string) string {
	if path != "" {
		return ""
	}
	return filepath.Join(outputDir, DumpFileName)
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
	dumping  bool
}

// New opens the SQLite database and creates the backend.
func New(cfg Config, logger zerolog.Logger, tag string) (*Backend, error) {
	db, err := database.GetSqliteDBStandalone(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:     db,
		Logger: logger,
		Tag:    tag,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger.With().Str("component", "sqlite").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumps() {
		b.dumping = true
		go b.dumpLoop()
	}
	return nil
}

func (b *Backend) dumps() bool {
	return b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0
}

// Close stops the dump goroutine, flushes the GORM backend, writes a last
// dump and closes the database.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stopChan)
		if b.dumping {
			<-b.done
		}

		err = b.Backend.Close()
		if b.cfg.DumpPath != "" {
			if dumpErr := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); dumpErr != nil {
				err = errors.Join(err, dumpErr)
			}
		}
		if sqlDB, dbErr := b.db.DB(); dbErr == nil {
			err = errors.Join(err, sqlDB.Close())
		}
	})
	return err
}

// dumpLoop periodically dumps the database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.log.Debug().Dur("took", time.Since(start)).Str("path", b.cfg.DumpPath).Msg("Dumped to disk")
			}
		}
	}
}
