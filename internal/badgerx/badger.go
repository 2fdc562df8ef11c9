// Package badgerx opens BadgerDB instances for the overflow blob tier and
// runs their value-log garbage collection.
package badgerx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// ErrLocked is returned by Open when another process holds the directory.
var ErrLocked = errors.New("badger directory is locked by another process")

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool

	SyncWrites bool

	// GCInterval of zero disables value-log GC.
	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger logging.Logger
}

func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig is meant for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	ctx    context.Context
	logger logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(l.ctx, fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(l.ctx, fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(l.ctx, fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(l.ctx, fmt.Sprintf(format, args...))
}

// DB wraps a badger database together with its GC loop.
type DB struct {
	*badger.DB
	stop chan struct{}
	done chan struct{}
}

// Open opens the database described by cfg, creating its directory if needed.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{ctx: context.Background(), logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		// badger exposes no sentinel for a held directory lock
		if strings.Contains(err.Error(), "Cannot acquire directory lock") {
			return nil, fmt.Errorf("open badger database %s: %w: %w", cfg.Path, ErrLocked, err)
		}
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	db := &DB{DB: bdb}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		db.stop = make(chan struct{})
		db.done = make(chan struct{})
		go db.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return db, nil
}

func (d *DB) runGC(interval time.Duration, ratio float64, logger logging.Logger) {
	defer close(d.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			err := d.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn(context.Background(), "badger value log GC failed", "error", err)
			}
		}
	}
}

// Close stops the GC loop and closes the database.
func (d *DB) Close() error {
	if d.stop != nil {
		close(d.stop)
		<-d.done
		d.stop = nil
	}
	return d.DB.Close()
}

// Size is the on-disk footprint of the LSM tree and value log.
func (d *DB) Size() int64 {
	lsm, vlog := d.DB.Size()
	return lsm + vlog
}
