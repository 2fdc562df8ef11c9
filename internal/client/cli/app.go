package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gradekeeper/internal/badgerx"
	"github.com/dmitrijs2005/gradekeeper/internal/client/blobstore"
	"github.com/dmitrijs2005/gradekeeper/internal/client/client"
	"github.com/dmitrijs2005/gradekeeper/internal/client/config"
	"github.com/dmitrijs2005/gradekeeper/internal/client/kv"
	"github.com/dmitrijs2005/gradekeeper/internal/client/records"
	"github.com/dmitrijs2005/gradekeeper/internal/client/repositories/fastblobs"
	"github.com/dmitrijs2005/gradekeeper/internal/client/repositories/kvstore"
	"github.com/dmitrijs2005/gradekeeper/internal/client/services"
	"github.com/dmitrijs2005/gradekeeper/internal/client/syncengine"
	"github.com/dmitrijs2005/gradekeeper/internal/filex"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"

	_ "modernc.org/sqlite"
)

const (
	dbFile      = "local.db"
	overflowDir = "overflow"
	clientIDKey = "pref:client-id"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// App holds the client's wired components for the lifetime of one command.
type App struct {
	Config  *config.Config
	KV      *kv.Store
	Blobs   *blobstore.Store
	Records services.RecordService
	Engine  *syncengine.Engine
	Watcher *client.StatusWatcher

	logger   logging.Logger
	db       *sql.DB
	overflow *badgerx.DB
}

// NewApp opens the local databases under cfg.DataDir and wires storage,
// records and sync on top of them.
func NewApp(ctx context.Context, cfg *config.Config, passphrase string, logger logging.Logger) (*App, error) {
	dirs, err := filex.EnsureSubDirs(cfg.DataDir, overflowDir)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(dirs[0])

	a := &App{Config: cfg, logger: logger}

	a.db, err = client.InitDatabase(ctx, filepath.Join(root, dbFile))
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	bcfg := badgerx.DefaultConfig(dirs[0])
	bcfg.Logger = logger.With("component", "badger")
	a.overflow, err = badgerx.Open(bcfg)
	if err != nil {
		_ = a.db.Close()
		return nil, fmt.Errorf("open overflow tier: %w", err)
	}

	a.KV = kv.NewStore(kvstore.NewMemoryRepository(), kvstore.NewSQLiteRepository(a.db), logger)

	a.Blobs, err = blobstore.NewTwoTier(logger, a.KV, fastblobs.NewSQLiteRepository(a.db), a.overflow, cfg.FastQuota)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	repo := records.NewRepository(a.Blobs, records.Options{
		Encrypt:    cfg.Encrypt,
		Passphrase: passphrase,
		Compress:   cfg.Compress,
	}, logger)

	remote, err := client.NewHTTPClient(cfg.ServerURL, client.WithRole(cfg.Role))
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.Watcher = client.NewStatusWatcher(remote, cfg.OnlineCheckInterval, logger)

	a.Engine = syncengine.New(ctx, syncengine.Config{
		BatchSize: cfg.BatchSize,
		Interval:  cfg.SyncInterval,
		ClientID:  a.clientID(ctx),
	}, remote, a.KV, logger,
		syncengine.WithApplier(services.NewRemoteApplier(repo, logger)),
		syncengine.WithOnlineSignal(a.Watcher),
	)

	a.Records = services.NewRecordService(repo, a.Engine, logger)
	return a, nil
}

// clientID returns the id stored under pref:client-id, creating it on first
// use so pushes from this data dir always carry the same id. When the stored
// id cannot be read, this run uses a temporary one and leaves the key alone.
func (a *App) clientID(ctx context.Context) string {
	id, p := kv.Lookup[string](ctx, a.KV, kv.ScopeDurable, clientIDKey)
	if p == kv.Found && id != "" {
		return id
	}
	id = uuid.NewString()
	if p == kv.Failed {
		a.logger.Warn(ctx, "client id unreadable, using a temporary one", "id", id)
		return id
	}
	if !a.KV.Set(ctx, kv.ScopeDurable, clientIDKey, id) {
		a.logger.Warn(ctx, "client id not persisted")
	}
	return id
}

func (a *App) Mode() Mode {
	if a.Watcher.Online() {
		return ModeOnline
	}
	return ModeOffline
}

// Close stops the sync timer and closes both databases.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Stop()
	}
	return a.close()
}

func (a *App) close() error {
	var errs []error
	if a.overflow != nil {
		errs = append(errs, a.overflow.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
