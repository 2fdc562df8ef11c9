// Package server wires configuration, storage, the sync service and the HTTP
// server, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gradekeeper/internal/logging"
	"github.com/dmitrijs2005/gradekeeper/internal/server/config"
	"github.com/dmitrijs2005/gradekeeper/internal/server/httpserver"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gradekeeper/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	sync   *services.SyncService
}

// NewApp connects storage and applies migrations. An empty DatabaseDSN uses
// in-memory storage.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	var rm repomanager.RepositoryManager
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database DSN, keeping data in memory")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		app.db = db
	}

	app.sync = services.NewSyncService(app.db, rm, logger, c.PullLimit)
	return app, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	gin.SetMode(gin.ReleaseMode)

	app.logger.Info(ctx, "Starting app...")

	srv := httpserver.NewHTTPServer(app.config.EndpointAddr, app.logger, app.sync,
		app.config.ReadOnlyRoles, app.config.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	err := g.Wait()
	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "close database", "error", cerr)
		}
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
