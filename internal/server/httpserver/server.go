// Package httpserver exposes the sync service over HTTP with gin:
//
//	POST /push      apply a batch of changes
//	GET  /pull      items newer than ?since=
//	GET  /health    storage reachability
//	GET  /metrics   Prometheus metrics
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// Syncer is the part of services.SyncService the handlers use.
type Syncer interface {
	Push(ctx context.Context, changes []common.Change) ([]common.PushResult, error)
	Pull(ctx context.Context, since int64) ([]common.RemoteItem, error)
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	address         string
	sync            Syncer
	logger          logging.Logger
	readOnly        map[string]struct{}
	shutdownTimeout time.Duration
}

func NewHTTPServer(addr string, l logging.Logger, s Syncer, readOnlyRoles []string, shutdownTimeout time.Duration) *HTTPServer {
	ro := make(map[string]struct{}, len(readOnlyRoles))
	for _, r := range readOnlyRoles {
		ro[r] = struct{}{}
	}
	return &HTTPServer{
		address:         addr,
		sync:            s,
		logger:          l.With("module", "http_server"),
		readOnly:        ro,
		shutdownTimeout: shutdownTimeout,
	}
}

// Router builds the gin engine with every route and middleware installed.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), metricsMiddleware())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/pull", s.pull)
	r.POST("/push", s.requireWriteRole(), s.push)

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
