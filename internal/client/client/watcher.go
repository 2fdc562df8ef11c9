package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// Pinger is the part of Client the watcher needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusWatcher pings the server on an interval and remembers the outcome.
type StatusWatcher struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
	online   atomic.Bool
}

func NewStatusWatcher(p Pinger, interval time.Duration, logger logging.Logger) *StatusWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StatusWatcher{pinger: p, interval: interval, timeout: 3 * time.Second, logger: logger}
}

func (w *StatusWatcher) Online() bool {
	return w.online.Load()
}

// Check pings once and updates the state.
func (w *StatusWatcher) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.pinger.Ping(ctx)
	cancel()

	online := err == nil
	if prev := w.online.Swap(online); prev != online {
		w.logger.Info(ctx, "server reachability changed", "online", online)
	}
	return online
}

// Run checks immediately and then on every tick until ctx is done.
func (w *StatusWatcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
