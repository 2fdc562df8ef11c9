package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gradekeeper/internal/client/kv"
	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
	"github.com/dmitrijs2005/gradekeeper/internal/timex"
)

const (
	keyQueue      = "sync:queue"
	keyCheckpoint = "sync:checkpoint"
	keyHistory    = "sync:history"
)

var (
	ErrInvalidDoc = errors.New("upsert doc must be a JSON object")
	// ErrStateUnavailable means persisted sync state could not be read, so
	// the engine refuses to write over it.
	ErrStateUnavailable = errors.New("sync state could not be read")
)

// Remote is the authority changes are pushed to and pulled from.
type Remote interface {
	Push(ctx context.Context, changes []common.Change) ([]common.PushResult, error)
	Pull(ctx context.Context, since int64) ([]common.RemoteItem, error)
}

// Applier materializes pulled remote items locally.
type Applier interface {
	Apply(ctx context.Context, items []common.RemoteItem) error
}

// OnlineSignal reports connectivity without touching the network.
type OnlineSignal interface {
	Online() bool
}

type Status struct {
	Online         bool   `json:"online"`
	Pending        int    `json:"pending"`
	LastCheckpoint int64  `json:"lastCheckpoint"`
	LastError      string `json:"lastError,omitempty"`
	LastSyncAt     int64  `json:"lastSyncAt,omitempty"`
	Flushing       bool   `json:"flushing"`
}

type Option func(*Engine)

func WithApplier(a Applier) Option {
	return func(e *Engine) { e.applier = a }
}

func WithOnlineSignal(s OnlineSignal) Option {
	return func(e *Engine) { e.online = s }
}

func WithClock(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	cfg     Config
	remote  Remote
	kv      *kv.Store
	logger  logging.Logger
	applier Applier
	online  OnlineSignal
	now     func() int64

	mu         sync.Mutex
	queue      []common.Change
	checkpoint int64
	history    []HistoryEntry
	lastErr    string
	reachable  bool

	queueLoaded      bool
	checkpointLoaded bool
	historyLoaded    bool

	inFlight atomic.Bool

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	flushes sync.WaitGroup
}

// New builds an engine and restores its persisted queue, checkpoint and
// history.
func New(ctx context.Context, cfg Config, remote Remote, store *kv.Store, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		remote: remote,
		kv:     store,
		logger: logger.With("component", "sync"),
		now:    timex.NowMillis,
	}
	for _, o := range opts {
		o(e)
	}

	e.mu.Lock()
	e.loadLocked(ctx)
	e.mu.Unlock()
	return e
}

// loadLocked reads whatever part of the persisted state is not loaded yet.
// A part whose read fails stays unloaded and is retried on the next call.
// History written while unloaded is kept in memory and appended to the
// stored history once it loads.
func (e *Engine) loadLocked(ctx context.Context) {
	if !e.queueLoaded {
		if q, p := kv.Lookup[[]common.Change](ctx, e.kv, kv.ScopeDurable, keyQueue); p != kv.Failed {
			e.queue, e.queueLoaded = q, true
			queueLength.Set(float64(len(e.queue)))
		}
	}
	if !e.checkpointLoaded {
		if cp, p := kv.Lookup[int64](ctx, e.kv, kv.ScopeDurable, keyCheckpoint); p != kv.Failed {
			e.checkpoint, e.checkpointLoaded = cp, true
			checkpointGauge.Set(float64(e.checkpoint))
		}
	}
	if !e.historyLoaded {
		if h, p := kv.Lookup[[]HistoryEntry](ctx, e.kv, kv.ScopeDurable, keyHistory); p != kv.Failed {
			e.history, e.historyLoaded = append(h, e.history...), true
		}
	}
	if !e.queueLoaded || !e.checkpointLoaded || !e.historyLoaded {
		e.logger.Warn(ctx, "sync state partly unreadable",
			"queue", e.queueLoaded, "checkpoint", e.checkpointLoaded, "history", e.historyLoaded)
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// QueueUpsert queues doc, which must encode to a JSON object.
func (e *Engine) QueueUpsert(ctx context.Context, id string, version int64, doc any) error {
	var raw json.RawMessage
	switch d := doc.(type) {
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDoc, err)
		}
		raw = b
	}
	if !common.IsJSONObject(raw) {
		return ErrInvalidDoc
	}
	return e.enqueue(ctx, common.Change{ID: id, Type: common.ChangeUpsert, Doc: raw, Version: version})
}

func (e *Engine) QueueDelete(ctx context.Context, id string, version int64) error {
	return e.enqueue(ctx, common.Change{ID: id, Type: common.ChangeDelete, Version: version})
}

func (e *Engine) enqueue(ctx context.Context, c common.Change) error {
	c.ClientID = e.cfg.ClientID
	c.Timestamp = e.now()
	if err := c.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.loadLocked(ctx)
	if !e.queueLoaded {
		e.mu.Unlock()
		return fmt.Errorf("queue %s: %w", c.ID, ErrStateUnavailable)
	}
	e.queue = append(e.queue, c)
	e.persistQueueLocked(ctx)
	e.appendHistoryLocked(ctx, EventQueued, &Detail{ID: c.ID, Type: c.Type})
	e.mu.Unlock()

	e.logger.Debug(ctx, "change queued", "id", c.ID, "type", c.Type, "version", c.Version)
	return nil
}

// Flush pushes one batch and, if the push went through, pulls. It never
// returns an error: failures end up in the status and the history. When a
// flush is already running the call is skipped.
func (e *Engine) Flush(ctx context.Context) Status {
	if !e.inFlight.CompareAndSwap(false, true) {
		flushTotal.WithLabelValues("skipped").Inc()
		e.logger.Debug(ctx, "flush already in flight, skipping")
		return e.Status()
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	e.loadLocked(ctx)
	if !e.queueLoaded {
		flushTotal.WithLabelValues("error").Inc()
		e.lastErr = ErrStateUnavailable.Error()
		e.appendHistoryLocked(ctx, EventPushError, &Detail{Error: e.lastErr})
		e.mu.Unlock()
		return e.Status()
	}
	n := min(e.cfg.BatchSize, len(e.queue))
	batch := append([]common.Change(nil), e.queue[:n]...)
	e.mu.Unlock()

	if len(batch) == 0 {
		flushTotal.WithLabelValues("empty").Inc()
		return e.Status()
	}

	results, err := e.remote.Push(ctx, batch)
	if err != nil {
		flushTotal.WithLabelValues("error").Inc()
		e.logger.Warn(ctx, "push failed, batch kept", "size", len(batch), "error", err)
		e.mu.Lock()
		e.reachable = false
		e.lastErr = err.Error()
		e.appendHistoryLocked(ctx, EventPushError, &Detail{Sent: len(batch), Error: err.Error()})
		e.mu.Unlock()
		return e.Status()
	}

	retained := reconcile(batch, results)
	accepted := len(batch) - len(retained)

	e.mu.Lock()
	rest := e.queue[len(batch):]
	e.queue = append(retained, rest...)
	e.reachable = true
	e.lastErr = ""
	e.persistQueueLocked(ctx)
	e.appendHistoryLocked(ctx, EventPushOK, &Detail{Sent: len(batch), Accepted: accepted, Retained: len(retained)})
	e.mu.Unlock()

	if len(retained) > 0 {
		flushTotal.WithLabelValues("partial").Inc()
	} else {
		flushTotal.WithLabelValues("ok").Inc()
	}
	e.logger.Info(ctx, "batch pushed", "sent", len(batch), "accepted", accepted, "retained", len(retained))

	if err := e.Pull(ctx); err != nil {
		e.logger.Warn(ctx, "pull after push failed", "error", err)
		e.mu.Lock()
		e.lastErr = err.Error()
		e.appendHistoryLocked(ctx, EventPullError, &Detail{Error: err.Error()})
		e.mu.Unlock()
	}
	return e.Status()
}

// reconcile returns the changes of batch that were not acknowledged, in
// batch order. Results are matched by id in order, so two changes with the
// same id consume two results. A change without a result counts as skipped.
func reconcile(batch []common.Change, results []common.PushResult) []common.Change {
	byID := make(map[string][]string, len(results))
	for _, r := range results {
		byID[r.ID] = append(byID[r.ID], r.Status)
	}

	var retained []common.Change
	for _, c := range batch {
		status := common.StatusSkipped
		if s := byID[c.ID]; len(s) > 0 {
			status, byID[c.ID] = s[0], s[1:]
		}
		if status != common.StatusOK {
			retained = append(retained, c)
		}
	}
	return retained
}

// Pull fetches remote items newer than the checkpoint, hands them to the
// applier and advances the checkpoint to the newest updatedAt seen. Errors
// are returned to the caller.
func (e *Engine) Pull(ctx context.Context) error {
	e.mu.Lock()
	e.loadLocked(ctx)
	if !e.checkpointLoaded {
		e.mu.Unlock()
		return fmt.Errorf("pull: checkpoint: %w", ErrStateUnavailable)
	}
	since := e.checkpoint
	e.mu.Unlock()

	items, err := e.remote.Pull(ctx, since)
	if err != nil {
		e.mu.Lock()
		e.reachable = false
		e.mu.Unlock()
		return fmt.Errorf("pull since %d: %w", since, err)
	}

	if e.applier != nil && len(items) > 0 {
		if err := e.applier.Apply(ctx, items); err != nil {
			e.mu.Lock()
			e.appendHistoryLocked(ctx, EventApplyError, &Detail{Items: len(items), Error: err.Error()})
			e.mu.Unlock()
			return fmt.Errorf("apply %d pulled items: %w", len(items), err)
		}
	}

	var newest int64
	for _, it := range items {
		newest = max(newest, it.UpdatedAt)
	}

	e.mu.Lock()
	e.reachable = true
	if newest > e.checkpoint {
		e.checkpoint = newest
		if !e.kv.Set(ctx, kv.ScopeDurable, keyCheckpoint, e.checkpoint) {
			e.logger.Warn(ctx, "checkpoint not persisted", "checkpoint", e.checkpoint)
		}
		checkpointGauge.Set(float64(e.checkpoint))
	}
	cp := e.checkpoint
	e.appendHistoryLocked(ctx, EventPullOK, &Detail{Items: len(items), Checkpoint: cp})
	e.mu.Unlock()

	e.logger.Debug(ctx, "pulled", "items", len(items), "checkpoint", cp)
	return nil
}

// Status is a snapshot; it never touches the network.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		Online:         e.reachable,
		Pending:        len(e.queue),
		LastCheckpoint: e.checkpoint,
		LastError:      e.lastErr,
		Flushing:       e.inFlight.Load(),
	}
	if e.online != nil {
		s.Online = e.online.Online()
	}
	if n := len(e.history); n > 0 {
		s.LastSyncAt = e.history[n-1].At
	}
	return s
}

// History returns up to the last HistoryLimit entries, oldest first.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tail(e.history, HistoryLimit)
}

// Pending returns a copy of the queue.
func (e *Engine) Pending() []common.Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]common.Change(nil), e.queue...)
}

// Start installs the flush timer. Calling it on a running engine does
// nothing.
func (e *Engine) Start(ctx context.Context) {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(loopCtx, e.done)

	e.logger.Info(ctx, "sync started", "interval", e.cfg.Interval, "batch", e.cfg.BatchSize)
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flushes.Add(1)
			go func() {
				defer e.flushes.Done()
				e.Flush(context.WithoutCancel(ctx))
			}()
		}
	}
}

// Stop removes the timer and waits for a flush already in flight to finish.
// Calling it on a stopped engine does nothing.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.flushes.Wait()
	e.cancel = nil
	e.done = nil
}

func (e *Engine) persistQueueLocked(ctx context.Context) {
	queueLength.Set(float64(len(e.queue)))
	if !e.kv.Set(ctx, kv.ScopeDurable, keyQueue, e.queue) {
		e.logger.Warn(ctx, "queue not persisted", "pending", len(e.queue))
	}
}

func (e *Engine) appendHistoryLocked(ctx context.Context, event string, d *Detail) {
	e.history = append(e.history, HistoryEntry{At: e.now(), Event: event, Detail: d})
	if !e.historyLoaded {
		return
	}
	if !e.kv.Set(ctx, kv.ScopeDurable, keyHistory, e.history) {
		e.logger.Warn(ctx, "history not persisted", "event", event)
	}
}
