package checksync

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
	"github.com/NordCoder/checksync/internal/obs"
)

// Coalescer collapses rapid folder reassignments into one remote write per settle window.
//
// A failed flush is not reverted: the folders stay as applied locally until the next
// authoritative delivery replaces them. The error is returned from FlushNow, passed to
// OnFlushError, logged and counted.
type Coalescer struct {
	e      *Engine
	window time.Duration
	log    *zap.Logger

	OnFlushError func(ids []string, err error)

	mu       sync.Mutex
	pending  map[string]string
	flushing map[string]bool
	timer    *time.Timer

	flushMu sync.Mutex
}

func newCoalescer(e *Engine, window time.Duration, log *zap.Logger) *Coalescer {
	return &Coalescer{
		e:        e,
		window:   window,
		log:      log.With(zap.String("component", "checksync.coalescer")),
		pending:  map[string]string{},
		flushing: map[string]bool{},
	}
}

// Set applies folder to id immediately and schedules the write. A later Set for the
// same id before the flush replaces the value; every Set restarts the settle timer.
func (c *Coalescer) Set(id, raw string) error {
	e := c.e
	e.applyMu.Lock()
	cur, err := e.owned(e.col.Load(), id)
	if err != nil {
		e.applyMu.Unlock()
		return err
	}
	path, err := validateFolder(raw, e.cfg.Folders)
	if err != nil {
		e.applyMu.Unlock()
		return err
	}
	now := e.now()
	cur.Folder = path
	cur.UpdatedAt = now
	e.col.Put(map[string]*check.Check{id: &cur})
	e.pending.overlay(id, func(c *check.Check) {
		c.Folder = path
		c.UpdatedAt = now
	})
	e.applyMu.Unlock()
	mCoalesced.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = path
	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, c.onTimer)
		return nil
	}
	c.timer.Reset(c.window)
	return nil
}

func (c *Coalescer) onTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), c.e.cfg.FlushTimeout)
	defer cancel()
	_ = c.flush(ctx)
}

// FlushNow writes everything pending without waiting for the timer.
func (c *Coalescer) FlushNow(ctx context.Context) error {
	return c.flush(ctx)
}

func (c *Coalescer) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch := c.pending
	c.pending = map[string]string{}
	if c.timer != nil {
		c.timer.Stop()
	}
	for id := range batch {
		c.flushing[id] = true
	}
	c.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	defer func() {
		c.mu.Lock()
		for id := range batch {
			delete(c.flushing, id)
		}
		c.mu.Unlock()
	}()

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ctx, span := tracer.Start(ctx, "checksync.flush",
		trace.WithAttributes(attribute.Int("flush.ids", len(ids))),
	)
	defer span.End()

	now := c.e.now()
	updates := make([]check.Update, len(ids))
	for i, id := range ids {
		updates[i] = check.Update{ID: id, Patch: check.Patch{Folder: check.Ptr(batch[id]), UpdatedAt: check.Ptr(now)}}
	}

	var err error
	if len(updates) == 1 {
		err = c.e.updateOne(ctx, updates[0].ID, updates[0].Patch)
	} else {
		err = c.e.batchUpdate(ctx, updates)
	}
	if err != nil {
		span.RecordError(err)
		mFlushes.WithLabelValues("error").Inc()
		obs.WithTrace(ctx, c.log).Error("folder flush failed", zap.Strings("ids", ids), zap.Error(err))
		if c.OnFlushError != nil {
			c.OnFlushError(ids, err)
		}
		return err
	}
	mFlushes.WithLabelValues("ok").Inc()
	c.e.stats.invalidate(c.e.owner)
	return nil
}

func (c *Coalescer) isPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, queued := c.pending[id]
	return queued || c.flushing[id]
}

func (c *Coalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}
