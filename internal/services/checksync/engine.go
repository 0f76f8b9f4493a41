package checksync

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
	"github.com/NordCoder/checksync/internal/folder"
	"github.com/NordCoder/checksync/internal/obs"
	"github.com/NordCoder/checksync/internal/ordering"
)

const (
	provisionalPrefix = "pending-"
	disabledByUser    = "disabled by user"
)

var ErrNoRunner = errors.New("no check runner configured")

type Deps struct {
	Store   check.Store
	Runner  check.Runner
	Folders check.FolderStore
	Log     *zap.Logger
	Clock   func() time.Time
}

// Engine applies mutations to one owner's local collection and confirms them against the store.
// It is created per session and discarded on logout.
type Engine struct {
	owner   string
	cfg     Config
	store   check.Store
	runner  check.Runner
	folders check.FolderStore
	log     *zap.Logger
	now     func() time.Time

	col     *Collection
	pending *tracker
	stats   *statsCache
	coal    *Coalescer

	// applyMu makes validate+snapshot+apply one step. It is never held across a store call.
	applyMu sync.Mutex
}

func NewEngine(owner string, cfg Config, d Deps) *Engine {
	cfg = cfg.withDefaults()
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	e := &Engine{
		owner:   owner,
		cfg:     cfg,
		store:   d.Store,
		runner:  d.Runner,
		folders: d.Folders,
		log:     d.Log.With(zap.String("component", "checksync.engine"), zap.String("owner_id", owner)),
		now:     d.Clock,
		col:     NewCollection(),
		pending: newTracker(d.Clock),
		stats:   newStatsCache(),
	}
	e.coal = newCoalescer(e, cfg.SettleWindow, d.Log)
	return e
}

func (e *Engine) Owner() string         { return e.owner }
func (e *Engine) Snapshot() *Snapshot   { return e.col.Load() }
func (e *Engine) Checks() []check.Check { return e.col.Load().Checks() }
func (e *Engine) Coalescer() *Coalescer { return e.coal }
func (e *Engine) Mutations() []Mutation { return e.pending.history() }

// IsPending reports whether id has an optimistic change not yet confirmed by the store.
func (e *Engine) IsPending(id string) bool {
	return e.pending.isPending(id) || e.coal.isPending(id)
}

// Stats returns the owner aggregate, computed on first use after any confirmed change.
func (e *Engine) Stats() check.Stats {
	if st, ok := e.stats.get(e.owner); ok {
		return st
	}
	var st check.Stats
	for _, c := range e.col.Load().checks {
		st.Total++
		if c.Disabled {
			st.Disabled++
		}
		switch c.Status {
		case check.StatusUp:
			st.Up++
		case check.StatusDown:
			st.Down++
		default:
			st.Unknown++
		}
	}
	e.stats.set(e.owner, st)
	return st
}

// FolderTree rebuilds the folder hierarchy from the current snapshot.
func (e *Engine) FolderTree() *folder.Tree {
	s := e.col.Load()
	paths := make([]string, len(s.checks))
	for i, c := range s.checks {
		paths[i] = c.Folder
	}
	return folder.BuildTree(paths, s.declared)
}

// install replaces the collection with an authoritative delivery.
func (e *Engine) install(checks []check.Check) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	e.col.Replace(checks)
	e.pending.rebase(checks)
	e.stats.invalidate(e.owner)
}

func (e *Engine) loadDeclared(ctx context.Context) error {
	if e.folders == nil {
		return nil
	}
	paths, err := e.folders.ListDeclared(ctx, e.owner)
	if err != nil {
		return err
	}
	e.col.SetDeclared(paths)
	return nil
}

// Close flushes debounced writes and stops the settle timer.
func (e *Engine) Close(ctx context.Context) error {
	err := e.coal.FlushNow(ctx)
	e.coal.stop()
	return err
}

// plan is what an operation wants to do: the optimistic values for ids, an optional new
// set of declared folders, and the remote write confirming them.
type plan struct {
	ids      []string
	next     map[string]*check.Check
	declared []string
	dispatch func(ctx context.Context) (map[string]*check.Check, error)
}

// mutate runs validate, snapshot, apply, dispatch and then either confirm or roll back.
// prepare runs under applyMu against the current snapshot; returning a nil plan is a no-op.
func (e *Engine) mutate(ctx context.Context, op string, prepare func(s *Snapshot) (*plan, error)) error {
	ctx, span := tracer.Start(ctx, "checksync."+op,
		trace.WithAttributes(attribute.String("owner.id", e.owner)),
	)
	defer span.End()
	log := obs.WithTrace(ctx, e.log).With(zap.String("op", op))

	e.applyMu.Lock()
	s := e.col.Load()
	p, err := prepare(s)
	if err != nil || p == nil {
		e.applyMu.Unlock()
		if err != nil {
			span.RecordError(err)
			mMutations.WithLabelValues(op, "rejected").Inc()
			log.Debug("rejected", zap.Error(err))
		}
		return err
	}
	prior := e.col.Take(p.ids)
	e.col.Put(p.next)
	if p.declared != nil {
		e.col.SetDeclared(p.declared)
	}
	m := e.pending.begin(op, p, prior, s.declared)
	e.applyMu.Unlock()

	span.SetAttributes(attribute.Int("mutation.ids", len(p.ids)), attribute.String("mutation.id", m.ID))
	log.Debug("applied", zap.String("mutation_id", m.ID), zap.Int("ids", len(p.ids)))

	confirmed, err := p.dispatch(ctx)
	if err != nil {
		err = check.Classify(op, soleID(p.ids), err)
		confirmed = nil
	}
	e.settle(m, err, confirmed)
	if err != nil {
		span.RecordError(err)
		mMutations.WithLabelValues(op, "rolled_back").Inc()
		mMutationLatency.WithLabelValues(op).Observe(e.now().Sub(m.AppliedAt).Seconds())
		log.Warn("rolled back", zap.String("mutation_id", m.ID), zap.Strings("ids", p.ids), zap.Error(err))
		return err
	}

	mMutations.WithLabelValues(op, "confirmed").Inc()
	mMutationLatency.WithLabelValues(op).Observe(e.now().Sub(m.AppliedAt).Seconds())
	log.Debug("confirmed", zap.String("mutation_id", m.ID))
	return nil
}

// settle writes back what the tracker decides for m's ids. Confirmed values for ids m
// did not touch (a provisional id's replacement) are written as they are.
func (e *Engine) settle(m *Mutation, err error, confirmed map[string]*check.Check) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	values, declared, declares := e.pending.settle(m, err, confirmed)
	for id, v := range confirmed {
		if _, touched := values[id]; !touched {
			values[id] = v
		}
	}
	e.col.Put(values)
	if declares {
		e.col.SetDeclared(declared)
	}
	e.stats.invalidate(e.owner)
}

func soleID(ids []string) string {
	if len(ids) == 1 {
		return ids[0]
	}
	return ""
}

func (e *Engine) owned(s *Snapshot, id string) (check.Check, error) {
	c, ok := s.Get(id)
	if !ok || c.OwnerID != e.owner {
		return check.Check{}, &check.NotFoundError{ID: id}
	}
	return c, nil
}

func (e *Engine) ownedAll(s *Snapshot, ids []string) ([]check.Check, error) {
	if len(ids) == 0 {
		return nil, check.Invalid("ids", "must not be empty")
	}
	seen := make(map[string]bool, len(ids))
	out := make([]check.Check, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, err := e.owned(s, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (e *Engine) updateOne(ctx context.Context, id string, p check.Patch) error {
	mRemoteWrites.WithLabelValues("update_one").Inc()
	if err := e.store.UpdateOne(ctx, id, p); err != nil {
		return check.Classify("update", id, err)
	}
	return nil
}

// batchUpdate sends updates in chunks of at most MaxBatchSize, one request after another.
func (e *Engine) batchUpdate(ctx context.Context, updates []check.Update) error {
	size := e.cfg.MaxBatchSize
	for start := 0; start < len(updates); start += size {
		end := min(start+size, len(updates))
		mRemoteWrites.WithLabelValues("batch").Inc()
		if err := e.store.BatchUpdate(ctx, updates[start:end]); err != nil {
			return check.Classify("batch_update", soleID(idsOf(updates[start:end])), err)
		}
	}
	return nil
}

// write picks a single document update or a batched one.
func (e *Engine) write(ctx context.Context, updates []check.Update) error {
	switch len(updates) {
	case 0:
		return nil
	case 1:
		return e.updateOne(ctx, updates[0].ID, updates[0].Patch)
	default:
		return e.batchUpdate(ctx, updates)
	}
}

func idsOf(updates []check.Update) []string {
	out := make([]string, len(updates))
	for i, u := range updates {
		out[i] = u.ID
	}
	return out
}

func noConfirm(err error) (map[string]*check.Check, error) { return nil, err }

// Add validates and inserts a new check at the end of the order. The check is visible
// locally under a provisional id until the store assigns the real one.
func (e *Engine) Add(ctx context.Context, name, rawURL string) (check.Check, error) {
	var created check.Check
	err := e.mutate(ctx, "add", func(s *Snapshot) (*plan, error) {
		name, err := validateName(name, e.cfg.MaxNameLen)
		if err != nil {
			return nil, err
		}
		u, err := validateURL(rawURL, e.cfg.MaxURLLen, e.cfg.DeniedHosts)
		if err != nil {
			return nil, err
		}
		idx := make([]int64, len(s.checks))
		for i, c := range s.checks {
			idx[i] = c.OrderIndex
		}
		now := e.now()
		c := check.Check{
			ID:          provisionalPrefix + uuid.NewString(),
			OwnerID:     e.owner,
			Name:        name,
			URL:         u,
			OrderIndex:  e.cfg.Ordering.Append(idx),
			Status:      check.StatusUnknown,
			Interval:    e.cfg.DefaultInterval,
			NextCheckAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		provisional := c.ID
		return &plan{
			ids:  []string{provisional},
			next: map[string]*check.Check{provisional: &c},
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				doc := c
				doc.ID = ""
				mRemoteWrites.WithLabelValues("create_one").Inc()
				out, err := e.store.CreateOne(ctx, doc)
				if err != nil {
					return nil, err
				}
				created = out
				return map[string]*check.Check{provisional: nil, out.ID: &out}, nil
			},
		}, nil
	})
	return created, err
}

// Update applies a sparse patch to one check. Ordering goes through Reorder.
func (e *Engine) Update(ctx context.Context, id string, p check.Patch) error {
	return e.mutate(ctx, "update", func(s *Snapshot) (*plan, error) {
		cur, err := e.owned(s, id)
		if err != nil {
			return nil, err
		}
		if p.IsEmpty() {
			return nil, check.Invalid("patch", "nothing to update")
		}
		if p.OrderIndex != nil {
			return nil, check.Invalid("order_index", "use reorder")
		}
		if p.Name != nil {
			n, err := validateName(*p.Name, e.cfg.MaxNameLen)
			if err != nil {
				return nil, err
			}
			p.Name = &n
		}
		if p.URL != nil {
			u, err := validateURL(*p.URL, e.cfg.MaxURLLen, e.cfg.DeniedHosts)
			if err != nil {
				return nil, err
			}
			p.URL = &u
		}
		if p.Folder != nil {
			f, err := validateFolder(*p.Folder, e.cfg.Folders)
			if err != nil {
				return nil, err
			}
			p.Folder = &f
		}
		p.UpdatedAt = check.Ptr(e.now())
		next := p.Apply(cur)
		return &plan{
			ids:  []string{id},
			next: map[string]*check.Check{id: &next},
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				return noConfirm(e.updateOne(ctx, id, p))
			},
		}, nil
	})
}

func (e *Engine) deleteOne(ctx context.Context, id string) error {
	mRemoteWrites.WithLabelValues("delete_one").Inc()
	if err := e.store.DeleteOne(ctx, id); err != nil {
		return check.Classify("delete", id, err)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.mutate(ctx, "delete", func(s *Snapshot) (*plan, error) {
		if _, err := e.owned(s, id); err != nil {
			return nil, err
		}
		return &plan{
			ids:  []string{id},
			next: map[string]*check.Check{id: nil},
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				return noConfirm(e.deleteOne(ctx, id))
			},
		}, nil
	})
}

// BulkDelete issues one deletion per id. If any of them fails the call fails with a
// *check.PartialBulkFailure and every local removal is restored; deletions the store
// already accepted stay deleted remotely and disappear again on the next delivery.
func (e *Engine) BulkDelete(ctx context.Context, ids []string) error {
	return e.mutate(ctx, "bulk_delete", func(s *Snapshot) (*plan, error) {
		targets, err := e.ownedAll(s, ids)
		if err != nil {
			return nil, err
		}
		touched := make([]string, len(targets))
		next := make(map[string]*check.Check, len(targets))
		for i, c := range targets {
			touched[i] = c.ID
			next[c.ID] = nil
		}
		return &plan{
			ids:  touched,
			next: next,
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				failed := map[string]error{}
				for _, id := range touched {
					if err := e.deleteOne(ctx, id); err != nil {
						failed[id] = err
					}
				}
				if len(failed) == 0 {
					return nil, nil
				}
				return nil, &check.PartialBulkFailure{
					Op:        "bulk_delete",
					Requested: len(touched),
					Succeeded: len(touched) - len(failed),
					Failed:    failed,
				}
			},
		}, nil
	})
}

func (e *Engine) togglePatch(disabled bool) check.Patch {
	now := e.now()
	if disabled {
		return check.Patch{
			Disabled:       check.Ptr(true),
			DisabledReason: check.Ptr(disabledByUser),
			DisabledAt:     check.Ptr(now),
			UpdatedAt:      check.Ptr(now),
		}
	}
	return check.Patch{
		Disabled:            check.Ptr(false),
		DisabledReason:      check.Ptr(""),
		DisabledAt:          check.Ptr(time.Time{}),
		ConsecutiveFailures: check.Ptr(0),
		NextCheckAt:         check.Ptr(now),
		UpdatedAt:           check.Ptr(now),
	}
}

func (e *Engine) ToggleStatus(ctx context.Context, id string, disabled bool) error {
	return e.toggle(ctx, "toggle_status", []string{id}, disabled)
}

func (e *Engine) BulkToggleStatus(ctx context.Context, ids []string, disabled bool) error {
	return e.toggle(ctx, "bulk_toggle_status", ids, disabled)
}

// toggle skips checks already in the requested state.
func (e *Engine) toggle(ctx context.Context, op string, ids []string, disabled bool) error {
	return e.mutate(ctx, op, func(s *Snapshot) (*plan, error) {
		targets, err := e.ownedAll(s, ids)
		if err != nil {
			return nil, err
		}
		p := e.togglePatch(disabled)
		pl := &plan{next: map[string]*check.Check{}}
		var updates []check.Update
		for _, c := range targets {
			if c.Disabled == disabled {
				continue
			}
			next := p.Apply(c)
			pl.ids = append(pl.ids, c.ID)
			pl.next[c.ID] = &next
			updates = append(updates, check.Update{ID: c.ID, Patch: p})
		}
		if len(updates) == 0 {
			return nil, nil
		}
		pl.dispatch = func(ctx context.Context) (map[string]*check.Check, error) {
			return noConfirm(e.write(ctx, updates))
		}
		return pl, nil
	})
}

// BulkUpdateSettings applies a sparse settings patch. A changed interval or region
// pulls the next scheduled check forward to now.
func (e *Engine) BulkUpdateSettings(ctx context.Context, ids []string, st check.Settings) error {
	return e.mutate(ctx, "bulk_update_settings", func(s *Snapshot) (*plan, error) {
		if st.IsEmpty() {
			return nil, check.Invalid("settings", "nothing to update")
		}
		if st.Interval != nil && *st.Interval <= 0 {
			return nil, check.Invalid("interval", "must be positive")
		}
		if st.Region != nil {
			r := strings.TrimSpace(*st.Region)
			if r == "" {
				return nil, check.Invalid("region", "must not be empty")
			}
			st.Region = &r
		}
		targets, err := e.ownedAll(s, ids)
		if err != nil {
			return nil, err
		}
		now := e.now()
		pl := &plan{next: map[string]*check.Check{}}
		updates := make([]check.Update, 0, len(targets))
		for _, c := range targets {
			p := check.Patch{Interval: st.Interval, Region: st.Region, UpdatedAt: check.Ptr(now)}
			if (st.Interval != nil && *st.Interval != c.Interval) || (st.Region != nil && *st.Region != c.Region) {
				p.NextCheckAt = check.Ptr(now)
			}
			next := p.Apply(c)
			pl.ids = append(pl.ids, c.ID)
			pl.next[c.ID] = &next
			updates = append(updates, check.Update{ID: c.ID, Patch: p})
		}
		pl.dispatch = func(ctx context.Context) (map[string]*check.Check, error) {
			return noConfirm(e.write(ctx, updates))
		}
		return pl, nil
	})
}

// Reorder moves the check at position from to position to. Normally only the moved
// check is written; when its neighbours have no room left every check is renumbered
// and written in one batch.
func (e *Engine) Reorder(ctx context.Context, from, to int) error {
	return e.mutate(ctx, "reorder", func(s *Snapshot) (*plan, error) {
		mv, err := e.cfg.Ordering.Move(orderItems(s.checks), from, to)
		if err != nil {
			return nil, &check.ValidationError{Field: "position", Reason: err.Error(), Err: err}
		}
		if len(mv.Writes) == 0 {
			return nil, nil
		}
		now := e.now()
		pl := &plan{next: map[string]*check.Check{}}
		updates := make([]check.Update, 0, len(mv.Writes))
		for _, w := range mv.Writes {
			c, _ := s.Get(w.ID)
			p := check.Patch{OrderIndex: check.Ptr(w.Index), UpdatedAt: check.Ptr(now)}
			next := p.Apply(c)
			pl.ids = append(pl.ids, w.ID)
			pl.next[w.ID] = &next
			updates = append(updates, check.Update{ID: w.ID, Patch: p})
		}
		pl.dispatch = func(ctx context.Context) (map[string]*check.Check, error) {
			return noConfirm(e.write(ctx, updates))
		}
		return pl, nil
	})
}

// ManualCheck shows the check as unknown while the runner probes it, then stores the result.
func (e *Engine) ManualCheck(ctx context.Context, id string) (check.Check, error) {
	var result check.Check
	err := e.mutate(ctx, "manual_check", func(s *Snapshot) (*plan, error) {
		cur, err := e.owned(s, id)
		if err != nil {
			return nil, err
		}
		if e.runner == nil {
			return nil, ErrNoRunner
		}
		transitional := cur
		transitional.Status = check.StatusUnknown
		return &plan{
			ids:  []string{id},
			next: map[string]*check.Check{id: &transitional},
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				res, err := e.runner.Run(ctx, cur)
				if err != nil {
					return nil, check.Classify("manual_check", id, err)
				}
				p := res.Patch(cur)
				if err := e.updateOne(ctx, id, p); err != nil {
					return nil, err
				}
				result = p.Apply(cur)
				return map[string]*check.Check{id: &result}, nil
			},
		}, nil
	})
	return result, err
}

func (e *Engine) SetFolder(ctx context.Context, id, raw string) error {
	return e.mutate(ctx, "set_folder", func(s *Snapshot) (*plan, error) {
		cur, err := e.owned(s, id)
		if err != nil {
			return nil, err
		}
		path, err := validateFolder(raw, e.cfg.Folders)
		if err != nil {
			return nil, err
		}
		if path == cur.Folder {
			return nil, nil
		}
		p := check.Patch{Folder: &path, UpdatedAt: check.Ptr(e.now())}
		next := p.Apply(cur)
		return &plan{
			ids:  []string{id},
			next: map[string]*check.Check{id: &next},
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				return noConfirm(e.updateOne(ctx, id, p))
			},
		}, nil
	})
}

// DebouncedSetFolder applies the folder locally now and leaves the write to the coalescer.
func (e *Engine) DebouncedSetFolder(id, raw string) error {
	return e.coal.Set(id, raw)
}

func (e *Engine) FlushPendingFolderUpdates(ctx context.Context) error {
	return e.coal.FlushNow(ctx)
}

func (e *Engine) RenameFolder(ctx context.Context, from, to string) error {
	return e.mutate(ctx, "rename_folder", func(s *Snapshot) (*plan, error) {
		moves, err := folder.PlanRename(folderEntries(s), from, to, e.cfg.Folders)
		if err != nil {
			return nil, folderError(err)
		}
		return e.planMoves(s, moves), nil
	})
}

// DeleteFolder removes a folder; everything inside moves up one level.
func (e *Engine) DeleteFolder(ctx context.Context, path string) error {
	return e.mutate(ctx, "delete_folder", func(s *Snapshot) (*plan, error) {
		moves, err := folder.PlanDelete(folderEntries(s), path)
		if err != nil {
			return nil, folderError(err)
		}
		return e.planMoves(s, moves), nil
	})
}

// CreateFolder declares a folder so it exists before any check is put in it.
func (e *Engine) CreateFolder(ctx context.Context, raw string) error {
	return e.mutate(ctx, "create_folder", func(s *Snapshot) (*plan, error) {
		path, err := validateFolder(raw, e.cfg.Folders)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, folderError(folder.ErrEmptyPath)
		}
		for _, en := range folderEntries(s) {
			if folder.HasPrefix(en.Path, path) {
				return nil, nil
			}
		}
		declared := uniqueSorted(append(s.Declared(), path))
		return &plan{
			declared: declared,
			dispatch: func(ctx context.Context) (map[string]*check.Check, error) {
				return noConfirm(e.persistDeclared(ctx, declared))
			},
		}, nil
	})
}

func (e *Engine) persistDeclared(ctx context.Context, paths []string) error {
	if e.folders == nil {
		return nil
	}
	return e.folders.ReplaceDeclared(ctx, e.owner, paths)
}

// planMoves turns folder moves into check patches plus a rewritten declared set.
// Cascades are always sent as batched writes.
func (e *Engine) planMoves(s *Snapshot, moves []folder.Move) *plan {
	now := e.now()
	pl := &plan{next: map[string]*check.Check{}}
	var updates []check.Update
	declared := map[string]bool{}
	for _, d := range s.declared {
		declared[d] = true
	}
	declChanged := false
	for _, m := range moves {
		if m.Key == "" {
			delete(declared, m.From)
			if m.To != "" {
				declared[m.To] = true
			}
			declChanged = true
			continue
		}
		c, _ := s.Get(m.Key)
		p := check.Patch{Folder: check.Ptr(m.To), UpdatedAt: check.Ptr(now)}
		next := p.Apply(c)
		pl.ids = append(pl.ids, m.Key)
		pl.next[m.Key] = &next
		updates = append(updates, check.Update{ID: m.Key, Patch: p})
	}
	if declChanged {
		pl.declared = make([]string, 0, len(declared))
		for d := range declared {
			pl.declared = append(pl.declared, d)
		}
		sort.Strings(pl.declared)
	}
	decl := pl.declared
	pl.dispatch = func(ctx context.Context) (map[string]*check.Check, error) {
		if len(updates) > 0 {
			if err := e.batchUpdate(ctx, updates); err != nil {
				return nil, err
			}
		}
		if decl != nil {
			if err := e.persistDeclared(ctx, decl); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return pl
}

func orderItems(checks []check.Check) []ordering.Item {
	out := make([]ordering.Item, len(checks))
	for i, c := range checks {
		out[i] = ordering.Item{ID: c.ID, Index: c.OrderIndex}
	}
	return out
}

func folderEntries(s *Snapshot) []folder.Entry {
	out := make([]folder.Entry, 0, len(s.checks)+len(s.declared))
	for _, c := range s.checks {
		if c.Folder != "" {
			out = append(out, folder.Entry{Key: c.ID, Path: c.Folder})
		}
	}
	for _, d := range s.declared {
		out = append(out, folder.Entry{Path: d})
	}
	return out
}

func uniqueSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
