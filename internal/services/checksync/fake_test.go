package checksync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/checksync/internal/domain/check"
)

type call struct {
	Kind    string
	IDs     []string
	Patches []check.Patch
}

// fakeStore is an in-memory check.Store with failure injection and write recording.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]check.Check
	seq     int
	calls   []call
	queries int

	secret     string
	failAuth   error
	failCreate error
	failUpdate error
	failBatch  error
	failQuery  error
	failDelete map[string]error

	// failBatchAt fails the nth BatchUpdate call, counting from 1
	failBatchAt map[int]error
	batches     int

	// when gate is set, writes signal entered and block until gate is closed
	gate    chan struct{}
	entered chan struct{}

	// when steps is set, every UpdateOne is handed to the test and settles with the
	// error sent on its release channel
	steps chan *step

	subs []*fakeSub
}

type fakeSub struct {
	store   *fakeStore
	deliver func([]check.Check)
	closed  bool
}

func (s *fakeSub) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.closed = true
	return nil
}

type step struct {
	Kind    string
	ID      string
	release chan error
}

func (f *fakeStore) step(ctx context.Context, kind, id string) error {
	f.mu.Lock()
	steps := f.steps
	f.mu.Unlock()
	if steps == nil {
		return nil
	}
	s := &step{Kind: kind, ID: id, release: make(chan error, 1)}
	steps <- s
	select {
	case err := <-s.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newFakeStore(docs ...check.Check) *fakeStore {
	f := &fakeStore{docs: map[string]check.Check{}, failDelete: map[string]error{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeStore) wait(ctx context.Context) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate == nil {
		return
	}
	if entered != nil {
		entered <- struct{}{}
	}
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

func (f *fakeStore) record(c call) {
	f.calls = append(f.calls, c)
}

func (f *fakeStore) Authenticate(_ context.Context, _ string, secret string) error {
	if f.failAuth != nil {
		return f.failAuth
	}
	if f.secret != "" && secret != f.secret {
		return check.ErrPermissionDenied
	}
	return nil
}

func (f *fakeStore) sorted(owner string) []check.Check {
	out := make([]check.Check, 0, len(f.docs))
	for _, d := range f.docs {
		if owner == "" || d.OwnerID == owner {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

func (f *fakeStore) Subscribe(_ context.Context, q check.Query, deliver func([]check.Check)) (check.Subscription, error) {
	f.mu.Lock()
	sub := &fakeSub{store: f, deliver: deliver}
	f.subs = append(f.subs, sub)
	snap := f.sorted(q.OwnerID)
	f.mu.Unlock()
	deliver(snap)
	return sub, nil
}

// push delivers the current documents to every open subscription.
func (f *fakeStore) push(owner string) {
	f.mu.Lock()
	snap := f.sorted(owner)
	var open []*fakeSub
	for _, s := range f.subs {
		if !s.closed {
			open = append(open, s)
		}
	}
	f.mu.Unlock()
	for _, s := range open {
		s.deliver(snap)
	}
}

func (f *fakeStore) openSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.closed {
			n++
		}
	}
	return n
}

func (f *fakeStore) QueryOnce(_ context.Context, q check.Query) ([]check.Check, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.failQuery != nil {
		return nil, f.failQuery
	}
	return f.sorted(q.OwnerID), nil
}

func (f *fakeStore) CreateOne(ctx context.Context, c check.Check) (check.Check, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Kind: "create", IDs: []string{c.ID}})
	if f.failCreate != nil {
		return check.Check{}, f.failCreate
	}
	f.seq++
	c.ID = fmt.Sprintf("chk-%d", f.seq)
	f.docs[c.ID] = c
	return c, nil
}

func (f *fakeStore) UpdateOne(ctx context.Context, id string, p check.Patch) error {
	f.wait(ctx)
	stepErr := f.step(ctx, "update", id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Kind: "update", IDs: []string{id}, Patches: []check.Patch{p}})
	if stepErr != nil {
		return stepErr
	}
	if f.failUpdate != nil {
		return f.failUpdate
	}
	d, ok := f.docs[id]
	if !ok {
		return check.ErrNotFound
	}
	f.docs[id] = p.Apply(d)
	return nil
}

func (f *fakeStore) BatchUpdate(ctx context.Context, updates []check.Update) error {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	c := call{Kind: "batch"}
	for _, u := range updates {
		c.IDs = append(c.IDs, u.ID)
		c.Patches = append(c.Patches, u.Patch)
	}
	f.record(c)
	f.batches++
	if err := f.failBatchAt[f.batches]; err != nil {
		return err
	}
	if f.failBatch != nil {
		return f.failBatch
	}
	for _, u := range updates {
		if _, ok := f.docs[u.ID]; !ok {
			return check.ErrNotFound
		}
	}
	for _, u := range updates {
		f.docs[u.ID] = u.Patch.Apply(f.docs[u.ID])
	}
	return nil
}

func (f *fakeStore) DeleteOne(ctx context.Context, id string) error {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Kind: "delete", IDs: []string{id}})
	if err := f.failDelete[id]; err != nil {
		return err
	}
	if _, ok := f.docs[id]; !ok {
		return check.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeStore) callsOf(kind string) []call {
	var out []call
	for _, c := range f.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) doc(id string) (check.Check, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	return d, ok
}

func (f *fakeStore) setDoc(c check.Check) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[c.ID] = c
}

type fakeRunner struct {
	res  check.Result
	err  error
	gate chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, _ check.Check) (check.Result, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return check.Result{}, ctx.Err()
		}
	}
	return r.res, r.err
}

type fakeFolders struct {
	mu       sync.Mutex
	declared map[string][]string
	fail     error
}

func newFakeFolders() *fakeFolders { return &fakeFolders{declared: map[string][]string{}} }

func (f *fakeFolders) ListDeclared(_ context.Context, owner string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.declared[owner]...), nil
}

func (f *fakeFolders) ReplaceDeclared(_ context.Context, owner string, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.declared[owner] = append([]string(nil), paths...)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []StatusChange
	fail   error
}

func (f *fakeEvents) PublishStatusChanged(_ context.Context, c check.Check, old, new check.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, StatusChange{Check: c, Old: old, New: new})
	return nil
}

func (f *fakeEvents) Events() []StatusChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StatusChange(nil), f.events...)
}

const owner = "user-1"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(n int, folders ...string) []check.Check {
	out := make([]check.Check, n)
	for i := range out {
		out[i] = check.Check{
			ID:         fmt.Sprintf("c%d", i+1),
			OwnerID:    owner,
			Name:       fmt.Sprintf("check %d", i+1),
			URL:        fmt.Sprintf("https://example.com/%d", i+1),
			OrderIndex: int64(i+1) * 1000,
			Status:     check.StatusUp,
			Interval:   time.Minute,
			Region:     "eu",
		}
		if i < len(folders) {
			out[i].Folder = folders[i]
		}
	}
	return out
}

type engineFixture struct {
	e       *Engine
	store   *fakeStore
	runner  *fakeRunner
	folders *fakeFolders
}

func newFixture(t *testing.T, cfg Config, docs ...check.Check) engineFixture {
	t.Helper()
	fx := engineFixture{
		store:   newFakeStore(docs...),
		runner:  &fakeRunner{},
		folders: newFakeFolders(),
	}
	fx.e = NewEngine(owner, cfg, Deps{
		Store:   fx.store,
		Runner:  fx.runner,
		Folders: fx.folders,
		Clock:   func() time.Time { return fixedNow },
	})
	fx.e.install(docs)
	t.Cleanup(func() { fx.e.coal.stop() })
	return fx
}
