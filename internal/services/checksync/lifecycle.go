package checksync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
	"github.com/NordCoder/checksync/internal/obs"
	"github.com/NordCoder/checksync/internal/obs/retry"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingRemoteAuth
	StateSubscribed
	StateFetchedOnce
	StateSuspended
)

var stateNames = [...]string{"unauthenticated", "awaiting_remote_auth", "subscribed", "fetched_once", "suspended"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrNoSession       = errors.New("no active session")
	ErrBadState        = errors.New("operation not allowed in current state")
	ErrEmptyIdentity   = errors.New("user identity is empty")
	ErrAlreadyLoggedIn = errors.New("a session is already active")
)

// StatusChange is reported when a delivery shows a known check with a different status.
type StatusChange struct {
	Check check.Check
	Old   check.Status
	New   check.Status
}

type ManagerDeps struct {
	Store   check.Store
	Runner  check.Runner
	Folders check.FolderStore
	// Events, when set, receives every status transition. Publishing is retried with
	// RetryPolicy and never blocks deliveries.
	Events      check.StatusEvents
	RetryPolicy *retry.Policy
	// OnStatusChange runs on the session's notifier goroutine in delivery order, never
	// under the Manager's locks. Changes still queued at logout are dropped.
	OnStatusChange func(StatusChange)
	OnFlushError   func(ids []string, err error)
	Log            *zap.Logger
}

// Manager owns the session: it creates the engine on login, keeps the local collection
// fed from the store while the view is visible and tears everything down on logout.
type Manager struct {
	cfg  Config
	deps ManagerDeps
	log  *zap.Logger

	mu      sync.Mutex
	state   State
	owner   string
	engine  *Engine
	sub     check.Subscription
	visible bool
	// one-shot cache
	cached bool

	deliverMu sync.Mutex
	statuses  map[string]check.Status
	notes     *notifier

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg Config, deps ManagerDeps) *Manager {
	cfg = cfg.withDefaults()
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	m := &Manager{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Log.With(zap.String("component", "checksync.lifecycle")),
		visible: true,
	}
	m.setState(StateUnauthenticated)
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Engine returns the engine of the current session, or nil before login.
func (m *Manager) Engine() *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

func (m *Manager) setState(s State) {
	for i := range stateNames {
		v := 0.0
		if State(i) == s {
			v = 1
		}
		mState.WithLabelValues(stateNames[i]).Set(v)
	}
	m.state = s
}

// Login starts a session for ownerID. Nothing is queried until Authenticate succeeds.
func (m *Manager) Login(ownerID string) error {
	if ownerID == "" {
		return ErrEmptyIdentity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnauthenticated {
		return ErrAlreadyLoggedIn
	}
	m.owner = ownerID
	m.engine = NewEngine(ownerID, m.cfg, Deps{
		Store:   m.deps.Store,
		Runner:  m.deps.Runner,
		Folders: m.deps.Folders,
		Log:     m.deps.Log,
	})
	m.engine.coal.OnFlushError = m.deps.OnFlushError
	m.statuses = map[string]check.Status{}
	m.cached = false
	m.bg, m.cancel = context.WithCancel(context.Background())
	m.notes = newNotifier()
	bg, notes := m.bg, m.notes
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		notes.run(bg, func(ch StatusChange) {
			if m.deps.OnStatusChange != nil {
				m.deps.OnStatusChange(ch)
			}
			m.publish(bg, ch)
		})
	}()
	m.setState(StateAwaitingRemoteAuth)
	m.log.Info("session started", zap.String("owner_id", ownerID))
	return nil
}

// Authenticate completes the store's own handshake, then loads data if the view is visible.
func (m *Manager) Authenticate(ctx context.Context, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAwaitingRemoteAuth {
		return ErrBadState
	}
	if err := m.deps.Store.Authenticate(ctx, m.owner, secret); err != nil {
		return check.Classify("authenticate", "", err)
	}
	if err := m.engine.loadDeclared(ctx); err != nil {
		m.log.Warn("load declared folders", zap.Error(err))
	}
	m.log.Info("remote auth complete", zap.String("owner_id", m.owner))
	if !m.visible {
		m.setState(StateSuspended)
		return nil
	}
	return m.activate(ctx, false)
}

// SetVisible suspends or resumes data flow as the view is hidden or shown.
func (m *Manager) SetVisible(ctx context.Context, visible bool) error {
	m.mu.Lock()
	if m.visible == visible {
		m.mu.Unlock()
		return nil
	}
	m.visible = visible
	switch m.state {
	case StateSubscribed, StateFetchedOnce:
		if !visible {
			sub := m.suspend()
			m.mu.Unlock()
			m.closeSub(sub)
			return nil
		}
	case StateSuspended:
		if visible {
			defer m.mu.Unlock()
			return m.activate(ctx, true)
		}
	}
	m.mu.Unlock()
	return nil
}

// Refresh invalidates the one-shot cache. It never fetches by itself; the next Ensure
// or visibility return does.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = false
}

// Ensure fetches in one-shot mode when the cache has been invalidated.
func (m *Manager) Ensure(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Mode != ModeOneShot || m.state != StateFetchedOnce || m.cached {
		return nil
	}
	if err := m.fetch(ctx, "ensure"); err != nil {
		return err
	}
	m.cached = true
	return nil
}

// activate must be called with mu held.
func (m *Manager) activate(ctx context.Context, resumed bool) error {
	if m.cfg.Mode == ModeOneShot {
		if !m.cached {
			if err := m.fetch(ctx, "oneshot"); err != nil {
				return err
			}
			m.cached = true
		}
		m.setState(StateFetchedOnce)
		return nil
	}

	sub, err := m.deps.Store.Subscribe(m.bg, check.Query{OwnerID: m.owner}, m.deliver("subscription"))
	if err != nil {
		return check.Classify("subscribe", "", err)
	}
	m.sub = sub
	m.setState(StateSubscribed)
	m.log.Debug("subscribed", zap.Bool("resumed", resumed))
	if resumed {
		// one extra refresh to cover anything missed while suspended
		if err := m.fetch(ctx, "resume"); err != nil {
			m.log.Warn("refresh after resume", zap.Error(err))
		}
	}
	return nil
}

// suspend detaches the subscription. The caller closes it once mu is released:
// Close waits for an in-flight delivery.
func (m *Manager) suspend() check.Subscription {
	sub := m.sub
	m.sub = nil
	m.setState(StateSuspended)
	return sub
}

func (m *Manager) closeSub(sub check.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		m.log.Warn("close subscription", zap.Error(err))
	}
}

func (m *Manager) fetch(ctx context.Context, source string) error {
	ctx, span := tracer.Start(ctx, "checksync.fetch",
		trace.WithAttributes(attribute.String("fetch.source", source)),
	)
	defer span.End()
	checks, err := m.deps.Store.QueryOnce(ctx, check.Query{OwnerID: m.owner})
	if err != nil {
		span.RecordError(err)
		return check.Classify("query", "", err)
	}
	m.deliver(source)(checks)
	return nil
}

// deliver installs an authoritative snapshot and reports status transitions of checks
// that were already known with a different status.
func (m *Manager) deliver(source string) func([]check.Check) {
	engine := m.engine
	notes := m.notes
	return func(checks []check.Check) {
		m.deliverMu.Lock()
		defer m.deliverMu.Unlock()

		sorted := make([]check.Check, len(checks))
		copy(sorted, checks)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })

		var changes []StatusChange
		next := make(map[string]check.Status, len(sorted))
		for _, c := range sorted {
			next[c.ID] = c.Status
			if prev, ok := m.statuses[c.ID]; ok && prev != c.Status {
				changes = append(changes, StatusChange{Check: c, Old: prev, New: c.Status})
			}
		}
		m.statuses = next
		engine.install(sorted)
		mDeliveries.WithLabelValues(source).Inc()

		mStatusChanges.Add(float64(len(changes)))
		notes.push(changes)
	}
}

func (m *Manager) publish(ctx context.Context, ch StatusChange) {
	if m.deps.Events == nil {
		return
	}
	policy := retry.PublishPolicy("status_events", m.log)
	if m.deps.RetryPolicy != nil {
		policy = *m.deps.RetryPolicy
	}
	policy.Name = "status_events"
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := retry.Do(ctx, func() error {
			return m.deps.Events.PublishStatusChanged(ctx, ch.Check, ch.Old, ch.New)
		}, policy)
		if err != nil {
			obs.WithTrace(ctx, m.log).Warn("publish status change",
				zap.String("check_id", ch.Check.ID), zap.Error(err))
		}
	}()
}

// Logout flushes pending folder writes, closes the subscription and discards the session.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.engine == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	err := m.engine.Close(ctx)
	sub := m.sub
	m.sub = nil
	cancel := m.cancel
	owner := m.owner
	m.engine = nil
	m.owner = ""
	m.cached = false
	m.notes = nil
	m.setState(StateUnauthenticated)
	m.mu.Unlock()

	m.closeSub(sub)
	cancel()
	m.wg.Wait()
	m.log.Info("session closed", zap.String("owner_id", owner))
	return err
}

// notifier hands status changes to a single goroutine in the order they were delivered.
type notifier struct {
	mu    sync.Mutex
	queue []StatusChange
	wake  chan struct{}
}

func newNotifier() *notifier {
	return &notifier{wake: make(chan struct{}, 1)}
}

func (n *notifier) push(chs []StatusChange) {
	if len(chs) == 0 {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, chs...)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run(ctx context.Context, fn func(StatusChange)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.wake:
		}
		n.mu.Lock()
		batch := n.queue
		n.queue = nil
		n.mu.Unlock()
		for _, ch := range batch {
			if ctx.Err() != nil {
				return
			}
			fn(ch)
		}
	}
}
