package checksync

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/NordCoder/checksync/internal/domain/check"
)

// Snapshot is an immutable view of the local collection. Readers may hold on to it
// for as long as they like; writers always publish a fresh one.
type Snapshot struct {
	checks   []check.Check
	index    map[string]int
	declared []string
}

func newSnapshot(checks []check.Check, declared []string) *Snapshot {
	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].OrderIndex != checks[j].OrderIndex {
			return checks[i].OrderIndex < checks[j].OrderIndex
		}
		return checks[i].ID < checks[j].ID
	})
	idx := make(map[string]int, len(checks))
	for i, c := range checks {
		idx[c.ID] = i
	}
	return &Snapshot{checks: checks, index: idx, declared: declared}
}

// Checks returns a copy of the checks ordered by OrderIndex.
func (s *Snapshot) Checks() []check.Check {
	out := make([]check.Check, len(s.checks))
	copy(out, s.checks)
	return out
}

func (s *Snapshot) Get(id string) (check.Check, bool) {
	i, ok := s.index[id]
	if !ok {
		return check.Check{}, false
	}
	return s.checks[i], true
}

func (s *Snapshot) Len() int { return len(s.checks) }

func (s *Snapshot) Declared() []string {
	out := make([]string, len(s.declared))
	copy(out, s.declared)
	return out
}

// Collection holds the local copy of one owner's checks.
type Collection struct {
	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
}

func NewCollection() *Collection {
	c := &Collection{}
	c.cur.Store(newSnapshot(nil, nil))
	return c
}

func (c *Collection) Load() *Snapshot { return c.cur.Load() }

// Replace installs an authoritative delivery. Declared folders are kept.
func (c *Collection) Replace(checks []check.Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]check.Check, len(checks))
	copy(next, checks)
	c.cur.Store(newSnapshot(next, c.cur.Load().declared))
}

// Put writes the given values by id. A nil value removes the id.
func (c *Collection) Put(changes map[string]*check.Check) {
	if len(changes) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.cur.Load()
	next := make([]check.Check, 0, len(prev.checks)+len(changes))
	for _, ch := range prev.checks {
		if _, touched := changes[ch.ID]; !touched {
			next = append(next, ch)
		}
	}
	for _, v := range changes {
		if v != nil {
			next = append(next, *v)
		}
	}
	c.cur.Store(newSnapshot(next, prev.declared))
}

// Take returns the current value of every id, nil for ids that are absent.
// The result fed back into Put restores exactly this state for those ids.
func (c *Collection) Take(ids []string) map[string]*check.Check {
	s := c.Load()
	out := make(map[string]*check.Check, len(ids))
	for _, id := range ids {
		if v, ok := s.Get(id); ok {
			out[id] = &v
		} else {
			out[id] = nil
		}
	}
	return out
}

func (c *Collection) SetDeclared(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.cur.Load()
	decl := make([]string, len(paths))
	copy(decl, paths)
	sort.Strings(decl)
	c.cur.Store(&Snapshot{checks: prev.checks, index: prev.index, declared: decl})
}
