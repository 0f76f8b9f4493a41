package checksync

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/checksync/internal/domain/check"
)

type MutationState string

const (
	MutationApplied    MutationState = "applied"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)

// Mutation records one optimistic change from apply to settlement.
type Mutation struct {
	ID        string
	Op        string
	IDs       []string
	State     MutationState
	Err       error
	AppliedAt time.Time
	SettledAt time.Time

	next     map[string]*check.Check
	declared []string
	declares bool
}

const mutationHistory = 256

// slot is the settlement state of one id: the last value the store is known to hold
// and the mutations still in flight on it, oldest first. The local value is the
// newest in-flight value, or base once nothing is in flight.
type slot struct {
	base   *check.Check
	flight []*Mutation
}

type declSlot struct {
	base   []string
	flight []*Mutation
}

// tracker owns the pending markers and decides what each id settles to.
// Its mutating methods run under the engine's applyMu.
type tracker struct {
	mu    sync.Mutex
	slots map[string]*slot
	decl  declSlot
	log   []*Mutation
	now   func() time.Time
}

func newTracker(now func() time.Time) *tracker {
	return &tracker{slots: map[string]*slot{}, now: now}
}

// begin records p as applied on top of prior.
func (t *tracker) begin(op string, p *plan, prior map[string]*check.Check, priorDeclared []string) *Mutation {
	m := &Mutation{
		ID:        uuid.NewString(),
		Op:        op,
		IDs:       append([]string(nil), p.ids...),
		State:     MutationApplied,
		AppliedAt: t.now(),
		next:      make(map[string]*check.Check, len(p.ids)),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range p.ids {
		v, ok := p.next[id]
		if !ok {
			v = prior[id]
		}
		m.next[id] = v
		s := t.slots[id]
		if s == nil {
			s = &slot{base: prior[id]}
			t.slots[id] = s
		}
		s.flight = append(s.flight, m)
	}
	if p.declared != nil {
		m.declares = true
		m.declared = append([]string(nil), p.declared...)
		if len(t.decl.flight) == 0 {
			t.decl.base = append([]string(nil), priorDeclared...)
		}
		t.decl.flight = append(t.decl.flight, m)
	}
	t.log = append(t.log, m)
	if len(t.log) > mutationHistory {
		t.log = t.log[len(t.log)-mutationHistory:]
	}
	return m
}

// settle marks m and returns the value every id it touched settles to. A confirmed
// mutation moves the base to its value (confirmed overrides next); a rolled back one
// leaves the base alone. Either way an id still carrying a newer in-flight mutation
// keeps that mutation's value. declared is meaningful only when declares is true.
func (t *tracker) settle(m *Mutation, err error, confirmed map[string]*check.Check) (values map[string]*check.Check, declared []string, declares bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m.SettledAt = t.now()
	if err != nil {
		m.State = MutationRolledBack
		m.Err = err
	} else {
		m.State = MutationConfirmed
	}

	values = make(map[string]*check.Check, len(m.IDs))
	for _, id := range m.IDs {
		s := t.slots[id]
		if s == nil {
			continue
		}
		if err == nil {
			v := m.next[id]
			if c, ok := confirmed[id]; ok {
				v = c
			}
			s.base = v
		}
		s.flight = without(s.flight, m)
		if n := len(s.flight); n > 0 {
			values[id] = s.flight[n-1].next[id]
		} else {
			values[id] = s.base
			delete(t.slots, id)
		}
	}

	if m.declares {
		declares = true
		if err == nil {
			t.decl.base = m.declared
		}
		t.decl.flight = without(t.decl.flight, m)
		if n := len(t.decl.flight); n > 0 {
			declared = t.decl.flight[n-1].declared
		} else {
			declared = t.decl.base
		}
	}
	m.next, m.declared = nil, nil
	return values, declared, declares
}

// rebase makes an authoritative delivery the base of every id still in flight.
func (t *tracker) rebase(checks []check.Check) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.slots) == 0 {
		return
	}
	byID := make(map[string]check.Check, len(checks))
	for _, c := range checks {
		byID[c.ID] = c
	}
	for id, s := range t.slots {
		if c, ok := byID[id]; ok {
			s.base = &c
		} else {
			s.base = nil
		}
	}
}

// overlay applies fn to every value id may settle to, so a change made outside a
// mutation survives whichever way the in-flight ones settle.
func (t *tracker) overlay(id string, fn func(c *check.Check)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.slots[id]
	if s == nil {
		return
	}
	if s.base != nil {
		b := *s.base
		fn(&b)
		s.base = &b
	}
	for _, m := range s.flight {
		if v := m.next[id]; v != nil {
			c := *v
			fn(&c)
			m.next[id] = &c
		}
	}
}

func without(ms []*Mutation, m *Mutation) []*Mutation {
	out := ms[:0]
	for _, x := range ms {
		if x != m {
			out = append(out, x)
		}
	}
	return out
}

func (t *tracker) isPending(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.slots[id]
	return ok
}

func (t *tracker) history() []Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Mutation, len(t.log))
	for i, m := range t.log {
		out[i] = *m
		out[i].IDs = append([]string(nil), m.IDs...)
		out[i].next, out[i].declared = nil, nil
	}
	return out
}
