// Package ordering keeps a user's checks in a stable custom order using sparse
// integer indexes. Inserting between two neighbours normally rewrites only the
// moved item; once the space between neighbours runs out the whole list is
// renumbered.
//
// Concurrent clients reordering the same region are not coordinated: every
// write is a plain per-item update, so colliding indexes resolve as last write
// wins on each item. There is no lock and no version check.
package ordering

import (
	"errors"
	"fmt"
)

const (
	DefaultGap    int64 = 1000
	DefaultMinGap int64 = 2
)

var ErrPosition = errors.New("position out of range")

type Config struct {
	Gap    int64
	MinGap int64
}

func DefaultConfig() Config {
	return Config{Gap: DefaultGap, MinGap: DefaultMinGap}
}

func (c Config) withDefaults() Config {
	if c.Gap <= 0 {
		c.Gap = DefaultGap
	}
	if c.MinGap <= 0 {
		c.MinGap = DefaultMinGap
	}
	return c
}

type Item struct {
	ID    string
	Index int64
}

type Write struct {
	ID    string
	Index int64
}

// Plan is the outcome of a move: the new order and the index writes needed to realize it.
type Plan struct {
	Order     []string
	Writes    []Write
	Reindexed bool
}

// Append returns the index for a new item placed after every existing one.
func (c Config) Append(indices []int64) int64 {
	c = c.withDefaults()
	if len(indices) == 0 {
		return 0
	}
	max := indices[0]
	for _, v := range indices[1:] {
		if v > max {
			max = v
		}
	}
	return max + c.Gap
}

// Move plans moving the item at position from to position to. items must be in
// their current order (ascending index). Positions are counted in the final
// sequence, so to == len(items)-1 means "last".
func (c Config) Move(items []Item, from, to int) (Plan, error) {
	c = c.withDefaults()
	n := len(items)
	if from < 0 || from >= n {
		return Plan{}, fmt.Errorf("from %d of %d: %w", from, n, ErrPosition)
	}
	if to < 0 || to >= n {
		return Plan{}, fmt.Errorf("to %d of %d: %w", to, n, ErrPosition)
	}

	final := make([]Item, 0, n)
	final = append(final, items[:from]...)
	final = append(final, items[from+1:]...)
	moved := items[from]
	final = append(final[:to], append([]Item{moved}, final[to:]...)...)

	plan := Plan{Order: make([]string, n)}
	for i, it := range final {
		plan.Order[i] = it.ID
	}
	if from == to {
		return plan, nil
	}

	var left int64
	if to > 0 {
		left = final[to-1].Index
	}
	if to == n-1 {
		plan.Writes = []Write{{ID: moved.ID, Index: left + c.Gap}}
		return plan, nil
	}
	right := final[to+1].Index
	if right-left >= c.MinGap {
		plan.Writes = []Write{{ID: moved.ID, Index: left + (right-left)/2}}
		return plan, nil
	}

	plan.Reindexed = true
	plan.Writes = make([]Write, n)
	for i, it := range final {
		plan.Writes[i] = Write{ID: it.ID, Index: int64(i) * c.Gap}
	}
	return plan, nil
}
