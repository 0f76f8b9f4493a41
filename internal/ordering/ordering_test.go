package ordering

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(items []Item, writes []Write) []Item {
	byID := map[string]int64{}
	for _, w := range writes {
		byID[w.ID] = w.Index
	}
	out := make([]Item, len(items))
	for i, it := range items {
		if v, ok := byID[it.ID]; ok {
			it.Index = v
		}
		out[i] = it
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestAppend(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, int64(0), c.Append(nil))
	assert.Equal(t, int64(4000), c.Append([]int64{1000, 3000, 2000}))
	assert.Equal(t, int64(15), Config{Gap: 10}.Append([]int64{5}))
}

func TestMoveToFrontTakesMidpoint(t *testing.T) {
	items := []Item{{"a", 1000}, {"b", 2000}, {"c", 3000}}
	plan, err := DefaultConfig().Move(items, 2, 0)
	require.NoError(t, err)

	assert.False(t, plan.Reindexed)
	assert.Equal(t, []Write{{ID: "c", Index: 500}}, plan.Writes)
	assert.Equal(t, []string{"c", "a", "b"}, plan.Order)
}

func TestMoveBetweenAndToEnd(t *testing.T) {
	items := []Item{{"a", 1000}, {"b", 2000}, {"c", 3000}}

	plan, err := DefaultConfig().Move(items, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []Write{{ID: "a", Index: 2500}}, plan.Writes)
	assert.Equal(t, []string{"b", "a", "c"}, plan.Order)

	plan, err = DefaultConfig().Move(items, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []Write{{ID: "a", Index: 4000}}, plan.Writes)
	assert.Equal(t, []string{"b", "c", "a"}, plan.Order)
}

func TestMoveNoopAndBounds(t *testing.T) {
	items := []Item{{"a", 0}, {"b", 1000}}
	plan, err := DefaultConfig().Move(items, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, plan.Writes)

	_, err = DefaultConfig().Move(items, 2, 0)
	assert.ErrorIs(t, err, ErrPosition)
	_, err = DefaultConfig().Move(items, 0, -1)
	assert.ErrorIs(t, err, ErrPosition)
}

func TestGapExhaustionReindexes(t *testing.T) {
	c := DefaultConfig()
	items := []Item{{"a", 1000}, {"b", 2000}, {"c", 3000}}

	var plan Plan
	var err error
	rounds := 0
	for ; rounds < 64; rounds++ {
		// keep pulling the last item in right after the first one
		plan, err = c.Move(items, 2, 1)
		require.NoError(t, err)
		items = apply(items, plan.Writes)
		require.Equal(t, plan.Order, ids(items))
		if plan.Reindexed {
			break
		}
		require.Len(t, plan.Writes, 1)
	}
	require.True(t, plan.Reindexed, "gap never ran out")
	assert.Less(t, rounds, 20)

	require.Len(t, plan.Writes, 3)
	for i, w := range plan.Writes {
		assert.Equal(t, plan.Order[i], w.ID)
		assert.Equal(t, int64(i)*DefaultGap, w.Index)
	}
}

func TestMonotonicOverMixedSequence(t *testing.T) {
	c := DefaultConfig()
	var items []Item
	want := []string{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		idx := make([]int64, len(items))
		for i, it := range items {
			idx[i] = it.Index
		}
		items = append(items, Item{ID: id, Index: c.Append(idx)})
		want = append(want, id)
	}

	moves := [][2]int{{4, 0}, {0, 3}, {2, 1}, {1, 2}, {3, 0}, {0, 4}, {4, 1}, {1, 0}, {2, 3}}
	for _, m := range moves {
		id := want[m[0]]
		want = append(want[:m[0]], want[m[0]+1:]...)
		want = append(want[:m[1]], append([]string{id}, want[m[1]:]...)...)

		plan, err := c.Move(items, m[0], m[1])
		require.NoError(t, err)
		items = apply(items, plan.Writes)
		require.Equal(t, want, ids(items))

		seen := map[int64]bool{}
		for _, it := range items {
			require.False(t, seen[it.Index], "duplicate index %d", it.Index)
			seen[it.Index] = true
		}
	}
}
