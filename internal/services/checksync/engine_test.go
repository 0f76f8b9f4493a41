package checksync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/checksync/internal/domain/check"
	"github.com/NordCoder/checksync/internal/folder"
)

var errBoom = errors.New("boom")

func TestAddAppendsAndSwapsProvisionalID(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	first, err := fx.e.Add(ctx, "Home", "https://Example.com/health")
	require.NoError(t, err)
	second, err := fx.e.Add(ctx, "Home again", "https://example.com/health")
	require.NoError(t, err, "duplicate urls are allowed")

	assert.Equal(t, "chk-1", first.ID)
	assert.Equal(t, "https://example.com/health", first.URL)
	assert.Equal(t, int64(0), first.OrderIndex)
	assert.Equal(t, int64(1000), second.OrderIndex)

	got := fx.e.Checks()
	require.Len(t, got, 2)
	assert.Equal(t, []string{"chk-1", "chk-2"}, []string{got[0].ID, got[1].ID})
	for _, c := range got {
		assert.False(t, strings.HasPrefix(c.ID, provisionalPrefix))
		assert.Equal(t, owner, c.OwnerID)
		assert.Equal(t, check.StatusUnknown, c.Status)
	}
	assert.False(t, fx.e.IsPending("chk-1"))
}

func TestAddIsVisibleBeforeStoreConfirms(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.store.gate = make(chan struct{})
	fx.store.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := fx.e.Add(context.Background(), "api", "https://api.example.com")
		done <- err
	}()
	<-fx.store.entered

	got := fx.e.Checks()
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].ID, provisionalPrefix))
	assert.True(t, fx.e.IsPending(got[0].ID))

	close(fx.store.gate)
	require.NoError(t, <-done)
	assert.Equal(t, "chk-1", fx.e.Checks()[0].ID)
}

func TestAddValidation(t *testing.T) {
	fx := newFixture(t, Config{}, seed(1)...)
	ctx := context.Background()
	before := fx.e.Checks()

	cases := []struct{ name, url string }{
		{"", "https://example.com"},
		{strings.Repeat("n", 101), "https://example.com"},
		{"x", ""},
		{"x", "ftp://example.com"},
		{"x", "example.com"},
		{"x", "http://localhost:8080/"},
		{"x", "http://127.0.0.1"},
		{"x", "http://[::1]:80/"},
		{"x", "https://169.254.169.254/latest/meta-data"},
		{"x", "https://example.com/" + strings.Repeat("a", 2048)},
	}
	for _, tc := range cases {
		_, err := fx.e.Add(ctx, tc.name, tc.url)
		assert.ErrorIs(t, err, check.ErrValidation, "name=%q url=%q", tc.name, tc.url)
	}
	assert.Empty(t, fx.store.Calls())
	assert.Equal(t, before, fx.e.Checks())
}

func TestEveryMutationRollsBackExactly(t *testing.T) {
	ops := []struct {
		name string
		run  func(e *Engine) error
		is   error
	}{
		{"add", func(e *Engine) error { _, err := e.Add(context.Background(), "n", "https://n.example.com"); return err }, check.ErrTransient},
		{"update", func(e *Engine) error {
			return e.Update(context.Background(), "c1", check.Patch{Name: check.Ptr("renamed")})
		}, check.ErrTransient},
		{"delete", func(e *Engine) error { return e.Delete(context.Background(), "c1") }, check.ErrTransient},
		{"bulk_delete", func(e *Engine) error { return e.BulkDelete(context.Background(), []string{"c1", "c2"}) }, check.ErrPartialBulk},
		{"toggle", func(e *Engine) error { return e.ToggleStatus(context.Background(), "c1", true) }, check.ErrTransient},
		{"bulk_toggle", func(e *Engine) error {
			return e.BulkToggleStatus(context.Background(), []string{"c1", "c2"}, true)
		}, check.ErrTransient},
		{"bulk_settings", func(e *Engine) error {
			return e.BulkUpdateSettings(context.Background(), []string{"c1", "c2"}, check.Settings{Interval: check.Ptr(2 * time.Minute)})
		}, check.ErrTransient},
		{"reorder", func(e *Engine) error { return e.Reorder(context.Background(), 2, 0) }, check.ErrTransient},
		{"manual_check", func(e *Engine) error { _, err := e.ManualCheck(context.Background(), "c2"); return err }, check.ErrTransient},
		{"set_folder", func(e *Engine) error { return e.SetFolder(context.Background(), "c1", "elsewhere") }, check.ErrTransient},
		{"rename_folder", func(e *Engine) error { return e.RenameFolder(context.Background(), "a", "z") }, check.ErrTransient},
		{"delete_folder", func(e *Engine) error { return e.DeleteFolder(context.Background(), "a/b") }, check.ErrTransient},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			fx := newFixture(t, Config{}, seed(3, "a", "a/b", "a/b/c")...)
			fx.runner.res = check.Result{Status: check.StatusDown, Code: 500, CheckedAt: fixedNow}
			fx.store.failCreate = errBoom
			fx.store.failUpdate = errBoom
			fx.store.failBatch = errBoom
			for _, id := range []string{"c1", "c2", "c3"} {
				fx.store.failDelete[id] = errBoom
			}

			before := fx.e.Checks()
			err := op.run(fx.e)
			require.Error(t, err)
			assert.ErrorIs(t, err, op.is)
			assert.Equal(t, before, fx.e.Checks())

			for _, c := range before {
				assert.False(t, fx.e.IsPending(c.ID))
			}
			muts := fx.e.Mutations()
			require.NotEmpty(t, muts)
			assert.Equal(t, MutationRolledBack, muts[len(muts)-1].State)
		})
	}
}

func TestOptimisticStateVisibleWhileInFlight(t *testing.T) {
	fx := newFixture(t, Config{}, seed(2)...)
	fx.store.gate = make(chan struct{})
	fx.store.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- fx.e.SetFolder(context.Background(), "c1", " x // y ") }()
	<-fx.store.entered

	c, ok := fx.e.Snapshot().Get("c1")
	require.True(t, ok)
	assert.Equal(t, "x/y", c.Folder)
	assert.True(t, fx.e.IsPending("c1"))
	assert.False(t, fx.e.IsPending("c2"))

	close(fx.store.gate)
	require.NoError(t, <-done)
	assert.False(t, fx.e.IsPending("c1"))

	muts := fx.e.Mutations()
	assert.Equal(t, MutationConfirmed, muts[len(muts)-1].State)
	doc, _ := fx.store.doc("c1")
	assert.Equal(t, "x/y", doc.Folder)
}

func TestOwnershipAndNotFound(t *testing.T) {
	foreign := seed(1)[0]
	foreign.ID = "theirs"
	foreign.OwnerID = "someone-else"
	fx := newFixture(t, Config{}, append(seed(1), foreign)...)
	ctx := context.Background()

	assert.ErrorIs(t, fx.e.Delete(ctx, "theirs"), check.ErrNotFound)
	assert.ErrorIs(t, fx.e.ToggleStatus(ctx, "missing", true), check.ErrNotFound)
	assert.ErrorIs(t, fx.e.BulkDelete(ctx, []string{"c1", "theirs"}), check.ErrNotFound)

	var nf *check.NotFoundError
	require.ErrorAs(t, fx.e.SetFolder(ctx, "missing", "a"), &nf)
	assert.Equal(t, "missing", nf.ID)
	assert.Empty(t, fx.store.Calls())
}

func TestRemoteNotFoundAndPermissionAreClassified(t *testing.T) {
	fx := newFixture(t, Config{}, seed(1)...)
	ctx := context.Background()

	fx.store.failUpdate = check.ErrPermissionDenied
	err := fx.e.SetFolder(ctx, "c1", "a")
	var pe *check.PermissionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, check.ErrPermissionDenied)

	fx.store.failUpdate = check.ErrNotFound
	err = fx.e.SetFolder(ctx, "c1", "a")
	var nf *check.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "c1", nf.ID)
}

func TestUpdate(t *testing.T) {
	fx := newFixture(t, Config{}, seed(1)...)
	ctx := context.Background()

	require.NoError(t, fx.e.Update(ctx, "c1", check.Patch{Name: check.Ptr("  api  "), Folder: check.Ptr("/ops/")}))
	c, _ := fx.e.Snapshot().Get("c1")
	assert.Equal(t, "api", c.Name)
	assert.Equal(t, "ops", c.Folder)
	assert.Equal(t, fixedNow, c.UpdatedAt)

	assert.ErrorIs(t, fx.e.Update(ctx, "c1", check.Patch{}), check.ErrValidation)
	assert.ErrorIs(t, fx.e.Update(ctx, "c1", check.Patch{OrderIndex: check.Ptr(int64(7))}), check.ErrValidation)
	assert.ErrorIs(t, fx.e.Update(ctx, "c1", check.Patch{URL: check.Ptr("http://localhost")}), check.ErrValidation)
	assert.ErrorIs(t, fx.e.Update(ctx, "c1", check.Patch{Folder: check.Ptr("a/b/c/d/e/f")}), folder.ErrTooDeep)
}

func TestReorderToFrontWritesMidpoint(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)

	require.NoError(t, fx.e.Reorder(context.Background(), 2, 0))

	calls := fx.store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "update", calls[0].Kind)
	assert.Equal(t, []string{"c3"}, calls[0].IDs)
	assert.Equal(t, int64(500), *calls[0].Patches[0].OrderIndex)

	got := fx.e.Checks()
	assert.Equal(t, []string{"c3", "c1", "c2"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestReorderGapExhaustionReindexesInOneBatch(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)
	ctx := context.Background()

	for i := 0; i < 30 && len(fx.store.callsOf("batch")) == 0; i++ {
		require.NoError(t, fx.e.Reorder(ctx, 2, 1))
	}
	batches := fx.store.callsOf("batch")
	require.Len(t, batches, 1)
	b := batches[0]
	require.Len(t, b.IDs, 3)

	got := fx.e.Checks()
	for i, c := range got {
		assert.Equal(t, int64(i)*1000, c.OrderIndex)
		assert.Equal(t, b.IDs[i], c.ID)
		assert.Equal(t, int64(i)*1000, *b.Patches[i].OrderIndex)
	}
}

func TestReorderRejectsBadPositions(t *testing.T) {
	fx := newFixture(t, Config{}, seed(2)...)
	assert.ErrorIs(t, fx.e.Reorder(context.Background(), 0, 5), check.ErrValidation)
	require.NoError(t, fx.e.Reorder(context.Background(), 1, 1))
	assert.Empty(t, fx.store.Calls())
}

func TestCascadeIsChunked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 2
	fx := newFixture(t, cfg, seed(5, "a", "a", "a/b", "a/b", "a")...)

	require.NoError(t, fx.e.RenameFolder(context.Background(), "a", "team"))

	batches := fx.store.callsOf("batch")
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].IDs, 2)
	assert.Len(t, batches[1].IDs, 2)
	assert.Len(t, batches[2].IDs, 1)

	for _, id := range []string{"c1", "c2", "c5"} {
		d, _ := fx.store.doc(id)
		assert.Equal(t, "team", d.Folder)
	}
	d, _ := fx.store.doc("c3")
	assert.Equal(t, "team/b", d.Folder)
}

func TestCascadeChunkFailureRollsBackLocally(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 2
	fx := newFixture(t, cfg, seed(5, "a", "a", "a/b", "a/b", "a")...)
	fx.store.failBatchAt = map[int]error{2: errBoom}
	before := fx.e.Checks()

	err := fx.e.RenameFolder(context.Background(), "a", "team")
	require.ErrorIs(t, err, check.ErrTransient)

	batches := fx.store.callsOf("batch")
	require.Len(t, batches, 2, "no batch is sent after a failed one")
	assert.Equal(t, before, fx.e.Checks(), "local state is restored in full")
	for _, id := range batches[0].IDs {
		d, _ := fx.store.doc(id)
		assert.True(t, strings.HasPrefix(d.Folder, "team"), "first chunk stays written remotely")
	}
	for _, id := range batches[1].IDs {
		d, _ := fx.store.doc(id)
		assert.True(t, strings.HasPrefix(d.Folder, "a"))
	}
	for _, c := range before {
		assert.False(t, fx.e.IsPending(c.ID))
	}
}

func TestRenameAndDeleteFolderCascade(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3, "a", "a/b", "a/b/c")...)
	ctx := context.Background()

	require.NoError(t, fx.e.RenameFolder(ctx, "a/b", "x/y"))
	folders := func() []string {
		var out []string
		for _, c := range fx.e.Checks() {
			out = append(out, c.Folder)
		}
		return out
	}
	assert.Equal(t, []string{"a", "x/y", "x/y/c"}, folders())
	require.Len(t, fx.store.callsOf("batch"), 1)
	assert.ElementsMatch(t, []string{"c2", "c3"}, fx.store.callsOf("batch")[0].IDs)

	require.NoError(t, fx.e.DeleteFolder(ctx, "x"))
	assert.Equal(t, []string{"a", "y", "y/c"}, folders())

	fx2 := newFixture(t, Config{}, seed(2, "a/b", "a/b/c")...)
	require.NoError(t, fx2.e.DeleteFolder(ctx, "a/b"))
	c1, _ := fx2.e.Snapshot().Get("c1")
	c2, _ := fx2.e.Snapshot().Get("c2")
	assert.Equal(t, "a", c1.Folder)
	assert.Equal(t, "a/c", c2.Folder)
}

func TestRenameFolderRejections(t *testing.T) {
	fx := newFixture(t, Config{}, seed(2, "a", "a/b")...)
	ctx := context.Background()

	assert.ErrorIs(t, fx.e.RenameFolder(ctx, "a", "a/b/inner"), folder.ErrIntoDescendant)
	assert.ErrorIs(t, fx.e.RenameFolder(ctx, "a", " a/ "), folder.ErrSameFolder)
	assert.ErrorIs(t, fx.e.RenameFolder(ctx, "a", "p/q/r/s/t"), folder.ErrTooDeep)
	assert.ErrorIs(t, fx.e.RenameFolder(ctx, "nope", "x"), check.ErrValidation)
	assert.Empty(t, fx.store.Calls())
}

func TestDeclaredFoldersFollowCascades(t *testing.T) {
	fx := newFixture(t, Config{}, seed(1, "a")...)
	ctx := context.Background()

	require.NoError(t, fx.e.CreateFolder(ctx, "empty/one"))
	require.NoError(t, fx.e.CreateFolder(ctx, "a"), "existing folder is a no-op")
	assert.Equal(t, []string{"empty/one"}, fx.folders.declared[owner])

	_, ok := fx.e.FolderTree().Lookup("empty/one")
	assert.True(t, ok)

	require.NoError(t, fx.e.RenameFolder(ctx, "empty", "full"))
	assert.Equal(t, []string{"full/one"}, fx.e.Snapshot().Declared())
	assert.Empty(t, fx.store.callsOf("batch"))

	require.NoError(t, fx.e.DeleteFolder(ctx, "full"))
	assert.Equal(t, []string{"one"}, fx.folders.declared[owner])

	fx.folders.fail = errBoom
	err := fx.e.CreateFolder(ctx, "later")
	assert.ErrorIs(t, err, check.ErrTransient)
	assert.Equal(t, []string{"one"}, fx.e.Snapshot().Declared())
}

func TestBulkDeletePartialFailure(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)
	fx.store.failDelete["c2"] = errBoom
	before := fx.e.Checks()

	err := fx.e.BulkDelete(context.Background(), []string{"c1", "c2", "c3"})
	var pb *check.PartialBulkFailure
	require.ErrorAs(t, err, &pb)
	assert.Equal(t, 3, pb.Requested)
	assert.Equal(t, 2, pb.Succeeded)
	require.Contains(t, pb.Failed, "c2")
	assert.ErrorIs(t, pb.Failed["c2"], check.ErrTransient)

	assert.Len(t, fx.store.callsOf("delete"), 3)
	assert.Equal(t, before, fx.e.Checks())
	_, ok := fx.store.doc("c1")
	assert.False(t, ok, "remote deletions are not undone")
	_, ok = fx.store.doc("c2")
	assert.True(t, ok)
}

func TestBulkDeleteSuccess(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)
	require.NoError(t, fx.e.BulkDelete(context.Background(), []string{"c1", "c3", "c1"}))
	got := fx.e.Checks()
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)
	assert.Len(t, fx.store.callsOf("delete"), 2)
}

func TestToggleStatus(t *testing.T) {
	docs := seed(2)
	docs[0].ConsecutiveFailures = 4
	fx := newFixture(t, Config{}, docs...)
	ctx := context.Background()

	require.NoError(t, fx.e.ToggleStatus(ctx, "c1", true))
	c, _ := fx.e.Snapshot().Get("c1")
	assert.True(t, c.Disabled)
	assert.Equal(t, disabledByUser, c.DisabledReason)
	assert.Equal(t, fixedNow, c.DisabledAt)

	require.NoError(t, fx.e.ToggleStatus(ctx, "c1", true))
	assert.Len(t, fx.store.Calls(), 1, "already disabled")

	require.NoError(t, fx.e.ToggleStatus(ctx, "c1", false))
	c, _ = fx.e.Snapshot().Get("c1")
	assert.False(t, c.Disabled)
	assert.Empty(t, c.DisabledReason)
	assert.True(t, c.DisabledAt.IsZero())
	assert.Equal(t, 0, c.ConsecutiveFailures)
	assert.Equal(t, fixedNow, c.NextCheckAt)

	require.NoError(t, fx.e.BulkToggleStatus(ctx, []string{"c1", "c2"}, true))
	assert.Len(t, fx.store.callsOf("batch"), 1)
	assert.Equal(t, 2, fx.e.Stats().Disabled)
}

func TestBulkUpdateSettings(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)
	ctx := context.Background()

	require.NoError(t, fx.e.BulkUpdateSettings(ctx, []string{"c1"}, check.Settings{
		Interval: check.Ptr(time.Minute), Region: check.Ptr("eu"),
	}))
	c, _ := fx.e.Snapshot().Get("c1")
	assert.True(t, c.NextCheckAt.IsZero(), "unchanged settings keep the schedule")
	assert.Len(t, fx.store.callsOf("update"), 1)

	require.NoError(t, fx.e.BulkUpdateSettings(ctx, []string{"c1", "c2"}, check.Settings{Region: check.Ptr(" us ")}))
	for _, id := range []string{"c1", "c2"} {
		c, _ := fx.e.Snapshot().Get(id)
		assert.Equal(t, "us", c.Region)
		assert.Equal(t, fixedNow, c.NextCheckAt)
		assert.Equal(t, time.Minute, c.Interval)
	}
	c3, _ := fx.e.Snapshot().Get("c3")
	assert.Equal(t, "eu", c3.Region)
	assert.Len(t, fx.store.callsOf("batch"), 1)

	assert.ErrorIs(t, fx.e.BulkUpdateSettings(ctx, []string{"c1"}, check.Settings{}), check.ErrValidation)
	assert.ErrorIs(t, fx.e.BulkUpdateSettings(ctx, []string{"c1"}, check.Settings{Interval: check.Ptr(time.Duration(0))}), check.ErrValidation)
	assert.ErrorIs(t, fx.e.BulkUpdateSettings(ctx, nil, check.Settings{Region: check.Ptr("us")}), check.ErrValidation)
}

func TestManualCheck(t *testing.T) {
	fx := newFixture(t, Config{}, seed(1)...)
	fx.runner.res = check.Result{Status: check.StatusDown, Code: 503, Latency: 120 * time.Millisecond, CheckedAt: fixedNow}
	fx.runner.gate = make(chan struct{})

	type out struct {
		c   check.Check
		err error
	}
	done := make(chan out, 1)
	go func() {
		c, err := fx.e.ManualCheck(context.Background(), "c1")
		done <- out{c, err}
	}()

	require.Eventually(t, func() bool {
		c, _ := fx.e.Snapshot().Get("c1")
		return c.Status == check.StatusUnknown
	}, time.Second, 5*time.Millisecond)

	close(fx.runner.gate)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, check.StatusDown, res.c.Status)
	assert.Equal(t, 503, res.c.LastStatusCode)
	assert.Equal(t, int64(120), res.c.ResponseTimeMs)
	assert.Equal(t, 1, res.c.ConsecutiveFailures)
	assert.Equal(t, fixedNow.Add(time.Minute), res.c.NextCheckAt)

	c, _ := fx.e.Snapshot().Get("c1")
	assert.Equal(t, res.c, c)
	doc, _ := fx.store.doc("c1")
	assert.Equal(t, check.StatusDown, doc.Status)
}

func TestManualCheckRunnerFailureRollsBack(t *testing.T) {
	fx := newFixture(t, Config{}, seed(1)...)
	fx.runner.err = errBoom
	before := fx.e.Checks()

	_, err := fx.e.ManualCheck(context.Background(), "c1")
	assert.ErrorIs(t, err, check.ErrTransient)
	assert.Equal(t, before, fx.e.Checks())
	assert.Empty(t, fx.store.Calls())
}

func TestStatsCacheInvalidatedOnConfirm(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)
	ctx := context.Background()

	assert.Equal(t, check.Stats{Total: 3, Up: 3}, fx.e.Stats())
	require.NoError(t, fx.e.Delete(ctx, "c1"))
	assert.Equal(t, check.Stats{Total: 2, Up: 2}, fx.e.Stats())

	_, err := fx.e.Add(ctx, "new", "https://new.example.com")
	require.NoError(t, err)
	assert.Equal(t, check.Stats{Total: 3, Up: 2, Unknown: 1}, fx.e.Stats())
}

func TestStatsCacheInvalidatedOnRollback(t *testing.T) {
	fx := newFixture(t, Config{}, seed(3)...)
	fx.store.failDelete["c1"] = errBoom
	fx.store.gate = make(chan struct{})
	fx.store.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- fx.e.Delete(context.Background(), "c1") }()
	<-fx.store.entered
	assert.Equal(t, check.Stats{Total: 2, Up: 2}, fx.e.Stats(), "computed from the optimistic state")

	close(fx.store.gate)
	require.ErrorIs(t, <-done, check.ErrTransient)
	assert.Len(t, fx.e.Checks(), 3)
	assert.Equal(t, check.Stats{Total: 3, Up: 3}, fx.e.Stats())
}

// startSetFolder runs SetFolder in the background and returns its write, held at the store.
func startSetFolder(t *testing.T, fx engineFixture, id, path string) (*step, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fx.e.SetFolder(context.Background(), id, path) }()
	select {
	case s := <-fx.store.steps:
		return s, done
	case <-time.After(2 * time.Second):
		t.Fatal("write never reached the store")
		return nil, nil
	}
}

func folderOf(t *testing.T, fx engineFixture, id string) (local, remote string) {
	t.Helper()
	c, ok := fx.e.Snapshot().Get(id)
	require.True(t, ok)
	d, ok := fx.store.doc(id)
	require.True(t, ok)
	return c.Folder, d.Folder
}

type settlement struct {
	newer bool
	err   error
}

func TestSameIDRace(t *testing.T) {
	tests := []struct {
		name    string
		settle  [2]settlement
		between string
		want    string
	}{
		{"older fails then newer confirms", [2]settlement{{false, errBoom}, {true, nil}}, "y", "y"},
		{"newer fails then older confirms", [2]settlement{{true, errBoom}, {false, nil}}, "x", "x"},
		{"older confirms then newer fails", [2]settlement{{false, nil}, {true, errBoom}}, "y", "x"},
		{"both fail newest first", [2]settlement{{true, errBoom}, {false, errBoom}}, "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, Config{}, seed(1)...)
			fx.store.steps = make(chan *step, 2)

			older, olderDone := startSetFolder(t, fx, "c1", "x")
			newer, newerDone := startSetFolder(t, fx, "c1", "y")
			local, _ := folderOf(t, fx, "c1")
			assert.Equal(t, "y", local)

			for i, st := range tt.settle {
				w, done := older, olderDone
				if st.newer {
					w, done = newer, newerDone
				}
				w.release <- st.err
				if st.err != nil {
					require.ErrorIs(t, <-done, check.ErrTransient)
				} else {
					require.NoError(t, <-done)
				}
				if i == 0 {
					local, _ := folderOf(t, fx, "c1")
					assert.Equal(t, tt.between, local)
					assert.True(t, fx.e.IsPending("c1"), "the other write is still in flight")
				}
			}

			local, remote := folderOf(t, fx, "c1")
			assert.Equal(t, tt.want, local)
			assert.Equal(t, remote, local, "local converges on the store")
			assert.False(t, fx.e.IsPending("c1"))
		})
	}
}

func TestDeliveryRebasesInFlightRollback(t *testing.T) {
	fx := newFixture(t, Config{}, seed(2)...)
	fx.store.steps = make(chan *step, 1)

	w, done := startSetFolder(t, fx, "c1", "x")
	delivered := seed(2)
	delivered[0].Name = "renamed elsewhere"
	fx.e.install(delivered)

	w.release <- errBoom
	require.ErrorIs(t, <-done, check.ErrTransient)
	c, ok := fx.e.Snapshot().Get("c1")
	require.True(t, ok)
	assert.Equal(t, "renamed elsewhere", c.Name, "rollback restores the delivered value")
	assert.Equal(t, "", c.Folder)
}
