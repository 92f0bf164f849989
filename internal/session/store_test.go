package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSession(id string) *Session {
	rev := 1
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &Session{
		ID:         id,
		Problem:    "reduce churn without raising support cost",
		Techniques: []string{"six_hats"},
		TimeBudget: BudgetThorough,
		Plan: []PlannedStep{
			{PlanIndex: 1, TechniqueID: "six_hats", TechniqueStep: 1, Name: "Blue Hat - Process"},
			{PlanIndex: 2, TechniqueID: "six_hats", TechniqueStep: 2, Name: "White Hat - Facts"},
			{PlanIndex: 3, TechniqueID: "six_hats", TechniqueStep: 3, Name: "Red Hat - Feelings"},
		},
		CurrentStep: 3,
		Records: []StepRecord{
			{StepIndex: 1, Content: "kick off", Impact: Impact{ReversibilityCost: 0.1}, Timestamp: now},
			{StepIndex: 2, Content: "facts", Impact: Impact{OptionsClosed: 1, ReversibilityCost: 0.3}, Timestamp: now.Add(time.Minute)},
			{StepIndex: 1, Content: "kick off, revised", Impact: Impact{ReversibilityCost: 0.1}, Timestamp: now.Add(2 * time.Minute), RevisesStepIndex: &rev},
		},
		PathMemory: PathMemory{Commitments: []Commitment{
			{Description: "step 1", Irreversibility: 0.1, CreatedAtStep: 1},
			{Description: "step 2", Irreversibility: 0.3, CreatedAtStep: 2},
		}},
		Flexibility: 0.63,
		Branches: map[string]*Branch{
			"alt": {
				ID: "alt", FromStep: 2, CreatedAt: now,
				Records: []StepRecord{{StepIndex: 3, Content: "branched", BranchID: "alt", Timestamp: now.Add(3 * time.Minute)}},
			},
		},
		CreatedAt: now,
		UpdatedAt: now.Add(2 * time.Minute),
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return map[string]Store{
		"file":   fs,
		"memory": NewMemStore(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := testSession("sess-roundtrip")

			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx, "sess-roundtrip")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_RoundTripBranchCounts(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, branches := range []int{0, 1, 5} {
				s := testSession("sess-branches")
				s.Branches = make(map[string]*Branch)
				for i := 0; i < branches; i++ {
					id := string(rune('a' + i))
					s.Branches[id] = &Branch{ID: id, FromStep: 1, CreatedAt: s.CreatedAt}
				}
				if branches == 0 {
					s.Branches = nil
				}

				require.NoError(t, store.Save(ctx, s))
				got, err := store.Load(ctx, s.ID)
				require.NoError(t, err)
				assert.Equal(t, s, got)
			}
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ExistsListDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := store.Exists(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Save(ctx, testSession("s2")))
			require.NoError(t, store.Save(ctx, testSession("s1")))

			ok, err = store.Exists(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, ok)

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"s1", "s2"}, ids)

			require.NoError(t, store.Delete(ctx, "s1"))
			assert.ErrorIs(t, store.Delete(ctx, "s1"), ErrNotFound)

			ids, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"s2"}, ids)
		})
	}
}

func TestStore_RejectsPathTraversalIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"", "..", "a/b", `a\b`} {
				s := testSession("x")
				s.ID = id
				assert.Error(t, store.Save(ctx, s), "id %q", id)
				_, err := store.Load(ctx, id)
				assert.Error(t, err, "id %q", id)
			}
		})
	}
}

func TestFileStore_NoPartialFilesAfterSave(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), testSession("atomic")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
	_, err = os.Stat(filepath.Join(dir, "atomic.json"))
	assert.NoError(t, err)
}

func TestFileStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), testSession("perm")))

	info, err := os.Stat(filepath.Join(dir, "perm.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMemStore_NoAliasing(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	s := testSession("alias")
	require.NoError(t, store.Save(ctx, s))

	// Mutating the saved document must not affect the stored copy.
	s.Records = append(s.Records, StepRecord{StepIndex: 99, Content: "rogue"})
	s.PathMemory.Commitments[0].Irreversibility = 0.99

	got, err := store.Load(ctx, "alias")
	require.NoError(t, err)
	assert.Len(t, got.Records, 3)
	assert.Equal(t, 0.1, got.PathMemory.Commitments[0].Irreversibility)

	// Mutating a loaded document must not affect subsequent loads.
	got.Records[0].Content = "tampered"
	again, err := store.Load(ctx, "alias")
	require.NoError(t, err)
	assert.Equal(t, "kick off", again.Records[0].Content)
}

func TestStore_ConcurrentReadsAcrossIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := []string{"c1", "c2", "c3", "c4"}
			for _, id := range ids {
				require.NoError(t, store.Save(ctx, testSession(id)))
			}

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					got, err := store.Load(ctx, id)
					assert.NoError(t, err)
					assert.Equal(t, id, got.ID)
				}(ids[i%len(ids)])
			}
			wg.Wait()
		})
	}
}

func TestLocks_FailFastOnSecondAcquire(t *testing.T) {
	locks := NewLocks()

	release, ok := locks.TryAcquire("s1")
	require.True(t, ok)
	assert.True(t, locks.Held("s1"))

	_, ok = locks.TryAcquire("s1")
	assert.False(t, ok)

	// A different id is unaffected.
	r2, ok := locks.TryAcquire("s2")
	require.True(t, ok)
	r2()

	release()
	assert.False(t, locks.Held("s1"))

	_, ok = locks.TryAcquire("s1")
	assert.True(t, ok)
}

func TestImpact_NetOptionality(t *testing.T) {
	assert.Equal(t, 0, Impact{OptionsClosed: 3, OptionsOpened: 1}.NetOptionality())
	assert.Equal(t, 2, Impact{OptionsClosed: 1, OptionsOpened: 3}.NetOptionality())
	assert.Equal(t, 0, Impact{}.NetOptionality())
}

func TestSession_StateDerivation(t *testing.T) {
	s := testSession("state")
	s.Records = nil
	assert.Equal(t, StateNotStarted, s.State())

	s = testSession("state")
	assert.Equal(t, StateInProgress, s.State())

	s.CurrentStep = s.TotalSteps() + 1
	assert.True(t, s.Complete())
	assert.Equal(t, StateComplete, s.State())
}
