package contextstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Append(t *testing.T) {
	store := New()

	store.Append(CategoryResearch, Entry{Tool: "search", CallID: "c1", Iteration: 1, Payload: "result"})
	store.Append(CategoryResearch, Entry{Tool: "fetch", CallID: "c2", Iteration: 1, Payload: "page"})
	store.Append(CategoryAnalysis, Entry{Tool: "stats", CallID: "c3", Iteration: 2, Payload: "numbers"})

	assert.Equal(t, 2, store.Len(CategoryResearch))
	assert.Equal(t, 1, store.Len(CategoryAnalysis))
	assert.Equal(t, 0, store.Len(CategoryQuality))
	assert.Equal(t, 3, store.Total())
}

func TestStore_AppendSetsTimestamp(t *testing.T) {
	store := New()
	store.Append(CategoryResearch, Entry{Tool: "search", CallID: "c1"})

	snap := store.Snapshot()
	require.Len(t, snap[CategoryResearch], 1)
	assert.False(t, snap[CategoryResearch][0].AddedAt.IsZero(), "AddedAt should be stamped on append")
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	store := New()
	for i := 0; i < 10; i++ {
		store.Append(CategoryResearch, Entry{Tool: "search", CallID: fmt.Sprintf("c%d", i), Iteration: i})
	}

	snap := store.Snapshot()
	require.Len(t, snap[CategoryResearch], 10)
	for i, entry := range snap[CategoryResearch] {
		assert.Equal(t, fmt.Sprintf("c%d", i), entry.CallID, "entries must stay in append order")
	}
}

func TestStore_MonotonicGrowth(t *testing.T) {
	store := New()

	prev := 0
	for i := 0; i < 5; i++ {
		store.Append(CategoryAnalysis, Entry{Tool: "stats", CallID: fmt.Sprintf("c%d", i)})
		cur := store.Len(CategoryAnalysis)
		assert.Greater(t, cur, prev, "category length must never decrease")
		prev = cur
	}
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	store := New()
	store.Append(CategoryResearch, Entry{Tool: "search", CallID: "c1"})

	snap := store.Snapshot()
	require.Equal(t, 1, snap.Len(CategoryResearch))

	// Appends after the snapshot must not leak into it.
	store.Append(CategoryResearch, Entry{Tool: "search", CallID: "c2"})
	store.Append(CategoryQuality, Entry{Tool: "review", CallID: "c3"})

	assert.Equal(t, 1, snap.Len(CategoryResearch))
	assert.Equal(t, 0, snap.Len(CategoryQuality))
	assert.Equal(t, 1, snap.Total())
	assert.Equal(t, 3, store.Total())
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store := New()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				store.Append(CategoryResearch, Entry{
					Tool:   "search",
					CallID: fmt.Sprintf("w%d-c%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, store.Len(CategoryResearch))
}

func TestCategories_StableOrder(t *testing.T) {
	got := Categories()
	want := []Category{CategoryResearch, CategoryAnalysis, CategorySpecialized, CategoryQuality}
	assert.Equal(t, want, got)
}
