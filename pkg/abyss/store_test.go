package abyss

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(kind string, quantity int) ItemRecord {
	return NewItemRecord(kind, quantity, nil)
}

func fillStore(s *Store, n int) {
	for i := 0; i < n; i++ {
		s.Add(record("stone", 1))
	}
}

func TestStoreAdd(t *testing.T) {
	t.Run("appends a copy to the tail", func(t *testing.T) {
		s := NewStore()
		item := NewItemRecord("sword", 1, json.RawMessage(`{"enchant":"sharpness"}`))

		added := s.Add(item)
		require.True(t, added)
		require.Equal(t, 1, s.Count())

		got, ok := s.Get(0)
		require.True(t, ok)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, item.Kind, got.Kind)
		assert.Equal(t, item.Metadata, got.Metadata)

		// The stored record must be independent of the caller's copy.
		item.Metadata[2] = 'X'
		got, _ = s.Get(0)
		assert.Equal(t, json.RawMessage(`{"enchant":"sharpness"}`), got.Metadata)
	})

	t.Run("rejects empty items as a no-op", func(t *testing.T) {
		s := NewStore()

		assert.False(t, s.Add(ItemRecord{}))
		assert.False(t, s.Add(record("", 5)))
		assert.False(t, s.Add(record("dirt", 0)))
		assert.True(t, s.IsEmpty())
	})
}

func TestStoreAddBatch(t *testing.T) {
	t.Run("skips empty items within the batch", func(t *testing.T) {
		s := NewStore()

		added := s.AddBatch([]ItemRecord{
			record("stone", 3),
			{},
			record("dirt", 1),
			record("", 9),
		})

		assert.Equal(t, 2, added)
		assert.Equal(t, 2, s.Count())
	})

	t.Run("all-empty batch is a silent no-op", func(t *testing.T) {
		s := NewStore()
		fired := 0
		s.SetListener(func(Mutation) { fired++ })

		assert.Equal(t, 0, s.AddBatch(nil))
		assert.Equal(t, 0, s.AddBatch([]ItemRecord{{}, {}}))
		assert.Equal(t, 0, fired)
	})

	t.Run("fires one mutation for the whole batch", func(t *testing.T) {
		s := NewStore()
		var muts []Mutation
		s.SetListener(func(m Mutation) { muts = append(muts, m) })

		s.AddBatch([]ItemRecord{record("a", 1), record("b", 1), record("c", 1)})

		require.Len(t, muts, 1)
		assert.Equal(t, MutationAdd, muts[0].Kind)
		assert.Equal(t, 3, muts[0].Delta)
		assert.Equal(t, 3, muts[0].Count)
	})
}

func TestStoreTake(t *testing.T) {
	t.Run("round trip returns a value-equal independent copy", func(t *testing.T) {
		s := NewStore()
		item := NewItemRecord("gem", 4, json.RawMessage(`{"color":"red"}`))
		s.Add(item)

		got, ok := s.Take(0)
		require.True(t, ok)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, item.Kind, got.Kind)
		assert.Equal(t, item.Quantity, got.Quantity)
		assert.Equal(t, item.Metadata, got.Metadata)
		assert.True(t, s.IsEmpty())
	})

	t.Run("take on empty store returns absent with no side effect", func(t *testing.T) {
		s := NewStore()
		fired := 0
		s.SetListener(func(Mutation) { fired++ })

		_, ok := s.Take(0)
		assert.False(t, ok)
		assert.Equal(t, 0, s.Count())
		assert.Equal(t, 0, fired)
	})

	t.Run("shifts subsequent indices down", func(t *testing.T) {
		s := NewStore()
		s.Add(record("a", 1))
		s.Add(record("b", 1))
		s.Add(record("c", 1))

		_, ok := s.Take(1)
		require.True(t, ok)

		got, ok := s.Get(1)
		require.True(t, ok)
		assert.Equal(t, "c", got.Kind)
	})

	t.Run("out of range indices degrade to absent", func(t *testing.T) {
		s := NewStore()
		s.Add(record("a", 1))

		_, ok := s.Take(-1)
		assert.False(t, ok)
		_, ok = s.Take(1)
		assert.False(t, ok)
		assert.Equal(t, 1, s.Count())
	})
}

// Two concurrent takes of the same logical record must yield exactly one
// success; total quantity is conserved across the race.
func TestStoreTakeLinearizable(t *testing.T) {
	const racers = 32

	s := NewStore()
	s.Add(record("contested", 7))

	var wg sync.WaitGroup
	results := make(chan ItemRecord, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if item, ok := s.Take(0); ok {
				results <- item
			}
		}()
	}
	wg.Wait()
	close(results)

	var taken []ItemRecord
	for item := range results {
		taken = append(taken, item)
	}

	require.Len(t, taken, 1, "exactly one racer may win the take")
	assert.Equal(t, 7, taken[0].Quantity)
	assert.True(t, s.IsEmpty())
}

func TestStoreTakeRaceConservesQuantity(t *testing.T) {
	const n = 50

	s := NewStore()
	for i := 0; i < n; i++ {
		s.Add(record("unit", 1))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	removed := 0

	// Twice as many racers as records, all hammering index 0.
	for i := 0; i < 2*n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if item, ok := s.Take(0); ok {
				mu.Lock()
				removed += item.Quantity
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	remaining := 0
	for _, item := range s.Items() {
		remaining += item.Quantity
	}
	assert.Equal(t, n, removed+remaining)
}

func TestStoreSet(t *testing.T) {
	t.Run("valid index with empty item removes", func(t *testing.T) {
		s := NewStore()
		s.Add(record("a", 1))
		s.Add(record("b", 1))

		s.Set(0, ItemRecord{})

		require.Equal(t, 1, s.Count())
		got, _ := s.Get(0)
		assert.Equal(t, "b", got.Kind)
	})

	t.Run("valid index with item replaces", func(t *testing.T) {
		s := NewStore()
		s.Add(record("a", 1))

		s.Set(0, record("b", 2))

		require.Equal(t, 1, s.Count())
		got, _ := s.Get(0)
		assert.Equal(t, "b", got.Kind)
	})

	t.Run("invalid index with item appends", func(t *testing.T) {
		s := NewStore()
		s.Add(record("a", 1))

		s.Set(99, record("b", 1))

		require.Equal(t, 2, s.Count())
		got, _ := s.Get(1)
		assert.Equal(t, "b", got.Kind)
	})

	t.Run("invalid index with empty item is a no-op", func(t *testing.T) {
		s := NewStore()
		fired := 0
		s.SetListener(func(Mutation) { fired++ })

		s.Set(5, ItemRecord{})

		assert.Equal(t, 0, s.Count())
		assert.Equal(t, 0, fired)
	})
}

func TestStorePagination(t *testing.T) {
	t.Run("empty store has one page", func(t *testing.T) {
		s := NewStore()
		assert.Equal(t, 1, s.TotalPages(9))
		assert.Equal(t, 1, s.TotalPages(45))
		assert.Empty(t, s.Page(0, 9))
	})

	t.Run("37 records at capacity 9 span 5 pages", func(t *testing.T) {
		s := NewStore()
		fillStore(s, 37)

		assert.Equal(t, 5, s.TotalPages(9))
		assert.Len(t, s.Page(0, 9), 9)
		assert.Len(t, s.Page(3, 9), 9)
		assert.Len(t, s.Page(4, 9), 1)
		assert.Empty(t, s.Page(5, 9))
	})

	t.Run("50 records at capacity 45 span 2 pages", func(t *testing.T) {
		s := NewStore()
		fillStore(s, 50)

		assert.Equal(t, 2, s.TotalPages(45))
		assert.Len(t, s.Page(0, 45), 45)
		assert.Len(t, s.Page(1, 45), 5)
	})

	t.Run("page preserves insertion order", func(t *testing.T) {
		s := NewStore()
		s.Add(record("first", 1))
		s.Add(record("second", 1))
		s.Add(record("third", 1))

		page := s.Page(0, 2)
		require.Len(t, page, 2)
		assert.Equal(t, "first", page[0].Kind)
		assert.Equal(t, "second", page[1].Kind)

		page = s.Page(1, 2)
		require.Len(t, page, 1)
		assert.Equal(t, "third", page[0].Kind)
	})
}

func TestGlobalIndex(t *testing.T) {
	assert.Equal(t, 0, GlobalIndex(0, 0, 45))
	assert.Equal(t, 44, GlobalIndex(0, 44, 45))
	assert.Equal(t, 45, GlobalIndex(1, 0, 45))
	assert.Equal(t, 17, GlobalIndex(1, 8, 9))
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	fillStore(s, 3)

	var muts []Mutation
	s.SetListener(func(m Mutation) { muts = append(muts, m) })

	s.Clear()
	assert.True(t, s.IsEmpty())
	require.Len(t, muts, 1)
	assert.Equal(t, MutationClear, muts[0].Kind)
	assert.Equal(t, -3, muts[0].Delta)

	// Clearing an empty store fires nothing.
	s.Clear()
	assert.Len(t, muts, 1)
}

func TestStoreListenerObservesCommittedState(t *testing.T) {
	s := NewStore()

	var observed []int
	s.SetListener(func(m Mutation) {
		// Re-reading the store from the listener must see the post-mutation state.
		observed = append(observed, s.Count())
		assert.Equal(t, m.Count, s.Count())
	})

	s.Add(record("a", 1))
	s.Add(record("b", 1))
	s.Take(0)

	assert.Equal(t, []int{1, 2, 1}, observed)
}

func TestStoreIsValidIndex(t *testing.T) {
	s := NewStore()
	fillStore(s, 2)

	assert.True(t, s.IsValidIndex(0))
	assert.True(t, s.IsValidIndex(1))
	assert.False(t, s.IsValidIndex(2))
	assert.False(t, s.IsValidIndex(-1))
}
