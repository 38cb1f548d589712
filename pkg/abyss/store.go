package abyss

import "sync"

// MutationKind identifies the class of store mutation a listener observed.
type MutationKind string

const (
	// MutationAdd covers Add and AddBatch.
	MutationAdd MutationKind = "add"

	// MutationTake covers successful Take calls.
	MutationTake MutationKind = "take"

	// MutationSet covers Set calls that changed content (replace, remove or append).
	MutationSet MutationKind = "set"

	// MutationClear covers Clear.
	MutationClear MutationKind = "clear"
)

// Mutation describes one committed store mutation.
type Mutation struct {
	Kind  MutationKind // What happened
	Delta int          // Net change in record count (negative for removals)
	Count int          // Record count after the mutation committed
}

// Store is the single shared ordered collection of item records. Insertion
// order is significant: index 0 is the oldest record and pagination walks
// oldest-first. Indices are dense and zero-based; index i is valid iff
// 0 <= i < Count().
//
// All operations are serialized on one mutex. No operation returns an error
// for out-of-range input - such calls degrade to a no-op or an absent result,
// so malformed input from any collaborator can never crash the broker.
type Store struct {
	mu       sync.Mutex
	items    []ItemRecord
	onChange func(Mutation)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// SetListener installs the mutation listener. The listener is invoked
// synchronously after each content-changing mutation commits, outside the
// store lock, so it may freely read the store again. Must be called during
// wiring, before the store is shared.
func (s *Store) SetListener(fn func(Mutation)) {
	s.onChange = fn
}

// Add appends a deep copy of the item to the tail of the store.
// Empty items are rejected as a silent no-op. Returns whether a record was
// actually appended.
func (s *Store) Add(item ItemRecord) bool {
	if item.IsEmpty() {
		return false
	}

	s.mu.Lock()
	s.items = append(s.items, item.Clone())
	count := len(s.items)
	s.mu.Unlock()

	s.notify(Mutation{Kind: MutationAdd, Delta: 1, Count: count})
	return true
}

// AddBatch appends deep copies of all non-empty items in one critical
// section, so concurrent page reads observe either none or all of the batch.
// Empty items within the batch are skipped. Returns the number of records
// appended; an empty or all-empty batch is a silent no-op.
func (s *Store) AddBatch(items []ItemRecord) int {
	s.mu.Lock()
	added := 0
	for _, item := range items {
		if item.IsEmpty() {
			continue
		}
		s.items = append(s.items, item.Clone())
		added++
	}
	count := len(s.items)
	s.mu.Unlock()

	if added == 0 {
		return 0
	}

	s.notify(Mutation{Kind: MutationAdd, Delta: added, Count: count})
	return added
}

// Take atomically removes and returns the record at the given index,
// shifting subsequent records down by one. The bounds check and the removal
// happen inside a single critical section: of two concurrent Take calls for
// the same record, exactly one succeeds and the other observes absent.
// An invalid index returns (zero, false) with no side effect.
func (s *Store) Take(index int) (ItemRecord, bool) {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return ItemRecord{}, false
	}

	item := s.items[index]
	s.items = append(s.items[:index], s.items[index+1:]...)
	count := len(s.items)
	s.mu.Unlock()

	s.notify(Mutation{Kind: MutationTake, Delta: -1, Count: count})
	return item, true
}

// Set places an item at a position, mirroring the presentation layer's
// "place here or append" semantics:
//   - valid index, empty item: remove the record at index
//   - valid index, non-empty item: replace the record at index with a copy
//   - invalid index, non-empty item: append a copy to the tail
//   - invalid index, empty item: no-op
func (s *Store) Set(index int, item ItemRecord) {
	s.mu.Lock()
	valid := index >= 0 && index < len(s.items)

	var mut Mutation
	switch {
	case valid && item.IsEmpty():
		s.items = append(s.items[:index], s.items[index+1:]...)
		mut = Mutation{Kind: MutationSet, Delta: -1}
	case valid:
		s.items[index] = item.Clone()
		mut = Mutation{Kind: MutationSet, Delta: 0}
	case item.IsEmpty():
		s.mu.Unlock()
		return
	default:
		s.items = append(s.items, item.Clone())
		mut = Mutation{Kind: MutationSet, Delta: 1}
	}
	mut.Count = len(s.items)
	s.mu.Unlock()

	s.notify(mut)
}

// Get returns a copy of the record at the given index without removing it.
// An invalid index returns (zero, false).
func (s *Store) Get(index int) (ItemRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return ItemRecord{}, false
	}
	return s.items[index].Clone(), true
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// IsEmpty reports whether the store holds no records.
func (s *Store) IsEmpty() bool {
	return s.Count() == 0
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	removed := len(s.items)
	s.items = nil
	s.mu.Unlock()

	if removed == 0 {
		return
	}
	s.notify(Mutation{Kind: MutationClear, Delta: -removed, Count: 0})
}

// Items returns an independent copy of every stored record in order.
func (s *Store) Items() []ItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ItemRecord, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out
}

// Page returns copies of the records on the given zero-based page, laid out
// with the given page capacity. Returns an empty slice when the page start
// is at or beyond the end of the store.
func (s *Store) Page(page, capacity int) []ItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 0 || capacity < 1 {
		return nil
	}

	start := page * capacity
	if start >= len(s.items) {
		return nil
	}

	end := start + capacity
	if end > len(s.items) {
		end = len(s.items)
	}

	out := make([]ItemRecord, end-start)
	for i, item := range s.items[start:end] {
		out[i] = item.Clone()
	}
	return out
}

// TotalPages returns the number of pages the store spans at the given page
// capacity. An empty store still has one (empty) page.
func (s *Store) TotalPages(capacity int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if capacity < 1 || len(s.items) == 0 {
		return 1
	}
	return (len(s.items) + capacity - 1) / capacity
}

// IsValidIndex reports whether a global index currently resolves to a record.
// A stale index captured before a concurrent removal must be revalidated at
// use time via Take or Get; this is only a hint for presentation code.
func (s *Store) IsValidIndex(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return index >= 0 && index < len(s.items)
}

// GlobalIndex maps a (page, slot) pair to a global store index. Pure
// arithmetic with no validation; callers validate via Take or Get.
func GlobalIndex(page, slot, capacity int) int {
	return page*capacity + slot
}

func (s *Store) notify(m Mutation) {
	if s.onChange != nil {
		s.onChange(m)
	}
}
