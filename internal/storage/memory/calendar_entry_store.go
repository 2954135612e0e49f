package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

// CalendarEntryStore is an in-memory implementation of storage.CalendarEntryStore.
type CalendarEntryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CalendarEntry // keyed by (root, month_code, year)
}

// NewCalendarEntryStore creates a new in-memory calendar entry store.
func NewCalendarEntryStore() *CalendarEntryStore {
	return &CalendarEntryStore{
		data: make(map[string]*domain.CalendarEntry),
	}
}

// Compile-time interface check.
var _ storage.CalendarEntryStore = (*CalendarEntryStore)(nil)

// entryKey generates a unique key for a calendar entry.
func entryKey(root string, month domain.MonthCode, year int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToUpper(root), month, year)
}

// InsertBulk adds multiple entries. Fails entire batch on duplicate.
func (s *CalendarEntryStore) InsertBulk(_ context.Context, entries []*domain.CalendarEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		if e == nil || e.Root == "" || !e.Month.Valid() {
			return storage.ErrInvalidInput
		}
		key := entryKey(e.Root, e.Month, e.Year)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range entries {
		entryCopy := *e
		entryCopy.Root = strings.ToUpper(e.Root)
		s.data[entryKey(e.Root, e.Month, e.Year)] = &entryCopy
	}

	return nil
}

// GetAll retrieves every entry, ordered by expiry ASC.
func (s *CalendarEntryStore) GetAll(_ context.Context) ([]*domain.CalendarEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CalendarEntry, 0, len(s.data))
	for _, e := range s.data {
		entryCopy := *e
		result = append(result, &entryCopy)
	}

	sortEntries(result)
	return result, nil
}

// GetByRoot retrieves all entries for a root, ordered by expiry ASC.
func (s *CalendarEntryStore) GetByRoot(_ context.Context, root string) ([]*domain.CalendarEntry, error) {
	root = strings.ToUpper(root)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CalendarEntry
	for _, e := range s.data {
		if e.Root == root {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sortEntries(result)
	return result, nil
}

func sortEntries(entries []*domain.CalendarEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return domain.CompareEntries(*entries[i], *entries[j]) < 0
	})
}
