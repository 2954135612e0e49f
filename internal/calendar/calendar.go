// Package calendar holds the expiry calendar as an immutable, ordered
// snapshot. A Calendar is built once from parsed entries and never mutated;
// refreshes build a new Calendar and swap it in atomically at the caller.
package calendar

import (
	"fmt"
	"sort"
	"strings"

	"endex-futures-lab/internal/domain"
)

// Year bounds for sane calendar entries.
const (
	MinYear = 1900
	MaxYear = 2100
)

// ParseError reports a calendar entry or source row that failed validation.
// A ParseError is fatal to the load: a calendar with a bad entry is never
// constructed.
type ParseError struct {
	Line   int    // 1-based source row, 0 when not row-addressable
	Entry  string // contract symbol or raw field that failed, may be empty
	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Entry != "":
		return fmt.Sprintf("calendar parse error at row %d (%s): %s", e.Line, e.Entry, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("calendar parse error at row %d: %s", e.Line, e.Reason)
	case e.Entry != "":
		return fmt.Sprintf("calendar parse error (%s): %s", e.Entry, e.Reason)
	default:
		return fmt.Sprintf("calendar parse error: %s", e.Reason)
	}
}

// entryKey identifies an entry by its unique (root, month, year) tuple.
type entryKey struct {
	root  string
	month domain.MonthCode
	year  int
}

// Calendar is an immutable, totally ordered collection of contract entries.
// Ordering is by expiry date ascending with (year, month) as tie-break.
// All lookups are case-insensitive and whitespace-trimmed on root.
type Calendar struct {
	entries []domain.CalendarEntry // sorted
	byKey   map[entryKey]int       // index into entries
	byRoot  map[string][]int       // sorted indexes per root
	roots   []string               // sorted distinct roots
}

// New validates and orders the given entries into a Calendar.
// It fails with *ParseError when an entry has an empty or invalid field,
// a year outside [MinYear, MaxYear], or duplicates another entry's
// (root, month, year) tuple.
func New(entries []domain.CalendarEntry) (*Calendar, error) {
	c := &Calendar{
		entries: make([]domain.CalendarEntry, 0, len(entries)),
		byKey:   make(map[entryKey]int, len(entries)),
		byRoot:  make(map[string][]int),
	}

	for _, e := range entries {
		e.Root = normalizeRoot(e.Root)
		if e.Root == "" {
			return nil, &ParseError{Reason: "missing root symbol"}
		}
		if !e.Month.Valid() {
			return nil, &ParseError{Entry: e.Root, Reason: fmt.Sprintf("invalid month code %q", string(e.Month))}
		}
		if e.Year < MinYear || e.Year > MaxYear {
			return nil, &ParseError{Entry: e.Symbol(), Reason: fmt.Sprintf("year %d outside %d-%d", e.Year, MinYear, MaxYear)}
		}
		if e.Expiry.IsZero() {
			return nil, &ParseError{Entry: e.Symbol(), Reason: "missing expiry date"}
		}
		key := entryKey{e.Root, e.Month, e.Year}
		if _, exists := c.byKey[key]; exists {
			return nil, &ParseError{Entry: e.Symbol(), Reason: "duplicate contract"}
		}
		c.byKey[key] = -1 // fixed up after sorting
		c.entries = append(c.entries, e)
	}

	sort.Slice(c.entries, func(i, j int) bool {
		return domain.CompareEntries(c.entries[i], c.entries[j]) < 0
	})

	for i, e := range c.entries {
		c.byKey[entryKey{e.Root, e.Month, e.Year}] = i
		c.byRoot[e.Root] = append(c.byRoot[e.Root], i)
	}
	for root := range c.byRoot {
		c.roots = append(c.roots, root)
	}
	sort.Strings(c.roots)

	return c, nil
}

// Len returns the number of entries.
func (c *Calendar) Len() int {
	return len(c.entries)
}

// Roots returns the distinct root symbols, sorted.
func (c *Calendar) Roots() []string {
	out := make([]string, len(c.roots))
	copy(out, c.roots)
	return out
}

// Entries returns all entries in calendar order.
func (c *Calendar) Entries() []domain.CalendarEntry {
	out := make([]domain.CalendarEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// EntriesFor returns the entries for a root, ordered by expiry ascending.
func (c *Calendar) EntriesFor(root string) []domain.CalendarEntry {
	idxs := c.byRoot[normalizeRoot(root)]
	out := make([]domain.CalendarEntry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.entries[i])
	}
	return out
}

// EntriesForMonth returns the entries for a root restricted to one delivery
// month, ordered by expiry ascending.
func (c *Calendar) EntriesForMonth(root string, month domain.MonthCode) []domain.CalendarEntry {
	var out []domain.CalendarEntry
	for _, i := range c.byRoot[normalizeRoot(root)] {
		if c.entries[i].Month == month {
			out = append(out, c.entries[i])
		}
	}
	return out
}

// Lookup finds the entry with the exact (root, month, year) identity.
func (c *Calendar) Lookup(root string, month domain.MonthCode, year int) (domain.CalendarEntry, bool) {
	i, ok := c.byKey[entryKey{normalizeRoot(root), month, year}]
	if !ok {
		return domain.CalendarEntry{}, false
	}
	return c.entries[i], true
}

// normalizeRoot upper-cases and trims a root symbol for lookup.
func normalizeRoot(root string) string {
	return strings.ToUpper(strings.TrimSpace(root))
}
