package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

// CalendarEntryStore implements storage.CalendarEntryStore using PostgreSQL.
type CalendarEntryStore struct {
	pool *Pool
}

// NewCalendarEntryStore creates a new CalendarEntryStore.
func NewCalendarEntryStore(pool *Pool) *CalendarEntryStore {
	return &CalendarEntryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CalendarEntryStore = (*CalendarEntryStore)(nil)

// InsertBulk adds multiple entries atomically. Fails entire batch on any duplicate.
func (s *CalendarEntryStore) InsertBulk(ctx context.Context, entries []*domain.CalendarEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO calendar_entries (root, month_code, year, expiry_date)
		VALUES ($1, $2, $3, $4)
	`

	for _, e := range entries {
		if e == nil || e.Root == "" || !e.Month.Valid() {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			strings.ToUpper(e.Root),
			string(e.Month),
			e.Year,
			e.Expiry,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert calendar entry in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetAll retrieves every entry, ordered by expiry ASC.
func (s *CalendarEntryStore) GetAll(ctx context.Context) ([]*domain.CalendarEntry, error) {
	query := `
		SELECT root, month_code, year, expiry_date
		FROM calendar_entries
		ORDER BY expiry_date ASC, year ASC, month_code ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all calendar entries: %w", err)
	}
	defer rows.Close()

	return scanCalendarEntries(rows)
}

// GetByRoot retrieves all entries for a root, ordered by expiry ASC.
func (s *CalendarEntryStore) GetByRoot(ctx context.Context, root string) ([]*domain.CalendarEntry, error) {
	query := `
		SELECT root, month_code, year, expiry_date
		FROM calendar_entries
		WHERE root = $1
		ORDER BY expiry_date ASC, year ASC, month_code ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.ToUpper(root))
	if err != nil {
		return nil, fmt.Errorf("get calendar entries by root: %w", err)
	}
	defer rows.Close()

	return scanCalendarEntries(rows)
}

// scanCalendarEntries reads all rows into calendar entries.
func scanCalendarEntries(rows pgx.Rows) ([]*domain.CalendarEntry, error) {
	var result []*domain.CalendarEntry
	for rows.Next() {
		var e domain.CalendarEntry
		var monthCode string
		if err := rows.Scan(&e.Root, &monthCode, &e.Year, &e.Expiry); err != nil {
			return nil, fmt.Errorf("scan calendar entry: %w", err)
		}
		e.Month = domain.MonthCode(monthCode)
		e.Expiry = e.Expiry.UTC()
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar entries: %w", err)
	}
	return result, nil
}
