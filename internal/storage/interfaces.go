package storage

import (
	"context"

	"endex-futures-lab/internal/domain"
)

// CalendarEntryStore provides access to calendar_entries storage.
type CalendarEntryStore interface {
	// InsertBulk adds multiple entries atomically. Fails entire batch on any
	// duplicate (root, month_code, year).
	InsertBulk(ctx context.Context, entries []*domain.CalendarEntry) error

	// GetAll retrieves every entry, ordered by expiry ASC.
	GetAll(ctx context.Context) ([]*domain.CalendarEntry, error)

	// GetByRoot retrieves all entries for a root, ordered by expiry ASC.
	GetByRoot(ctx context.Context, root string) ([]*domain.CalendarEntry, error)
}

// PriceBarStore provides access to price_bars storage.
type PriceBarStore interface {
	// InsertBulk adds multiple bars atomically. Fails entire batch on any
	// duplicate (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetBySymbol retrieves all bars for a contract symbol, ordered by
	// timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error)

	// GetByTimeRange retrieves bars for a contract symbol within
	// [start, end] milliseconds (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PriceBar, error)
}
