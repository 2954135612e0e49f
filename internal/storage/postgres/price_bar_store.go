package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using PostgreSQL.
type PriceBarStore struct {
	pool *Pool
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(pool *Pool) *PriceBarStore {
	return &PriceBarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

// InsertBulk adds multiple bars atomically. Fails entire batch on any duplicate.
func (s *PriceBarStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO price_bars (symbol, root, month_code, year, timestamp_ms, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, b := range bars {
		if b == nil || b.Root == "" || !b.Month.Valid() {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			b.Symbol(),
			strings.ToUpper(b.Root),
			string(b.Month),
			b.Year,
			b.TimestampMs,
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert price bar in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all bars for a contract symbol, ordered by timestamp ASC.
func (s *PriceBarStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error) {
	query := `
		SELECT root, month_code, year, timestamp_ms, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get price bars by symbol: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// GetByTimeRange retrieves bars for a contract symbol within [start, end] (inclusive).
func (s *PriceBarStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PriceBar, error) {
	query := `
		SELECT root, month_code, year, timestamp_ms, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get price bars by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// scanPriceBars reads all rows into price bars.
func scanPriceBars(rows pgx.Rows) ([]*domain.PriceBar, error) {
	var result []*domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		var monthCode string
		if err := rows.Scan(&b.Root, &monthCode, &b.Year, &b.TimestampMs,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		b.Month = domain.MonthCode(monthCode)
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price bars: %w", err)
	}
	return result, nil
}
