package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

func testBar(root string, mc domain.MonthCode, year int, ts int64, close float64) *domain.PriceBar {
	return &domain.PriceBar{
		Root: root, Month: mc, Year: year, TimestampMs: ts,
		Open: close - 0.1, High: close + 0.2, Low: close - 0.2, Close: close, Volume: 25,
	}
}

func TestPriceBarStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceBarStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	err = store.InsertBulk(ctx, []*domain.PriceBar{
		testBar("TFM", domain.MonthF, 2025, 1000, 30.1),
	})
	require.NoError(t, err)

	got, err := store.GetBySymbol(ctx, `TFM\F25`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TFM", got[0].Root)
	assert.Equal(t, domain.MonthF, got[0].Month)
	assert.Equal(t, 2025, got[0].Year)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, 30.1, got[0].Close)
	assert.Equal(t, 25.0, got[0].Volume)
}

func TestPriceBarStore_InsertBulk_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceBarStore(conn)
	ctx := context.Background()

	b := testBar("TFM", domain.MonthF, 2025, 1000, 30.1)
	require.NoError(t, store.InsertBulk(ctx, []*domain.PriceBar{b}))

	// Duplicate against existing rows
	err := store.InsertBulk(ctx, []*domain.PriceBar{b})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Intra-batch duplicate
	err = store.InsertBulk(ctx, []*domain.PriceBar{
		testBar("TFM", domain.MonthF, 2025, 2000, 30.2),
		testBar("TFM", domain.MonthF, 2025, 2000, 30.3),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceBarStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PriceBar{
		testBar("TFM", domain.MonthF, 2025, 1000, 30.1),
		testBar("TFM", domain.MonthF, 2025, 2000, 30.2),
		testBar("TFM", domain.MonthF, 2025, 3000, 30.3),
		testBar("TFM", domain.MonthJ, 2025, 2000, 31.0),
	}))

	got, err := store.GetByTimeRange(ctx, `TFM\F25`, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, int64(2000), got[1].TimestampMs)

	empty, err := store.GetByTimeRange(ctx, `TFM\F25`, 4000, 5000)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
