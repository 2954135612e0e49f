package memory

import (
	"context"
	"errors"
	"testing"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

func bar(root string, mc domain.MonthCode, year int, ts int64, close float64) *domain.PriceBar {
	return &domain.PriceBar{
		Root: root, Month: mc, Year: year, TimestampMs: ts,
		Open: close, High: close, Low: close, Close: close, Volume: 10,
	}
}

func TestPriceBarStoreInsertAndGetBySymbol(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceBar{
		bar("TFM", domain.MonthF, 2025, 2000, 30.5),
		bar("TFM", domain.MonthF, 2025, 1000, 30.1),
		bar("TFM", domain.MonthJ, 2025, 1000, 31.0),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	bars, err := store.GetBySymbol(ctx, `TFM\F25`)
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].TimestampMs != 1000 || bars[1].TimestampMs != 2000 {
		t.Errorf("bars not ordered by timestamp: %d, %d", bars[0].TimestampMs, bars[1].TimestampMs)
	}
}

func TestPriceBarStoreGetByTimeRange(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceBar{
		bar("TFM", domain.MonthF, 2025, 1000, 30.1),
		bar("TFM", domain.MonthF, 2025, 2000, 30.2),
		bar("TFM", domain.MonthF, 2025, 3000, 30.3),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	// Range bounds are inclusive on both ends.
	bars, err := store.GetByTimeRange(ctx, `TFM\F25`, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	empty, err := store.GetByTimeRange(ctx, `TFM\F25`, 4000, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty result, got %d bars", len(empty))
	}
}

func TestPriceBarStoreDuplicate(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	b := bar("TFM", domain.MonthF, 2025, 1000, 30.1)
	if err := store.InsertBulk(ctx, []*domain.PriceBar{b}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.PriceBar{b})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.PriceBar{
		bar("TFM", domain.MonthF, 2025, 2000, 30.2),
		bar("TFM", domain.MonthF, 2025, 2000, 30.3),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}

func TestPriceBarStoreInvalidInput(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceBar{
		bar("", domain.MonthF, 2025, 1000, 30.1),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty root, got %v", err)
	}
}
