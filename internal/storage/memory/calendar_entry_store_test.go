package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

func calEntry(root string, mc domain.MonthCode, year int, expiry time.Time) *domain.CalendarEntry {
	return &domain.CalendarEntry{Root: root, Month: mc, Year: year, Expiry: expiry}
}

func TestCalendarEntryStoreInsertAndGetAll(t *testing.T) {
	store := NewCalendarEntryStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CalendarEntry{
		calEntry("TFM", domain.MonthJ, 2025, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)),
		calEntry("TFM", domain.MonthF, 2025, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)),
		calEntry("BRN", domain.MonthF, 2025, time.Date(2024, 11, 29, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Expiry.Before(all[i-1].Expiry) {
			t.Errorf("entries not ordered by expiry at %d", i)
		}
	}
}

func TestCalendarEntryStoreGetByRoot(t *testing.T) {
	store := NewCalendarEntryStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CalendarEntry{
		calEntry("TFM", domain.MonthF, 2025, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)),
		calEntry("BRN", domain.MonthF, 2025, time.Date(2024, 11, 29, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	tfm, err := store.GetByRoot(ctx, "tfm")
	if err != nil {
		t.Fatalf("GetByRoot: %v", err)
	}
	if len(tfm) != 1 || tfm[0].Root != "TFM" {
		t.Errorf("unexpected result %+v", tfm)
	}

	none, err := store.GetByRoot(ctx, "XYZ")
	if err != nil {
		t.Fatalf("GetByRoot: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no entries for unknown root, got %d", len(none))
	}
}

func TestCalendarEntryStoreDuplicate(t *testing.T) {
	store := NewCalendarEntryStore()
	ctx := context.Background()

	e := calEntry("TFM", domain.MonthF, 2025, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	if err := store.InsertBulk(ctx, []*domain.CalendarEntry{e}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.CalendarEntry{e})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate fails the whole batch.
	other := calEntry("TFM", domain.MonthM, 2025, time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC))
	err = store.InsertBulk(ctx, []*domain.CalendarEntry{other, other})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if all, _ := store.GetAll(ctx); len(all) != 1 {
		t.Errorf("failed batch must not be partially applied, got %d entries", len(all))
	}
}

func TestCalendarEntryStoreInvalidInput(t *testing.T) {
	store := NewCalendarEntryStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CalendarEntry{
		calEntry("", domain.MonthF, 2025, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty root, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.CalendarEntry{
		calEntry("TFM", domain.MonthCode("A"), 2025, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad month code, got %v", err)
	}
}

func TestCalendarEntryStoreReturnsCopies(t *testing.T) {
	store := NewCalendarEntryStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.CalendarEntry{
		calEntry("TFM", domain.MonthF, 2025, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)),
	}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	all, _ := store.GetAll(ctx)
	all[0].Root = "MUTATED"

	again, _ := store.GetAll(ctx)
	if again[0].Root == "MUTATED" {
		t.Error("GetAll returned shared data")
	}
}
