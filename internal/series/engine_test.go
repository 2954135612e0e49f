package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage/memory"
)

var (
	tfmF25 = domain.ResolvedContract{Root: "TFM", Month: domain.MonthF, Year: 2025}
	tfmJ25 = domain.ResolvedContract{Root: "TFM", Month: domain.MonthJ, Year: 2025}
)

func barAt(c domain.ResolvedContract, day time.Time, halfHour int, close float64) *domain.PriceBar {
	ts := day.UnixMilli() + int64(halfHour)*domain.BarIntervalMs
	return &domain.PriceBar{
		Root: c.Root, Month: c.Month, Year: c.Year, TimestampMs: ts,
		Open: close - 0.1, High: close + 0.2, Low: close - 0.2, Close: close, Volume: 5,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEngine(t *testing.T, opts Options, bars ...*domain.PriceBar) *Engine {
	t.Helper()
	store := memory.NewPriceBarStore()
	if err := store.InsertBulk(context.Background(), bars); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	return NewEngine(store, opts, zerolog.Nop())
}

func TestFetchSeriesBackwardCalendarWindow(t *testing.T) {
	e := newEngine(t, Options{},
		barAt(tfmF25, day(2025, 1, 8), 20, 30.1),
		barAt(tfmF25, day(2025, 1, 9), 20, 30.2),
		barAt(tfmF25, day(2025, 1, 10), 20, 30.3),
		barAt(tfmF25, day(2025, 1, 11), 20, 30.4),
	)

	bars, err := e.FetchSeries(context.Background(), tfmF25, day(2025, 1, 10), 2)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	// Window is [Jan 9, Jan 10] inclusive; Jan 8 and Jan 11 fall outside.
	if bars[0].Close != 30.2 || bars[1].Close != 30.3 {
		t.Errorf("unexpected closes %v, %v", bars[0].Close, bars[1].Close)
	}
}

func TestFetchSeriesForwardCalendarWindow(t *testing.T) {
	e := newEngine(t, Options{Direction: Forward},
		barAt(tfmF25, day(2025, 1, 9), 20, 30.2),
		barAt(tfmF25, day(2025, 1, 10), 20, 30.3),
		barAt(tfmF25, day(2025, 1, 11), 20, 30.4),
		barAt(tfmF25, day(2025, 1, 12), 20, 30.5),
	)

	bars, err := e.FetchSeries(context.Background(), tfmF25, day(2025, 1, 10), 2)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 30.3 || bars[1].Close != 30.4 {
		t.Errorf("unexpected closes %v, %v", bars[0].Close, bars[1].Close)
	}
}

func TestFetchSeriesTradingDaysSkipsGaps(t *testing.T) {
	// Jan 10 is a gap date with no bars; trading-day counting reaches past
	// it to Jan 9.
	e := newEngine(t, Options{DayCount: TradingDays},
		barAt(tfmF25, day(2025, 1, 8), 20, 30.1),
		barAt(tfmF25, day(2025, 1, 9), 20, 30.2),
		barAt(tfmF25, day(2025, 1, 11), 20, 30.4),
	)

	bars, err := e.FetchSeries(context.Background(), tfmF25, day(2025, 1, 11), 2)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 30.2 || bars[1].Close != 30.4 {
		t.Errorf("unexpected closes %v, %v", bars[0].Close, bars[1].Close)
	}
}

func TestFetchSeriesEmptyIsNotAnError(t *testing.T) {
	e := newEngine(t, Options{})
	bars, err := e.FetchSeries(context.Background(), tfmF25, day(2025, 1, 10), 5)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("expected empty series, got %d bars", len(bars))
	}
}

func TestFetchSeriesInvalidWindow(t *testing.T) {
	e := newEngine(t, Options{})
	_, err := e.FetchSeries(context.Background(), tfmF25, day(2025, 1, 10), 0)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestFetchSeriesMultipleBarsPerDayOrdered(t *testing.T) {
	e := newEngine(t, Options{},
		barAt(tfmF25, day(2025, 1, 10), 22, 30.5),
		barAt(tfmF25, day(2025, 1, 10), 20, 30.3),
		barAt(tfmF25, day(2025, 1, 10), 21, 30.4),
	)

	bars, err := e.FetchSeries(context.Background(), tfmF25, day(2025, 1, 10), 1)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].TimestampMs <= bars[i-1].TimestampMs {
			t.Errorf("bars out of order at %d", i)
		}
	}
}

func TestFetchSpreadSeriesInnerJoin(t *testing.T) {
	d := day(2025, 1, 10)
	e := newEngine(t, Options{},
		// Leg 1 has bars at slots 20, 21, 22; leg 2 at 21, 22, 23.
		barAt(tfmF25, d, 20, 30.0),
		barAt(tfmF25, d, 21, 30.5),
		barAt(tfmF25, d, 22, 31.0),
		barAt(tfmJ25, d, 21, 29.0),
		barAt(tfmJ25, d, 22, 29.2),
		barAt(tfmJ25, d, 23, 29.4),
	)

	spread, err := e.FetchSpreadSeries(context.Background(), tfmF25, tfmJ25, d, 1)
	if err != nil {
		t.Fatalf("FetchSpreadSeries: %v", err)
	}
	// Only slots 21 and 22 exist in both legs.
	if len(spread) != 2 {
		t.Fatalf("expected 2 spread bars, got %d", len(spread))
	}

	first := spread[0]
	if got, want := first.Close, 30.5-29.0; got != want {
		t.Errorf("spread close = %v, want %v", got, want)
	}
	if first.Leg1 == nil || first.Leg2 == nil {
		t.Fatal("spread bars must carry both leg bars")
	}
	if first.Leg1.TimestampMs != first.TimestampMs || first.Leg2.TimestampMs != first.TimestampMs {
		t.Error("leg timestamps must match the joined timestamp")
	}
}

func TestFetchSpreadSeriesLengthBound(t *testing.T) {
	d := day(2025, 1, 10)
	e := newEngine(t, Options{},
		barAt(tfmF25, d, 20, 30.0),
		barAt(tfmF25, d, 21, 30.5),
		barAt(tfmJ25, d, 21, 29.0),
	)

	leg1, err := e.FetchSeries(context.Background(), tfmF25, d, 1)
	if err != nil {
		t.Fatalf("FetchSeries leg1: %v", err)
	}
	leg2, err := e.FetchSeries(context.Background(), tfmJ25, d, 1)
	if err != nil {
		t.Fatalf("FetchSeries leg2: %v", err)
	}
	spread, err := e.FetchSpreadSeries(context.Background(), tfmF25, tfmJ25, d, 1)
	if err != nil {
		t.Fatalf("FetchSpreadSeries: %v", err)
	}

	min := len(leg1)
	if len(leg2) < min {
		min = len(leg2)
	}
	if len(spread) > min {
		t.Errorf("spread length %d exceeds min leg length %d", len(spread), min)
	}

	inLeg := func(bars []*domain.PriceBar, ts int64) bool {
		for _, b := range bars {
			if b.TimestampMs == ts {
				return true
			}
		}
		return false
	}
	for _, sb := range spread {
		if !inLeg(leg1, sb.TimestampMs) || !inLeg(leg2, sb.TimestampMs) {
			t.Errorf("spread timestamp %d missing from a leg", sb.TimestampMs)
		}
	}
}

func TestFetchSpreadSeriesOneEmptyLeg(t *testing.T) {
	d := day(2025, 1, 10)
	e := newEngine(t, Options{},
		barAt(tfmF25, d, 20, 30.0),
	)

	spread, err := e.FetchSpreadSeries(context.Background(), tfmF25, tfmJ25, d, 1)
	if err != nil {
		t.Fatalf("FetchSpreadSeries: %v", err)
	}
	if len(spread) != 0 {
		t.Errorf("expected empty spread series, got %d bars", len(spread))
	}
}
