// Package series retrieves time-aligned intraday bars for resolved
// contracts and derives spread series from two legs.
package series

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/storage"
)

// ErrInvalidWindow is returned when a query window has no days in it.
var ErrInvalidWindow = errors.New("series window must cover at least one day")

// Direction selects which side of the reference date a window covers.
type Direction string

// Window directions. Backward is the default: the numDays most recent days
// up to and including the reference date.
const (
	Backward Direction = "backward"
	Forward  Direction = "forward"
)

// DayCount selects how window days are counted.
type DayCount string

// Day-count conventions. CalendarDays spans a fixed date range regardless
// of data gaps; TradingDays counts only dates that actually have bars.
const (
	CalendarDays DayCount = "calendar"
	TradingDays  DayCount = "trading"
)

// Options configures window semantics for an Engine.
type Options struct {
	Direction Direction
	DayCount  DayCount
}

func (o Options) withDefaults() Options {
	if o.Direction == "" {
		o.Direction = Backward
	}
	if o.DayCount == "" {
		o.DayCount = CalendarDays
	}
	return o
}

// Engine answers windowed bar queries against a PriceBarStore. Queries are
// pure reads; an Engine is safe for concurrent use.
type Engine struct {
	bars   storage.PriceBarStore
	opts   Options
	logger zerolog.Logger
}

// NewEngine creates a query engine over the given bar store.
func NewEngine(bars storage.PriceBarStore, opts Options, logger zerolog.Logger) *Engine {
	return &Engine{
		bars:   bars,
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "series").Logger(),
	}
}

// FetchSeries returns the bars for one contract over a numDays window
// anchored at referenceDate, ordered by timestamp ASC. A contract with no
// bars in the window yields an empty series, not an error.
func (e *Engine) FetchSeries(ctx context.Context, contract domain.ResolvedContract, referenceDate time.Time, numDays int) ([]*domain.PriceBar, error) {
	if numDays <= 0 {
		return nil, ErrInvalidWindow
	}

	symbol := contract.Symbol()
	refDay := truncateToDay(referenceDate)

	var (
		bars []*domain.PriceBar
		err  error
	)
	switch e.opts.DayCount {
	case TradingDays:
		bars, err = e.fetchTradingDays(ctx, symbol, refDay, numDays)
	default:
		bars, err = e.fetchCalendarDays(ctx, symbol, refDay, numDays)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("symbol", symbol).
		Time("reference_date", refDay).
		Int("num_days", numDays).
		Int("bars", len(bars)).
		Msg("fetched series")

	return bars, nil
}

// fetchCalendarDays spans a fixed date range of numDays calendar days and
// returns whatever bars fall inside it.
func (e *Engine) fetchCalendarDays(ctx context.Context, symbol string, refDay time.Time, numDays int) ([]*domain.PriceBar, error) {
	var start, end time.Time
	if e.opts.Direction == Forward {
		start = refDay
		end = refDay.AddDate(0, 0, numDays-1)
	} else {
		start = refDay.AddDate(0, 0, -(numDays - 1))
		end = refDay
	}

	startMs := start.UnixMilli()
	endMs := end.AddDate(0, 0, 1).UnixMilli() - 1 // end of day, inclusive

	return e.bars.GetByTimeRange(ctx, symbol, startMs, endMs)
}

// fetchTradingDays keeps the numDays nearest dates that actually have bars,
// skipping gap dates entirely.
func (e *Engine) fetchTradingDays(ctx context.Context, symbol string, refDay time.Time, numDays int) ([]*domain.PriceBar, error) {
	all, err := e.bars.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Distinct dates on the requested side of the reference date, in
	// chronological order. Bars are already sorted by timestamp.
	var dates []time.Time
	seen := make(map[time.Time]struct{})
	for _, b := range all {
		d := b.Date()
		if e.opts.Direction == Forward && d.Before(refDay) {
			continue
		}
		if e.opts.Direction != Forward && d.After(refDay) {
			continue
		}
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}

	if e.opts.Direction == Forward {
		if len(dates) > numDays {
			dates = dates[:numDays]
		}
	} else {
		if len(dates) > numDays {
			dates = dates[len(dates)-numDays:]
		}
	}

	keep := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		keep[d] = struct{}{}
	}

	var result []*domain.PriceBar
	for _, b := range all {
		if _, ok := keep[b.Date()]; ok {
			result = append(result, b)
		}
	}
	return result, nil
}

// FetchSpreadSeries fetches both legs independently and inner-joins them by
// exact timestamp. Timestamps present in only one leg are dropped: a spread
// value is undefined without both legs, so no fill is applied.
func (e *Engine) FetchSpreadSeries(ctx context.Context, leg1, leg2 domain.ResolvedContract, referenceDate time.Time, numDays int) ([]*domain.SpreadBar, error) {
	bars1, err := e.FetchSeries(ctx, leg1, referenceDate, numDays)
	if err != nil {
		return nil, err
	}
	bars2, err := e.FetchSeries(ctx, leg2, referenceDate, numDays)
	if err != nil {
		return nil, err
	}

	var result []*domain.SpreadBar
	i, j := 0, 0
	for i < len(bars1) && j < len(bars2) {
		switch {
		case bars1[i].TimestampMs < bars2[j].TimestampMs:
			i++
		case bars1[i].TimestampMs > bars2[j].TimestampMs:
			j++
		default:
			b1, b2 := bars1[i], bars2[j]
			result = append(result, &domain.SpreadBar{
				TimestampMs: b1.TimestampMs,
				Open:        b1.Open - b2.Open,
				High:        b1.High - b2.High,
				Low:         b1.Low - b2.Low,
				Close:       b1.Close - b2.Close,
				Leg1:        b1,
				Leg2:        b2,
			})
			i++
			j++
		}
	}

	e.logger.Debug().
		Str("leg1", leg1.Symbol()).
		Str("leg2", leg2.Symbol()).
		Int("joined", len(result)).
		Msg("fetched spread series")

	return result, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
