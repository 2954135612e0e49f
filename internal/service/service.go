// Package service is the facade the transport layers call: it wires the
// parser, resolver and series engine together over an atomically swappable
// calendar snapshot. In-flight queries always observe one consistent
// calendar; refreshes build a new snapshot and swap the pointer.
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"endex-futures-lab/internal/calendar"
	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/observability"
	"endex-futures-lab/internal/reference"
	"endex-futures-lab/internal/resolver"
	"endex-futures-lab/internal/series"
	"endex-futures-lab/internal/storage"
)

// Reference kind mismatches between the single-contract and spread APIs.
var (
	// ErrSpreadReference is returned by GetSeries when the reference is a
	// spread; spreads have two legs and go through GetSpreadSeries.
	ErrSpreadReference = errors.New("spread reference: use the spread series API")

	// ErrNotSpreadReference is returned by GetSpreadSeries for a
	// single-contract reference.
	ErrNotSpreadReference = errors.New("not a spread reference")
)

// calendarSnapshot is one immutable calendar generation.
type calendarSnapshot struct {
	cal        *calendar.Calendar
	version    int64
	loadedAtMs int64
}

// Status describes the active calendar snapshot.
type Status struct {
	Version    int64    `json:"version"`
	Entries    int      `json:"entries"`
	Roots      []string `json:"roots"`
	LoadedAtMs int64    `json:"loaded_at_ms"`
}

// Service answers reference resolution and series queries. Safe for
// concurrent use.
type Service struct {
	snap      atomic.Pointer[calendarSnapshot]
	engine    *series.Engine
	logger    zerolog.Logger
	onRefresh atomic.Pointer[func(version int64)]
}

// New creates a Service over an initial calendar and a bar store.
func New(cal *calendar.Calendar, bars storage.PriceBarStore, opts series.Options, logger zerolog.Logger) *Service {
	s := &Service{
		engine: series.NewEngine(bars, opts, logger),
		logger: logger.With().Str("component", "service").Logger(),
	}
	s.snap.Store(&calendarSnapshot{
		cal:        cal,
		version:    1,
		loadedAtMs: time.Now().UnixMilli(),
	})
	observability.RecordSnapshotRefresh("ok", cal.Len())
	observability.DefaultMetrics.LastRefreshUnixTime.SetToCurrentTime()
	return s
}

// Calendar returns the active calendar snapshot.
func (s *Service) Calendar() *calendar.Calendar {
	return s.snap.Load().cal
}

// Status reports the active snapshot's version and contents.
func (s *Service) Status() Status {
	snap := s.snap.Load()
	return Status{
		Version:    snap.version,
		Entries:    snap.cal.Len(),
		Roots:      snap.cal.Roots(),
		LoadedAtMs: snap.loadedAtMs,
	}
}

// OnRefresh registers a hook invoked after each successful calendar swap,
// with the new snapshot version. Used by the websocket hub to notify
// connected dashboards.
func (s *Service) OnRefresh(fn func(version int64)) {
	s.onRefresh.Store(&fn)
}

// Refresh builds a new calendar from entries and swaps it in atomically.
// A failed build leaves the active snapshot untouched.
func (s *Service) Refresh(entries []domain.CalendarEntry) error {
	cal, err := calendar.New(entries)
	if err != nil {
		observability.RecordSnapshotRefresh("error", 0)
		return err
	}

	old := s.snap.Load()
	next := &calendarSnapshot{
		cal:        cal,
		version:    old.version + 1,
		loadedAtMs: time.Now().UnixMilli(),
	}
	s.snap.Store(next)

	observability.RecordSnapshotRefresh("ok", cal.Len())
	observability.DefaultMetrics.LastRefreshUnixTime.SetToCurrentTime()
	s.logger.Info().
		Int64("version", next.version).
		Int("entries", cal.Len()).
		Msg("calendar snapshot refreshed")

	if fn := s.onRefresh.Load(); fn != nil {
		(*fn)(next.version)
	}
	return nil
}

// ResolveReference parses and resolves a free-text reference. Returns the
// typed reference alongside the resolved leg(s): one contract, or two for a
// spread (front first).
func (s *Service) ResolveReference(text string, referenceDate time.Time) (domain.ContractReference, []domain.ResolvedContract, error) {
	cal := s.Calendar()

	ref, err := reference.Parse(text, referenceDate, cal.Roots())
	if err != nil {
		observability.RecordParseError()
		return domain.ContractReference{}, nil, err
	}

	legs, err := resolver.Resolve(ref, cal, referenceDate)
	if err != nil {
		observability.RecordResolution(string(ref.Kind), "not_found")
		return ref, nil, err
	}

	observability.RecordResolution(string(ref.Kind), "ok")
	return ref, legs, nil
}

// GetSeries resolves a single-contract reference and fetches its bars over
// a numDays window. Spread references are rejected with ErrSpreadReference.
func (s *Service) GetSeries(ctx context.Context, text string, referenceDate time.Time, numDays int) ([]*domain.PriceBar, error) {
	ref, legs, err := s.ResolveReference(text, referenceDate)
	if err != nil {
		return nil, err
	}
	if ref.Kind == domain.ReferenceSpread {
		return nil, ErrSpreadReference
	}
	return s.GetSeriesForContract(ctx, legs[0], referenceDate, numDays)
}

// GetSeriesForContract fetches bars for an already resolved contract.
func (s *Service) GetSeriesForContract(ctx context.Context, contract domain.ResolvedContract, referenceDate time.Time, numDays int) ([]*domain.PriceBar, error) {
	start := time.Now()
	bars, err := s.engine.FetchSeries(ctx, contract, referenceDate, numDays)
	if err != nil {
		return nil, err
	}
	observability.RecordSeriesQuery("single", time.Since(start).Seconds(), len(bars))
	return bars, nil
}

// GetSpreadSeries resolves a spread reference and fetches its derived
// series. Single-contract references are rejected with ErrNotSpreadReference.
func (s *Service) GetSpreadSeries(ctx context.Context, text string, referenceDate time.Time, numDays int) ([]*domain.SpreadBar, error) {
	ref, legs, err := s.ResolveReference(text, referenceDate)
	if err != nil {
		return nil, err
	}
	if ref.Kind != domain.ReferenceSpread {
		return nil, ErrNotSpreadReference
	}
	return s.GetSpreadSeriesForLegs(ctx, legs[0], legs[1], referenceDate, numDays)
}

// GetSpreadSeriesForLegs fetches the derived series for two already
// resolved legs.
func (s *Service) GetSpreadSeriesForLegs(ctx context.Context, leg1, leg2 domain.ResolvedContract, referenceDate time.Time, numDays int) ([]*domain.SpreadBar, error) {
	start := time.Now()
	spread, err := s.engine.FetchSpreadSeries(ctx, leg1, leg2, referenceDate, numDays)
	if err != nil {
		return nil, err
	}
	observability.RecordSeriesQuery("spread", time.Since(start).Seconds(), len(spread))
	return spread, nil
}
