// Package main is a one-shot resolver CLI: it loads the calendar (and
// optionally intraday prices), resolves a single contract reference as of a
// date, and prints the result as JSON. Useful for checking what a generic
// or spread reference points at without running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"endex-futures-lab/internal/calendar"
	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/ingest"
	"endex-futures-lab/internal/series"
	"endex-futures-lab/internal/service"
	"endex-futures-lab/internal/snapshot"
	"endex-futures-lab/internal/storage/memory"
)

type output struct {
	Reference domain.ContractReference  `json:"reference"`
	Contracts []domain.ResolvedContract `json:"contracts"`
	Bars      []*domain.PriceBar        `json:"bars,omitempty"`
	Spread    []*domain.SpreadBar       `json:"spread_bars,omitempty"`
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	var (
		ref          = flag.String("ref", "", "Contract reference to resolve (required)")
		dateStr      = flag.String("date", "", "Reference date YYYY-MM-DD (default today UTC)")
		days         = flag.Int("days", 0, "Series window in days (0 skips the series query)")
		calendarCSV  = flag.String("calendar-csv", os.Getenv("CALENDAR_CSV"), "Expiry calendar CSV path")
		intradayCSV  = flag.String("intraday-csv", os.Getenv("INTRADAY_CSV"), "Intraday price CSV path")
		snapshotPath = flag.String("snapshot", os.Getenv("SNAPSHOT_PATH"), "Snapshot cache path (used instead of CSVs when current)")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if *ref == "" {
		logger.Fatal().Msg("--ref is required")
	}

	refDate := time.Now().UTC()
	if *dateStr != "" {
		var err error
		refDate, err = time.ParseInLocation("2006-01-02", *dateStr, time.UTC)
		if err != nil {
			logger.Fatal().Str("date", *dateStr).Msg("--date must be YYYY-MM-DD")
		}
	}

	entries, bars, err := loadData(*snapshotPath, *calendarCSV, *intradayCSV)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load data")
	}

	calEntries := make([]domain.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		calEntries = append(calEntries, *e)
	}
	cal, err := calendar.New(calEntries)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build calendar")
	}

	ctx := context.Background()
	store := memory.NewPriceBarStore()
	if err := store.InsertBulk(ctx, bars); err != nil {
		logger.Fatal().Err(err).Msg("failed to load bars")
	}
	svc := service.New(cal, store, series.Options{}, zerolog.Nop())

	parsed, legs, err := svc.ResolveReference(*ref, refDate)
	if err != nil {
		logger.Fatal().Err(err).Str("ref", *ref).Msg("resolution failed")
	}

	out := output{Reference: parsed, Contracts: legs}
	if *days > 0 {
		if parsed.Kind == domain.ReferenceSpread {
			out.Spread, err = svc.GetSpreadSeriesForLegs(ctx, legs[0], legs[1], refDate, *days)
		} else {
			out.Bars, err = svc.GetSeriesForContract(ctx, legs[0], refDate, *days)
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("series query failed")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal().Err(err).Msg("encode output")
	}
}

func loadData(snapshotPath, calendarCSV, intradayCSV string) ([]*domain.CalendarEntry, []*domain.PriceBar, error) {
	if snapshotPath != "" {
		if snap, err := snapshot.Read(snapshotPath); err == nil &&
			(calendarCSV == "" || snap.Current(calendarCSV, intradayCSV)) {
			return snap.Entries, snap.Bars, nil
		}
	}

	entries, err := ingest.LoadCalendarFile(calendarCSV)
	if err != nil {
		return nil, nil, err
	}

	var bars []*domain.PriceBar
	if intradayCSV != "" {
		bars, err = ingest.LoadIntradayFile(intradayCSV)
		if err != nil {
			return nil, nil, err
		}
	}
	return entries, bars, nil
}
