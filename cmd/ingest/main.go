// Package main loads expiry calendar and intraday price CSV exports into
// the databases: calendar entries and bars go to PostgreSQL, bars
// additionally to ClickHouse when configured. Migrations run first, so a
// fresh database works without manual setup.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/ingest"
	"endex-futures-lab/internal/observability"
	"endex-futures-lab/internal/snapshot"
	chstore "endex-futures-lab/internal/storage/clickhouse"
	"endex-futures-lab/internal/storage/migrations"
	pgstore "endex-futures-lab/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	var (
		calendarCSV   = flag.String("calendar-csv", os.Getenv("CALENDAR_CSV"), "Expiry calendar CSV path (required)")
		intradayCSV   = flag.String("intraday-csv", os.Getenv("INTRADAY_CSV"), "Intraday price CSV path")
		postgresDSN   = flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		clickhouseDSN = flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for price bars")
		snapshotOut   = flag.String("snapshot-out", os.Getenv("SNAPSHOT_PATH"), "Optional snapshot cache path to write after parsing")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "ingest").Logger()

	if *calendarCSV == "" {
		logger.Fatal().Msg("--calendar-csv is required")
	}
	if *postgresDSN == "" && *snapshotOut == "" {
		logger.Fatal().Msg("nothing to do: pass --postgres-dsn or --snapshot-out")
	}

	ctx := context.Background()
	start := time.Now()

	entries, err := ingest.LoadCalendarFile(*calendarCSV)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *calendarCSV).Msg("failed to parse calendar CSV")
	}
	logger.Info().Int("entries", len(entries)).Str("path", *calendarCSV).Msg("calendar parsed")

	var bars []*domain.PriceBar
	if *intradayCSV != "" {
		bars, err = ingest.LoadIntradayFile(*intradayCSV)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *intradayCSV).Msg("failed to parse intraday CSV")
		}
		logger.Info().Int("bars", len(bars)).Str("path", *intradayCSV).Msg("intraday parsed")
	}
	observability.DefaultMetrics.CalendarEntries.Set(float64(len(entries)))
	observability.DefaultMetrics.PriceBarsLoaded.Set(float64(len(bars)))

	if *postgresDSN != "" {
		if err := ingestPostgres(ctx, *postgresDSN, entries, bars, logger); err != nil {
			logger.Fatal().Err(err).Msg("postgres ingest failed")
		}
	}

	if *clickhouseDSN != "" && len(bars) > 0 {
		if err := ingestClickhouse(ctx, *clickhouseDSN, bars, logger); err != nil {
			logger.Fatal().Err(err).Msg("clickhouse ingest failed")
		}
	}

	if *snapshotOut != "" {
		if err := writeSnapshot(*snapshotOut, *calendarCSV, *intradayCSV, entries, bars); err != nil {
			logger.Fatal().Err(err).Msg("snapshot write failed")
		}
		logger.Info().Str("path", *snapshotOut).Msg("snapshot written")
	}

	logger.Info().Dur("elapsed", time.Since(start)).Msg("ingest complete")
}

func ingestPostgres(ctx context.Context, dsn string, entries []*domain.CalendarEntry, bars []*domain.PriceBar, logger zerolog.Logger) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}

	if err := pgstore.NewCalendarEntryStore(pool).InsertBulk(ctx, entries); err != nil {
		return err
	}
	logger.Info().Int("entries", len(entries)).Msg("calendar entries stored in postgres")

	if len(bars) > 0 {
		if err := pgstore.NewPriceBarStore(pool).InsertBulk(ctx, bars); err != nil {
			return err
		}
		logger.Info().Int("bars", len(bars)).Msg("price bars stored in postgres")
	}
	return nil
}

func ingestClickhouse(ctx context.Context, dsn string, bars []*domain.PriceBar, logger zerolog.Logger) error {
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := chstore.NewPriceBarStore(conn).InsertBulk(ctx, bars); err != nil {
		return err
	}
	logger.Info().Int("bars", len(bars)).Msg("price bars stored in clickhouse")
	return nil
}

func writeSnapshot(path, calendarCSV, intradayCSV string, entries []*domain.CalendarEntry, bars []*domain.PriceBar) error {
	calFp, err := snapshot.FingerprintFile(calendarCSV)
	if err != nil {
		return err
	}
	var intraFp snapshot.Fingerprint
	if intradayCSV != "" {
		intraFp, err = snapshot.FingerprintFile(intradayCSV)
		if err != nil {
			return err
		}
	}
	return snapshot.Write(path, snapshot.New(calFp, intraFp, entries, bars))
}
