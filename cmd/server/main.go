// Package main runs the contract resolution and series query server:
// calendar + intraday data are loaded once at startup (snapshot, CSV, or
// database), held as an immutable in-memory snapshot, and served over HTTP
// and websocket. An optional refresh loop swaps in a new calendar snapshot
// when the source changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"endex-futures-lab/internal/api"
	"endex-futures-lab/internal/calendar"
	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/ingest"
	"endex-futures-lab/internal/observability"
	"endex-futures-lab/internal/series"
	"endex-futures-lab/internal/service"
	"endex-futures-lab/internal/snapshot"
	"endex-futures-lab/internal/storage"
	chstore "endex-futures-lab/internal/storage/clickhouse"
	"endex-futures-lab/internal/storage/memory"
	pgstore "endex-futures-lab/internal/storage/postgres"
)

// config holds all server settings, populated from flags with env defaults.
type config struct {
	calendarCSV     string
	intradayCSV     string
	snapshotPath    string
	postgresDSN     string
	clickhouseDSN   string
	listenAddr      string
	refreshInterval time.Duration
	direction       string
	dayCount        string
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := config{}
	flag.StringVar(&cfg.calendarCSV, "calendar-csv", os.Getenv("CALENDAR_CSV"), "Expiry calendar CSV path")
	flag.StringVar(&cfg.intradayCSV, "intraday-csv", os.Getenv("INTRADAY_CSV"), "Intraday price CSV path")
	flag.StringVar(&cfg.snapshotPath, "snapshot", os.Getenv("SNAPSHOT_PATH"), "Snapshot cache path (skips CSV parsing when current)")
	flag.StringVar(&cfg.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (alternative to CSV sources)")
	flag.StringVar(&cfg.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for price bars")
	flag.StringVar(&cfg.listenAddr, "listen", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	flag.DurationVar(&cfg.refreshInterval, "refresh-interval", 0, "Calendar refresh check interval (0 disables)")
	flag.StringVar(&cfg.direction, "window-direction", envOr("WINDOW_DIRECTION", "backward"), "Series window direction: backward or forward")
	flag.StringVar(&cfg.dayCount, "day-count", envOr("DAY_COUNT", "calendar"), "Series day counting: calendar or trading")
	flag.Parse()

	logger := newLogger()

	if cfg.calendarCSV == "" && cfg.postgresDSN == "" {
		logger.Fatal().Msg("either --calendar-csv or --postgres-dsn is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries, barStore, cleanup, err := loadData(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load data")
	}
	defer cleanup()

	cal, err := calendar.New(entries)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build calendar")
	}
	logger.Info().
		Int("entries", cal.Len()).
		Strs("roots", cal.Roots()).
		Msg("calendar loaded")

	svc := service.New(cal, barStore, seriesOptions(cfg), logger)
	hub := api.NewHub(logger)
	svc.OnRefresh(hub.Broadcast)
	server := api.NewServer(svc, hub, logger)

	httpServer := &http.Server{
		Addr:    cfg.listenAddr,
		Handler: server.Routes(),
	}

	if cfg.refreshInterval > 0 {
		go refreshLoop(ctx, cfg, svc, logger)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
		hub.Close()
	}()

	logger.Info().Str("addr", cfg.listenAddr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server")
	}
	logger.Info().Msg("shutdown complete")
}

// loadData prepares the calendar entries and the bar store, from whichever
// source the config names. CSV-backed bars are held in memory; database
// bars are queried in place.
func loadData(ctx context.Context, cfg config, logger zerolog.Logger) ([]domain.CalendarEntry, storage.PriceBarStore, func(), error) {
	noop := func() {}

	if cfg.calendarCSV != "" {
		entries, bars, err := loadFromFiles(cfg, logger)
		if err != nil {
			return nil, nil, noop, err
		}

		barStore := memory.NewPriceBarStore()
		if err := barStore.InsertBulk(ctx, bars); err != nil {
			return nil, nil, noop, fmt.Errorf("load bars into memory store: %w", err)
		}
		observability.DefaultMetrics.PriceBarsLoaded.Set(float64(len(bars)))
		return entryValues(entries), barStore, noop, nil
	}

	// Database mode: calendar from Postgres, bars from ClickHouse when
	// configured, otherwise Postgres.
	pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
	if err != nil {
		return nil, nil, noop, err
	}
	cleanup := func() { pool.Close() }

	stored, err := pgstore.NewCalendarEntryStore(pool).GetAll(ctx)
	if err != nil {
		cleanup()
		return nil, nil, noop, err
	}

	var barStore storage.PriceBarStore = pgstore.NewPriceBarStore(pool)
	if cfg.clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, noop, err
		}
		barStore = chstore.NewPriceBarStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return entryValues(stored), barStore, cleanup, nil
}

// loadFromFiles parses both CSV sources, going through the snapshot cache
// when it is still current.
func loadFromFiles(cfg config, logger zerolog.Logger) ([]*domain.CalendarEntry, []*domain.PriceBar, error) {
	if cfg.snapshotPath != "" {
		if snap, err := snapshot.Read(cfg.snapshotPath); err == nil &&
			snap.Current(cfg.calendarCSV, cfg.intradayCSV) {
			logger.Info().Str("path", cfg.snapshotPath).Msg("loaded from snapshot")
			return snap.Entries, snap.Bars, nil
		}
	}

	entries, err := ingest.LoadCalendarFile(cfg.calendarCSV)
	if err != nil {
		return nil, nil, err
	}

	var bars []*domain.PriceBar
	if cfg.intradayCSV != "" {
		bars, err = ingest.LoadIntradayFile(cfg.intradayCSV)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.snapshotPath != "" && cfg.intradayCSV != "" {
		calFp, err := snapshot.FingerprintFile(cfg.calendarCSV)
		if err != nil {
			return nil, nil, err
		}
		intraFp, err := snapshot.FingerprintFile(cfg.intradayCSV)
		if err != nil {
			return nil, nil, err
		}
		if err := snapshot.Write(cfg.snapshotPath, snapshot.New(calFp, intraFp, entries, bars)); err != nil {
			logger.Warn().Err(err).Msg("failed to write snapshot cache")
		} else {
			logger.Info().Str("path", cfg.snapshotPath).Msg("snapshot cache written")
		}
	}

	return entries, bars, nil
}

// refreshLoop periodically re-reads the calendar source and swaps in a new
// snapshot when it produces a different entry set. Price bars are not
// refreshed; they are static for the process lifetime.
func refreshLoop(ctx context.Context, cfg config, svc *service.Service, logger zerolog.Logger) {
	ticker := time.NewTicker(cfg.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var entries []*domain.CalendarEntry
		var err error
		if cfg.calendarCSV != "" {
			entries, err = ingest.LoadCalendarFile(cfg.calendarCSV)
		} else {
			pool, perr := pgstore.NewPool(ctx, cfg.postgresDSN)
			if perr != nil {
				err = perr
			} else {
				entries, err = pgstore.NewCalendarEntryStore(pool).GetAll(ctx)
				pool.Close()
			}
		}
		if err != nil {
			logger.Warn().Err(err).Msg("calendar refresh failed, keeping current snapshot")
			continue
		}

		if err := svc.Refresh(entryValues(entries)); err != nil {
			logger.Warn().Err(err).Msg("calendar rebuild failed, keeping current snapshot")
		}
	}
}

func seriesOptions(cfg config) series.Options {
	opts := series.Options{}
	if cfg.direction == "forward" {
		opts.Direction = series.Forward
	}
	if cfg.dayCount == "trading" {
		opts.DayCount = series.TradingDays
	}
	return opts
}

func entryValues(entries []*domain.CalendarEntry) []domain.CalendarEntry {
	out := make([]domain.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	return out
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
