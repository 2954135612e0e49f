package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"endex-futures-lab/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	calPath := writeFile(t, dir, "calendar.csv", "a;b;c\n")
	intraPath := writeFile(t, dir, "intraday.csv", "x;y;z\n")

	calFp, err := FingerprintFile(calPath)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	intraFp, err := FingerprintFile(intraPath)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}

	entries := []*domain.CalendarEntry{
		{Root: "TFM", Month: domain.MonthF, Year: 2025, Expiry: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
	}
	bars := []*domain.PriceBar{
		{Root: "TFM", Month: domain.MonthF, Year: 2025, TimestampMs: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}

	snapPath := filepath.Join(dir, "snapshot.json")
	if err := Write(snapPath, New(calFp, intraFp, entries, bars)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(snapPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Version != Version {
		t.Errorf("version = %d, want %d", got.Version, Version)
	}
	if len(got.Entries) != 1 || got.Entries[0].Symbol() != `TFM\F25` {
		t.Errorf("unexpected entries %+v", got.Entries)
	}
	if len(got.Bars) != 1 || got.Bars[0].Close != 1.5 {
		t.Errorf("unexpected bars %+v", got.Bars)
	}
	if !got.Entries[0].Expiry.Equal(entries[0].Expiry) {
		t.Errorf("expiry not preserved: %v", got.Entries[0].Expiry)
	}
}

func TestCurrentDetectsSourceChange(t *testing.T) {
	dir := t.TempDir()
	calPath := writeFile(t, dir, "calendar.csv", "a;b;c\n")
	intraPath := writeFile(t, dir, "intraday.csv", "x;y;z\n")

	calFp, _ := FingerprintFile(calPath)
	intraFp, _ := FingerprintFile(intraPath)
	snap := New(calFp, intraFp, nil, nil)

	if !snap.Current(calPath, intraPath) {
		t.Fatal("snapshot should be current for unchanged sources")
	}

	// Growing the file changes its size fingerprint.
	writeFile(t, dir, "calendar.csv", "a;b;c\nmore;data;here\n")
	if snap.Current(calPath, intraPath) {
		t.Error("snapshot should be stale after source change")
	}

	if snap.Current(filepath.Join(dir, "missing.csv"), intraPath) {
		t.Error("snapshot should be stale when a source is missing")
	}
}

func TestReadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "snapshot.json", `{"version": 99}`)

	if _, err := Read(path); err == nil {
		t.Fatal("expected error for version mismatch")
	}
}

func TestReadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "snapshot.json", "{not json")

	if _, err := Read(path); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}
