// Package snapshot persists parsed calendar and price data as a JSON cache
// so later startups can skip CSV parsing. The snapshot is never the source
// of truth: it is rebuilt whenever the source files' fingerprints change.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"endex-futures-lab/internal/domain"
)

// Version is bumped whenever the snapshot layout changes; mismatched
// snapshots are discarded and rebuilt from source.
const Version = 1

// Fingerprint identifies one source file state cheaply (no hashing).
type Fingerprint struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	ModTimeMs int64  `json:"mod_time_ms"`
}

// Matches reports whether two fingerprints describe the same file state.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.Path == other.Path && f.Size == other.Size && f.ModTimeMs == other.ModTimeMs
}

// FingerprintFile stats a source file into a Fingerprint.
func FingerprintFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Fingerprint{
		Path:      filepath.Clean(path),
		Size:      info.Size(),
		ModTimeMs: info.ModTime().UnixMilli(),
	}, nil
}

// Snapshot is the persisted form of the fully parsed data set.
type Snapshot struct {
	Version     int                     `json:"version"`
	CreatedAtMs int64                   `json:"created_at_ms"`
	Calendar    Fingerprint             `json:"calendar_fingerprint"`
	Intraday    Fingerprint             `json:"intraday_fingerprint"`
	Entries     []*domain.CalendarEntry `json:"entries"`
	Bars        []*domain.PriceBar      `json:"bars"`
}

// New builds a snapshot for the given parsed data and source fingerprints.
func New(calendarFp, intradayFp Fingerprint, entries []*domain.CalendarEntry, bars []*domain.PriceBar) *Snapshot {
	return &Snapshot{
		Version:     Version,
		CreatedAtMs: time.Now().UnixMilli(),
		Calendar:    calendarFp,
		Intraday:    intradayFp,
		Entries:     entries,
		Bars:        bars,
	}
}

// Write persists the snapshot atomically: it writes a temp file in the
// target directory and renames it over the destination, so readers never
// observe a partial snapshot.
func Write(path string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Read loads a snapshot from disk. A snapshot with a different layout
// version is rejected; callers fall back to the source files.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, Version)
	}
	return &snap, nil
}

// Current reports whether the snapshot still matches both source files.
func (s *Snapshot) Current(calendarPath, intradayPath string) bool {
	calFp, err := FingerprintFile(calendarPath)
	if err != nil {
		return false
	}
	intraFp, err := FingerprintFile(intradayPath)
	if err != nil {
		return false
	}
	return s.Calendar.Matches(calFp) && s.Intraday.Matches(intraFp)
}
