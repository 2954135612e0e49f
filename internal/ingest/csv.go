// Package ingest parses the two external tabular sources: the expiry
// calendar and the intraday price export. Both are semicolon-delimited CSV
// with a header row; column positions are taken from the header, not
// assumed.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"endex-futures-lab/internal/calendar"
	"endex-futures-lab/internal/domain"
)

// sourcePrefix is the exchange/feed prefix the export puts in front of
// contract codes, e.g. "ENDEX::F:TFM\J25".
const sourcePrefix = "ENDEX::F:"

// contractCodeRe matches the bare contract code after prefix stripping.
var contractCodeRe = regexp.MustCompile(`^([A-Z]+)\\([FGHJKMNQUVXZ])(\d{2})$`)

// expiryFormats are the date layouts accepted for expiry_date cells.
var expiryFormats = []string{
	"02.01.2006",
	"2006-01-02",
}

// intradayTimeFormat is the layout of the intraday Time column.
const intradayTimeFormat = "02.01.2006 15:04"

// ParseContractCode splits a contract code like `TFM\J25` (optionally
// carrying the feed prefix) into its identity. Two-digit years come from a
// 2000-based export.
func ParseContractCode(code string) (root string, month domain.MonthCode, year int, err error) {
	code = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(code)), sourcePrefix)
	m := contractCodeRe.FindStringSubmatch(code)
	if m == nil {
		return "", "", 0, fmt.Errorf("malformed contract code %q", code)
	}
	yy, _ := strconv.Atoi(m[3])
	return m[1], domain.MonthCode(m[2]), 2000 + yy, nil
}

// ReadCalendarCSV parses expiry calendar rows. Any malformed row fails the
// whole load with *calendar.ParseError; a calendar is never built from
// partial input.
func ReadCalendarCSV(r io.Reader) ([]*domain.CalendarEntry, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &calendar.ParseError{Reason: fmt.Sprintf("read header: %v", err)}
	}
	codeIdx, err := columnIndex(header, "tfm_code")
	if err != nil {
		return nil, &calendar.ParseError{Reason: err.Error()}
	}
	expiryIdx, err := columnIndex(header, "expiry_date")
	if err != nil {
		return nil, &calendar.ParseError{Reason: err.Error()}
	}

	var entries []*domain.CalendarEntry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &calendar.ParseError{Line: line, Reason: fmt.Sprintf("read row: %v", err)}
		}

		code := record[codeIdx]
		root, month, year, err := ParseContractCode(code)
		if err != nil {
			return nil, &calendar.ParseError{Line: line, Entry: code, Reason: err.Error()}
		}

		expiry, err := parseExpiryDate(record[expiryIdx])
		if err != nil {
			return nil, &calendar.ParseError{Line: line, Entry: code, Reason: err.Error()}
		}

		entries = append(entries, &domain.CalendarEntry{
			Root: root, Month: month, Year: year, Expiry: expiry,
		})
	}
	return entries, nil
}

// ReadIntradayCSV parses intraday OHLCV rows at 30-minute granularity.
// Malformed rows fail the whole load.
func ReadIntradayCSV(r io.Reader) ([]*domain.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	symbolIdx, err := columnIndex(header, "symbol")
	if err != nil {
		return nil, err
	}
	timeIdx, err := columnIndex(header, "time")
	if err != nil {
		return nil, err
	}
	openIdx, err := columnIndex(header, "open")
	if err != nil {
		return nil, err
	}
	highIdx, err := columnIndex(header, "high")
	if err != nil {
		return nil, err
	}
	lowIdx, err := columnIndex(header, "low")
	if err != nil {
		return nil, err
	}
	closeIdx, err := columnIndex(header, "close")
	if err != nil {
		return nil, err
	}
	volumeIdx, err := columnIndex(header, "volume")
	if err != nil {
		return nil, err
	}

	var bars []*domain.PriceBar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		root, month, year, err := ParseContractCode(record[symbolIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		ts, err := time.ParseInLocation(intradayTimeFormat, strings.TrimSpace(record[timeIdx]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("row %d: malformed time %q", line, record[timeIdx])
		}

		open, err := parsePrice(record[openIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: open: %w", line, err)
		}
		high, err := parsePrice(record[highIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: high: %w", line, err)
		}
		low, err := parsePrice(record[lowIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: low: %w", line, err)
		}
		cls, err := parsePrice(record[closeIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: close: %w", line, err)
		}
		volume, err := parsePrice(record[volumeIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: volume: %w", line, err)
		}

		bars = append(bars, &domain.PriceBar{
			Root: root, Month: month, Year: year,
			TimestampMs: ts.UnixMilli(),
			Open:        open, High: high, Low: low, Close: cls, Volume: volume,
		})
	}
	return bars, nil
}

// LoadCalendarFile reads and parses a calendar CSV from disk.
func LoadCalendarFile(path string) ([]*domain.CalendarEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calendar file: %w", err)
	}
	defer f.Close()
	return ReadCalendarCSV(f)
}

// LoadIntradayFile reads and parses an intraday CSV from disk.
func LoadIntradayFile(path string) ([]*domain.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open intraday file: %w", err)
	}
	defer f.Close()
	return ReadIntradayCSV(f)
}

// columnIndex finds a header column by name, case-insensitively.
func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("missing column %q", name)
}

// parseExpiryDate tries each accepted expiry layout in order.
func parseExpiryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed expiry date %q", s)
}

// parsePrice parses a numeric cell, accepting comma decimal separators.
func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q", s)
	}
	return v, nil
}
