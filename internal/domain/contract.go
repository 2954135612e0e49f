package domain

import (
	"fmt"
	"strings"
	"time"
)

// MonthCode is a one-letter futures delivery month code (F..Z).
type MonthCode string

// The twelve canonical futures month codes.
const (
	MonthF MonthCode = "F" // January
	MonthG MonthCode = "G" // February
	MonthH MonthCode = "H" // March
	MonthJ MonthCode = "J" // April
	MonthK MonthCode = "K" // May
	MonthM MonthCode = "M" // June
	MonthN MonthCode = "N" // July
	MonthQ MonthCode = "Q" // August
	MonthU MonthCode = "U" // September
	MonthV MonthCode = "V" // October
	MonthX MonthCode = "X" // November
	MonthZ MonthCode = "Z" // December
)

// monthByCode maps month codes to calendar months.
var monthByCode = map[MonthCode]time.Month{
	MonthF: time.January, MonthG: time.February, MonthH: time.March,
	MonthJ: time.April, MonthK: time.May, MonthM: time.June,
	MonthN: time.July, MonthQ: time.August, MonthU: time.September,
	MonthV: time.October, MonthX: time.November, MonthZ: time.December,
}

// codeByAbbrev maps three-letter month abbreviations (JAN..DEC) to codes.
var codeByAbbrev = map[string]MonthCode{
	"JAN": MonthF, "FEB": MonthG, "MAR": MonthH, "APR": MonthJ,
	"MAY": MonthK, "JUN": MonthM, "JUL": MonthN, "AUG": MonthQ,
	"SEP": MonthU, "OCT": MonthV, "NOV": MonthX, "DEC": MonthZ,
}

// abbrevByCode is the inverse of codeByAbbrev.
var abbrevByCode = func() map[MonthCode]string {
	m := make(map[MonthCode]string, len(codeByAbbrev))
	for abbrev, code := range codeByAbbrev {
		m[code] = abbrev
	}
	return m
}()

// ParseMonthCode parses a one-letter month code, case-insensitively.
func ParseMonthCode(s string) (MonthCode, bool) {
	mc := MonthCode(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := monthByCode[mc]
	return mc, ok
}

// MonthCodeFromAbbrev parses a three-letter month abbreviation (JAN..DEC),
// case-insensitively.
func MonthCodeFromAbbrev(s string) (MonthCode, bool) {
	mc, ok := codeByAbbrev[strings.ToUpper(strings.TrimSpace(s))]
	return mc, ok
}

// Valid reports whether m is one of the twelve canonical codes.
func (m MonthCode) Valid() bool {
	_, ok := monthByCode[m]
	return ok
}

// Month returns the calendar month the code denotes.
func (m MonthCode) Month() time.Month {
	return monthByCode[m]
}

// Abbrev returns the three-letter month abbreviation (JAN..DEC).
func (m MonthCode) Abbrev() string {
	return abbrevByCode[m]
}

// CalendarEntry is one listed futures contract in the expiry calendar.
// The tuple (Root, Month, Year) is unique within a calendar.
type CalendarEntry struct {
	Root   string    // product root symbol, e.g. "TFM"
	Month  MonthCode // delivery month code
	Year   int       // four-digit contract year
	Expiry time.Time // last live/tradeable date (UTC, midnight)
}

// Symbol returns the canonical contract code, e.g. `TFM\J25`.
func (e CalendarEntry) Symbol() string {
	return ContractSymbol(e.Root, e.Month, e.Year)
}

// Resolved converts the entry into a ResolvedContract.
func (e CalendarEntry) Resolved() ResolvedContract {
	return ResolvedContract{Root: e.Root, Month: e.Month, Year: e.Year, Expiry: e.Expiry}
}

// ResolvedContract is the concrete output of reference resolution.
// It is created fresh per query and never mutated afterwards.
type ResolvedContract struct {
	Root   string    `json:"root"`
	Month  MonthCode `json:"month_code"`
	Year   int       `json:"year"`
	Expiry time.Time `json:"expiry_date"`
}

// Symbol returns the canonical contract code, e.g. `TFM\J25`.
func (c ResolvedContract) Symbol() string {
	return ContractSymbol(c.Root, c.Month, c.Year)
}

// ContractSymbol formats the canonical contract code for a
// (root, month, year) identity, e.g. `TFM\J25`.
func ContractSymbol(root string, month MonthCode, year int) string {
	return fmt.Sprintf(`%s\%s%02d`, strings.ToUpper(root), month, year%100)
}

// CompareEntries orders calendar entries by expiry date ascending, with
// (year, month) ascending as the deterministic tie-break for entries that
// share an expiry date. Returns negative if a < b, zero if equal, positive
// if a > b.
func CompareEntries(a, b CalendarEntry) int {
	if !a.Expiry.Equal(b.Expiry) {
		if a.Expiry.Before(b.Expiry) {
			return -1
		}
		return 1
	}
	if a.Year != b.Year {
		if a.Year < b.Year {
			return -1
		}
		return 1
	}
	am, bm := a.Month.Month(), b.Month.Month()
	if am != bm {
		if am < bm {
			return -1
		}
		return 1
	}
	return 0
}
