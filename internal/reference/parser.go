// Package reference parses free-text contract references into typed form.
//
// A reference is classified against the set of root symbols known to the
// calendar, so the same text can be rejected as ambiguous when two roots
// both yield a valid reading. Recognized shapes, case-insensitive:
//
//	TFM\J25, TFM\J2025   specific contract
//	TFM, TFM2            generic (n-th nearest to expiry, default 1)
//	TFMJ, TFMJ2          monthly generic by month letter
//	TFMAPR, TFMAPR2      monthly generic by month abbreviation
//	TFMZM1, TFMDECJUN1   spread (front/back month pair, default ordinal 1)
package reference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"endex-futures-lab/internal/domain"
)

// SyntaxError reports a reference string that could not be classified into
// exactly one shape. Recoverable; carries the offending input.
type SyntaxError struct {
	Input  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid contract reference %q: %s", e.Input, e.Reason)
}

var (
	specificRe     = regexp.MustCompile(`^\\([A-Z])(\d{2}|\d{4})$`)
	ordinalRe      = regexp.MustCompile(`^(\d*)$`)
	monthLetterRe  = regexp.MustCompile(`^([A-Z])(\d*)$`)
	monthAbbrevRe  = regexp.MustCompile(`^([A-Z]{3})(\d*)$`)
	spreadLetterRe = regexp.MustCompile(`^([A-Z])([A-Z])(\d*)$`)
	spreadAbbrevRe = regexp.MustCompile(`^([A-Z]{3})([A-Z]{3})(\d*)$`)
)

// Parse classifies text into a ContractReference. knownRoots is the set of
// root symbols listed in the calendar; only those are considered as prefixes.
// Two-digit years are normalized by the nearest-century rule relative to
// referenceDate. Text matching zero shapes, or more than one, fails with
// *SyntaxError.
func Parse(text string, referenceDate time.Time, knownRoots []string) (domain.ContractReference, error) {
	input := strings.ToUpper(strings.TrimSpace(text))
	if input == "" {
		return domain.ContractReference{}, &SyntaxError{Input: text, Reason: "empty reference"}
	}

	var interps []domain.ContractReference
	for _, root := range knownRoots {
		root = strings.ToUpper(strings.TrimSpace(root))
		if root == "" || !strings.HasPrefix(input, root) {
			continue
		}
		interps = append(interps, classify(root, input[len(root):], referenceDate.Year())...)
	}

	switch len(interps) {
	case 0:
		return domain.ContractReference{}, &SyntaxError{Input: text, Reason: "unrecognized reference shape"}
	case 1:
		return interps[0], nil
	default:
		return domain.ContractReference{}, &SyntaxError{
			Input:  text,
			Reason: fmt.Sprintf("ambiguous: %d valid interpretations", len(interps)),
		}
	}
}

// classify returns every valid reading of the remainder after a known root.
// A remainder yields at most one reading per root since the shapes differ in
// their letter-run length.
func classify(root, rest string, refYear int) []domain.ContractReference {
	if m := specificRe.FindStringSubmatch(rest); m != nil {
		mc, ok := domain.ParseMonthCode(m[1])
		if !ok {
			return nil
		}
		year, _ := strconv.Atoi(m[2])
		if len(m[2]) == 2 {
			year = nearestCenturyYear(year, refYear)
		}
		return []domain.ContractReference{{
			Kind: domain.ReferenceSpecific, Root: root, Month: mc, Year: year,
		}}
	}

	if m := ordinalRe.FindStringSubmatch(rest); m != nil {
		n, ok := parseOrdinal(m[1])
		if !ok {
			return nil
		}
		return []domain.ContractReference{{
			Kind: domain.ReferenceGeneric, Root: root, Ordinal: n,
		}}
	}

	if m := monthLetterRe.FindStringSubmatch(rest); m != nil {
		mc, ok := domain.ParseMonthCode(m[1])
		if !ok {
			return nil
		}
		n, ok := parseOrdinal(m[2])
		if !ok {
			return nil
		}
		return []domain.ContractReference{{
			Kind: domain.ReferenceMonthlyGeneric, Root: root, Month: mc, Ordinal: n,
		}}
	}

	if m := spreadLetterRe.FindStringSubmatch(rest); m != nil {
		front, okF := domain.ParseMonthCode(m[1])
		back, okB := domain.ParseMonthCode(m[2])
		n, okN := parseOrdinal(m[3])
		if !okF || !okB || !okN {
			return nil
		}
		return []domain.ContractReference{{
			Kind: domain.ReferenceSpread, Root: root, FrontMonth: front, BackMonth: back, Ordinal: n,
		}}
	}

	if m := monthAbbrevRe.FindStringSubmatch(rest); m != nil {
		mc, ok := domain.MonthCodeFromAbbrev(m[1])
		if !ok {
			return nil
		}
		n, ok := parseOrdinal(m[2])
		if !ok {
			return nil
		}
		return []domain.ContractReference{{
			Kind: domain.ReferenceMonthlyGeneric, Root: root, Month: mc, Ordinal: n,
		}}
	}

	if m := spreadAbbrevRe.FindStringSubmatch(rest); m != nil {
		front, okF := domain.MonthCodeFromAbbrev(m[1])
		back, okB := domain.MonthCodeFromAbbrev(m[2])
		n, okN := parseOrdinal(m[3])
		if !okF || !okB || !okN {
			return nil
		}
		return []domain.ContractReference{{
			Kind: domain.ReferenceSpread, Root: root, FrontMonth: front, BackMonth: back, Ordinal: n,
		}}
	}

	return nil
}

// parseOrdinal parses a 1-based ordinal suffix, defaulting to 1 when empty.
func parseOrdinal(s string) (int, bool) {
	if s == "" {
		return 1, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// nearestCenturyYear expands a two-digit year into the four-digit year
// closest to refYear.
func nearestCenturyYear(yy, refYear int) int {
	y := (refYear/100)*100 + yy
	if y-refYear > 50 {
		y -= 100
	} else if refYear-y > 50 {
		y += 100
	}
	return y
}
