// Package resolver turns typed contract references into concrete contract
// identities using the expiry calendar. Resolution is a pure read over an
// immutable Calendar; every call allocates fresh results.
package resolver

import (
	"fmt"
	"time"

	"endex-futures-lab/internal/calendar"
	"endex-futures-lab/internal/domain"
)

// NotFoundError reports a well-formed reference with no valid resolution
// given the calendar and reference date. Recoverable; carries both for
// diagnostics.
type NotFoundError struct {
	Reference     domain.ContractReference
	ReferenceDate time.Time
	Reason        string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("contract not found for %s at %s: %s",
		e.Reference, e.ReferenceDate.Format("2006-01-02"), e.Reason)
}

// Resolve maps a reference to one concrete contract, or two for a spread
// (front leg first). Eligibility is inclusive of the reference date: a
// contract expiring on that date is still live.
func Resolve(ref domain.ContractReference, cal *calendar.Calendar, referenceDate time.Time) ([]domain.ResolvedContract, error) {
	refDate := truncateToDay(referenceDate)

	switch ref.Kind {
	case domain.ReferenceSpecific:
		e, ok := cal.Lookup(ref.Root, ref.Month, ref.Year)
		if !ok {
			return nil, &NotFoundError{Reference: ref, ReferenceDate: refDate, Reason: "not listed in calendar"}
		}
		return []domain.ResolvedContract{e.Resolved()}, nil

	case domain.ReferenceGeneric:
		eligible := eligibleEntries(cal.EntriesFor(ref.Root), refDate)
		if len(eligible) < ref.Ordinal {
			return nil, &NotFoundError{
				Reference: ref, ReferenceDate: refDate,
				Reason: fmt.Sprintf("only %d eligible contracts", len(eligible)),
			}
		}
		return []domain.ResolvedContract{eligible[ref.Ordinal-1].Resolved()}, nil

	case domain.ReferenceMonthlyGeneric:
		eligible := eligibleEntries(cal.EntriesForMonth(ref.Root, ref.Month), refDate)
		if len(eligible) < ref.Ordinal {
			return nil, &NotFoundError{
				Reference: ref, ReferenceDate: refDate,
				Reason: fmt.Sprintf("only %d eligible %s contracts", len(eligible), ref.Month.Abbrev()),
			}
		}
		return []domain.ResolvedContract{eligible[ref.Ordinal-1].Resolved()}, nil

	case domain.ReferenceSpread:
		return resolveSpread(ref, cal, refDate)

	default:
		return nil, &NotFoundError{Reference: ref, ReferenceDate: refDate, Reason: "unknown reference kind"}
	}
}

// resolveSpread enumerates front-anchored spread instances. Each eligible
// front entry pairs with the earliest back-month entry expiring strictly
// after it; fronts with no qualifying back are skipped without consuming an
// ordinal.
func resolveSpread(ref domain.ContractReference, cal *calendar.Calendar, refDate time.Time) ([]domain.ResolvedContract, error) {
	fronts := eligibleEntries(cal.EntriesForMonth(ref.Root, ref.FrontMonth), refDate)
	backs := cal.EntriesForMonth(ref.Root, ref.BackMonth)

	instance := 0
	for _, front := range fronts {
		back, ok := firstAfter(backs, front.Expiry)
		if !ok {
			continue
		}
		instance++
		if instance == ref.Ordinal {
			return []domain.ResolvedContract{front.Resolved(), back.Resolved()}, nil
		}
	}
	return nil, &NotFoundError{
		Reference: ref, ReferenceDate: refDate,
		Reason: fmt.Sprintf("only %d spread instances", instance),
	}
}

// eligibleEntries keeps entries whose expiry is on or after refDate,
// preserving calendar order.
func eligibleEntries(entries []domain.CalendarEntry, refDate time.Time) []domain.CalendarEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if !e.Expiry.Before(refDate) {
			out = append(out, e)
		}
	}
	return out
}

// firstAfter finds the earliest entry expiring strictly after t. Entries
// must already be in calendar order.
func firstAfter(entries []domain.CalendarEntry, t time.Time) (domain.CalendarEntry, bool) {
	for _, e := range entries {
		if e.Expiry.After(t) {
			return e, true
		}
	}
	return domain.CalendarEntry{}, false
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
