package domain

import "fmt"

// ReferenceKind identifies how a contract reference is resolved.
type ReferenceKind string

// The four supported reference kinds.
const (
	ReferenceSpecific       ReferenceKind = "specific"
	ReferenceGeneric        ReferenceKind = "generic"
	ReferenceMonthlyGeneric ReferenceKind = "monthly_generic"
	ReferenceSpread         ReferenceKind = "spread"
)

// ContractReference is a parsed, unresolved contract request. Kind selects
// the variant; each variant uses only the fields its resolution rule needs:
//
//	Specific:       Root, Month, Year
//	Generic:        Root, Ordinal
//	MonthlyGeneric: Root, Month, Ordinal
//	Spread:         Root, FrontMonth, BackMonth, Ordinal
type ContractReference struct {
	Kind       ReferenceKind `json:"kind"`
	Root       string        `json:"root"`
	Month      MonthCode     `json:"month_code,omitempty"`
	Year       int           `json:"year,omitempty"`
	FrontMonth MonthCode     `json:"front_month_code,omitempty"`
	BackMonth  MonthCode     `json:"back_month_code,omitempty"`
	Ordinal    int           `json:"ordinal,omitempty"`
}

// String renders the reference in its canonical text form.
func (r ContractReference) String() string {
	switch r.Kind {
	case ReferenceSpecific:
		return ContractSymbol(r.Root, r.Month, r.Year)
	case ReferenceGeneric:
		return fmt.Sprintf("%s%d", r.Root, r.Ordinal)
	case ReferenceMonthlyGeneric:
		return fmt.Sprintf("%s%s%d", r.Root, r.Month.Abbrev(), r.Ordinal)
	case ReferenceSpread:
		return fmt.Sprintf("%s%s%s%d", r.Root, r.FrontMonth.Abbrev(), r.BackMonth.Abbrev(), r.Ordinal)
	default:
		return fmt.Sprintf("unknown(%s)", r.Root)
	}
}
