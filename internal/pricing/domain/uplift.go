package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UpliftMode selects how an uplift combines with a base rate.
type UpliftMode string

const (
	// UpliftAdditive adds the uplift in the component's own unit (pence).
	UpliftAdditive UpliftMode = "additive"
	// UpliftPercentage scales the base rate by (1 + uplift/100).
	UpliftPercentage UpliftMode = "percentage"
)

// Valid reports whether the mode is known.
func (m UpliftMode) Valid() bool {
	return m == UpliftAdditive || m == UpliftPercentage
}

var hundred = decimal.NewFromInt(100)

// Adjust applies an uplift to a base value under the mode.
func (m UpliftMode) Adjust(base, uplift decimal.Decimal) decimal.Decimal {
	if m == UpliftPercentage {
		return base.Mul(decimal.NewFromInt(1).Add(uplift.Div(hundred)))
	}
	return base.Add(uplift)
}

// AllTerms scopes an uplift entry to every term.
const AllTerms ContractTerm = 0

type upliftKey struct {
	meterType MeterType
	component Component
	term      ContractTerm
}

// UpliftEntry is one user supplied uplift, named loosely as a user would type it.
type UpliftEntry struct {
	MeterType MeterType    `json:"meter_type" yaml:"meter_type"`
	Component string       `json:"component" yaml:"component"`
	Term      ContractTerm `json:"term" yaml:"term"`
	Value     float64      `json:"value" yaml:"value"`
}

// UpliftSet maps (meter type, component, term) to an uplift value.
// A term-specific value wins over an all-terms value.
type UpliftSet struct {
	values map[upliftKey]float64
}

// NewUpliftSet builds a set from entries. Entries naming an unknown component are
// skipped and returned so callers can report them; they are not an error.
func NewUpliftSet(entries []UpliftEntry) (UpliftSet, []UpliftEntry, error) {
	set := UpliftSet{values: make(map[upliftKey]float64, len(entries))}
	var ignored []UpliftEntry
	for _, entry := range entries {
		component, ok := ParseComponent(entry.Component)
		if !ok {
			ignored = append(ignored, entry)
			continue
		}
		if err := set.Set(entry.MeterType, component, entry.Term, entry.Value); err != nil {
			return UpliftSet{}, nil, err
		}
	}
	return set, ignored, nil
}

// Set stores an uplift. Use AllTerms to cover every term.
func (s *UpliftSet) Set(meterType MeterType, component Component, term ContractTerm, value float64) error {
	if meterType != MeterTypeHH && meterType != MeterTypeNHH {
		return fmt.Errorf("%w: meter type %q", ErrInvalidUplift, meterType)
	}
	if term != AllTerms && !term.Valid() {
		return fmt.Errorf("%w: term %d", ErrInvalidUplift, term)
	}
	if s.values == nil {
		s.values = make(map[upliftKey]float64)
	}
	s.values[upliftKey{meterType: meterType, component: component, term: term}] = value
	return nil
}

// Lookup returns the uplift for a component and term, and whether one was entered.
func (s UpliftSet) Lookup(meterType MeterType, component Component, term ContractTerm) (float64, bool) {
	if v, ok := s.values[upliftKey{meterType: meterType, component: component, term: term}]; ok {
		return v, true
	}
	v, ok := s.values[upliftKey{meterType: meterType, component: component, term: AllTerms}]
	return v, ok
}

// Len returns the number of stored entries.
func (s UpliftSet) Len() int { return len(s.values) }
