package application

import (
	pricing "broker-pricing/internal/pricing/domain"
)

// WarningKind classifies a non-fatal problem found while pricing.
type WarningKind string

const (
	WarningUnsupportedTerm   WarningKind = "unsupported_contract_term"
	WarningInvalidDates      WarningKind = "invalid_contract_dates"
	WarningDuplicateTermRow  WarningKind = "duplicate_term_row"
	WarningMissingMeterID    WarningKind = "missing_meter_id"
	WarningMeterTypeConflict WarningKind = "meter_type_conflict"
	WarningComputation       WarningKind = "computation_error"
	WarningIgnoredUplift     WarningKind = "ignored_uplift"
)

// Warning is one entry of a batch report.
type Warning struct {
	Kind      WarningKind          `json:"kind"`
	SourceRow int                  `json:"source_row,omitempty"`
	MeterID   string               `json:"meter_id,omitempty"`
	Term      pricing.ContractTerm `json:"term,omitempty"`
	Detail    string               `json:"detail"`
}

// Report aggregates warnings so they can be shown as one list.
type Report struct {
	Warnings []Warning `json:"warnings"`
}

func (r *Report) add(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Count returns the number of warnings of a kind.
func (r Report) Count(kind WarningKind) int {
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// drop removes warnings of a kind recorded against meterID; an empty meterID
// matches session-wide warnings.
func (r *Report) drop(kind WarningKind, meterID string) {
	kept := r.Warnings[:0]
	for _, w := range r.Warnings {
		if w.Kind == kind && w.MeterID == meterID {
			continue
		}
		kept = append(kept, w)
	}
	r.Warnings = kept
}

func (r Report) counts() map[WarningKind]int {
	out := make(map[WarningKind]int)
	for _, w := range r.Warnings {
		out[w.Kind]++
	}
	return out
}

// Empty reports whether nothing was flagged.
func (r Report) Empty() bool { return len(r.Warnings) == 0 }

// Merge returns a report holding r's warnings followed by other's.
func (r Report) Merge(other Report) Report {
	out := Report{Warnings: make([]Warning, 0, len(r.Warnings)+len(other.Warnings))}
	out.Warnings = append(out.Warnings, r.Warnings...)
	out.Warnings = append(out.Warnings, other.Warnings...)
	return out
}
