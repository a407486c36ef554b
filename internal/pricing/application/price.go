package application

import (
	"github.com/shopspring/decimal"

	pricing "broker-pricing/internal/pricing/domain"
)

// PricedTerm is the typed outcome of pricing one term: a cost or a failure reason.
type PricedTerm struct {
	Term pricing.ContractTerm
	// Adjusted holds base plus uplift for every quoted component, even when TAC failed.
	Adjusted map[pricing.Component]decimal.Decimal
	Result   pricing.TACResult
	Err      error
}

// OK reports whether the term priced successfully.
func (p PricedTerm) OK() bool { return p.Err == nil }

// PricedRecord pairs a meter record with its priced terms.
type PricedRecord struct {
	Record *pricing.MeterRecord
	Terms  map[pricing.ContractTerm]PricedTerm
}

// PriceRecords computes TAC for every quoted term from the records' current state.
// Failures are kept per term and listed in the report; they never stop the batch.
func PriceRecords(records []*pricing.MeterRecord, calc *pricing.TACCalculator) ([]PricedRecord, Report) {
	var report Report
	out := make([]PricedRecord, 0, len(records))
	for _, rec := range records {
		priced := PricedRecord{Record: rec, Terms: make(map[pricing.ContractTerm]PricedTerm, len(rec.Blocks))}
		for _, term := range rec.Terms() {
			block, _ := rec.Block(term)
			pt := PricedTerm{Term: term, Adjusted: make(map[pricing.Component]decimal.Decimal, len(block.Base))}
			for component := range block.Base {
				pt.Adjusted[component], _ = block.Adjusted(component, calc.Mode())
			}
			pt.Result, pt.Err = calc.Calculate(rec.MeterType, block)
			if pt.Err != nil {
				report.add(Warning{
					Kind:      WarningComputation,
					SourceRow: block.SourceRow,
					MeterID:   rec.MeterID,
					Term:      term,
					Detail:    pt.Err.Error(),
				})
			}
			priced.Terms[term] = pt
		}
		out = append(out, priced)
	}
	return out, report
}
