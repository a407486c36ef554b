package application

import (
	"fmt"
	"path/filepath"
	"strings"

	pricing "broker-pricing/internal/pricing/domain"
)

// XLSXContentType is the MIME type of the broker workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WarningsTableName is the name of the table listing the batch report.
const WarningsTableName = "Warnings"

var metadataColumns = []string{
	"Company Name",
	"Company Reg",
	"MPXN",
	"Meter Type",
	"Standard/Green",
	"Contract Start Date",
	"EAC (kWh)",
}

// Table is a rectangular export table. Nil cells are written empty.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// BrokerOutput is the final export: one table per meter type and the warnings.
type BrokerOutput struct {
	Tables []Table
	Report Report
	// Priced keeps the typed results behind the tables for summaries.
	Priced []PricedRecord
}

// Table returns the named table.
func (o BrokerOutput) Table(name string) (Table, bool) {
	for _, t := range o.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// AssembleBrokerOutput flattens priced records into export tables. Rows keep
// input order; terms a meter was not quoted for give empty cells; terms that
// failed to price give a zero cost and are listed in the warnings table.
func AssembleBrokerOutput(priced []PricedRecord, report Report) BrokerOutput {
	out := BrokerOutput{Report: report, Priced: priced}
	for _, meterType := range pricing.MeterTypes {
		var group []PricedRecord
		for _, p := range priced {
			if p.Record.MeterType == meterType {
				group = append(group, p)
			}
		}
		if len(group) == 0 {
			continue
		}
		out.Tables = append(out.Tables, assembleTable(meterType, group))
	}
	if !report.Empty() {
		out.Tables = append(out.Tables, warningsTable(report))
	}
	return out
}

func assembleTable(meterType pricing.MeterType, group []PricedRecord) Table {
	components := observedComponents(meterType, group)

	columns := append([]string{}, metadataColumns...)
	for _, term := range pricing.ContractTerms {
		for _, c := range components {
			columns = append(columns, RateColumn(c, term))
		}
		columns = append(columns, CostColumn(term))
	}

	table := Table{Name: string(meterType), Columns: columns}
	for _, p := range group {
		rec := p.Record
		row := []any{
			rec.CompanyName,
			rec.CompanyReg,
			rec.MeterID,
			string(rec.MeterType),
			rec.Category,
			rec.ContractStart,
			rec.EAC,
		}
		for _, term := range pricing.ContractTerms {
			pt, ok := p.Terms[term]
			if !ok {
				for range components {
					row = append(row, nil)
				}
				row = append(row, nil)
				continue
			}
			for _, c := range components {
				if adj, ok := pt.Adjusted[c]; ok {
					row = append(row, pricing.RoundRate(adj))
				} else {
					row = append(row, nil)
				}
			}
			if pt.OK() {
				row = append(row, pricing.RoundCurrency(pt.Result.TAC))
			} else {
				row = append(row, 0.0)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// observedComponents lists, in canonical order, the components any record of the
// group was quoted for. Standing charge is always present.
func observedComponents(meterType pricing.MeterType, group []PricedRecord) []pricing.Component {
	seen := map[pricing.Component]bool{pricing.ComponentStandingCharge: true}
	for _, p := range group {
		for _, block := range p.Record.Blocks {
			for c := range block.Base {
				seen[c] = true
			}
			for c := range block.Invalid {
				seen[c] = true
			}
		}
	}
	var out []pricing.Component
	for _, c := range pricing.ComponentsFor(meterType) {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func warningsTable(report Report) Table {
	table := Table{
		Name:    WarningsTableName,
		Columns: []string{"Row", "MPXN", "Term", "Kind", "Detail"},
	}
	for _, w := range report.Warnings {
		var row, term any
		if w.SourceRow > 0 {
			row = w.SourceRow
		}
		if w.Term != 0 {
			term = w.Term.Suffix()
		}
		table.Rows = append(table.Rows, []any{row, w.MeterID, term, string(w.Kind), w.Detail})
	}
	return table
}

// RateColumn names an adjusted component column, e.g. "Standing Charge 12m (p/day)".
func RateColumn(c pricing.Component, term pricing.ContractTerm) string {
	return fmt.Sprintf("%s %s (%s)", c.Label(), term.Suffix(), c.Unit())
}

// CostColumn names the annual cost column for a term.
func CostColumn(term pricing.ContractTerm) string {
	return fmt.Sprintf("Annual Cost %s (£)", term.Suffix())
}

// ExportFileName builds "broker_output_<source>.<ext>" from an uploaded file name.
func ExportFileName(source, ext string) string {
	base := filepath.Base(strings.ReplaceAll(source, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		}
		return -1
	}, stem)
	if stem == "" || stem == "_" {
		stem = "prices"
	}
	return "broker_output_" + stem + "." + strings.TrimPrefix(ext, ".")
}
