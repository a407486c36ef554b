package application

import (
	"errors"
	"fmt"
	"strings"

	pricing "broker-pricing/internal/pricing/domain"
)

var requiredFields = []pricing.Field{
	pricing.FieldMeterID,
	pricing.FieldContractStart,
	pricing.FieldContractEnd,
	pricing.FieldEAC,
}

// PivotOptions carries the user inputs stamped onto every record.
type PivotOptions struct {
	CompanyName string
	CompanyReg  string
	Resolver    pricing.TermResolver
}

// PivotResult is the pivoted sheet.
type PivotResult struct {
	// Records are in meter encounter order.
	Records []*pricing.MeterRecord
	Report  Report
	HHRows  int
	NHHRows int
}

// BuildMeterRecords classifies, term-tags and reshapes tariff rows into one record
// per meter. The first row for a (meter, term) pair wins. A sheet without one of
// the required columns fails with a *pricing.MissingFieldError and no records.
func BuildMeterRecords(sheet pricing.TariffSheet, opts PivotOptions) (PivotResult, error) {
	for _, field := range requiredFields {
		if !sheet.HasColumn(field) {
			return PivotResult{}, &pricing.MissingFieldError{Field: field}
		}
	}
	resolver := opts.Resolver
	if resolver.Policy == "" {
		resolver.Policy = pricing.TermPolicyCalendar
	}

	var result PivotResult
	byMeter := make(map[string]*pricing.MeterRecord)
	for _, row := range sheet.Rows {
		if row.MeterID == "" {
			result.Report.add(Warning{
				Kind:      WarningMissingMeterID,
				SourceRow: row.SourceRow,
				Detail:    "row has no meter id",
			})
			continue
		}

		meterType := pricing.Classify(row)
		term, err := resolver.Resolve(row.ContractStart, row.ContractEnd)
		if err != nil {
			result.Report.add(termWarning(row, err))
			continue
		}

		rec, ok := byMeter[row.MeterID]
		if !ok {
			rec, err = pricing.NewMeterRecord(row.MeterID, meterType, row.ContractStart)
			if err != nil {
				return PivotResult{}, err
			}
			rec.Category = sheet.Name
			rec.CompanyName = opts.CompanyName
			rec.CompanyReg = opts.CompanyReg
			if eac, ok := row.Value(pricing.FieldEAC); ok {
				rec.EAC = eac
			}
			byMeter[row.MeterID] = rec
			result.Records = append(result.Records, rec)
		}
		if rec.MeterType != meterType {
			result.Report.add(Warning{
				Kind:      WarningMeterTypeConflict,
				SourceRow: row.SourceRow,
				MeterID:   row.MeterID,
				Term:      term,
				Detail:    fmt.Sprintf("row classified %s but meter was first quoted as %s", meterType, rec.MeterType),
			})
			continue
		}
		if !rec.AddBlock(pricing.NewTermBlock(meterType, term, row)) {
			result.Report.add(Warning{
				Kind:      WarningDuplicateTermRow,
				SourceRow: row.SourceRow,
				MeterID:   row.MeterID,
				Term:      term,
				Detail:    "duplicate quote for term ignored, first row kept",
			})
			continue
		}
		if meterType == pricing.MeterTypeHH {
			result.HHRows++
		} else {
			result.NHHRows++
		}
	}
	return result, nil
}

func termWarning(row pricing.TariffRow, err error) Warning {
	w := Warning{SourceRow: row.SourceRow, MeterID: row.MeterID, Detail: err.Error()}
	if errors.Is(err, pricing.ErrUnsupportedContractTerm) {
		w.Kind = WarningUnsupportedTerm
		w.Detail = fmt.Sprintf("%v (%s to %s)", err,
			row.ContractStart.Format("02/01/2006"),
			row.ContractEnd.Format("02/01/2006"))
		return w
	}
	w.Kind = WarningInvalidDates
	var unreadable []string
	for _, field := range []pricing.Field{pricing.FieldContractStart, pricing.FieldContractEnd} {
		if raw, ok := row.Invalid[field]; ok {
			unreadable = append(unreadable, fmt.Sprintf("%s %q", field.Column(), raw))
		}
	}
	if len(unreadable) > 0 {
		w.Detail = fmt.Sprintf("%v: unreadable %s", err, strings.Join(unreadable, ", "))
	}
	return w
}
