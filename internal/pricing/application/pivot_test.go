package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pricing "broker-pricing/internal/pricing/domain"
)

var allColumns = []pricing.Field{
	pricing.FieldMeterID,
	pricing.FieldContractStart,
	pricing.FieldContractEnd,
	pricing.FieldEAC,
	pricing.FieldStandingCharge,
	pricing.FieldStandardRate,
	pricing.FieldDayRate,
	pricing.FieldNightRate,
	pricing.FieldEveningWeekendRate,
	pricing.FieldAllYearDayRate,
	pricing.FieldAllYearNightRate,
	pricing.FieldDUoS,
	pricing.FieldMeteringCharge,
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func nhhRow(n int, meterID string, start, end time.Time, sc, day, night, ew float64) pricing.TariffRow {
	return pricing.TariffRow{
		SourceRow:     n,
		MeterID:       meterID,
		ContractStart: start,
		ContractEnd:   end,
		Values: map[pricing.Field]float64{
			pricing.FieldEAC:                10000,
			pricing.FieldStandingCharge:     sc,
			pricing.FieldDayRate:            day,
			pricing.FieldNightRate:          night,
			pricing.FieldEveningWeekendRate: ew,
		},
	}
}

func hhRow(n int, meterID string, start, end time.Time) pricing.TariffRow {
	return pricing.TariffRow{
		SourceRow:     n,
		MeterID:       meterID,
		ContractStart: start,
		ContractEnd:   end,
		Values: map[pricing.Field]float64{
			pricing.FieldEAC:              100000,
			pricing.FieldStandingCharge:   100,
			pricing.FieldAllYearDayRate:   20,
			pricing.FieldAllYearNightRate: 15,
			pricing.FieldDUoS:             50,
			pricing.FieldMeteringCharge:   10,
		},
	}
}

func sampleSheet() pricing.TariffSheet {
	start := d(2025, 4, 1)
	rows := []pricing.TariffRow{
		nhhRow(2, "A", start, d(2026, 4, 1), 20, 15, 10, 12),
		nhhRow(3, "A", start, d(2027, 4, 1), 21, 14, 9, 11),
		hhRow(4, "B", start, d(2026, 4, 1)),
		nhhRow(5, "A", start, d(2026, 4, 1), 99, 99, 99, 99),
		nhhRow(6, "C", start, d(2025, 9, 1), 20, 15, 10, 12),
		nhhRow(7, "C", start, d(2028, 4, 1), 20, 15, 10, 12),
	}
	return pricing.NewTariffSheet("Standard", rows, allColumns...)
}

func TestBuildMeterRecords_OneRecordPerMeterInEncounterOrder(t *testing.T) {
	res, err := BuildMeterRecords(sampleSheet(), PivotOptions{CompanyName: "Acme Ltd", CompanyReg: "01234567"})
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "A", res.Records[0].MeterID)
	assert.Equal(t, "B", res.Records[1].MeterID)
	assert.Equal(t, "C", res.Records[2].MeterID)

	a := res.Records[0]
	assert.Equal(t, pricing.MeterTypeNHH, a.MeterType)
	assert.Equal(t, "Standard", a.Category)
	assert.Equal(t, "Acme Ltd", a.CompanyName)
	assert.Equal(t, "01234567", a.CompanyReg)
	assert.Equal(t, []pricing.ContractTerm{pricing.Term12, pricing.Term24}, a.Terms())

	assert.Equal(t, pricing.MeterTypeHH, res.Records[1].MeterType)
	assert.Equal(t, 3, res.NHHRows)
	assert.Equal(t, 1, res.HHRows)
}

func TestBuildMeterRecords_FirstDuplicateWins(t *testing.T) {
	res, err := BuildMeterRecords(sampleSheet(), PivotOptions{})
	require.NoError(t, err)

	b12, ok := res.Records[0].Block(pricing.Term12)
	require.True(t, ok)
	assert.Equal(t, 20.0, b12.Base[pricing.ComponentStandingCharge])
	assert.Equal(t, 2, b12.SourceRow)
	assert.Equal(t, 1, res.Report.Count(WarningDuplicateTermRow))
}

func TestBuildMeterRecords_UnsupportedTermsDroppedWithWarning(t *testing.T) {
	res, err := BuildMeterRecords(sampleSheet(), PivotOptions{})
	require.NoError(t, err)

	c := res.Records[2]
	assert.Equal(t, []pricing.ContractTerm{pricing.Term36}, c.Terms())
	require.Equal(t, 1, res.Report.Count(WarningUnsupportedTerm))
	for _, w := range res.Report.Warnings {
		if w.Kind == WarningUnsupportedTerm {
			assert.Equal(t, 6, w.SourceRow)
			assert.Equal(t, "C", w.MeterID)
		}
	}
}

func TestBuildMeterRecords_MissingEACFailsFast(t *testing.T) {
	var cols []pricing.Field
	for _, f := range allColumns {
		if f != pricing.FieldEAC {
			cols = append(cols, f)
		}
	}
	sheet := sampleSheet()
	sheet = pricing.NewTariffSheet(sheet.Name, sheet.Rows, cols...)

	res, err := BuildMeterRecords(sheet, PivotOptions{})
	require.ErrorIs(t, err, pricing.ErrMissingRequiredField)
	var missing *pricing.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, pricing.FieldEAC, missing.Field)
	assert.Empty(t, res.Records)
}

func TestBuildMeterRecords_RowCountNeverExceedsDistinctMeters(t *testing.T) {
	start := d(2025, 1, 1)
	var rows []pricing.TariffRow
	for i := 0; i < 30; i++ {
		id := []string{"X", "Y", "Z"}[i%3]
		rows = append(rows, nhhRow(i+2, id, start, d(2026, 1, 1), 20, 15, 10, 12))
	}
	res, err := BuildMeterRecords(pricing.NewTariffSheet("Green", rows, allColumns...), PivotOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 27, res.Report.Count(WarningDuplicateTermRow))
}

func TestBuildMeterRecords_SkipsRowsWithoutMeterOrDates(t *testing.T) {
	rows := []pricing.TariffRow{
		nhhRow(2, "", d(2025, 1, 1), d(2026, 1, 1), 20, 15, 10, 12),
		nhhRow(3, "Q", time.Time{}, d(2026, 1, 1), 20, 15, 10, 12),
	}
	res, err := BuildMeterRecords(pricing.NewTariffSheet("Standard", rows, allColumns...), PivotOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Report.Count(WarningMissingMeterID))
	assert.Equal(t, 1, res.Report.Count(WarningInvalidDates))
}

func TestBuildMeterRecords_MeterTypeConflictKeepsFirstType(t *testing.T) {
	start := d(2025, 1, 1)
	rows := []pricing.TariffRow{
		hhRow(2, "M", start, d(2026, 1, 1)),
		nhhRow(3, "M", start, d(2027, 1, 1), 20, 15, 10, 12),
	}
	res, err := BuildMeterRecords(pricing.NewTariffSheet("Standard", rows, allColumns...), PivotOptions{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, pricing.MeterTypeHH, res.Records[0].MeterType)
	assert.Equal(t, []pricing.ContractTerm{pricing.Term12}, res.Records[0].Terms())
	assert.Equal(t, 1, res.Report.Count(WarningMeterTypeConflict))
}
