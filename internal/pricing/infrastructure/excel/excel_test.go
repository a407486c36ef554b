package excel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func tenderRows() [][]any {
	return [][]any{
		{"MPAN", "Contract Start Date", "CED", "EAC (kWh)", "Standing Charge (p/day)", "Day Rate (p/kWh)", "Night Rate (p/kWh)", "Supplier Notes"},
		{"1200012345678", "01/04/2025", "01/04/2026", 10000, 20, 15, "10", "ignored"},
		{},
		{"1.2000123456790E+12", 45748, "2027-04-01", "12,500", "£21.5", "n/a", 9},
	}
}

func TestReadSheet_ParsesTenderRows(t *testing.T) {
	reader := NewReader(nil)
	sheet, err := reader.ReadSheet(context.Background(), buildWorkbook(t, "Standard", tenderRows()), "standard")
	require.NoError(t, err)

	assert.Equal(t, "Standard", sheet.Name)
	assert.True(t, sheet.HasColumn(pricing.FieldMeterID))
	assert.True(t, sheet.HasColumn(pricing.FieldContractStart))
	assert.True(t, sheet.HasColumn(pricing.FieldEAC))
	assert.False(t, sheet.HasColumn(pricing.FieldDUoS))
	require.Len(t, sheet.Rows, 2)

	first := sheet.Rows[0]
	assert.Equal(t, 2, first.SourceRow)
	assert.Equal(t, "1200012345678", first.MeterID)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), first.ContractStart)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), first.ContractEnd)
	assert.Equal(t, 10000.0, first.Values[pricing.FieldEAC])
	assert.Equal(t, 10.0, first.Values[pricing.FieldNightRate])
	assert.Empty(t, first.Invalid)

	second := sheet.Rows[1]
	assert.Equal(t, 4, second.SourceRow)
	assert.Equal(t, "1200012345679", second.MeterID)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), second.ContractStart)
	assert.Equal(t, time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC), second.ContractEnd)
	assert.Equal(t, 12500.0, second.Values[pricing.FieldEAC])
	assert.Equal(t, 21.5, second.Values[pricing.FieldStandingCharge])
	assert.Equal(t, "n/a", second.Invalid[pricing.FieldDayRate])
	assert.True(t, second.Has(pricing.FieldDayRate))
}

func TestReadSheet_FeedsPivot(t *testing.T) {
	sheet, err := NewReader(nil).ReadSheet(context.Background(), buildWorkbook(t, "Green", tenderRows()), "Green")
	require.NoError(t, err)

	res, err := application.BuildMeterRecords(sheet, application.PivotOptions{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, []pricing.ContractTerm{pricing.Term12}, res.Records[0].Terms())
	assert.Equal(t, []pricing.ContractTerm{pricing.Term24}, res.Records[1].Terms())
	assert.Equal(t, "Green", res.Records[0].Category)
}

func TestReadSheet_KeepsUnreadableDateText(t *testing.T) {
	rows := [][]any{
		{"MPXN", "CSD", "CED", "EAC"},
		{"A", "sometime in April", "01/04/2026", 10000},
	}
	sheet, err := NewReader(nil).ReadSheet(context.Background(), buildWorkbook(t, "Standard", rows), "Standard")
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	row := sheet.Rows[0]
	assert.True(t, row.ContractStart.IsZero())
	assert.Equal(t, "sometime in April", row.Invalid[pricing.FieldContractStart])

	res, err := application.BuildMeterRecords(sheet, application.PivotOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Report.Warnings, 1)
	w := res.Report.Warnings[0]
	assert.Equal(t, application.WarningInvalidDates, w.Kind)
	assert.Equal(t, 2, w.SourceRow)
	assert.Contains(t, w.Detail, `CSD "sometime in April"`)
}

func TestReadSheet_MissingSheet(t *testing.T) {
	_, err := NewReader(nil).ReadSheet(context.Background(), buildWorkbook(t, "Standard", tenderRows()), "Green")
	assert.ErrorIs(t, err, application.ErrSheetNotFound)
}

func TestReadSheet_NotAWorkbook(t *testing.T) {
	_, err := NewReader(nil).ReadSheet(context.Background(), bytes.NewReader([]byte("MPXN,CSD\n")), "Standard")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"15/01/2024", "2024-01-15", "15-01-2024", "45306"} {
		got, err := parseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := parseDate("next tuesday")
	assert.Error(t, err)
}

func TestWriteBrokerWorkbook(t *testing.T) {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	out := application.BrokerOutput{Tables: []application.Table{
		{
			Name:    "NHH",
			Columns: []string{"MPXN", "Contract Start Date", "Annual Cost 12m (£)", "Annual Cost 24m (£)"},
			Rows:    [][]any{{"A", start, 1363.0, nil}},
		},
		{
			Name:    application.WarningsTableName,
			Columns: []string{"Row", "MPXN", "Term", "Kind", "Detail"},
			Rows:    [][]any{{6, "C", nil, "unsupported_contract_term", "5 months"}},
		},
	}}

	data, err := WriteBrokerWorkbook(out)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"NHH", "Warnings"}, f.GetSheetList())
	header, err := f.GetCellValue("NHH", "C1")
	require.NoError(t, err)
	assert.Equal(t, "Annual Cost 12m (£)", header)

	mpxn, _ := f.GetCellValue("NHH", "A2")
	assert.Equal(t, "A", mpxn)
	cost, _ := f.GetCellValue("NHH", "C2", excelize.Options{RawCellValue: true})
	assert.Equal(t, "1363", cost)
	empty, _ := f.GetCellValue("NHH", "D2")
	assert.Equal(t, "", empty)

	started, _ := f.GetCellValue("NHH", "B2", excelize.Options{RawCellValue: true})
	parsed, err := parseDate(started)
	require.NoError(t, err)
	assert.Equal(t, start, parsed)

	kind, _ := f.GetCellValue("Warnings", "D2")
	assert.Equal(t, "unsupported_contract_term", kind)
}

func TestWriteBrokerWorkbook_Empty(t *testing.T) {
	data, err := WriteBrokerWorkbook(application.BrokerOutput{})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Prices"}, f.GetSheetList())
}
