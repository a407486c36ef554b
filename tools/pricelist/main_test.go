package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	pricing "broker-pricing/internal/pricing/domain"
)

func writeTender(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Green"))
	rows := [][]any{
		{"MPXN", "CSD", "CED", "EAC", "Standing Charge (p/day)", "Day Rate (p/kWh)", "Night Rate (p/kWh)", "E/W Rate (p/kWh)"},
		{"A", "01/04/2025", "01/04/2026", 10000, 20, 15, 10, 12},
		{"A", "01/04/2025", "01/04/2027", 10000, 21, 14, 9, 11},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := row
		require.NoError(t, f.SetSheetRow("Green", cell, &values))
	}
	path := filepath.Join(dir, "acme tender.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PRICING_CONFIG", "LOG_LEVEL", "PRICING_DEFAULT_SHEET", "PRICING_TERM_POLICY", "PRICING_UPLIFT_MODE"} {
		t.Setenv(key, "")
	}
}

func TestRun_WritesBrokerOutput(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	upliftPath := filepath.Join(dir, "uplifts.yaml")
	require.NoError(t, os.WriteFile(upliftPath, []byte(`
uplifts:
  - {meter_type: nhh, component: day, term: 12m, value: 1}
meters:
  A:
    - {term: 12 months, component: standing_charge, value: 10}
  missing:
    - {term: 12, component: day, value: 1}
`), 0o600))

	opts := &options{
		input:      writeTender(t, dir),
		sheet:      "green",
		company:    "Acme Ltd",
		upliftPath: upliftPath,
		outDir:     filepath.Join(dir, "out"),
		pdf:        true,
	}
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &stdout))
	assert.Contains(t, stdout.String(), "broker_output_acme_tender.xlsx")

	f, err := excelize.OpenFile(filepath.Join(dir, "out", "broker_output_acme_tender.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	cost, err := f.GetCellValue("NHH", "L2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1449.5", cost)

	_, err = os.Stat(filepath.Join(dir, "out", "broker_output_acme_tender.pdf"))
	assert.NoError(t, err)
}

func TestRun_MissingInput(t *testing.T) {
	clearEnv(t)
	err := run(context.Background(), &options{input: filepath.Join(t.TempDir(), "nope.xlsx"), outDir: t.TempDir()}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestLoadUpliftFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.yaml")
	require.NoError(t, os.WriteFile(path, []byte("uplifts:\n  - {meter_type: hh, component: duos, term: 24m, value: 0.25}\n"), 0o600))
	file, err := loadUpliftFile(path)
	require.NoError(t, err)
	require.Len(t, file.Uplifts, 1)
	assert.Equal(t, pricing.MeterTypeHH, file.Uplifts[0].MeterType)
	assert.Equal(t, pricing.Term24, file.Uplifts[0].Term)
	assert.Equal(t, "duos", file.Uplifts[0].Component)
	assert.Equal(t, 0.25, file.Uplifts[0].Value)

	require.NoError(t, os.WriteFile(path, []byte("uplifts:\n  - {meter_type: HH, component: day, term: 18m, value: 1}\n"), 0o600))
	_, err = loadUpliftFile(path)
	assert.ErrorIs(t, err, pricing.ErrUnsupportedContractTerm)

	_, err = loadUpliftFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
