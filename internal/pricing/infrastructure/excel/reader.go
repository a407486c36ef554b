package excel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
}

// Reader parses supplier tender workbooks.
type Reader struct {
	logger *zap.Logger
}

// NewReader constructs a reader.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// ReadSheet reads the pricing category sheet of a workbook. The sheet name is
// matched case-insensitively. The first row is the header; unknown headers are
// ignored and blank rows are skipped.
func (r *Reader) ReadSheet(ctx context.Context, workbook io.Reader, sheet string) (pricing.TariffSheet, error) {
	if workbook == nil {
		return pricing.TariffSheet{}, errors.New("excel reader: nil workbook")
	}
	f, err := excelize.OpenReader(workbook)
	if err != nil {
		return pricing.TariffSheet{}, fmt.Errorf("excel reader: open workbook: %w", err)
	}
	defer f.Close()

	name, ok := resolveSheet(f.GetSheetList(), sheet)
	if !ok {
		return pricing.TariffSheet{}, fmt.Errorf("%w: %q", application.ErrSheetNotFound, sheet)
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return pricing.TariffSheet{}, fmt.Errorf("excel reader: read sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return pricing.NewTariffSheet(name, nil), nil
	}

	header := make(map[int]pricing.Field)
	var columns []pricing.Field
	seen := make(map[pricing.Field]bool)
	for i, cell := range rows[0] {
		field, ok := pricing.FieldForHeader(cell)
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		header[i] = field
		columns = append(columns, field)
	}

	tariffRows := make([]pricing.TariffRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return pricing.TariffSheet{}, err
		}
		if blank(cells) {
			continue
		}
		tariffRows = append(tariffRows, parseRow(i+2, cells, header))
	}

	r.logger.Debug("tender sheet read",
		zap.String("sheet", name),
		zap.Int("columns", len(columns)),
		zap.Int("rows", len(tariffRows)))
	return pricing.NewTariffSheet(name, tariffRows, columns...), nil
}

func resolveSheet(sheets []string, want string) (string, bool) {
	want = strings.TrimSpace(want)
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), want) {
			return s, true
		}
	}
	return "", false
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(sourceRow int, cells []string, header map[int]pricing.Field) pricing.TariffRow {
	row := pricing.TariffRow{
		SourceRow: sourceRow,
		Values:    make(map[pricing.Field]float64),
	}
	for idx, field := range header {
		if idx >= len(cells) {
			continue
		}
		raw := strings.TrimSpace(cells[idx])
		if raw == "" {
			continue
		}
		switch field {
		case pricing.FieldMeterID:
			row.MeterID = normalizeMeterID(raw)
		case pricing.FieldContractStart, pricing.FieldContractEnd:
			t, err := parseDate(raw)
			if err != nil {
				markInvalid(&row, field, raw)
				continue
			}
			if field == pricing.FieldContractStart {
				row.ContractStart = t
			} else {
				row.ContractEnd = t
			}
		default:
			if !field.Numeric() {
				continue
			}
			v, err := parseNumber(raw)
			if err != nil {
				markInvalid(&row, field, raw)
				continue
			}
			row.Values[field] = v
		}
	}
	return row
}

func markInvalid(row *pricing.TariffRow, field pricing.Field, raw string) {
	if row.Invalid == nil {
		row.Invalid = make(map[pricing.Field]string)
	}
	row.Invalid[field] = raw
}

// normalizeMeterID undoes spreadsheet number formatting of long meter ids,
// e.g. "1.2345678901234E+12" or "1234567890123.0".
func normalizeMeterID(raw string) string {
	if !strings.ContainsAny(raw, ".eE") {
		return raw
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != float64(int64(v)) {
		return raw
	}
	return strconv.FormatInt(int64(v), 10)
}

// parseDate accepts Excel serial numbers and day-first text dates.
func parseDate(raw string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return dateOnly(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("excel reader: unrecognised date %q", raw)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseNumber(raw string) (float64, error) {
	cleaned := strings.NewReplacer("£", "", ",", "", " ", "").Replace(raw)
	cleaned = strings.TrimSuffix(cleaned, "p")
	return strconv.ParseFloat(cleaned, 64)
}
