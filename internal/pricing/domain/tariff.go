package pricing

import "time"

// TariffRow is one supplier quote line: a meter for a single contract term.
type TariffRow struct {
	// SourceRow is the 1-based sheet row number.
	SourceRow     int
	MeterID       string
	ContractStart time.Time
	ContractEnd   time.Time
	// Values holds parsed numeric cells; a field is absent when the cell was blank.
	Values map[Field]float64
	// Invalid holds the raw text of present cells that failed to parse, numbers and dates alike.
	Invalid map[Field]string
}

// Has reports whether the cell for field was populated, parseable or not.
func (r TariffRow) Has(field Field) bool {
	if _, ok := r.Values[field]; ok {
		return true
	}
	_, ok := r.Invalid[field]
	return ok
}

// Value returns the parsed numeric value of field.
func (r TariffRow) Value(field Field) (float64, bool) {
	v, ok := r.Values[field]
	return v, ok
}

// TariffSheet is a parsed pricing category sheet.
type TariffSheet struct {
	// Name is the pricing category, e.g. "Standard" or "Green".
	Name    string
	Columns map[Field]bool
	Rows    []TariffRow
}

// HasColumn reports whether the sheet header contained field.
func (s TariffSheet) HasColumn(field Field) bool {
	return s.Columns[field]
}

// NewTariffSheet builds a sheet from rows and the header columns it carried.
func NewTariffSheet(name string, rows []TariffRow, columns ...Field) TariffSheet {
	cols := make(map[Field]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	return TariffSheet{Name: name, Columns: cols, Rows: rows}
}
