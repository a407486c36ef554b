package pricing

import "strings"

// Field identifies a column of a supplier tender sheet.
type Field string

const (
	FieldMeterID            Field = "meter_id"
	FieldContractStart      Field = "contract_start_date"
	FieldContractEnd        Field = "contract_end_date"
	FieldEAC                Field = "eac"
	FieldStandingCharge     Field = "standing_charge"
	FieldStandardRate       Field = "standard_rate"
	FieldDayRate            Field = "day_rate"
	FieldNightRate          Field = "night_rate"
	FieldEveningWeekendRate Field = "evening_weekend_rate"
	FieldAllYearDayRate     Field = "all_year_day_rate"
	FieldAllYearNightRate   Field = "all_year_night_rate"
	FieldDUoS               Field = "duos"
	FieldMeteringCharge     Field = "metering_charge"
)

type fieldSpec struct {
	field   Field
	column  string
	aliases []string
	numeric bool
}

var fieldSpecs = []fieldSpec{
	{field: FieldMeterID, column: "MPXN", aliases: []string{"MPAN", "MPRN", "Meter ID"}},
	{field: FieldContractStart, column: "CSD", aliases: []string{"Contract Start Date"}},
	{field: FieldContractEnd, column: "CED", aliases: []string{"Contract End Date"}},
	{field: FieldEAC, column: "EAC", aliases: []string{"EAC (kWh)"}, numeric: true},
	{field: FieldStandingCharge, column: "Standing Charge (p/day)", numeric: true},
	{field: FieldStandardRate, column: "Standard Rate (p/kWh)", aliases: []string{"Unit Rate (p/kWh)"}, numeric: true},
	{field: FieldDayRate, column: "Day Rate (p/kWh)", numeric: true},
	{field: FieldNightRate, column: "Night Rate (p/kWh)", numeric: true},
	{field: FieldEveningWeekendRate, column: "E/W Rate (p/kWh)", aliases: []string{"Evening Weekend Rate (p/kWh)", "Evening & Weekend Rate (p/kWh)"}, numeric: true},
	{field: FieldAllYearDayRate, column: "All Year - Day Rate (p/kWh)", numeric: true},
	{field: FieldAllYearNightRate, column: "All Year - Night Rate (p/kWh)", numeric: true},
	{field: FieldDUoS, column: "DUoS (p/KVA/Day)", aliases: []string{"Capacity Rate (p/kVA/day)"}, numeric: true},
	{field: FieldMeteringCharge, column: "Metering Charge (p/day)", numeric: true},
}

var fieldsByHeader = func() map[string]Field {
	out := make(map[string]Field)
	for _, spec := range fieldSpecs {
		out[normalizeHeader(spec.column)] = spec.field
		for _, alias := range spec.aliases {
			out[normalizeHeader(alias)] = spec.field
		}
	}
	return out
}()

// FieldForHeader maps a sheet header to a field.
func FieldForHeader(header string) (Field, bool) {
	field, ok := fieldsByHeader[normalizeHeader(header)]
	return field, ok
}

// Column returns the canonical sheet header.
func (f Field) Column() string {
	for _, spec := range fieldSpecs {
		if spec.field == f {
			return spec.column
		}
	}
	return string(f)
}

// Numeric reports whether the field carries a number.
func (f Field) Numeric() bool {
	for _, spec := range fieldSpecs {
		if spec.field == f {
			return spec.numeric
		}
	}
	return false
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.Join(strings.Fields(header), " "))
}
