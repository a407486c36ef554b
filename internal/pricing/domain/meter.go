package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MeterType separates half-hourly and non-half-hourly supplies.
type MeterType string

const (
	MeterTypeHH  MeterType = "HH"
	MeterTypeNHH MeterType = "NHH"
)

// MeterTypes lists meter types in output order.
var MeterTypes = []MeterType{MeterTypeNHH, MeterTypeHH}

var hhDeterminants = []Field{
	FieldAllYearDayRate,
	FieldAllYearNightRate,
	FieldDUoS,
	FieldStandingCharge,
}

// Classify returns HH only when all four half-hourly determinants are populated.
// Any row missing one of them is NHH; classification never fails.
func Classify(row TariffRow) MeterType {
	for _, field := range hhDeterminants {
		if !row.Has(field) {
			return MeterTypeNHH
		}
	}
	return MeterTypeHH
}

// ParseMeterType parses "HH" or "NHH" case-insensitively.
func ParseMeterType(value string) (MeterType, bool) {
	switch MeterType(strings.ToUpper(strings.TrimSpace(value))) {
	case MeterTypeHH:
		return MeterTypeHH, true
	case MeterTypeNHH:
		return MeterTypeNHH, true
	}
	return "", false
}

// UnmarshalJSON reads "hh" or "NHH" in any case. Unknown values are kept as
// given so uplift validation can name them.
func (m *MeterType) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("pricing: meter type: %w", err)
	}
	m.set(text)
	return nil
}

// UnmarshalYAML behaves like UnmarshalJSON.
func (m *MeterType) UnmarshalYAML(node *yaml.Node) error {
	m.set(node.Value)
	return nil
}

func (m *MeterType) set(value string) {
	if mt, ok := ParseMeterType(value); ok {
		*m = mt
		return
	}
	*m = MeterType(strings.TrimSpace(value))
}
