package pricing

import "strings"

// Component is a logical tariff component carried by a term block.
type Component string

const (
	ComponentStandingCharge     Component = "standing_charge"
	ComponentUnitRate           Component = "unit_rate"
	ComponentDayRate            Component = "day_rate"
	ComponentNightRate          Component = "night_rate"
	ComponentEveningWeekendRate Component = "evening_weekend_rate"
	ComponentDUoS               Component = "duos_charge"
	ComponentMeteringCharge     Component = "metering_charge"
)

// Unit is the pricing unit of a component.
type Unit string

const (
	UnitPencePerDay    Unit = "p/day"
	UnitPencePerKWh    Unit = "p/kWh"
	UnitPencePerKVADay Unit = "p/kVA/day"
)

var componentLabels = map[Component]string{
	ComponentStandingCharge:     "Standing Charge",
	ComponentUnitRate:           "Unit Rate",
	ComponentDayRate:            "Day Rate",
	ComponentNightRate:          "Night Rate",
	ComponentEveningWeekendRate: "E/W Rate",
	ComponentDUoS:               "DUoS",
	ComponentMeteringCharge:     "Metering Charge",
}

var componentAliases = map[string]Component{
	"standing_charge":      ComponentStandingCharge,
	"standing charge":      ComponentStandingCharge,
	"sc":                   ComponentStandingCharge,
	"s/c":                  ComponentStandingCharge,
	"unit_rate":            ComponentUnitRate,
	"unit rate":            ComponentUnitRate,
	"standard_rate":        ComponentUnitRate,
	"standard rate":        ComponentUnitRate,
	"day_rate":             ComponentDayRate,
	"day rate":             ComponentDayRate,
	"day":                  ComponentDayRate,
	"night_rate":           ComponentNightRate,
	"night rate":           ComponentNightRate,
	"night":                ComponentNightRate,
	"evening_weekend_rate": ComponentEveningWeekendRate,
	"evening_weekend":      ComponentEveningWeekendRate,
	"e/w":                  ComponentEveningWeekendRate,
	"e/w rate":             ComponentEveningWeekendRate,
	"ew":                   ComponentEveningWeekendRate,
	"duos_charge":          ComponentDUoS,
	"duos":                 ComponentDUoS,
	"capacity":             ComponentDUoS,
	"capacity_rate":        ComponentDUoS,
	"metering_charge":      ComponentMeteringCharge,
	"metering charge":      ComponentMeteringCharge,
	"metering":             ComponentMeteringCharge,
}

// ParseComponent resolves a user supplied component name. Unknown names report false.
func ParseComponent(name string) (Component, bool) {
	c, ok := componentAliases[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Label returns the display name used in output headers.
func (c Component) Label() string {
	if label, ok := componentLabels[c]; ok {
		return label
	}
	return string(c)
}

// Unit returns the pricing unit.
func (c Component) Unit() Unit {
	switch c {
	case ComponentStandingCharge, ComponentMeteringCharge:
		return UnitPencePerDay
	case ComponentDUoS:
		return UnitPencePerKVADay
	default:
		return UnitPencePerKWh
	}
}

// componentSources maps each component to the tender field it is read from, per meter type.
var componentSources = map[MeterType][]struct {
	component Component
	field     Field
}{
	MeterTypeNHH: {
		{ComponentStandingCharge, FieldStandingCharge},
		{ComponentUnitRate, FieldStandardRate},
		{ComponentDayRate, FieldDayRate},
		{ComponentNightRate, FieldNightRate},
		{ComponentEveningWeekendRate, FieldEveningWeekendRate},
	},
	MeterTypeHH: {
		{ComponentStandingCharge, FieldStandingCharge},
		{ComponentDayRate, FieldAllYearDayRate},
		{ComponentNightRate, FieldAllYearNightRate},
		{ComponentDUoS, FieldDUoS},
		{ComponentMeteringCharge, FieldMeteringCharge},
	},
}

// ComponentsFor lists the components meaningful for a meter type, in output order.
func ComponentsFor(meterType MeterType) []Component {
	sources := componentSources[meterType]
	out := make([]Component, 0, len(sources))
	for _, src := range sources {
		out = append(out, src.component)
	}
	return out
}

// SourceField returns the tender field a component is read from for a meter type.
func SourceField(meterType MeterType, component Component) (Field, bool) {
	for _, src := range componentSources[meterType] {
		if src.component == component {
			return src.field, true
		}
	}
	return "", false
}
