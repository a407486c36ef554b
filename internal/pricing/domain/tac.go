package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// DaysPerYear is the number of standing charge days in an annual cost.
const DaysPerYear = 365

// WeightProfile names a consumption split used to weight banded rates.
type WeightProfile string

const (
	ProfileNHHThreeRate WeightProfile = "nhh_three_rate"
	ProfileNHHTwoRate   WeightProfile = "nhh_two_rate"
	ProfileHH           WeightProfile = "hh"
)

var profileBands = map[WeightProfile][]Component{
	ProfileNHHThreeRate: {ComponentDayRate, ComponentNightRate, ComponentEveningWeekendRate},
	ProfileNHHTwoRate:   {ComponentDayRate, ComponentNightRate},
	ProfileHH:           {ComponentDayRate, ComponentNightRate},
}

// Weights is the share of annual consumption billed at each band.
type Weights map[Component]float64

// WeightTable holds one Weights per profile.
type WeightTable map[WeightProfile]Weights

// DefaultWeightTable returns the standard splits: 50/30/20 for three-rate NHH
// and 70/30 for two-rate NHH and HH.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		ProfileNHHThreeRate: {ComponentDayRate: 0.50, ComponentNightRate: 0.30, ComponentEveningWeekendRate: 0.20},
		ProfileNHHTwoRate:   {ComponentDayRate: 0.70, ComponentNightRate: 0.30},
		ProfileHH:           {ComponentDayRate: 0.70, ComponentNightRate: 0.30},
	}
}

// Merge overlays the profiles of other onto a copy of t.
func (t WeightTable) Merge(other WeightTable) WeightTable {
	out := make(WeightTable, len(t))
	for profile, weights := range t {
		out[profile] = weights
	}
	for profile, weights := range other {
		if len(weights) > 0 {
			out[profile] = weights
		}
	}
	return out
}

// Validate checks every profile is present, covers exactly its bands and sums to 1.
func (t WeightTable) Validate() error {
	for profile, bands := range profileBands {
		weights, ok := t[profile]
		if !ok {
			return fmt.Errorf("%w: profile %s missing", ErrInvalidWeights, profile)
		}
		if len(weights) != len(bands) {
			return fmt.Errorf("%w: profile %s needs %d bands, got %d", ErrInvalidWeights, profile, len(bands), len(weights))
		}
		var sum float64
		for _, band := range bands {
			w, ok := weights[band]
			if !ok {
				return fmt.Errorf("%w: profile %s missing band %s", ErrInvalidWeights, profile, band)
			}
			if w < 0 {
				return fmt.Errorf("%w: profile %s band %s is negative", ErrInvalidWeights, profile, band)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			return fmt.Errorf("%w: profile %s sums to %.6f", ErrInvalidWeights, profile, sum)
		}
	}
	return nil
}

// LossFactors scale consumption before it is priced. Zero values mean 1.
type LossFactors struct {
	Distribution float64 `yaml:"distribution" json:"distribution"`
	Loss         float64 `yaml:"loss" json:"loss"`
	Adjustment   float64 `yaml:"adjustment" json:"adjustment"`
}

func (l LossFactors) multiplier() decimal.Decimal {
	m := decimal.NewFromInt(1)
	for _, f := range []float64{l.Distribution, l.Loss, l.Adjustment} {
		if f != 0 {
			m = m.Mul(decimal.NewFromFloat(f))
		}
	}
	return m
}

// Formula identifies which annual cost formula priced a block.
type Formula string

const (
	FormulaNHHBanded Formula = "nhh_banded"
	FormulaHH        Formula = "hh"
	FormulaSimple    Formula = "simple"
)

// TACResult is the priced outcome of a term block. Values are unrounded.
type TACResult struct {
	Formula  Formula
	Profile  WeightProfile
	Adjusted map[Component]decimal.Decimal
	TAC      decimal.Decimal
}

// TACCalculator prices term blocks.
type TACCalculator struct {
	weights WeightTable
	mode    UpliftMode
	losses  LossFactors
}

// NewTACCalculator validates the weights and constructs a calculator.
func NewTACCalculator(weights WeightTable, mode UpliftMode, losses LossFactors) (*TACCalculator, error) {
	if weights == nil {
		weights = DefaultWeightTable()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = UpliftAdditive
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidUplift, mode)
	}
	for _, f := range []float64{losses.Distribution, losses.Loss, losses.Adjustment} {
		if f < 0 {
			return nil, fmt.Errorf("pricing: negative loss factor %.4f", f)
		}
	}
	return &TACCalculator{weights: weights, mode: mode, losses: losses}, nil
}

// Mode returns the uplift mode the calculator applies.
func (c *TACCalculator) Mode() UpliftMode { return c.mode }

var daysPerYear = decimal.NewFromInt(DaysPerYear)

func (c *TACCalculator) adjust(block *TermBlock) (map[Component]decimal.Decimal, error) {
	if block == nil {
		return nil, computationErrorf("no quote for term")
	}
	if len(block.Invalid) > 0 {
		keys := make([]string, 0, len(block.Invalid))
		for k := range block.Invalid {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		return nil, computationErrorf("non-numeric %s value %q", keys[0], block.Invalid[Component(keys[0])])
	}
	adjusted := make(map[Component]decimal.Decimal, len(block.Base))
	for component := range block.Base {
		adjusted[component], _ = block.Adjusted(component, c.mode)
	}
	return adjusted, nil
}

// dailyCharges sums the per-day charges: standing charge, plus DUoS and metering for HH.
func dailyCharges(meterType MeterType, adjusted map[Component]decimal.Decimal) (decimal.Decimal, error) {
	standing, ok := adjusted[ComponentStandingCharge]
	if !ok {
		return decimal.Zero, computationErrorf("missing standing charge")
	}
	if meterType != MeterTypeHH {
		return standing, nil
	}
	duos, ok := adjusted[ComponentDUoS]
	if !ok {
		return decimal.Zero, computationErrorf("missing DUoS charge")
	}
	standing = standing.Add(duos)
	if metering, ok := adjusted[ComponentMeteringCharge]; ok {
		standing = standing.Add(metering)
	}
	return standing, nil
}

// Calculate prices a block. Errors wrap ErrComputation.
func (c *TACCalculator) Calculate(meterType MeterType, block *TermBlock) (TACResult, error) {
	adjusted, err := c.adjust(block)
	if err != nil {
		return TACResult{}, err
	}
	if !block.HasEAC {
		return TACResult{}, computationErrorf("missing EAC")
	}
	if block.EAC < 0 {
		return TACResult{}, computationErrorf("negative EAC %.3f", block.EAC)
	}
	standing, err := dailyCharges(meterType, adjusted)
	if err != nil {
		return TACResult{}, err
	}
	eac := decimal.NewFromFloat(block.EAC).Mul(c.losses.multiplier())

	result := TACResult{Adjusted: adjusted}
	var energy decimal.Decimal
	switch meterType {
	case MeterTypeHH:
		weighted, err := c.weighted(ProfileHH, eac, adjusted)
		if err != nil {
			return TACResult{}, err
		}
		result.Formula, result.Profile, energy = FormulaHH, ProfileHH, weighted
	default:
		profile, ok := nhhProfile(block)
		if !ok {
			unit, hasUnit := adjusted[ComponentUnitRate]
			if !hasUnit {
				return TACResult{}, computationErrorf("no unit rate or complete day/night bands")
			}
			result.Formula, energy = FormulaSimple, unit.Mul(eac)
			break
		}
		weighted, err := c.weighted(profile, eac, adjusted)
		if err != nil {
			return TACResult{}, err
		}
		result.Formula, result.Profile, energy = FormulaNHHBanded, profile, weighted
	}

	result.TAC = standing.Mul(daysPerYear).Add(energy).Div(hundred)
	return result, nil
}

// Scenario is a consumption profile priced over a given number of contract days.
type Scenario struct {
	// Consumption is kWh per energy band, e.g. day and night.
	Consumption  map[Component]float64
	ContractDays int
}

// CalculateScenario prices a block for a scenario: the daily charges times the
// contract days plus each band's kWh, scaled by the loss factors, at its adjusted
// rate. Errors wrap ErrComputation.
func (c *TACCalculator) CalculateScenario(meterType MeterType, block *TermBlock, scenario Scenario) (decimal.Decimal, error) {
	adjusted, err := c.adjust(block)
	if err != nil {
		return decimal.Zero, err
	}
	if scenario.ContractDays <= 0 {
		return decimal.Zero, computationErrorf("contract days must be positive, got %d", scenario.ContractDays)
	}
	if len(scenario.Consumption) == 0 {
		return decimal.Zero, computationErrorf("no consumption given")
	}
	daily, err := dailyCharges(meterType, adjusted)
	if err != nil {
		return decimal.Zero, err
	}

	bands := make([]string, 0, len(scenario.Consumption))
	for band := range scenario.Consumption {
		bands = append(bands, string(band))
	}
	sort.Strings(bands)
	losses := c.losses.multiplier()
	energy := decimal.Zero
	for _, name := range bands {
		band := Component(name)
		kwh := scenario.Consumption[band]
		if kwh < 0 {
			return decimal.Zero, computationErrorf("negative %s consumption %.3f", band, kwh)
		}
		rate, ok := adjusted[band]
		if !ok || band.Unit() != UnitPencePerKWh {
			return decimal.Zero, computationErrorf("no %s rate quoted", band)
		}
		energy = energy.Add(decimal.NewFromFloat(kwh).Mul(losses).Mul(rate))
	}
	days := decimal.NewFromInt(int64(scenario.ContractDays))
	return daily.Mul(days).Add(energy).Div(hundred), nil
}

func nhhProfile(block *TermBlock) (WeightProfile, bool) {
	if !block.Has(ComponentDayRate) || !block.Has(ComponentNightRate) {
		return "", false
	}
	if block.Has(ComponentEveningWeekendRate) {
		return ProfileNHHThreeRate, true
	}
	return ProfileNHHTwoRate, true
}

func (c *TACCalculator) weighted(profile WeightProfile, eac decimal.Decimal, adjusted map[Component]decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, band := range profileBands[profile] {
		rate, ok := adjusted[band]
		if !ok {
			return decimal.Zero, computationErrorf("missing %s", band)
		}
		weight := decimal.NewFromFloat(c.weights[profile][band])
		total = total.Add(eac.Mul(weight).Mul(rate))
	}
	return total, nil
}

// RoundRate rounds an adjusted rate for display (3 dp).
func RoundRate(d decimal.Decimal) float64 {
	return d.Round(3).InexactFloat64()
}

// RoundCurrency rounds an annual cost for display (2 dp).
func RoundCurrency(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
