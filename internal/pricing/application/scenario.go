package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	pricing "broker-pricing/internal/pricing/domain"
)

// Scenario is a what-if consumption profile priced against one quoted term of a meter.
type Scenario struct {
	Name         string               `json:"name" yaml:"name"`
	Term         pricing.ContractTerm `json:"term" yaml:"term"`
	ContractDays int                  `json:"contract_days" yaml:"contract_days"`
	// Consumption is kWh per band keyed by component name, e.g. "day" or "night".
	Consumption map[string]float64 `json:"consumption" yaml:"consumption"`
}

// ScenarioCost is a priced scenario. A scenario that could not be priced carries Error.
type ScenarioCost struct {
	Scenario
	TotalCost *float64 `json:"total_cost,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// PriceScenarios prices consumption profiles against a meter's current uplifted
// rates. A failing scenario reports its error and the rest are still priced.
func (s *Service) PriceScenarios(ctx context.Context, id, meterID string, scenarios []Scenario) ([]ScenarioCost, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, ok := session.Record(meterID)
	if !ok {
		return nil, ErrMeterNotFound
	}

	out := make([]ScenarioCost, 0, len(scenarios))
	failed := 0
	for _, scenario := range scenarios {
		priced := ScenarioCost{Scenario: scenario}
		total, err := s.priceScenario(rec, scenario)
		if err != nil {
			priced.Error = err.Error()
			failed++
		} else {
			cost := pricing.RoundCurrency(total)
			priced.TotalCost = &cost
		}
		out = append(out, priced)
	}
	s.logger.Debug("scenarios priced",
		zap.String("session_id", id),
		zap.String("meter_id", meterID),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("failed", failed))
	return out, nil
}

func (s *Service) priceScenario(rec *pricing.MeterRecord, scenario Scenario) (decimal.Decimal, error) {
	block, ok := rec.Block(scenario.Term)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %d months", pricing.ErrTermNotPresent, scenario.Term)
	}
	names := make([]string, 0, len(scenario.Consumption))
	for name := range scenario.Consumption {
		names = append(names, name)
	}
	sort.Strings(names)
	consumption := make(map[pricing.Component]float64, len(names))
	for _, name := range names {
		component, ok := pricing.ParseComponent(name)
		if !ok {
			return decimal.Zero, fmt.Errorf("unknown consumption band %q", name)
		}
		consumption[component] += scenario.Consumption[name]
	}
	return s.calc.CalculateScenario(rec.MeterType, block, pricing.Scenario{
		Consumption:  consumption,
		ContractDays: scenario.ContractDays,
	})
}
