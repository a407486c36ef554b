package http

import (
	"time"

	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
)

type sessionSummary struct {
	ID          string                `json:"id"`
	Source      string                `json:"source"`
	Category    string                `json:"category"`
	CompanyName string                `json:"company_name"`
	CompanyReg  string                `json:"company_reg"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Meters      int                   `json:"meters"`
	HHMeters    int                   `json:"hh_meters"`
	NHHMeters   int                   `json:"nhh_meters"`
	Warnings    []application.Warning `json:"warnings"`
}

func newSessionSummary(s *application.Session) sessionSummary {
	out := sessionSummary{
		ID:          s.ID,
		Source:      s.Source,
		Category:    s.Category,
		CompanyName: s.CompanyName,
		CompanyReg:  s.CompanyReg,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Meters:      len(s.Records),
		Warnings:    s.Report.Warnings,
	}
	for _, rec := range s.Records {
		if rec.MeterType == pricing.MeterTypeHH {
			out.HHMeters++
		} else {
			out.NHHMeters++
		}
	}
	if out.Warnings == nil {
		out.Warnings = []application.Warning{}
	}
	return out
}

type sessionView struct {
	sessionSummary
	Records []recordView `json:"records"`
}

type recordView struct {
	MeterID       string            `json:"meter_id"`
	MeterType     pricing.MeterType `json:"meter_type"`
	Category      string            `json:"category"`
	ContractStart string            `json:"contract_start"`
	EAC           float64           `json:"eac"`
	Terms         []termView        `json:"terms"`
}

type termView struct {
	Term       pricing.ContractTerm `json:"term"`
	Components []componentView      `json:"components"`
	AnnualCost *float64             `json:"annual_cost"`
	Error      string               `json:"error,omitempty"`
}

type componentView struct {
	Component pricing.Component `json:"component"`
	Label     string            `json:"label"`
	Unit      pricing.Unit      `json:"unit"`
	Base      float64           `json:"base"`
	Uplift    float64           `json:"uplift"`
	Adjusted  float64           `json:"adjusted"`
}

// newSessionView reports the session with the current price of every term, so
// warnings include terms that failed to price.
func newSessionView(s *application.Session, out application.BrokerOutput) sessionView {
	view := sessionView{sessionSummary: newSessionSummary(s), Records: make([]recordView, 0, len(out.Priced))}
	if out.Report.Warnings != nil {
		view.Warnings = out.Report.Warnings
	}
	for _, p := range out.Priced {
		view.Records = append(view.Records, newRecordView(p))
	}
	return view
}

func newRecordView(p application.PricedRecord) recordView {
	rec := p.Record
	view := recordView{
		MeterID:       rec.MeterID,
		MeterType:     rec.MeterType,
		Category:      rec.Category,
		ContractStart: rec.ContractStart.Format("2006-01-02"),
		EAC:           rec.EAC,
		Terms:         []termView{},
	}
	for _, term := range rec.Terms() {
		block, _ := rec.Block(term)
		pt := p.Terms[term]
		tv := termView{Term: term, Components: []componentView{}}
		for _, c := range pricing.ComponentsFor(rec.MeterType) {
			adjusted, ok := pt.Adjusted[c]
			if !ok {
				continue
			}
			tv.Components = append(tv.Components, componentView{
				Component: c,
				Label:     c.Label(),
				Unit:      c.Unit(),
				Base:      block.Base[c],
				Uplift:    block.Uplift(c),
				Adjusted:  pricing.RoundRate(adjusted),
			})
		}
		if pt.OK() {
			cost := pricing.RoundCurrency(pt.Result.TAC)
			tv.AnnualCost = &cost
		} else {
			tv.Error = pt.Err.Error()
		}
		view.Terms = append(view.Terms, tv)
	}
	return view
}
