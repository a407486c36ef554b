package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TermBlock carries the quote for one contract term of a meter.
type TermBlock struct {
	Term      ContractTerm `json:"term"`
	SourceRow int          `json:"source_row"`
	EAC       float64      `json:"eac"`
	HasEAC    bool         `json:"has_eac"`
	// Base holds supplier rates; a component is absent when the supplier left it blank.
	Base map[Component]float64 `json:"base"`
	// Invalid holds supplier cells that were not numbers.
	Invalid map[Component]string `json:"invalid,omitempty"`
	// Uplifts holds the broker margin per component; absent means zero.
	Uplifts map[Component]float64 `json:"uplifts"`
}

// NewTermBlock maps a tariff row onto the components of a meter type.
func NewTermBlock(meterType MeterType, term ContractTerm, row TariffRow) *TermBlock {
	block := &TermBlock{
		Term:      term,
		SourceRow: row.SourceRow,
		Base:      make(map[Component]float64),
		Uplifts:   make(map[Component]float64),
	}
	if eac, ok := row.Value(FieldEAC); ok {
		block.EAC = eac
		block.HasEAC = true
	} else if raw, ok := row.Invalid[FieldEAC]; ok {
		block.setInvalid(ComponentEAC, raw)
	}
	for _, component := range ComponentsFor(meterType) {
		field, _ := SourceField(meterType, component)
		if v, ok := row.Value(field); ok {
			block.Base[component] = v
			continue
		}
		if raw, ok := row.Invalid[field]; ok {
			block.setInvalid(component, raw)
		}
	}
	return block
}

// ComponentEAC marks an unparseable consumption cell in TermBlock.Invalid.
const ComponentEAC Component = "eac"

func (b *TermBlock) setInvalid(component Component, raw string) {
	if b.Invalid == nil {
		b.Invalid = make(map[Component]string)
	}
	b.Invalid[component] = raw
}

// Uplift returns the uplift entered for a component, zero by default.
func (b *TermBlock) Uplift(component Component) float64 {
	return b.Uplifts[component]
}

// Adjusted returns base combined with the uplift. It always starts from the base
// value so repeated application never compounds.
func (b *TermBlock) Adjusted(component Component, mode UpliftMode) (decimal.Decimal, bool) {
	base, ok := b.Base[component]
	if !ok {
		return decimal.Zero, false
	}
	return mode.Adjust(decimal.NewFromFloat(base), decimal.NewFromFloat(b.Uplifts[component])), true
}

// Has reports whether the supplier quoted the component.
func (b *TermBlock) Has(component Component) bool {
	_, ok := b.Base[component]
	return ok
}

func (b *TermBlock) clone() *TermBlock {
	if b == nil {
		return nil
	}
	out := *b
	out.Base = cloneMap(b.Base)
	out.Uplifts = cloneMap(b.Uplifts)
	if b.Invalid != nil {
		out.Invalid = make(map[Component]string, len(b.Invalid))
		for k, v := range b.Invalid {
			out.Invalid[k] = v
		}
	}
	return &out
}

func cloneMap(in map[Component]float64) map[Component]float64 {
	out := make(map[Component]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MeterRecord is the pivoted view of one meter: metadata plus a block per quoted term.
type MeterRecord struct {
	MeterID       string                      `json:"meter_id"`
	MeterType     MeterType                   `json:"meter_type"`
	Category      string                      `json:"category"`
	CompanyName   string                      `json:"company_name"`
	CompanyReg    string                      `json:"company_reg"`
	ContractStart time.Time                   `json:"contract_start"`
	EAC           float64                     `json:"eac"`
	Blocks        map[ContractTerm]*TermBlock `json:"blocks"`
}

// NewMeterRecord starts a record for a meter.
func NewMeterRecord(meterID string, meterType MeterType, contractStart time.Time) (*MeterRecord, error) {
	if meterID == "" {
		return nil, ErrEmptyMeterID
	}
	return &MeterRecord{
		MeterID:       meterID,
		MeterType:     meterType,
		ContractStart: contractStart,
		Blocks:        make(map[ContractTerm]*TermBlock),
	}, nil
}

// Block returns the block for a term.
func (r *MeterRecord) Block(term ContractTerm) (*TermBlock, bool) {
	b, ok := r.Blocks[term]
	return b, ok
}

// AddBlock stores a block unless one already exists for the term; the first wins.
func (r *MeterRecord) AddBlock(block *TermBlock) bool {
	if _, exists := r.Blocks[block.Term]; exists {
		return false
	}
	r.Blocks[block.Term] = block
	return true
}

// Terms lists the quoted terms in ascending order.
func (r *MeterRecord) Terms() []ContractTerm {
	out := make([]ContractTerm, 0, len(r.Blocks))
	for term := range r.Blocks {
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyUplifts replaces every block's uplifts with the values the set holds for
// this meter type. Components without an entry go back to zero.
func (r *MeterRecord) ApplyUplifts(set UpliftSet) {
	for term, block := range r.Blocks {
		uplifts := make(map[Component]float64)
		for _, component := range ComponentsFor(r.MeterType) {
			if v, ok := set.Lookup(r.MeterType, component, term); ok && v != 0 {
				uplifts[component] = v
			}
		}
		block.Uplifts = uplifts
	}
}

// SetUplift edits a single cell of the uplift grid. Components that do not apply
// to the meter type are ignored.
func (r *MeterRecord) SetUplift(term ContractTerm, component Component, value float64) error {
	block, ok := r.Blocks[term]
	if !ok {
		return ErrTermNotPresent
	}
	if _, ok := SourceField(r.MeterType, component); !ok {
		return nil
	}
	if value == 0 {
		delete(block.Uplifts, component)
		return nil
	}
	block.Uplifts[component] = value
	return nil
}

// Clone returns a deep copy.
func (r *MeterRecord) Clone() *MeterRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Blocks = make(map[ContractTerm]*TermBlock, len(r.Blocks))
	for term, block := range r.Blocks {
		out.Blocks[term] = block.clone()
	}
	return &out
}
