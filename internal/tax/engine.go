package tax

import (
	"math"
	"strings"
)

// TaxType selects whether GST applies to a document at all.
type TaxType string

// GSTType selects how GST is split between the central and state components.
type GSTType string

const (
	TaxTypeGST  TaxType = "GST"
	TaxTypeNone TaxType = "None"

	GSTTypeIntraState GSTType = "CGST+SGST"
	GSTTypeInterState GSTType = "IGST"
	GSTTypeUnset      GSTType = ""
)

// Slab rates used in practice. Not enforced as a closed set.
var CommonGSTRates = []float64{0, 5, 12, 18, 28}

const (
	DefaultGSTRatePercent = 18.0
	DefaultQuantity       = 1.0
)

// TaxConfig is the per-document tax configuration.
type TaxConfig struct {
	TaxType       TaxType `json:"taxType"`
	GSTType       GSTType `json:"gstType"`
	PlaceOfSupply string  `json:"placeOfSupply"`
}

// LineItem holds the editable inputs of an invoice row and the fields derived from them.
type LineItem struct {
	Description    string  `json:"description"`
	HSNSAC         string  `json:"hsnSac,omitempty"`
	Quantity       float64 `json:"quantity"`
	Rate           float64 `json:"rate"`
	GSTRatePercent float64 `json:"gstRatePercent"`

	Amount float64 `json:"amount"`
	CGST   float64 `json:"cgst"`
	SGST   float64 `json:"sgst"`
	IGST   float64 `json:"igst"`
	Total  float64 `json:"total"`
}

// NewLineItem returns the row a user gets when adding an item.
func NewLineItem() LineItem {
	return LineItem{
		Quantity:       DefaultQuantity,
		GSTRatePercent: DefaultGSTRatePercent,
	}
}

// TotalTax returns cgst + sgst + igst.
func (li LineItem) TotalTax() float64 {
	return li.CGST + li.SGST + li.IGST
}

// Recognized reports whether GSTType is one of the known splits (empty counts as intra-state).
func (c TaxConfig) Recognized() bool {
	switch c.GSTType {
	case GSTTypeIntraState, GSTTypeInterState, GSTTypeUnset:
		return true
	}
	return false
}

// Warnings lists configuration problems the engine tolerates silently.
func (c TaxConfig) Warnings() []string {
	if c.TaxType == TaxTypeGST && !c.Recognized() {
		return []string{"unrecognized gstType " + string(c.GSTType) + ": no tax applied"}
	}
	return nil
}

// ComputeLineItem derives amount, tax split and total from the item's inputs.
// Derived fields already present on item are ignored, so recomputation is idempotent.
func ComputeLineItem(item LineItem, cfg TaxConfig) LineItem {
	out := item
	out.Quantity = nonNegative(item.Quantity)
	out.Rate = nonNegative(item.Rate)
	out.GSTRatePercent = nonNegative(item.GSTRatePercent)

	out.Amount = out.Quantity * out.Rate
	out.CGST, out.SGST, out.IGST = 0, 0, 0

	if cfg.TaxType == TaxTypeGST {
		switch cfg.GSTType {
		case GSTTypeInterState:
			out.IGST = out.Amount * out.GSTRatePercent / 100
		case GSTTypeIntraState, GSTTypeUnset:
			half := out.Amount * out.GSTRatePercent / 200
			out.CGST = half
			out.SGST = half
		}
	}

	out.Total = out.Amount + out.CGST + out.SGST + out.IGST
	return out
}

// ComputeLineItems recomputes every item against cfg. The input slice is not modified.
func ComputeLineItems(items []LineItem, cfg TaxConfig) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = ComputeLineItem(item, cfg)
	}
	return out
}

// DeriveGSTType maps a supply to its GST split: same state is intra-state (CGST+SGST),
// different states are inter-state (IGST). ok is false when either state is unknown.
// States come straight from form fields, so they are compared trimmed and case-insensitively:
// " maharashtra" and "Maharashtra" are the same state.
func DeriveGSTType(billFromState, billToState string) (GSTType, bool) {
	from := strings.TrimSpace(billFromState)
	to := strings.TrimSpace(billToState)
	if from == "" || to == "" {
		return GSTTypeUnset, false
	}
	if strings.EqualFold(from, to) {
		return GSTTypeIntraState, true
	}
	return GSTTypeInterState, true
}

// ResolveTaxConfig fills GSTType from the supplier state and the place of supply.
// It only acts for GST documents where both states are known.
func ResolveTaxConfig(cfg TaxConfig, billFromState string) TaxConfig {
	if cfg.TaxType != TaxTypeGST {
		return cfg
	}
	if gstType, ok := DeriveGSTType(billFromState, cfg.PlaceOfSupply); ok {
		cfg.GSTType = gstType
	}
	return cfg
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
