package tax

// TaxMode picks the aggregation rule used by ComputeInvoiceTotals.
type TaxMode string

const (
	// PerItemRate sums the true per-item tax. It backs every persisted and reported figure.
	PerItemRate TaxMode = "per_item_rate"
	// FlatRateApproximation applies a single 18% rate to the discounted subtotal.
	// Display-only: totals produced this way must not be stored.
	FlatRateApproximation TaxMode = "flat_rate_approximation"
)

// FlatApproximationRate is the rate assumed by FlatRateApproximation, regardless of item slabs.
const FlatApproximationRate = 0.18

// Adjustments are the invoice-level inputs applied on top of the line items.
type Adjustments struct {
	Mode    TaxMode `json:"mode,omitempty"`
	TaxType TaxType `json:"taxType,omitempty"`

	// Absolute amounts, PerItemRate.
	Discount          float64 `json:"discount"`
	AdditionalCharges float64 `json:"additionalCharges"`

	// FlatRateApproximation only.
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
	ConversionRate     float64 `json:"conversionRate,omitempty"`
}

// InvoiceTotals is the invoice summary derived from the items and adjustments.
type InvoiceTotals struct {
	Subtotal          float64 `json:"subtotal"`
	CGST              float64 `json:"cgst"`
	SGST              float64 `json:"sgst"`
	IGST              float64 `json:"igst"`
	TotalTax          float64 `json:"totalTax"`
	Discount          float64 `json:"discount"`
	AdditionalCharges float64 `json:"additionalCharges"`
	GrandTotal        float64 `json:"grandTotal"`
	Mode              TaxMode `json:"mode"`
}

// Persistable reports whether these totals may be stored as the invoice summary.
func (t InvoiceTotals) Persistable() bool {
	return t.Mode == PerItemRate
}

// ComputeInvoiceTotals folds the computed items into invoice totals.
// Items are expected to have been through ComputeLineItem already.
func ComputeInvoiceTotals(items []LineItem, adj Adjustments) InvoiceTotals {
	if adj.Mode == FlatRateApproximation {
		return flatRateTotals(items, adj)
	}
	return perItemTotals(items, adj)
}

func perItemTotals(items []LineItem, adj Adjustments) InvoiceTotals {
	t := InvoiceTotals{Mode: PerItemRate}
	for _, item := range items {
		t.Subtotal += item.Amount
		t.CGST += item.CGST
		t.SGST += item.SGST
		t.IGST += item.IGST
	}
	t.TotalTax = t.CGST + t.SGST + t.IGST
	t.Discount = adj.Discount
	t.AdditionalCharges = adj.AdditionalCharges
	t.GrandTotal = t.Subtotal + t.CGST + t.SGST + t.IGST - t.Discount + t.AdditionalCharges
	return t
}

func flatRateTotals(items []LineItem, adj Adjustments) InvoiceTotals {
	conversion := adj.ConversionRate
	if conversion <= 0 {
		conversion = 1
	}

	var raw float64
	for _, item := range items {
		raw += item.Amount
	}

	t := InvoiceTotals{Mode: FlatRateApproximation}
	t.Subtotal = raw * conversion
	t.Discount = t.Subtotal * adj.DiscountPercentage / 100
	t.AdditionalCharges = adj.AdditionalCharges

	taxable := t.Subtotal - t.Discount + t.AdditionalCharges
	if adj.TaxType == TaxTypeGST {
		t.TotalTax = taxable * FlatApproximationRate
	}
	t.GrandTotal = taxable + t.TotalTax
	return t
}

// Compute recomputes every item and the invoice totals in one pass.
func Compute(items []LineItem, cfg TaxConfig, adj Adjustments) ([]LineItem, InvoiceTotals) {
	computed := ComputeLineItems(items, cfg)
	if adj.TaxType == "" {
		adj.TaxType = cfg.TaxType
	}
	return computed, ComputeInvoiceTotals(computed, adj)
}

// Matches reports whether stored totals agree with recomputed ones within epsilon.
func (t InvoiceTotals) Matches(other InvoiceTotals, epsilon float64) bool {
	return within(t.Subtotal, other.Subtotal, epsilon) &&
		within(t.CGST, other.CGST, epsilon) &&
		within(t.SGST, other.SGST, epsilon) &&
		within(t.IGST, other.IGST, epsilon) &&
		within(t.GrandTotal, other.GrandTotal, epsilon)
}

func within(a, b, epsilon float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilon
}
