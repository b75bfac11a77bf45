package models

import (
	"time"

	"billbook/internal/tax"

	"github.com/google/uuid"
)

var ExpenseCategories = []string{
	"rent", "utilities", "salaries", "travel", "office_supplies",
	"software", "professional_fees", "marketing", "inventory", "other",
}

var PaymentMethods = []string{"cash", "bank_transfer", "upi", "card", "cheque", "other"}

// Expense is a purchase. Tax fields are derived by the tax engine; ITCAmount is the
// input tax credit claimable against output GST.
type Expense struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	UserID           uuid.UUID   `json:"userId" db:"user_id"`
	Vendor           string      `json:"vendor" db:"vendor"`
	VendorGSTIN      string      `json:"vendorGstin" db:"vendor_gstin"`
	Category         string      `json:"category" db:"category"`
	Description      string      `json:"description" db:"description"`
	ExpenseDate      time.Time   `json:"expenseDate" db:"expense_date"`
	Amount           float64     `json:"amount" db:"amount"`
	GSTRatePercent   float64     `json:"gstRatePercent" db:"gst_rate_percent"`
	TaxType          tax.TaxType `json:"taxType" db:"tax_type"`
	GSTType          tax.GSTType `json:"gstType" db:"gst_type"`
	PlaceOfSupply    string      `json:"placeOfSupply" db:"place_of_supply"`
	CGST             float64     `json:"cgst" db:"cgst"`
	SGST             float64     `json:"sgst" db:"sgst"`
	IGST             float64     `json:"igst" db:"igst"`
	Total            float64     `json:"total" db:"total"`
	ITCEligible      bool        `json:"itcEligible" db:"itc_eligible"`
	ITCAmount        float64     `json:"itcAmount" db:"itc_amount"`
	PaymentMethod    string      `json:"paymentMethod" db:"payment_method"`
	ReceiptObjectKey *string     `json:"receiptObjectKey,omitempty" db:"receipt_object_key"`
	CreatedAt        time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time   `json:"updatedAt" db:"updated_at"`
}

// TotalTax returns cgst + sgst + igst.
func (e *Expense) TotalTax() float64 {
	return e.CGST + e.SGST + e.IGST
}

type ExpenseFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
