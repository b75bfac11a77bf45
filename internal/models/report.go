package models

import (
	"time"

	"github.com/google/uuid"
)

// MonthlyTrendPoint aggregates one calendar month.
type MonthlyTrendPoint struct {
	Month        string  `json:"month"` // YYYY-MM
	Sales        float64 `json:"sales"`
	InvoiceCount int     `json:"invoiceCount"`
	OutputTax    float64 `json:"outputTax"`
	Expenses     float64 `json:"expenses"`
	ExpenseCount int     `json:"expenseCount"`
	ITC          float64 `json:"itc"`
	Net          float64 `json:"net"`
}

// TaxComponents is a CGST/SGST/IGST breakdown.
type TaxComponents struct {
	CGST float64 `json:"cgst"`
	SGST float64 `json:"sgst"`
	IGST float64 `json:"igst"`
}

func (t TaxComponents) Total() float64 {
	return t.CGST + t.SGST + t.IGST
}

func (t TaxComponents) Add(o TaxComponents) TaxComponents {
	return TaxComponents{CGST: t.CGST + o.CGST, SGST: t.SGST + o.SGST, IGST: t.IGST + o.IGST}
}

// GSTSummary is the output tax, input credit and resulting liability for a period.
type GSTSummary struct {
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	TaxableSales  float64       `json:"taxableSales"`
	Output        TaxComponents `json:"output"`
	InputCredit   TaxComponents `json:"inputCredit"`
	NetPayable    TaxComponents `json:"netPayable"`
	CarriedCredit TaxComponents `json:"carriedCredit"`
	TotalPayable  float64       `json:"totalPayable"`
}

type Dashboard struct {
	Statuses          []StatusSummary `json:"statuses"`
	TotalInvoices     int             `json:"totalInvoices"`
	Outstanding       float64         `json:"outstanding"`
	OverdueAmount     float64         `json:"overdueAmount"`
	SalesThisMonth    float64         `json:"salesThisMonth"`
	ExpensesThisMonth float64         `json:"expensesThisMonth"`
	ITCThisMonth      float64         `json:"itcThisMonth"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

// TotalsMismatch is an invoice whose stored grand total disagrees with a recomputation.
type TotalsMismatch struct {
	InvoiceID     uuid.UUID `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Stored        float64   `json:"stored"`
	Recomputed    float64   `json:"recomputed"`
	Difference    float64   `json:"difference"`
}

type TotalsVerification struct {
	Checked    int              `json:"checked"`
	Mismatches []TotalsMismatch `json:"mismatches"`
}
