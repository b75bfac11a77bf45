package models

import (
	"time"

	"billbook/internal/tax"

	"github.com/google/uuid"
)

const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusUnpaid    = "unpaid"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// InvoiceStatuses lists every valid status.
var InvoiceStatuses = []string{
	InvoiceStatusDraft,
	InvoiceStatusUnpaid,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// Party is one side of an invoice (supplier or recipient).
type Party struct {
	Name    string `json:"name" validate:"max=200"`
	Address string `json:"address" validate:"max=500"`
	State   string `json:"state" validate:"max=100"`
	GSTIN   string `json:"gstin" validate:"omitempty,gstin"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=20"`
}

// IsZero reports whether no field is set.
func (p Party) IsZero() bool {
	return p == Party{}
}

type Invoice struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	UserID         uuid.UUID         `json:"userId" db:"user_id"`
	ClientID       *uuid.UUID        `json:"clientId,omitempty" db:"client_id"`
	InvoiceNumber  string            `json:"invoiceNumber" db:"invoice_number"`
	InvoiceDate    time.Time         `json:"invoiceDate" db:"invoice_date"`
	DueDate        time.Time         `json:"dueDate" db:"due_date"`
	Status         string            `json:"status" db:"status"`
	BillFrom       Party             `json:"billFrom" db:"bill_from"`
	BillTo         Party             `json:"billTo" db:"bill_to"`
	GSTConfig      tax.TaxConfig     `json:"gstConfig" db:"gst_config"`
	Items          []tax.LineItem    `json:"items" db:"items"`
	Summary        tax.InvoiceTotals `json:"summary"`
	Currency       string            `json:"currency" db:"currency"`
	ConversionRate float64           `json:"conversionRate" db:"conversion_rate"`
	Notes          string            `json:"notes" db:"notes"`
	PaidDate       *time.Time        `json:"paidDate,omitempty" db:"paid_date"`
	PDFObjectKey   *string           `json:"pdfObjectKey,omitempty" db:"pdf_object_key"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// Editable reports whether items and parties may still change.
func (i *Invoice) Editable() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusUnpaid || i.Status == InvoiceStatusOverdue
}

// Deletable reports whether the invoice may be removed.
func (i *Invoice) Deletable() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusUnpaid
}

// Outstanding reports whether the invoice still counts as a receivable.
func (i *Invoice) Outstanding() bool {
	return i.Status == InvoiceStatusUnpaid || i.Status == InvoiceStatusOverdue
}

// CountsAsSale reports whether the invoice contributes to sales figures.
func (i *Invoice) CountsAsSale() bool {
	return i.Status != InvoiceStatusDraft && i.Status != InvoiceStatusCancelled
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// StatusSummary is the count and value of a user's invoices in one status.
type StatusSummary struct {
	Status     string  `json:"status"`
	Count      int     `json:"count"`
	GrandTotal float64 `json:"grandTotal"`
}
