package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billbook/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice, lastUpdatedAt time.Time) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error)
	ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Invoice, error)
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string, paidDate *time.Time) error
	SetPDFObjectKey(ctx context.Context, userID, id uuid.UUID, key string) error
	CountByClient(ctx context.Context, userID, clientID uuid.UUID) (int, error)
	SummaryByStatus(ctx context.Context, userID uuid.UUID) ([]models.StatusSummary, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (map[uuid.UUID]int, error)
	GenerateInvoiceNumber(ctx context.Context, userID uuid.UUID, invoiceDate time.Time) (string, error)
}

type invoiceRepo struct {
	db DBTX
}

func NewInvoiceRepo(db DBTX) InvoiceRepository {
	return &invoiceRepo{db: db}
}

const invoiceColumns = `id, user_id, client_id, invoice_number, invoice_date, due_date, status,
		bill_from, bill_to, gst_config, items,
		subtotal, cgst, sgst, igst, total_tax, discount, additional_charges, grand_total, tax_mode,
		currency, conversion_rate, notes, paid_date, pdf_object_key, created_at, updated_at`

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	inv := &models.Invoice{}
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.ClientID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.DueDate, &inv.Status,
		&inv.BillFrom, &inv.BillTo, &inv.GSTConfig, &inv.Items,
		&inv.Summary.Subtotal, &inv.Summary.CGST, &inv.Summary.SGST, &inv.Summary.IGST, &inv.Summary.TotalTax,
		&inv.Summary.Discount, &inv.Summary.AdditionalCharges, &inv.Summary.GrandTotal, &inv.Summary.Mode,
		&inv.Currency, &inv.ConversionRate, &inv.Notes, &inv.PaidDate, &inv.PDFObjectKey, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func collectInvoices(rows pgx.Rows) ([]*models.Invoice, error) {
	defer rows.Close()

	invoices := []*models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, user_id, client_id, invoice_number, invoice_date, due_date, status,
			bill_from, bill_to, gst_config, items,
			subtotal, cgst, sgst, igst, total_tax, discount, additional_charges, grand_total, tax_mode,
			currency, conversion_rate, notes, paid_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	s := inv.Summary
	err := r.db.QueryRow(ctx, query,
		inv.ID, inv.UserID, inv.ClientID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Status,
		inv.BillFrom, inv.BillTo, inv.GSTConfig, inv.Items,
		s.Subtotal, s.CGST, s.SGST, s.IGST, s.TotalTax, s.Discount, s.AdditionalCharges, s.GrandTotal, s.Mode,
		inv.Currency, inv.ConversionRate, inv.Notes, inv.PaidDate,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = $1 AND id = $2`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// Update overwrites the editable fields. The write only applies when the stored
// updated_at still equals lastUpdatedAt; otherwise ErrConcurrentUpdate is returned.
func (r *invoiceRepo) Update(ctx context.Context, inv *models.Invoice, lastUpdatedAt time.Time) error {
	query := `
		UPDATE invoices
		SET client_id = $1, invoice_number = $2, invoice_date = $3, due_date = $4, status = $5,
			bill_from = $6, bill_to = $7, gst_config = $8, items = $9,
			subtotal = $10, cgst = $11, sgst = $12, igst = $13, total_tax = $14, discount = $15,
			additional_charges = $16, grand_total = $17, tax_mode = $18,
			currency = $19, conversion_rate = $20, notes = $21, paid_date = $22, updated_at = NOW()
		WHERE user_id = $23 AND id = $24 AND updated_at = $25
		RETURNING updated_at
	`
	s := inv.Summary
	err := r.db.QueryRow(ctx, query,
		inv.ClientID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Status,
		inv.BillFrom, inv.BillTo, inv.GSTConfig, inv.Items,
		s.Subtotal, s.CGST, s.SGST, s.IGST, s.TotalTax, s.Discount,
		s.AdditionalCharges, s.GrandTotal, s.Mode,
		inv.Currency, inv.ConversionRate, inv.Notes, inv.PaidDate,
		inv.UserID, inv.ID, lastUpdatedAt,
	).Scan(&inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConcurrentUpdate
	}
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepo) List(ctx context.Context, userID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("invoice_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("invoice_date <= $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY invoice_date DESC, invoice_number DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return collectInvoices(rows)
}

func (r *invoiceRepo) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE user_id = $1 AND invoice_date BETWEEN $2 AND $3
		ORDER BY invoice_date ASC`
	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list invoices by date: %w", err)
	}
	return collectInvoices(rows)
}

func (r *invoiceRepo) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string, paidDate *time.Time) error {
	query := `
		UPDATE invoices
		SET status = $1, paid_date = $2, updated_at = NOW()
		WHERE user_id = $3 AND id = $4
	`
	tag, err := r.db.Exec(ctx, query, status, paidDate, userID, id)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepo) SetPDFObjectKey(ctx context.Context, userID, id uuid.UUID, key string) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET pdf_object_key = $1 WHERE user_id = $2 AND id = $3`, key, userID, id)
	if err != nil {
		return fmt.Errorf("set invoice pdf key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepo) CountByClient(ctx context.Context, userID, clientID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE user_id = $1 AND client_id = $2`, userID, clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count client invoices: %w", err)
	}
	return n, nil
}

func (r *invoiceRepo) SummaryByStatus(ctx context.Context, userID uuid.UUID) ([]models.StatusSummary, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(grand_total), 0)
		FROM invoices
		WHERE user_id = $1
		GROUP BY status
		ORDER BY status
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("summarize invoices: %w", err)
	}
	defer rows.Close()

	var out []models.StatusSummary
	for rows.Next() {
		var s models.StatusSummary
		if err := rows.Scan(&s.Status, &s.Count, &s.GrandTotal); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkOverdue flips every unpaid invoice due before asOf to overdue and returns the
// number of invoices changed per owner.
func (r *invoiceRepo) MarkOverdue(ctx context.Context, asOf time.Time) (map[uuid.UUID]int, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'unpaid' AND due_date < $1
		RETURNING user_id
	`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	defer rows.Close()

	perUser := map[uuid.UUID]int{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		perUser[id]++
	}
	return perUser, rows.Err()
}

// GenerateInvoiceNumber allocates the next number in the user's monthly sequence: INV-YYYY-MM-NNNN.
func (r *invoiceRepo) GenerateInvoiceNumber(ctx context.Context, userID uuid.UUID, invoiceDate time.Time) (string, error) {
	yearMonth := invoiceDate.Format("2006-01")

	query := `
		INSERT INTO invoice_sequences (user_id, year_month, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, year_month)
		DO UPDATE SET
			last_number = invoice_sequences.last_number + 1,
			updated_at = NOW()
		RETURNING last_number
	`

	var seq int
	if err := r.db.QueryRow(ctx, query, userID, yearMonth).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to generate invoice sequence: %w", err)
	}

	return fmt.Sprintf("INV-%s-%04d", yearMonth, seq), nil
}
