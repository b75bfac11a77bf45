package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billbook/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ExpenseRepository interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error)
	Update(ctx context.Context, expense *models.Expense) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, filter models.ExpenseFilter) ([]*models.Expense, error)
	ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Expense, error)
	SetReceiptObjectKey(ctx context.Context, userID, id uuid.UUID, key string) error
}

type expenseRepo struct {
	db DBTX
}

func NewExpenseRepo(db DBTX) ExpenseRepository {
	return &expenseRepo{db: db}
}

const expenseColumns = `id, user_id, vendor, vendor_gstin, category, description, expense_date,
		amount, gst_rate_percent, tax_type, gst_type, place_of_supply, cgst, sgst, igst, total,
		itc_eligible, itc_amount, payment_method, receipt_object_key, created_at, updated_at`

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.Vendor, &e.VendorGSTIN, &e.Category, &e.Description, &e.ExpenseDate,
		&e.Amount, &e.GSTRatePercent, &e.TaxType, &e.GSTType, &e.PlaceOfSupply, &e.CGST, &e.SGST, &e.IGST, &e.Total,
		&e.ITCEligible, &e.ITCAmount, &e.PaymentMethod, &e.ReceiptObjectKey, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func collectExpenses(rows pgx.Rows) ([]*models.Expense, error) {
	defer rows.Close()

	expenses := []*models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *expenseRepo) Create(ctx context.Context, e *models.Expense) error {
	query := `
		INSERT INTO expenses (id, user_id, vendor, vendor_gstin, category, description, expense_date,
			amount, gst_rate_percent, tax_type, gst_type, place_of_supply, cgst, sgst, igst, total,
			itc_eligible, itc_amount, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		e.ID, e.UserID, e.Vendor, e.VendorGSTIN, e.Category, e.Description, e.ExpenseDate,
		e.Amount, e.GSTRatePercent, e.TaxType, e.GSTType, e.PlaceOfSupply, e.CGST, e.SGST, e.IGST, e.Total,
		e.ITCEligible, e.ITCAmount, e.PaymentMethod,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *expenseRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = $1 AND id = $2`
	e, err := scanExpense(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (r *expenseRepo) Update(ctx context.Context, e *models.Expense) error {
	query := `
		UPDATE expenses
		SET vendor = $1, vendor_gstin = $2, category = $3, description = $4, expense_date = $5,
			amount = $6, gst_rate_percent = $7, tax_type = $8, gst_type = $9, place_of_supply = $10,
			cgst = $11, sgst = $12, igst = $13, total = $14, itc_eligible = $15, itc_amount = $16,
			payment_method = $17, updated_at = NOW()
		WHERE user_id = $18 AND id = $19
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		e.Vendor, e.VendorGSTIN, e.Category, e.Description, e.ExpenseDate,
		e.Amount, e.GSTRatePercent, e.TaxType, e.GSTType, e.PlaceOfSupply,
		e.CGST, e.SGST, e.IGST, e.Total, e.ITCEligible, e.ITCAmount,
		e.PaymentMethod, e.UserID, e.ID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return notFound(err)
	}
	return nil
}

func (r *expenseRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *expenseRepo) List(ctx context.Context, userID uuid.UUID, filter models.ExpenseFilter) ([]*models.Expense, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("expense_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("expense_date <= $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM expenses WHERE %s ORDER BY expense_date DESC LIMIT $%d OFFSET $%d`,
		expenseColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *expenseRepo) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
		ORDER BY expense_date ASC`
	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses by date: %w", err)
	}
	return collectExpenses(rows)
}

func (r *expenseRepo) SetReceiptObjectKey(ctx context.Context, userID, id uuid.UUID, key string) error {
	tag, err := r.db.Exec(ctx, `UPDATE expenses SET receipt_object_key = $1, updated_at = NOW() WHERE user_id = $2 AND id = $3`, key, userID, id)
	if err != nil {
		return fmt.Errorf("set receipt key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
