package repositories

import (
	"context"
	"testing"
	"time"

	"billbook/internal/models"
	"billbook/internal/tax"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var expenseColumnNames = []string{
	"id", "user_id", "vendor", "vendor_gstin", "category", "description", "expense_date",
	"amount", "gst_rate_percent", "tax_type", "gst_type", "place_of_supply", "cgst", "sgst", "igst", "total",
	"itc_eligible", "itc_amount", "payment_method", "receipt_object_key", "created_at", "updated_at",
}

type ExpenseRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    ExpenseRepository
	userID  uuid.UUID
	context context.Context
}

func (suite *ExpenseRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewExpenseRepo(mock)
	suite.userID = uuid.New()
	suite.context = context.Background()
}

func (suite *ExpenseRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestExpenseRepoTestSuite(t *testing.T) {
	suite.Run(t, new(ExpenseRepoTestSuite))
}

func (suite *ExpenseRepoTestSuite) TestListByDateRange() {
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	receipt := "receipts/r1.jpg"

	suite.mock.ExpectQuery(`FROM expenses`).
		WithArgs(suite.userID, from, to).
		WillReturnRows(pgxmock.NewRows(expenseColumnNames).AddRow(
			uuid.New(), suite.userID, "Stationers", "27ABCDE1234F1Z5", "office_supplies", "paper", from,
			1000.0, 12.0, tax.TaxTypeGST, tax.GSTTypeIntraState, "Maharashtra", 60.0, 60.0, 0.0, 1120.0,
			true, 120.0, "upi", &receipt, from, from,
		))

	got, err := suite.repo.ListByDateRange(suite.context, suite.userID, from, to)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 120.0, got[0].ITCAmount)
	assert.Equal(suite.T(), tax.GSTTypeIntraState, got[0].GSTType)
	assert.Equal(suite.T(), receipt, *got[0].ReceiptObjectKey)
}

func (suite *ExpenseRepoTestSuite) TestList_CategoryFilter() {
	suite.mock.ExpectQuery(`WHERE user_id = \$1 AND category = \$2 ORDER BY expense_date DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(suite.userID, "rent", 20, 0).
		WillReturnRows(pgxmock.NewRows(expenseColumnNames))

	got, err := suite.repo.List(suite.context, suite.userID, models.ExpenseFilter{Category: "rent", Limit: 20})
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), got)
}

func (suite *ExpenseRepoTestSuite) TestSetReceiptObjectKey_NotFound() {
	id := uuid.New()
	suite.mock.ExpectExec(`UPDATE expenses SET receipt_object_key`).
		WithArgs("receipts/x.png", suite.userID, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.SetReceiptObjectKey(suite.context, suite.userID, id, "receipts/x.png")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *ExpenseRepoTestSuite) TestUpdate_NotFound() {
	e := &models.Expense{ID: uuid.New(), UserID: suite.userID, Vendor: "x"}
	suite.mock.ExpectQuery(`UPDATE expenses`).
		WithArgs(
			e.Vendor, e.VendorGSTIN, e.Category, e.Description, e.ExpenseDate,
			e.Amount, e.GSTRatePercent, e.TaxType, e.GSTType, e.PlaceOfSupply,
			e.CGST, e.SGST, e.IGST, e.Total, e.ITCEligible, e.ITCAmount,
			e.PaymentMethod, suite.userID, e.ID,
		).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}))

	err := suite.repo.Update(suite.context, e)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}
