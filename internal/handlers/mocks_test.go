package handlers

import (
	"context"
	"io"
	"time"

	"billbook/internal/models"
	"billbook/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, userID uuid.UUID, in services.InvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, userID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, userID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpdateInvoice(ctx context.Context, userID, invoiceID uuid.UUID, in services.InvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, userID, invoiceID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpdateInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status string) (*models.Invoice, error) {
	args := m.Called(ctx, userID, invoiceID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) error {
	args := m.Called(ctx, userID, invoiceID)
	return args.Error(0)
}

func (m *MockInvoiceService) Preview(in services.PreviewInput) *services.PreviewResult {
	args := m.Called(in)
	return args.Get(0).(*services.PreviewResult)
}

func (m *MockInvoiceService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	args := m.Called(ctx, asOf)
	return args.Int(0), args.Error(1)
}

func (m *MockInvoiceService) GenerateInvoicePDF(ctx context.Context, userID, invoiceID uuid.UUID) (*services.PDFResult, error) {
	args := m.Called(ctx, userID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PDFResult), args.Error(1)
}

type MockClientService struct {
	mock.Mock
}

func (m *MockClientService) CreateClient(ctx context.Context, userID uuid.UUID, client *models.Client) error {
	args := m.Called(ctx, userID, client)
	return args.Error(0)
}

func (m *MockClientService) GetClient(ctx context.Context, userID, clientID uuid.UUID) (*models.Client, error) {
	args := m.Called(ctx, userID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockClientService) ListClients(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Client), args.Error(1)
}

func (m *MockClientService) UpdateClient(ctx context.Context, userID uuid.UUID, client *models.Client) error {
	args := m.Called(ctx, userID, client)
	return args.Error(0)
}

func (m *MockClientService) DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error {
	args := m.Called(ctx, userID, clientID)
	return args.Error(0)
}

type MockExpenseService struct {
	mock.Mock
}

func (m *MockExpenseService) CreateExpense(ctx context.Context, userID uuid.UUID, in services.ExpenseInput) (*models.Expense, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) GetExpense(ctx context.Context, userID, expenseID uuid.UUID) (*models.Expense, error) {
	args := m.Called(ctx, userID, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) ListExpenses(ctx context.Context, userID uuid.UUID, filter models.ExpenseFilter) ([]*models.Expense, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]*models.Expense), args.Error(1)
}

func (m *MockExpenseService) UpdateExpense(ctx context.Context, userID, expenseID uuid.UUID, in services.ExpenseInput) (*models.Expense, error) {
	args := m.Called(ctx, userID, expenseID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error {
	args := m.Called(ctx, userID, expenseID)
	return args.Error(0)
}

func (m *MockExpenseService) AttachReceipt(ctx context.Context, userID, expenseID uuid.UUID, file io.Reader, size int64, contentType string) (*models.Expense, error) {
	args := m.Called(ctx, userID, expenseID, file, size, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) ReceiptURL(ctx context.Context, userID, expenseID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID, expenseID)
	return args.String(0), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) MonthlyTrend(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.MonthlyTrendPoint, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MonthlyTrendPoint), args.Error(1)
}

func (m *MockReportService) GSTSummary(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.GSTSummary, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GSTSummary), args.Error(1)
}

func (m *MockReportService) Dashboard(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dashboard), args.Error(1)
}

func (m *MockReportService) VerifyTotals(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.TotalsVerification, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TotalsVerification), args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	args := m.Called(ctx, key, dst)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateUserReports(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockStorageService struct {
	mock.Mock
}

func (m *MockStorageService) Upload(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, contentType)
	return args.Error(0)
}

func (m *MockStorageService) PresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucketName, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorageService) Delete(ctx context.Context, bucketName, objectName string) error {
	args := m.Called(ctx, bucketName, objectName)
	return args.Error(0)
}

func (m *MockStorageService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	args := m.Called(ctx, bucketName)
	return args.Error(0)
}

func (m *MockStorageService) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}
