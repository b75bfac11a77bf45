package services

import (
	"context"
	"io"
	"time"

	"billbook/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice, lastUpdatedAt time.Time) error {
	args := m.Called(ctx, invoice, lastUpdatedAt)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockInvoiceRepository) List(ctx context.Context, userID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Invoice, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string, paidDate *time.Time) error {
	args := m.Called(ctx, userID, id, status, paidDate)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SetPDFObjectKey(ctx context.Context, userID, id uuid.UUID, key string) error {
	args := m.Called(ctx, userID, id, key)
	return args.Error(0)
}

func (m *MockInvoiceRepository) CountByClient(ctx context.Context, userID, clientID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID, clientID)
	return args.Int(0), args.Error(1)
}

func (m *MockInvoiceRepository) SummaryByStatus(ctx context.Context, userID uuid.UUID) ([]models.StatusSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.StatusSummary), args.Error(1)
}

func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (map[uuid.UUID]int, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, userID uuid.UUID, invoiceDate time.Time) (string, error) {
	args := m.Called(ctx, userID, invoiceDate)
	return args.String(0), args.Error(1)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) Create(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Client, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockClientRepository) Update(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockClientRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Client), args.Error(1)
}

type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockExpenseRepository) List(ctx context.Context, userID uuid.UUID, filter models.ExpenseFilter) ([]*models.Expense, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]*models.Expense), args.Error(1)
}

func (m *MockExpenseRepository) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Expense, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).([]*models.Expense), args.Error(1)
}

func (m *MockExpenseRepository) SetReceiptObjectKey(ctx context.Context, userID, id uuid.UUID, key string) error {
	args := m.Called(ctx, userID, id, key)
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

type MockPDFService struct {
	mock.Mock
}

func (m *MockPDFService) RenderInvoice(invoice *models.Invoice) ([]byte, error) {
	args := m.Called(invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
