package services

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"billbook/internal/caching"
	"billbook/internal/common"
	"billbook/internal/config"
	"billbook/internal/models"
	"billbook/internal/repositories"
	"billbook/internal/tax"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrNoReceipt       = errors.New("expense has no receipt")
)

// ExpenseInput is a create or full-replace request, already parsed strictly.
type ExpenseInput struct {
	Vendor         string
	VendorGSTIN    string
	Category       string
	Description    string
	ExpenseDate    time.Time
	Amount         float64
	GSTRatePercent float64
	TaxType        tax.TaxType
	GSTType        tax.GSTType
	PlaceOfSupply  string
	ITCEligible    bool
	PaymentMethod  string
}

type ExpenseService interface {
	CreateExpense(ctx context.Context, userID uuid.UUID, in ExpenseInput) (*models.Expense, error)
	GetExpense(ctx context.Context, userID, expenseID uuid.UUID) (*models.Expense, error)
	ListExpenses(ctx context.Context, userID uuid.UUID, filter models.ExpenseFilter) ([]*models.Expense, error)
	UpdateExpense(ctx context.Context, userID, expenseID uuid.UUID, in ExpenseInput) (*models.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error

	AttachReceipt(ctx context.Context, userID, expenseID uuid.UUID, file io.Reader, size int64, contentType string) (*models.Expense, error)
	ReceiptURL(ctx context.Context, userID, expenseID uuid.UUID) (string, error)
}

type ExpenseServiceConfig struct {
	ReceiptBucket string
	PresignTTL    time.Duration
}

type expenseService struct {
	expenseRepo repositories.ExpenseRepository
	cache       caching.CacheService
	storage     StorageService
	profile     *config.BusinessProfile
	cfg         ExpenseServiceConfig
	log         zerolog.Logger
	now         func() time.Time
}

func NewExpenseService(
	expenseRepo repositories.ExpenseRepository,
	cache caching.CacheService,
	storage StorageService,
	profile *config.BusinessProfile,
	cfg ExpenseServiceConfig,
	logger zerolog.Logger,
) ExpenseService {
	if profile == nil {
		profile = &config.BusinessProfile{}
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	return &expenseService{
		expenseRepo: expenseRepo,
		cache:       cache,
		storage:     storage,
		profile:     profile,
		cfg:         cfg,
		log:         logger,
		now:         time.Now,
	}
}

// ComputeExpenseTax applies the engine to a single-row purchase and derives the
// input tax credit: the whole tax when eligible, otherwise nothing.
func ComputeExpenseTax(e *models.Expense, businessState string) []string {
	cfg := tax.ResolveTaxConfig(tax.TaxConfig{
		TaxType:       e.TaxType,
		GSTType:       e.GSTType,
		PlaceOfSupply: e.PlaceOfSupply,
	}, businessState)

	item := tax.ComputeLineItem(tax.LineItem{
		Quantity:       1,
		Rate:           e.Amount,
		GSTRatePercent: e.GSTRatePercent,
	}, cfg)

	e.GSTType = cfg.GSTType
	e.Amount = item.Amount
	e.CGST, e.SGST, e.IGST = item.CGST, item.SGST, item.IGST
	e.Total = item.Total
	e.ITCAmount = 0
	if e.ITCEligible {
		e.ITCAmount = item.TotalTax()
	}
	return cfg.Warnings()
}

func (s *expenseService) build(e *models.Expense, in ExpenseInput) error {
	details := map[string]string{}

	vendor := strings.TrimSpace(in.Vendor)
	if vendor == "" {
		details["vendor"] = "is required"
	}
	gstin := strings.ToUpper(strings.TrimSpace(in.VendorGSTIN))
	if err := common.ValidateGSTIN(gstin, "vendorGstin"); err != nil {
		details["vendorGstin"] = err.Error()
	}
	category := in.Category
	if category == "" {
		category = "other"
	}
	if !slices.Contains(models.ExpenseCategories, category) {
		details["category"] = "must be one of: " + strings.Join(models.ExpenseCategories, ", ")
	}
	method := in.PaymentMethod
	if method == "" {
		method = "other"
	}
	if !slices.Contains(models.PaymentMethods, method) {
		details["paymentMethod"] = "must be one of: " + strings.Join(models.PaymentMethods, ", ")
	}
	if in.Amount < 0 {
		details["amount"] = "must be a non-negative number"
	}
	if in.GSTRatePercent < 0 || in.GSTRatePercent > 100 {
		details["gstRatePercent"] = "must be between 0 and 100"
	}
	if in.ITCEligible && gstin == "" {
		details["itcEligible"] = "input tax credit requires a vendor GSTIN"
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}

	taxType := in.TaxType
	if taxType == "" {
		taxType = tax.TaxTypeGST
	}
	placeOfSupply := strings.TrimSpace(in.PlaceOfSupply)
	if placeOfSupply == "" {
		placeOfSupply = s.profile.Business.State
	}
	expenseDate := in.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = truncateDay(s.now())
	}

	e.Vendor = vendor
	e.VendorGSTIN = gstin
	e.Category = category
	e.Description = in.Description
	e.ExpenseDate = expenseDate
	e.Amount = in.Amount
	e.GSTRatePercent = in.GSTRatePercent
	e.TaxType = taxType
	e.GSTType = in.GSTType
	e.PlaceOfSupply = placeOfSupply
	e.ITCEligible = in.ITCEligible
	e.PaymentMethod = method

	for _, w := range ComputeExpenseTax(e, s.profile.Business.State) {
		s.log.Warn().Str("user_id", e.UserID.String()).Str("expense_id", e.ID.String()).Msg(w)
	}
	return nil
}

func (s *expenseService) CreateExpense(ctx context.Context, userID uuid.UUID, in ExpenseInput) (*models.Expense, error) {
	expense := &models.Expense{ID: uuid.New(), UserID: userID}
	if err := s.build(expense, in); err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("create expense failed")
		return nil, common.SecureErrorMessage("create expense", err)
	}
	s.invalidate(ctx, userID)
	return expense, nil
}

func (s *expenseService) GetExpense(ctx context.Context, userID, expenseID uuid.UUID) (*models.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, userID, expenseID)
	if err != nil {
		return nil, mapExpenseErr("get expense", err)
	}
	return expense, nil
}

func (s *expenseService) ListExpenses(ctx context.Context, userID uuid.UUID, filter models.ExpenseFilter) ([]*models.Expense, error) {
	if filter.Category != "" && !slices.Contains(models.ExpenseCategories, filter.Category) {
		return nil, newValidationError("category", "unknown category")
	}
	if filter.From != nil && filter.To != nil {
		if err := common.ValidateDateRange(*filter.From, *filter.To); err != nil {
			return nil, newValidationError("to", err.Error())
		}
	}
	expenses, err := s.expenseRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, common.SecureErrorMessage("list expenses", err)
	}
	return expenses, nil
}

func (s *expenseService) UpdateExpense(ctx context.Context, userID, expenseID uuid.UUID, in ExpenseInput) (*models.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, userID, expenseID)
	if err != nil {
		return nil, mapExpenseErr("get expense for update", err)
	}
	if err := s.build(expense, in); err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Update(ctx, expense); err != nil {
		return nil, mapExpenseErr("update expense", err)
	}
	s.invalidate(ctx, userID)
	return expense, nil
}

func (s *expenseService) DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error {
	expense, err := s.expenseRepo.GetByID(ctx, userID, expenseID)
	if err != nil {
		return mapExpenseErr("get expense for delete", err)
	}
	if err := s.expenseRepo.Delete(ctx, userID, expenseID); err != nil {
		return mapExpenseErr("delete expense", err)
	}
	if expense.ReceiptObjectKey != nil && s.storage != nil {
		if err := s.storage.Delete(ctx, s.cfg.ReceiptBucket, *expense.ReceiptObjectKey); err != nil {
			s.log.Warn().Err(err).Str("object", *expense.ReceiptObjectKey).Msg("failed to remove receipt")
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

// AttachReceipt stores the file and links it to the expense, replacing any previous receipt.
func (s *expenseService) AttachReceipt(ctx context.Context, userID, expenseID uuid.UUID, file io.Reader, size int64, contentType string) (*models.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, userID, expenseID)
	if err != nil {
		return nil, mapExpenseErr("get expense for receipt", err)
	}

	key, err := ReceiptObjectName(userID, expenseID, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Upload(ctx, s.cfg.ReceiptBucket, key, file, size, contentType); err != nil {
		s.log.Error().Err(err).Str("expense_id", expenseID.String()).Msg("receipt upload failed")
		return nil, common.SecureErrorMessage("upload receipt", err)
	}
	if err := s.expenseRepo.SetReceiptObjectKey(ctx, userID, expenseID, key); err != nil {
		return nil, mapExpenseErr("record receipt", err)
	}

	if old := expense.ReceiptObjectKey; old != nil && *old != key {
		if err := s.storage.Delete(ctx, s.cfg.ReceiptBucket, *old); err != nil {
			s.log.Warn().Err(err).Str("object", *old).Msg("failed to remove replaced receipt")
		}
	}
	expense.ReceiptObjectKey = &key
	return expense, nil
}

func (s *expenseService) ReceiptURL(ctx context.Context, userID, expenseID uuid.UUID) (string, error) {
	expense, err := s.expenseRepo.GetByID(ctx, userID, expenseID)
	if err != nil {
		return "", mapExpenseErr("get expense receipt", err)
	}
	if expense.ReceiptObjectKey == nil {
		return "", ErrNoReceipt
	}
	url, err := s.storage.PresignedURL(ctx, s.cfg.ReceiptBucket, *expense.ReceiptObjectKey, s.cfg.PresignTTL)
	if err != nil {
		return "", common.SecureErrorMessage("presign receipt", err)
	}
	return url, nil
}

func (s *expenseService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUserReports(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("report cache invalidation failed")
	}
}

func mapExpenseErr(operation string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrExpenseNotFound
	}
	return common.SecureErrorMessage(operation, err)
}
