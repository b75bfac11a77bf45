package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"billbook/internal/caching"
	"billbook/internal/common"
	"billbook/internal/config"
	"billbook/internal/models"
	"billbook/internal/obs"
	"billbook/internal/repositories"
	"billbook/internal/tax"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

var (
	ErrInvoiceNotFound         = errors.New("invoice not found")
	ErrInvalidStatus           = errors.New("invalid invoice status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTotalsNotPersistable    = errors.New("flat-rate approximation totals cannot be stored")
	ErrInvoiceNotEditable      = errors.New("invoice can no longer be edited")
	ErrInvoiceNotDeletable     = errors.New("only draft or unpaid invoices can be deleted")
	ErrDuplicateInvoiceNumber  = errors.New("invoice number already exists")
	ErrConcurrentUpdate        = errors.New("record was modified by another request")
)

// ValidationError lists rejected input fields.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + common.JoinDetails(e.Details)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Details: map[string]string{field: message}}
}

// InvoiceServiceInterface defines the interface for invoice service
type InvoiceServiceInterface interface {
	CreateInvoice(ctx context.Context, userID uuid.UUID, in InvoiceInput) (*models.Invoice, error)
	GetInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error)
	UpdateInvoice(ctx context.Context, userID, invoiceID uuid.UUID, in InvoiceInput) (*models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status string) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) error

	Preview(in PreviewInput) *PreviewResult
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error)
	GenerateInvoicePDF(ctx context.Context, userID, invoiceID uuid.UUID) (*PDFResult, error)
}

// InvoiceInput is a create or full-replace request, already parsed strictly.
type InvoiceInput struct {
	ClientID          *uuid.UUID
	InvoiceNumber     string
	InvoiceDate       time.Time
	DueDate           time.Time
	Status            string
	BillFrom          models.Party
	BillTo            models.Party
	GSTConfig         tax.TaxConfig
	Items             []tax.LineItem
	Mode              tax.TaxMode
	Discount          float64
	AdditionalCharges float64
	Currency          string
	ConversionRate    float64
	Notes             string

	// LastUpdatedAt guards updates. Zero means "whatever is stored now".
	LastUpdatedAt time.Time
}

// PreviewInput is a lenient compute request. Item fields are raw form values.
type PreviewInput struct {
	Items         []tax.LineItemInput
	GSTConfig     tax.TaxConfig
	BillFromState string
	BillToState   string
	Adjustments   tax.Adjustments

	// AdjustmentErrors lists adjustment fields that were already coerced to 0.
	AdjustmentErrors []tax.FieldError
}

type PreviewResult struct {
	GSTConfig   tax.TaxConfig     `json:"gstConfig"`
	Items       []tax.LineItem    `json:"items"`
	Summary     tax.InvoiceTotals `json:"summary"`
	Persistable bool              `json:"persistable"`
	Warnings    []string          `json:"warnings,omitempty"`
}

type PDFResult struct {
	ObjectKey string    `json:"objectKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type InvoiceServiceConfig struct {
	PDFBucket  string
	PresignTTL time.Duration
}

type invoiceService struct {
	invoiceRepo repositories.InvoiceRepository
	clientRepo  repositories.ClientRepository
	cache       caching.CacheService
	storage     StorageService
	pdf         PDFService
	profile     *config.BusinessProfile
	cfg         InvoiceServiceConfig
	log         zerolog.Logger
	metrics     *obs.DomainMetrics
	now         func() time.Time
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepository,
	clientRepo repositories.ClientRepository,
	cache caching.CacheService,
	storage StorageService,
	pdf PDFService,
	profile *config.BusinessProfile,
	cfg InvoiceServiceConfig,
	logger zerolog.Logger,
	metrics *obs.DomainMetrics,
) InvoiceServiceInterface {
	if profile == nil {
		profile = &config.BusinessProfile{}
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		cache:       cache,
		storage:     storage,
		pdf:         pdf,
		profile:     profile,
		cfg:         cfg,
		log:         logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, userID uuid.UUID, in InvoiceInput) (*models.Invoice, error) {
	status := in.Status
	if status == "" {
		status = models.InvoiceStatusDraft
	}
	if status != models.InvoiceStatusDraft && status != models.InvoiceStatusUnpaid {
		return nil, newValidationError("status", "new invoices must be draft or unpaid")
	}

	invoice := &models.Invoice{
		ID:     uuid.New(),
		UserID: userID,
		Status: status,
	}
	if err := s.apply(ctx, invoice, in); err != nil {
		return nil, err
	}

	if invoice.InvoiceNumber == "" {
		number, err := s.invoiceRepo.GenerateInvoiceNumber(ctx, userID, invoice.InvoiceDate)
		if err != nil {
			return nil, common.SecureErrorMessage("generate invoice number", err)
		}
		invoice.InvoiceNumber = number
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateInvoiceNumber
		}
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("create invoice failed")
		return nil, common.SecureErrorMessage("create invoice", err)
	}

	s.metrics.InvoiceCreated(string(invoice.GSTConfig.GSTType))
	s.invalidate(ctx, userID)
	s.log.Info().
		Str("user_id", userID.String()).
		Str("invoice_id", invoice.ID.String()).
		Str("invoice_number", invoice.InvoiceNumber).
		Float64("grand_total", invoice.Summary.GrandTotal).
		Msg("invoice created")
	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, mapInvoiceErr("get invoice", err)
	}
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, userID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	if filter.Status != "" {
		if err := common.ValidateInvoiceStatus(filter.Status); err != nil {
			return nil, ErrInvalidStatus
		}
	}
	if filter.From != nil && filter.To != nil {
		if err := common.ValidateDateRange(*filter.From, *filter.To); err != nil {
			return nil, newValidationError("to", err.Error())
		}
	}
	invoices, err := s.invoiceRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, common.SecureErrorMessage("list invoices", err)
	}
	return invoices, nil
}

// UpdateInvoice replaces the invoice content and recomputes it from scratch.
func (s *invoiceService) UpdateInvoice(ctx context.Context, userID, invoiceID uuid.UUID, in InvoiceInput) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, mapInvoiceErr("get invoice for update", err)
	}
	if !invoice.Editable() {
		return nil, ErrInvoiceNotEditable
	}
	if in.Status != "" && in.Status != invoice.Status {
		return nil, newValidationError("status", "use the status endpoint to change status")
	}

	lastUpdatedAt := in.LastUpdatedAt
	if lastUpdatedAt.IsZero() {
		lastUpdatedAt = invoice.UpdatedAt
	}
	if in.InvoiceNumber == "" {
		in.InvoiceNumber = invoice.InvoiceNumber
	}
	if in.InvoiceDate.IsZero() {
		in.InvoiceDate = invoice.InvoiceDate
	}

	if err := s.apply(ctx, invoice, in); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Update(ctx, invoice, lastUpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateInvoiceNumber
		}
		return nil, mapInvoiceErr("update invoice", err)
	}

	s.invalidate(ctx, userID)
	return invoice, nil
}

// apply fills invoice from in: resolves parties and the GST split, then recomputes
// every line item and the summary with the per-item rule.
func (s *invoiceService) apply(ctx context.Context, invoice *models.Invoice, in InvoiceInput) error {
	if in.Mode == tax.FlatRateApproximation {
		return ErrTotalsNotPersistable
	}
	if len(in.Items) == 0 {
		return newValidationError("items", "at least one line item is required")
	}
	if in.Discount < 0 {
		return newValidationError("discount", "must be a non-negative number")
	}
	if in.AdditionalCharges < 0 {
		return newValidationError("additionalCharges", "must be a non-negative number")
	}
	if in.ConversionRate < 0 {
		return newValidationError("conversionRate", "must be a non-negative number")
	}

	billFrom := in.BillFrom
	if billFrom.IsZero() {
		billFrom = s.profileParty()
	}

	billTo := in.BillTo
	if in.ClientID != nil {
		client, err := s.clientRepo.GetByID(ctx, invoice.UserID, *in.ClientID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrClientNotFound
			}
			return common.SecureErrorMessage("get client", err)
		}
		if billTo.IsZero() {
			billTo = client.Party()
		}
	}

	cfg := in.GSTConfig
	if cfg.TaxType == "" {
		cfg.TaxType = tax.TaxTypeGST
	}
	if strings.TrimSpace(cfg.PlaceOfSupply) == "" {
		cfg.PlaceOfSupply = billTo.State
	}
	cfg = tax.ResolveTaxConfig(cfg, billFrom.State)
	for _, w := range cfg.Warnings() {
		s.log.Warn().Str("user_id", invoice.UserID.String()).Str("invoice_id", invoice.ID.String()).Msg(w)
	}

	items, summary := tax.Compute(in.Items, cfg, tax.Adjustments{
		Mode:              tax.PerItemRate,
		Discount:          in.Discount,
		AdditionalCharges: in.AdditionalCharges,
	})

	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = truncateDay(s.now())
	}
	dueDate := in.DueDate
	if dueDate.IsZero() {
		dueDate = invoiceDate.AddDate(0, 0, s.profile.Invoice.PaymentTermDays)
	}
	if dueDate.Before(invoiceDate) {
		return newValidationError("dueDate", "cannot be before invoiceDate")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.profile.Invoice.Currency
	}
	if currency == "" {
		currency = "INR"
	}
	conversion := in.ConversionRate
	if conversion == 0 {
		conversion = 1
	}

	invoice.ClientID = in.ClientID
	invoice.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
	invoice.InvoiceDate = invoiceDate
	invoice.DueDate = dueDate
	invoice.BillFrom = billFrom
	invoice.BillTo = billTo
	invoice.GSTConfig = cfg
	invoice.Items = items
	invoice.Summary = summary
	invoice.Currency = currency
	invoice.ConversionRate = conversion
	invoice.Notes = in.Notes
	if invoice.Notes == "" {
		invoice.Notes = s.profile.Invoice.Notes
	}

	if !invoice.Summary.Persistable() {
		return ErrTotalsNotPersistable
	}
	return nil
}

// statusTransitions lists where each status may move next. Paid and cancelled are terminal.
var statusTransitions = map[string][]string{
	models.InvoiceStatusDraft:     {models.InvoiceStatusUnpaid, models.InvoiceStatusCancelled},
	models.InvoiceStatusUnpaid:    {models.InvoiceStatusPaid, models.InvoiceStatusOverdue, models.InvoiceStatusCancelled},
	models.InvoiceStatusOverdue:   {models.InvoiceStatusPaid, models.InvoiceStatusCancelled},
	models.InvoiceStatusPaid:      {},
	models.InvoiceStatusCancelled: {},
}

func isValidStatusTransition(currentStatus, newStatus string) bool {
	return slices.Contains(statusTransitions[currentStatus], newStatus)
}

// UpdateInvoiceStatus moves the invoice through its lifecycle. Paying records the paid date.
func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status string) (*models.Invoice, error) {
	if err := common.ValidateInvoiceStatus(status); err != nil {
		return nil, ErrInvalidStatus
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, mapInvoiceErr("get invoice for status update", err)
	}
	if !isValidStatusTransition(invoice.Status, status) {
		return nil, fmt.Errorf("%w from %s to %s", ErrInvalidStatusTransition, invoice.Status, status)
	}

	var paidDate *time.Time
	if status == models.InvoiceStatusPaid {
		now := s.now()
		paidDate = &now
	}
	if err := s.invoiceRepo.UpdateStatus(ctx, userID, invoiceID, status, paidDate); err != nil {
		return nil, mapInvoiceErr("update invoice status", err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("invoice_id", invoiceID.String()).
		Str("from", invoice.Status).
		Str("to", status).
		Msg("invoice status changed")

	invoice.Status = status
	invoice.PaidDate = paidDate
	s.metrics.StatusChanged(status)
	s.invalidate(ctx, userID)
	return invoice, nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return mapInvoiceErr("get invoice for delete", err)
	}
	if !invoice.Deletable() {
		return ErrInvoiceNotDeletable
	}
	if err := s.invoiceRepo.Delete(ctx, userID, invoiceID); err != nil {
		return mapInvoiceErr("delete invoice", err)
	}

	if invoice.PDFObjectKey != nil && s.storage != nil {
		if err := s.storage.Delete(ctx, s.cfg.PDFBucket, *invoice.PDFObjectKey); err != nil {
			s.log.Warn().Err(err).Str("object", *invoice.PDFObjectKey).Msg("failed to remove invoice pdf")
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

// Preview runs the engine without persisting. Malformed numbers are coerced to 0 and
// reported as warnings; any TaxMode is allowed.
func (s *invoiceService) Preview(in PreviewInput) *PreviewResult {
	items, fieldErrs := tax.NormalizeItems(in.Items)

	var warnings []string
	for _, fe := range append(fieldErrs, in.AdjustmentErrors...) {
		warnings = append(warnings, fe.Error()+": treated as 0")
	}

	billFromState := in.BillFromState
	if strings.TrimSpace(billFromState) == "" {
		billFromState = s.profile.Business.State
	}
	cfg := in.GSTConfig
	if cfg.TaxType == "" {
		cfg.TaxType = tax.TaxTypeGST
	}
	if strings.TrimSpace(cfg.PlaceOfSupply) == "" {
		cfg.PlaceOfSupply = in.BillToState
	}
	cfg = tax.ResolveTaxConfig(cfg, billFromState)
	warnings = append(warnings, cfg.Warnings()...)

	computed, summary := tax.Compute(items, cfg, in.Adjustments)
	return &PreviewResult{
		GSTConfig:   cfg,
		Items:       computed,
		Summary:     summary,
		Persistable: summary.Persistable(),
		Warnings:    warnings,
	}
}

// MarkOverdueInvoices flips unpaid invoices past due to overdue for every user.
func (s *invoiceService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	perUser, err := s.invoiceRepo.MarkOverdue(ctx, truncateDay(asOf))
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}

	total := 0
	for userID, n := range perUser {
		total += n
		s.invalidate(ctx, userID)
	}
	s.metrics.MarkedOverdue(total)
	return total, nil
}

// GenerateInvoicePDF renders the stored invoice, uploads it and returns a presigned link.
func (s *invoiceService) GenerateInvoicePDF(ctx context.Context, userID, invoiceID uuid.UUID) (*PDFResult, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, mapInvoiceErr("get invoice for pdf", err)
	}

	data, err := s.pdf.RenderInvoice(invoice)
	if err != nil {
		return nil, err
	}

	key := InvoicePDFObjectName(userID, invoice.InvoiceNumber)
	if err := s.storage.Upload(ctx, s.cfg.PDFBucket, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		s.log.Error().Err(err).Str("invoice_id", invoiceID.String()).Msg("pdf upload failed")
		return nil, common.SecureErrorMessage("upload invoice pdf", err)
	}
	if err := s.invoiceRepo.SetPDFObjectKey(ctx, userID, invoiceID, key); err != nil {
		return nil, mapInvoiceErr("record invoice pdf", err)
	}

	url, err := s.storage.PresignedURL(ctx, s.cfg.PDFBucket, key, s.cfg.PresignTTL)
	if err != nil {
		return nil, common.SecureErrorMessage("presign invoice pdf", err)
	}
	return &PDFResult{ObjectKey: key, URL: url, ExpiresAt: s.now().Add(s.cfg.PresignTTL)}, nil
}

func (s *invoiceService) profileParty() models.Party {
	b := s.profile.Business
	return models.Party{
		Name:    b.Name,
		Address: b.Address,
		State:   b.State,
		GSTIN:   b.GSTIN,
		Email:   b.Email,
		Phone:   b.Phone,
	}
}

func (s *invoiceService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUserReports(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("report cache invalidation failed")
	}
}

func mapInvoiceErr(operation string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return ErrInvoiceNotFound
	case errors.Is(err, repositories.ErrConcurrentUpdate):
		return ErrConcurrentUpdate
	}
	return common.SecureErrorMessage(operation, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
