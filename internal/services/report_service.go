package services

import (
	"context"
	"math"
	"time"

	"billbook/internal/caching"
	"billbook/internal/common"
	"billbook/internal/models"
	"billbook/internal/obs"
	"billbook/internal/repositories"
	"billbook/internal/tax"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TotalsTolerance is how far a stored grand total may drift from a recomputation.
const TotalsTolerance = 0.01

// ReportService aggregates stored invoices and expenses. It reads the engine's
// stored figures and never recomputes them under a different rule.
type ReportService interface {
	MonthlyTrend(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.MonthlyTrendPoint, error)
	GSTSummary(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.GSTSummary, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error)
	VerifyTotals(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.TotalsVerification, error)
}

type reportService struct {
	invoiceRepo repositories.InvoiceRepository
	expenseRepo repositories.ExpenseRepository
	cache       caching.CacheService
	ttl         time.Duration
	log         zerolog.Logger
	metrics     *obs.DomainMetrics
	now         func() time.Time
}

func NewReportService(
	invoiceRepo repositories.InvoiceRepository,
	expenseRepo repositories.ExpenseRepository,
	cache caching.CacheService,
	ttl time.Duration,
	logger zerolog.Logger,
	metrics *obs.DomainMetrics,
) ReportService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &reportService{
		invoiceRepo: invoiceRepo,
		expenseRepo: expenseRepo,
		cache:       cache,
		ttl:         ttl,
		log:         logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *reportService) MonthlyTrend(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.MonthlyTrendPoint, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	key := caching.ReportKey(userID, "monthly", from.Format(common.DateLayout), to.Format(common.DateLayout))
	var cached []models.MonthlyTrendPoint
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	invoices, err := s.invoiceRepo.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoices for trend", err)
	}
	expenses, err := s.expenseRepo.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, common.SecureErrorMessage("load expenses for trend", err)
	}

	points := []models.MonthlyTrendPoint{}
	index := map[string]int{}
	for m := monthStart(from); !m.After(to); m = m.AddDate(0, 1, 0) {
		label := m.Format("2006-01")
		index[label] = len(points)
		points = append(points, models.MonthlyTrendPoint{Month: label})
	}

	for _, inv := range invoices {
		if !inv.CountsAsSale() {
			continue
		}
		i, ok := index[inv.InvoiceDate.Format("2006-01")]
		if !ok {
			continue
		}
		points[i].Sales += inv.Summary.GrandTotal
		points[i].OutputTax += inv.Summary.TotalTax
		points[i].InvoiceCount++
	}
	for _, e := range expenses {
		i, ok := index[e.ExpenseDate.Format("2006-01")]
		if !ok {
			continue
		}
		points[i].Expenses += e.Total
		points[i].ITC += e.ITCAmount
		points[i].ExpenseCount++
	}
	for i := range points {
		points[i].Net = points[i].Sales - points[i].Expenses
	}

	s.toCache(ctx, key, points)
	return points, nil
}

func (s *reportService) GSTSummary(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.GSTSummary, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	key := caching.ReportKey(userID, "gst", from.Format(common.DateLayout), to.Format(common.DateLayout))
	var cached models.GSTSummary
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	invoices, err := s.invoiceRepo.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoices for gst summary", err)
	}
	expenses, err := s.expenseRepo.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, common.SecureErrorMessage("load expenses for gst summary", err)
	}

	summary := &models.GSTSummary{From: from, To: to}
	for _, inv := range invoices {
		if !inv.CountsAsSale() {
			continue
		}
		summary.TaxableSales += inv.Summary.Subtotal
		summary.Output = summary.Output.Add(models.TaxComponents{
			CGST: inv.Summary.CGST,
			SGST: inv.Summary.SGST,
			IGST: inv.Summary.IGST,
		})
	}
	for _, e := range expenses {
		if !e.ITCEligible {
			continue
		}
		summary.InputCredit = summary.InputCredit.Add(models.TaxComponents{CGST: e.CGST, SGST: e.SGST, IGST: e.IGST})
	}

	summary.NetPayable, summary.CarriedCredit = settleGST(summary.Output, summary.InputCredit)
	summary.TotalPayable = summary.NetPayable.Total()

	s.toCache(ctx, key, summary)
	return summary, nil
}

// settleGST offsets output tax with input credit. IGST credit goes to IGST, then CGST,
// then SGST. CGST credit goes to CGST, then IGST. SGST credit goes to SGST, then IGST.
// CGST and SGST credit never cross. Unused credit is carried forward.
func settleGST(output, credit models.TaxComponents) (payable, carried models.TaxComponents) {
	payable = output
	carried = credit

	offset(&carried.IGST, &payable.IGST)
	offset(&carried.IGST, &payable.CGST)
	offset(&carried.IGST, &payable.SGST)

	offset(&carried.CGST, &payable.CGST)
	offset(&carried.CGST, &payable.IGST)

	offset(&carried.SGST, &payable.SGST)
	offset(&carried.SGST, &payable.IGST)
	return payable, carried
}

func offset(credit, liability *float64) {
	n := math.Min(*credit, *liability)
	if n <= 0 {
		return
	}
	*credit -= n
	*liability -= n
}

func (s *reportService) Dashboard(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	now := s.now()
	key := caching.ReportKey(userID, "dashboard", now.Format("2006-01"))
	var cached models.Dashboard
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	statuses, err := s.invoiceRepo.SummaryByStatus(ctx, userID)
	if err != nil {
		return nil, common.SecureErrorMessage("summarize invoices", err)
	}

	d := &models.Dashboard{Statuses: statuses, GeneratedAt: now}
	if d.Statuses == nil {
		d.Statuses = []models.StatusSummary{}
	}
	for _, st := range statuses {
		d.TotalInvoices += st.Count
		switch st.Status {
		case models.InvoiceStatusUnpaid:
			d.Outstanding += st.GrandTotal
		case models.InvoiceStatusOverdue:
			d.Outstanding += st.GrandTotal
			d.OverdueAmount += st.GrandTotal
		}
	}

	start := monthStart(now)
	end := start.AddDate(0, 1, -1)
	invoices, err := s.invoiceRepo.ListByDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoices for dashboard", err)
	}
	for _, inv := range invoices {
		if inv.CountsAsSale() {
			d.SalesThisMonth += inv.Summary.GrandTotal
		}
	}
	expenses, err := s.expenseRepo.ListByDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, common.SecureErrorMessage("load expenses for dashboard", err)
	}
	for _, e := range expenses {
		d.ExpensesThisMonth += e.Total
		d.ITCThisMonth += e.ITCAmount
	}

	s.toCache(ctx, key, d)
	return d, nil
}

// VerifyTotals recomputes every invoice in the range from its stored items and
// configuration and lists those whose stored grand total disagrees. Never cached.
func (s *reportService) VerifyTotals(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.TotalsVerification, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	invoices, err := s.invoiceRepo.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoices for verification", err)
	}

	result := &models.TotalsVerification{Checked: len(invoices), Mismatches: []models.TotalsMismatch{}}
	for _, inv := range invoices {
		_, recomputed := tax.Compute(inv.Items, inv.GSTConfig, tax.Adjustments{
			Mode:              tax.PerItemRate,
			Discount:          inv.Summary.Discount,
			AdditionalCharges: inv.Summary.AdditionalCharges,
		})
		diff := inv.Summary.GrandTotal - recomputed.GrandTotal
		if math.Abs(diff) <= TotalsTolerance {
			continue
		}
		result.Mismatches = append(result.Mismatches, models.TotalsMismatch{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Stored:        inv.Summary.GrandTotal,
			Recomputed:    recomputed.GrandTotal,
			Difference:    diff,
		})
	}

	if n := len(result.Mismatches); n > 0 {
		s.metrics.Mismatches(n)
		s.log.Warn().Str("user_id", userID.String()).Int("mismatches", n).Msg("stored invoice totals disagree with recomputation")
	}
	return result, nil
}

func (s *reportService) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		return false
	}
	return found
}

func (s *reportService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return newValidationError("from", "from and to are required")
	}
	if err := common.ValidateDateRange(from, to); err != nil {
		return newValidationError("to", err.Error())
	}
	return nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
