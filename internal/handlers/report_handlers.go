package handlers

import (
	"net/http"
	"time"

	"billbook/internal/common"
	"billbook/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ReportHandlers struct {
	reportService services.ReportService
}

func NewReportHandlers(reportService services.ReportService) *ReportHandlers {
	return &ReportHandlers{reportService: reportService}
}

func (h *ReportHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/reports/monthly", h.MonthlyTrend)
	g.GET("/reports/gst-summary", h.GSTSummary)
	g.GET("/reports/dashboard", h.Dashboard)
	g.GET("/reports/verify-totals", h.VerifyTotals)
}

// rangeRequest resolves the user and the required ?from / ?to pair.
func rangeRequest(c echo.Context) (uuid.UUID, time.Time, time.Time, bool, error) {
	userID, ok := currentUser(c)
	if !ok {
		return uuid.Nil, time.Time{}, time.Time{}, false, common.SendUnauthorizedError(c)
	}
	from, to, details := parseRangeQuery(c)
	if len(details) > 0 {
		return uuid.Nil, time.Time{}, time.Time{}, false, common.SendValidationErrors(c, details)
	}
	return userID, from, to, true, nil
}

// MonthlyTrend godoc
// @Summary Monthly sales, expenses and tax
// @Tags reports
// @Produce json
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Success 200 {array} models.MonthlyTrendPoint
// @Router /v1/reports/monthly [get]
func (h *ReportHandlers) MonthlyTrend(c echo.Context) error {
	userID, from, to, proceed, err := rangeRequest(c)
	if !proceed {
		return err
	}
	points, err := h.reportService.MonthlyTrend(c.Request().Context(), userID, from, to)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, points)
}

// GSTSummary godoc
// @Summary Output GST, input credit and net liability for a period
// @Tags reports
// @Produce json
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Success 200 {object} models.GSTSummary
// @Router /v1/reports/gst-summary [get]
func (h *ReportHandlers) GSTSummary(c echo.Context) error {
	userID, from, to, proceed, err := rangeRequest(c)
	if !proceed {
		return err
	}
	summary, err := h.reportService.GSTSummary(c.Request().Context(), userID, from, to)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *ReportHandlers) Dashboard(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	d, err := h.reportService.Dashboard(c.Request().Context(), userID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// VerifyTotals godoc
// @Summary List invoices whose stored totals disagree with a recomputation
// @Tags reports
// @Produce json
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Success 200 {object} models.TotalsVerification
// @Router /v1/reports/verify-totals [get]
func (h *ReportHandlers) VerifyTotals(c echo.Context) error {
	userID, from, to, proceed, err := rangeRequest(c)
	if !proceed {
		return err
	}
	result, err := h.reportService.VerifyTotals(c.Request().Context(), userID, from, to)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
