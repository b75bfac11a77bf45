package handlers

import (
	"net/http"
	"strings"
	"time"

	"billbook/internal/common"
	"billbook/internal/models"
	"billbook/internal/services"
	"billbook/internal/tax"

	"github.com/labstack/echo/v4"
)

// InvoiceHandlers handles invoice-related HTTP requests
type InvoiceHandlers struct {
	invoiceService services.InvoiceServiceInterface
}

// NewInvoiceHandlers creates a new invoice handlers instance
func NewInvoiceHandlers(invoiceService services.InvoiceServiceInterface) *InvoiceHandlers {
	return &InvoiceHandlers{invoiceService: invoiceService}
}

func (h *InvoiceHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/invoices", h.ListInvoices)
	g.POST("/invoices", h.CreateInvoice)
	g.GET("/invoices/:id", h.GetInvoice)
	g.PUT("/invoices/:id", h.UpdateInvoice)
	g.DELETE("/invoices/:id", h.DeleteInvoice)
	g.PATCH("/invoices/:id/status", h.UpdateInvoiceStatus)
	g.POST("/invoices/:id/pdf", h.GenerateInvoicePDF)
}

// InvoiceRequest is the invoice create/update payload. Numbers may be sent as JSON numbers
// or numeric strings; anything unparseable is rejected.
type InvoiceRequest struct {
	ClientID          string              `json:"clientId"`
	InvoiceNumber     string              `json:"invoiceNumber" validate:"max=50"`
	InvoiceDate       string              `json:"invoiceDate"`
	DueDate           string              `json:"dueDate"`
	Status            string              `json:"status"`
	BillFrom          models.Party        `json:"billFrom"`
	BillTo            models.Party        `json:"billTo"`
	GSTConfig         tax.TaxConfig       `json:"gstConfig"`
	Items             []tax.LineItemInput `json:"items" validate:"required,min=1"`
	Mode              tax.TaxMode         `json:"mode"`
	Discount          tax.Number          `json:"discount"`
	AdditionalCharges tax.Number          `json:"additionalCharges"`
	Currency          string              `json:"currency" validate:"omitempty,len=3"`
	ConversionRate    tax.Number          `json:"conversionRate"`
	Notes             string              `json:"notes" validate:"max=2000"`
	LastUpdatedAt     *time.Time          `json:"lastUpdatedAt"`
}

func (r InvoiceRequest) toInput() (services.InvoiceInput, map[string]string) {
	details := map[string]string{}
	in := services.InvoiceInput{
		InvoiceNumber: strings.TrimSpace(r.InvoiceNumber),
		Status:        r.Status,
		BillFrom:      r.BillFrom,
		BillTo:        r.BillTo,
		GSTConfig:     r.GSTConfig,
		Mode:          r.Mode,
		Currency:      r.Currency,
		Notes:         r.Notes,
	}

	if r.ClientID != "" {
		id, err := common.ValidateUUID(r.ClientID, "clientId")
		if err != nil {
			details["clientId"] = err.Error()
		} else {
			in.ClientID = &id
		}
	}

	var err error
	if in.InvoiceDate, err = common.ParseDate(r.InvoiceDate, "invoiceDate"); err != nil {
		details["invoiceDate"] = err.Error()
	}
	if in.DueDate, err = common.ParseDate(r.DueDate, "dueDate"); err != nil {
		details["dueDate"] = err.Error()
	}

	items, fieldErrs := tax.NormalizeItems(r.Items)
	for _, fe := range fieldErrs {
		details[fe.Field] = fe.Error()
	}
	in.Items = items

	number := func(field string, n tax.Number) float64 {
		if n.Invalid {
			details[field] = tax.FieldError{Field: field, Raw: n.Raw}.Error()
		}
		return n.Coerce()
	}
	in.Discount = number("discount", r.Discount)
	in.AdditionalCharges = number("additionalCharges", r.AdditionalCharges)
	in.ConversionRate = number("conversionRate", r.ConversionRate)

	if r.LastUpdatedAt != nil {
		in.LastUpdatedAt = *r.LastUpdatedAt
	}
	return in, details
}

// ListInvoices godoc
// @Summary List invoices
// @Tags invoices
// @Produce json
// @Param status query string false "Status filter"
// @Param from query string false "Invoice date from (YYYY-MM-DD)"
// @Param to query string false "Invoice date to (YYYY-MM-DD)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Router /v1/invoices [get]
func (h *InvoiceHandlers) ListInvoices(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	limit, offset, err := common.PaginationFromQuery(c)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	filter := models.InvoiceFilter{Status: c.QueryParam("status"), Limit: limit, Offset: offset}
	if filter.Status != "" {
		if err := common.ValidateInvoiceStatus(filter.Status); err != nil {
			return common.SendValidationError(c, "status", err.Error())
		}
	}
	from, to, details := parseRangeQuery(c)
	if len(details) > 0 {
		return common.SendValidationErrors(c, details)
	}
	if !from.IsZero() {
		filter.From = &from
	}
	if !to.IsZero() {
		filter.To = &to
	}

	invoices, err := h.invoiceService.ListInvoices(c.Request().Context(), userID, filter)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateInvoice godoc
// @Summary Create an invoice
// @Description Totals are computed server-side with per-item GST rates.
// @Tags invoices
// @Accept json
// @Produce json
// @Param request body InvoiceRequest true "Invoice"
// @Success 201 {object} models.Invoice
// @Failure 400 {object} common.ErrorResponse
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/invoices [post]
func (h *InvoiceHandlers) CreateInvoice(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req InvoiceRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}
	in, details := req.toInput()
	if len(details) > 0 {
		return common.SendValidationErrors(c, details)
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request().Context(), userID, in)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandlers) GetInvoice(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request().Context(), userID, id)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice godoc
// @Summary Replace an invoice's contents and recompute its totals
// @Tags invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body InvoiceRequest true "Invoice"
// @Success 200 {object} models.Invoice
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/invoices/{id} [put]
func (h *InvoiceHandlers) UpdateInvoice(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req InvoiceRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}
	in, details := req.toInput()
	if len(details) > 0 {
		return common.SendValidationErrors(c, details)
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request().Context(), userID, id, in)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandlers) DeleteInvoice(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.invoiceService.DeleteInvoice(c.Request().Context(), userID, id); err != nil {
		return sendServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateInvoiceStatus godoc
// @Summary Move an invoice to a new status
// @Tags invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body StatusRequest true "New status"
// @Success 200 {object} models.Invoice
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/invoices/{id}/status [patch]
func (h *InvoiceHandlers) UpdateInvoiceStatus(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req StatusRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}

	invoice, err := h.invoiceService.UpdateInvoiceStatus(c.Request().Context(), userID, id, req.Status)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// GenerateInvoicePDF godoc
// @Summary Render the invoice PDF and return a time-limited download link
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} services.PDFResult
// @Router /v1/invoices/{id}/pdf [post]
func (h *InvoiceHandlers) GenerateInvoicePDF(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	result, err := h.invoiceService.GenerateInvoicePDF(c.Request().Context(), userID, id)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// parseRangeQuery reads optional ?from and ?to dates.
func parseRangeQuery(c echo.Context) (time.Time, time.Time, map[string]string) {
	details := map[string]string{}
	from, err := common.ParseDate(c.QueryParam("from"), "from")
	if err != nil {
		details["from"] = err.Error()
	}
	to, err := common.ParseDate(c.QueryParam("to"), "to")
	if err != nil {
		details["to"] = err.Error()
	}
	return from, to, details
}
