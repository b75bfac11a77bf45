package handlers

import (
	"bytes"
	"io"
	"net/http"
	"slices"

	"billbook/internal/common"
	"billbook/internal/models"
	"billbook/internal/services"
	"billbook/internal/tax"

	"github.com/labstack/echo/v4"
)

// MaxReceiptSize caps receipt uploads.
const MaxReceiptSize = 10 << 20

type ExpenseHandlers struct {
	expenseService services.ExpenseService
}

func NewExpenseHandlers(expenseService services.ExpenseService) *ExpenseHandlers {
	return &ExpenseHandlers{expenseService: expenseService}
}

func (h *ExpenseHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/expenses", h.ListExpenses)
	g.POST("/expenses", h.CreateExpense)
	g.GET("/expenses/:id", h.GetExpense)
	g.PUT("/expenses/:id", h.UpdateExpense)
	g.DELETE("/expenses/:id", h.DeleteExpense)
	g.POST("/expenses/:id/receipt", h.UploadReceipt)
	g.GET("/expenses/:id/receipt", h.GetReceiptURL)
}

type ExpenseRequest struct {
	Vendor         string      `json:"vendor" validate:"required,max=200"`
	VendorGSTIN    string      `json:"vendorGstin"`
	Category       string      `json:"category"`
	Description    string      `json:"description" validate:"max=1000"`
	ExpenseDate    string      `json:"expenseDate"`
	Amount         tax.Number  `json:"amount"`
	GSTRatePercent tax.Number  `json:"gstRatePercent"`
	TaxType        tax.TaxType `json:"taxType"`
	GSTType        tax.GSTType `json:"gstType"`
	PlaceOfSupply  string      `json:"placeOfSupply" validate:"max=100"`
	ITCEligible    bool        `json:"itcEligible"`
	PaymentMethod  string      `json:"paymentMethod"`
}

func (r ExpenseRequest) toInput() (services.ExpenseInput, map[string]string) {
	details := map[string]string{}
	date, err := common.ParseDate(r.ExpenseDate, "expenseDate")
	if err != nil {
		details["expenseDate"] = err.Error()
	}
	if r.Amount.Invalid {
		details["amount"] = tax.FieldError{Field: "amount", Raw: r.Amount.Raw}.Error()
	}
	if r.GSTRatePercent.Invalid {
		details["gstRatePercent"] = tax.FieldError{Field: "gstRatePercent", Raw: r.GSTRatePercent.Raw}.Error()
	}

	return services.ExpenseInput{
		Vendor:         r.Vendor,
		VendorGSTIN:    r.VendorGSTIN,
		Category:       r.Category,
		Description:    r.Description,
		ExpenseDate:    date,
		Amount:         r.Amount.Coerce(),
		GSTRatePercent: r.GSTRatePercent.Coerce(),
		TaxType:        r.TaxType,
		GSTType:        r.GSTType,
		PlaceOfSupply:  r.PlaceOfSupply,
		ITCEligible:    r.ITCEligible,
		PaymentMethod:  r.PaymentMethod,
	}, details
}

// ListExpenses godoc
// @Summary List expenses
// @Tags expenses
// @Produce json
// @Param category query string false "Category"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Router /v1/expenses [get]
func (h *ExpenseHandlers) ListExpenses(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	limit, offset, err := common.PaginationFromQuery(c)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}
	from, to, details := parseRangeQuery(c)
	if len(details) > 0 {
		return common.SendValidationErrors(c, details)
	}

	filter := models.ExpenseFilter{Category: c.QueryParam("category"), Limit: limit, Offset: offset}
	if !from.IsZero() {
		filter.From = &from
	}
	if !to.IsZero() {
		filter.To = &to
	}

	expenses, err := h.expenseService.ListExpenses(c.Request().Context(), userID, filter)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"expenses": expenses,
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateExpense godoc
// @Summary Record an expense
// @Description GST and input tax credit are derived from the amount, rate and place of supply.
// @Tags expenses
// @Accept json
// @Produce json
// @Param request body ExpenseRequest true "Expense"
// @Success 201 {object} models.Expense
// @Failure 400 {object} common.ErrorResponse
// @Router /v1/expenses [post]
func (h *ExpenseHandlers) CreateExpense(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req ExpenseRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}
	in, details := req.toInput()
	if len(details) > 0 {
		return common.SendValidationErrors(c, details)
	}

	expense, err := h.expenseService.CreateExpense(c.Request().Context(), userID, in)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, expense)
}

func (h *ExpenseHandlers) GetExpense(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	expense, err := h.expenseService.GetExpense(c.Request().Context(), userID, id)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, expense)
}

func (h *ExpenseHandlers) UpdateExpense(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req ExpenseRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}
	in, details := req.toInput()
	if len(details) > 0 {
		return common.SendValidationErrors(c, details)
	}

	expense, err := h.expenseService.UpdateExpense(c.Request().Context(), userID, id, in)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, expense)
}

func (h *ExpenseHandlers) DeleteExpense(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.expenseService.DeleteExpense(c.Request().Context(), userID, id); err != nil {
		return sendServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadReceipt godoc
// @Summary Attach a receipt (JPEG, PNG or PDF, max 10MB)
// @Tags expenses
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Expense ID"
// @Param file formData file true "Receipt"
// @Success 200 {object} models.Expense
// @Failure 400 {object} common.ErrorResponse
// @Router /v1/expenses/{id}/receipt [post]
func (h *ExpenseHandlers) UploadReceipt(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "is required")
	}
	if fileHeader.Size > MaxReceiptSize {
		return common.SendValidationError(c, "file", "must be at most 10MB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return common.SendClientError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	// The declared content type is ignored; the stored type is sniffed from the bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return common.SendClientError(c, "Failed to read uploaded file")
	}
	head = head[:n]
	contentType := services.DetectContentType(head)
	if !slices.Contains([]string{"image/jpeg", "image/png", "application/pdf"}, contentType) {
		return common.SendValidationError(c, "file", "must be a JPEG, PNG or PDF")
	}

	reader := io.MultiReader(bytes.NewReader(head), file)
	expense, err := h.expenseService.AttachReceipt(c.Request().Context(), userID, id, reader, fileHeader.Size, contentType)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, expense)
}

func (h *ExpenseHandlers) GetReceiptURL(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	url, err := h.expenseService.ReceiptURL(c.Request().Context(), userID, id)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
