package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"billbook/internal/common"
	"billbook/internal/models"
	"billbook/internal/services"
	"billbook/internal/tax"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestServer mounts routes under /v1 with userID already authenticated.
// uuid.Nil leaves the request anonymous.
func newTestServer(userID uuid.UUID, register func(g *echo.Group)) *echo.Echo {
	e := echo.New()
	e.Validator = common.NewRequestValidator()
	g := e.Group("/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID != uuid.Nil {
				c.SetRequest(c.Request().WithContext(common.WithUserID(c.Request().Context(), userID)))
			}
			return next(c)
		}
	})
	register(g)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestTaxPreview_Lenient(t *testing.T) {
	svc := &MockInvoiceService{}
	e := newTestServer(uuid.New(), NewTaxHandlers(svc).RegisterRoutes)

	svc.On("Preview", mock.MatchedBy(func(in services.PreviewInput) bool {
		return len(in.Items) == 1 &&
			in.Items[0].Rate.Invalid &&
			in.Items[0].Quantity.Value == 2 &&
			in.Adjustments.Discount == 10 &&
			in.GSTConfig.GSTType == tax.GSTTypeInterState
	})).Return(&services.PreviewResult{
		Persistable: true,
		Warnings:    []string{`items[0].rate: invalid number "abc": treated as 0`},
	}).Once()

	rec := doJSON(e, http.MethodPost, "/v1/tax/preview", `{
		"items": [{"description": "Widget", "quantity": "2", "rate": "abc", "gstRatePercent": 18}],
		"gstConfig": {"taxType": "GST", "gstType": "IGST"},
		"discount": "10"
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "treated as 0")
	svc.AssertExpectations(t)
}

func TestTaxPreview_InvalidAdjustmentsReported(t *testing.T) {
	svc := &MockInvoiceService{}
	e := newTestServer(uuid.New(), NewTaxHandlers(svc).RegisterRoutes)

	svc.On("Preview", mock.MatchedBy(func(in services.PreviewInput) bool {
		if in.Adjustments.Discount != 0 || in.Adjustments.AdditionalCharges != 0 || len(in.AdjustmentErrors) != 2 {
			return false
		}
		return in.AdjustmentErrors[0] == tax.FieldError{Field: "discount", Raw: "abc"} &&
			in.AdjustmentErrors[1] == tax.FieldError{Field: "additionalCharges", Raw: "-50"}
	})).Return(&services.PreviewResult{
		Persistable: true,
		Warnings: []string{
			`discount: invalid number "abc": treated as 0`,
			`additionalCharges: invalid number "-50": treated as 0`,
		},
	}).Once()

	rec := doJSON(e, http.MethodPost, "/v1/tax/preview", `{
		"items": [{"description": "Widget", "quantity": 2, "rate": 500, "gstRatePercent": 18}],
		"discount": "abc",
		"additionalCharges": -50
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "additionalCharges: invalid number")
	svc.AssertExpectations(t)
}

func TestTaxPreview_UnknownMode(t *testing.T) {
	svc := &MockInvoiceService{}
	e := newTestServer(uuid.New(), NewTaxHandlers(svc).RegisterRoutes)

	rec := doJSON(e, http.MethodPost, "/v1/tax/preview", `{"items": [], "mode": "guess"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Details, "mode")
	svc.AssertNotCalled(t, "Preview", mock.Anything)
}

func TestTaxGSTType(t *testing.T) {
	e := newTestServer(uuid.New(), NewTaxHandlers(&MockInvoiceService{}).RegisterRoutes)

	rec := doJSON(e, http.MethodGet, "/v1/tax/gst-type?from=Maharashtra&to=Karnataka", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"gstType": "IGST", "resolved": true}`, rec.Body.String())

	rec = doJSON(e, http.MethodGet, "/v1/tax/gst-type?from=Maharashtra", "")
	assert.JSONEq(t, `{"gstType": "", "resolved": false}`, rec.Body.String())
}

func TestCreateInvoice(t *testing.T) {
	userID := uuid.New()
	clientID := uuid.New()
	svc := &MockInvoiceService{}
	e := newTestServer(userID, NewInvoiceHandlers(svc).RegisterRoutes)

	svc.On("CreateInvoice", mock.Anything, userID, mock.MatchedBy(func(in services.InvoiceInput) bool {
		return in.ClientID != nil && *in.ClientID == clientID &&
			len(in.Items) == 1 && in.Items[0].Rate == 500 && in.Items[0].Quantity == 2 &&
			in.InvoiceDate.Equal(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)) &&
			in.Discount == 50
	})).Return(&models.Invoice{ID: uuid.New(), InvoiceNumber: "INV-2026-04-0001"}, nil).Once()

	rec := doJSON(e, http.MethodPost, "/v1/invoices", `{
		"clientId": "`+clientID.String()+`",
		"invoiceDate": "2026-04-10",
		"items": [{"description": "Widget", "quantity": 2, "rate": "500", "gstRatePercent": 18}],
		"discount": 50
	}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "INV-2026-04-0001")
	svc.AssertExpectations(t)
}

func TestCreateInvoice_RejectsBadNumbers(t *testing.T) {
	svc := &MockInvoiceService{}
	e := newTestServer(uuid.New(), NewInvoiceHandlers(svc).RegisterRoutes)

	rec := doJSON(e, http.MethodPost, "/v1/invoices", `{
		"items": [{"description": "Widget", "quantity": 1, "rate": "12abc", "gstRatePercent": 18}],
		"additionalCharges": "-5"
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, `items[0].rate: invalid number "12abc"`, resp.Error.Details["items[0].rate"])
	assert.Contains(t, resp.Error.Details, "additionalCharges")
	svc.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateInvoice_RequiresItems(t *testing.T) {
	e := newTestServer(uuid.New(), NewInvoiceHandlers(&MockInvoiceService{}).RegisterRoutes)

	rec := doJSON(e, http.MethodPost, "/v1/invoices", `{"items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error.Code)
}

func TestCreateInvoice_Unauthenticated(t *testing.T) {
	e := newTestServer(uuid.Nil, NewInvoiceHandlers(&MockInvoiceService{}).RegisterRoutes)

	rec := doJSON(e, http.MethodPost, "/v1/invoices", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvoiceErrorMapping(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", services.ErrInvoiceNotFound, http.StatusNotFound},
		{"transition", services.ErrInvalidStatusTransition, http.StatusConflict},
		{"bad status", services.ErrInvalidStatus, http.StatusBadRequest},
		{"validation", &services.ValidationError{Details: map[string]string{"status": "bad"}}, http.StatusBadRequest},
		{"internal", errors.New("failed to update invoice status: operation could not be completed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockInvoiceService{}
			e := newTestServer(userID, NewInvoiceHandlers(svc).RegisterRoutes)
			svc.On("UpdateInvoiceStatus", mock.Anything, userID, id, "paid").Return(nil, tt.err).Once()

			rec := doJSON(e, http.MethodPatch, "/v1/invoices/"+id.String()+"/status", `{"status": "paid"}`)
			assert.Equal(t, tt.code, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestListInvoices(t *testing.T) {
	userID := uuid.New()
	svc := &MockInvoiceService{}
	e := newTestServer(userID, NewInvoiceHandlers(svc).RegisterRoutes)

	svc.On("ListInvoices", mock.Anything, userID, mock.MatchedBy(func(f models.InvoiceFilter) bool {
		return f.Status == "unpaid" && f.Limit == 20 && f.From != nil && f.To == nil
	})).Return([]*models.Invoice{{InvoiceNumber: "INV-1"}}, nil).Once()

	rec := doJSON(e, http.MethodGet, "/v1/invoices?status=unpaid&limit=20&from=2026-01-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "INV-1")

	rec = doJSON(e, http.MethodGet, "/v1/invoices?status=shipped", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteInvoice(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	svc := &MockInvoiceService{}
	e := newTestServer(userID, NewInvoiceHandlers(svc).RegisterRoutes)
	svc.On("DeleteInvoice", mock.Anything, userID, id).Return(nil).Once()

	rec := doJSON(e, http.MethodDelete, "/v1/invoices/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodDelete, "/v1/invoices/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestGenerateInvoicePDF(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	svc := &MockInvoiceService{}
	e := newTestServer(userID, NewInvoiceHandlers(svc).RegisterRoutes)
	svc.On("GenerateInvoicePDF", mock.Anything, userID, id).Return(&services.PDFResult{URL: "https://signed"}, nil).Once()

	rec := doJSON(e, http.MethodPost, "/v1/invoices/"+id.String()+"/pdf", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://signed")
	svc.AssertExpectations(t)
}

func TestClientHandlers(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	svc := &MockClientService{}
	e := newTestServer(userID, NewClientHandlers(svc).RegisterRoutes)

	svc.On("CreateClient", mock.Anything, userID, mock.MatchedBy(func(c *models.Client) bool {
		return c.Name == "Blr Retail" && c.State == "Karnataka"
	})).Return(nil).Once()
	rec := doJSON(e, http.MethodPost, "/v1/clients", `{"name": "Blr Retail", "state": "Karnataka"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/v1/clients", `{"email": "not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("DeleteClient", mock.Anything, userID, id).Return(services.ErrClientInUse).Once()
	rec = doJSON(e, http.MethodDelete, "/v1/clients/"+id.String(), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.On("GetClient", mock.Anything, userID, id).Return(nil, services.ErrClientNotFound).Once()
	rec = doJSON(e, http.MethodGet, "/v1/clients/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}

func TestCreateExpense_InvalidAmount(t *testing.T) {
	svc := &MockExpenseService{}
	e := newTestServer(uuid.New(), NewExpenseHandlers(svc).RegisterRoutes)

	rec := doJSON(e, http.MethodPost, "/v1/expenses", `{"vendor": "Stationers", "amount": "ten"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Details, "amount")
	svc.AssertNotCalled(t, "CreateExpense", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateExpense(t *testing.T) {
	userID := uuid.New()
	svc := &MockExpenseService{}
	e := newTestServer(userID, NewExpenseHandlers(svc).RegisterRoutes)

	svc.On("CreateExpense", mock.Anything, userID, mock.MatchedBy(func(in services.ExpenseInput) bool {
		return in.Vendor == "Stationers" && in.Amount == 1000 && in.GSTRatePercent == 12 && in.ITCEligible
	})).Return(&models.Expense{Vendor: "Stationers", ITCAmount: 120}, nil).Once()

	rec := doJSON(e, http.MethodPost, "/v1/expenses",
		`{"vendor": "Stationers", "amount": 1000, "gstRatePercent": "12", "itcEligible": true, "vendorGstin": "27ABCDE1234F1Z5"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func multipartRequest(t *testing.T, path string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "receipt.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadReceipt(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	svc := &MockExpenseService{}
	e := newTestServer(userID, NewExpenseHandlers(svc).RegisterRoutes)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 600)...)
	svc.On("AttachReceipt", mock.Anything, userID, id, mock.Anything, int64(len(png)), "image/png").
		Return(&models.Expense{ID: id}, nil).Once()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/expenses/"+id.String()+"/receipt", png))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/expenses/"+id.String()+"/receipt", []byte("<html></html>")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Details, "file")

	svc.AssertExpectations(t)
}

func TestReceiptURL_NoReceipt(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	svc := &MockExpenseService{}
	e := newTestServer(userID, NewExpenseHandlers(svc).RegisterRoutes)
	svc.On("ReceiptURL", mock.Anything, userID, id).Return("", services.ErrNoReceipt).Once()

	rec := doJSON(e, http.MethodGet, "/v1/expenses/"+id.String()+"/receipt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestReportHandlers(t *testing.T) {
	userID := uuid.New()
	svc := &MockReportService{}
	e := newTestServer(userID, NewReportHandlers(svc).RegisterRoutes)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	svc.On("MonthlyTrend", mock.Anything, userID, from, to).
		Return([]models.MonthlyTrendPoint{{Month: "2026-01", Sales: 1180}}, nil).Once()
	rec := doJSON(e, http.MethodGet, "/v1/reports/monthly?from=2026-01-01&to=2026-03-31", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"month":"2026-01"`)

	rec = doJSON(e, http.MethodGet, "/v1/reports/gst-summary?from=01-01-2026&to=2026-03-31", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Details, "from")

	svc.On("VerifyTotals", mock.Anything, userID, time.Time{}, to).
		Return(nil, &services.ValidationError{Details: map[string]string{"from": "from and to are required"}}).Once()
	rec = doJSON(e, http.MethodGet, "/v1/reports/verify-totals?to=2026-03-31", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("Dashboard", mock.Anything, userID).Return(&models.Dashboard{TotalInvoices: 3}, nil).Once()
	rec = doJSON(e, http.MethodGet, "/v1/reports/dashboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalInvoices":3`)

	svc.AssertExpectations(t)
}

func TestHealthHandlers(t *testing.T) {
	db := &MockPinger{}
	cache := &MockCacheService{}
	storage := &MockStorageService{}
	h := NewHealthHandlers(db, cache, storage, "invoices", "test")
	e := echo.New()
	h.RegisterRoutes(e)

	db.On("Ping", mock.Anything).Return(nil)
	cache.On("Ping", mock.Anything).Return(nil)
	storage.On("BucketExists", mock.Anything, "invoices").Return(false, errors.New("connection refused")).Once()

	rec := doJSON(e, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/health/detailed", "")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unhealthy", status.Checks["storage"].Status)
	assert.Equal(t, "healthy", status.Checks["database"].Status)

	rec = doJSON(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReady_DatabaseDown(t *testing.T) {
	db := &MockPinger{}
	cache := &MockCacheService{}
	h := NewHealthHandlers(db, cache, &MockStorageService{}, "invoices", "test")
	e := echo.New()
	h.RegisterRoutes(e)

	db.On("Ping", mock.Anything).Return(errors.New("down"))
	cache.On("Ping", mock.Anything).Return(nil).Maybe()

	rec := doJSON(e, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
