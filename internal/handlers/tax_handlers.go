package handlers

import (
	"net/http"

	"billbook/internal/common"
	"billbook/internal/services"
	"billbook/internal/tax"

	"github.com/labstack/echo/v4"
)

// TaxHandlers expose the engine for live form recalculation. Nothing here is stored.
type TaxHandlers struct {
	invoiceService services.InvoiceServiceInterface
}

func NewTaxHandlers(invoiceService services.InvoiceServiceInterface) *TaxHandlers {
	return &TaxHandlers{invoiceService: invoiceService}
}

func (h *TaxHandlers) RegisterRoutes(g *echo.Group) {
	g.POST("/tax/preview", h.Preview)
	g.GET("/tax/gst-type", h.GSTType)
	g.GET("/tax/rates", h.Rates)
}

// PreviewRequest carries raw form values. Unparseable numbers are treated as 0 and reported as warnings.
type PreviewRequest struct {
	Items              []tax.LineItemInput `json:"items"`
	GSTConfig          tax.TaxConfig       `json:"gstConfig"`
	BillFromState      string              `json:"billFromState"`
	BillToState        string              `json:"billToState"`
	Mode               tax.TaxMode         `json:"mode"`
	Discount           tax.Number          `json:"discount"`
	DiscountPercentage tax.Number          `json:"discountPercentage"`
	AdditionalCharges  tax.Number          `json:"additionalCharges"`
	ConversionRate     tax.Number          `json:"conversionRate"`
}

// Preview godoc
// @Summary Compute invoice totals without saving
// @Tags tax
// @Accept json
// @Produce json
// @Param request body PreviewRequest true "Invoice form"
// @Success 200 {object} services.PreviewResult
// @Failure 400 {object} common.ErrorResponse
// @Router /v1/tax/preview [post]
func (h *TaxHandlers) Preview(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Mode != "" && req.Mode != tax.PerItemRate && req.Mode != tax.FlatRateApproximation {
		return common.SendValidationError(c, "mode", "must be one of: per_item_rate, flat_rate_approximation")
	}

	var invalid []tax.FieldError
	number := func(field string, n tax.Number) float64 {
		if n.Invalid {
			invalid = append(invalid, tax.FieldError{Field: field, Raw: n.Raw})
		}
		return n.Coerce()
	}

	result := h.invoiceService.Preview(services.PreviewInput{
		Items:         req.Items,
		GSTConfig:     req.GSTConfig,
		BillFromState: req.BillFromState,
		BillToState:   req.BillToState,
		Adjustments: tax.Adjustments{
			Mode:               req.Mode,
			Discount:           number("discount", req.Discount),
			DiscountPercentage: number("discountPercentage", req.DiscountPercentage),
			AdditionalCharges:  number("additionalCharges", req.AdditionalCharges),
			ConversionRate:     number("conversionRate", req.ConversionRate),
		},
		AdjustmentErrors: invalid,
	})
	return c.JSON(http.StatusOK, result)
}

// GSTType godoc
// @Summary Derive the GST split for a supply
// @Tags tax
// @Produce json
// @Param from query string true "Supplier state"
// @Param to query string true "Place of supply"
// @Success 200 {object} map[string]interface{}
// @Router /v1/tax/gst-type [get]
func (h *TaxHandlers) GSTType(c echo.Context) error {
	gstType, ok := tax.DeriveGSTType(c.QueryParam("from"), c.QueryParam("to"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"gstType":  gstType,
		"resolved": ok,
	})
}

// Rates lists the usual GST slabs for form dropdowns.
func (h *TaxHandlers) Rates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rates":       tax.CommonGSTRates,
		"defaultRate": tax.DefaultGSTRatePercent,
	})
}
