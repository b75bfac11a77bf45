package handlers

import (
	"errors"

	"billbook/internal/common"
	"billbook/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// sendServiceError maps service sentinels onto the error envelope. Unknown errors are
// already sanitized by the services, so their message is safe to return.
func sendServiceError(c echo.Context, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return common.SendValidationErrors(c, verr.Details)
	case errors.Is(err, services.ErrInvoiceNotFound):
		return common.SendNotFoundError(c, "Invoice")
	case errors.Is(err, services.ErrClientNotFound):
		return common.SendNotFoundError(c, "Client")
	case errors.Is(err, services.ErrExpenseNotFound):
		return common.SendNotFoundError(c, "Expense")
	case errors.Is(err, services.ErrNoReceipt):
		return common.SendNotFoundError(c, "Receipt")
	case errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrClientInUse),
		errors.Is(err, services.ErrDuplicateInvoiceNumber),
		errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrInvoiceNotEditable),
		errors.Is(err, services.ErrInvoiceNotDeletable):
		return common.SendConflictError(c, err.Error())
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrTotalsNotPersistable),
		errors.Is(err, services.ErrUnsupportedContentType):
		return common.SendClientError(c, err.Error())
	default:
		return common.SendServerError(c, err.Error())
	}
}

// bindAndValidate decodes the JSON body into req and runs the registered validator.
// It writes the error response itself and reports whether the handler should go on.
func bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return false, common.SendValidationErrors(c, common.ValidationDetails(err))
	}
	return true, nil
}

func currentUser(c echo.Context) (uuid.UUID, bool) {
	return common.GetUserIDFromContext(c.Request().Context())
}

func pathID(c echo.Context) (uuid.UUID, error) {
	return common.ValidateUUID(c.Param("id"), "id")
}
