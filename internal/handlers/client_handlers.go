package handlers

import (
	"net/http"

	"billbook/internal/common"
	"billbook/internal/models"
	"billbook/internal/services"

	"github.com/labstack/echo/v4"
)

// ClientHandlers handles client-related HTTP requests
type ClientHandlers struct {
	clientService services.ClientService
}

func NewClientHandlers(clientService services.ClientService) *ClientHandlers {
	return &ClientHandlers{clientService: clientService}
}

func (h *ClientHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/clients", h.ListClients)
	g.POST("/clients", h.CreateClient)
	g.GET("/clients/:id", h.GetClient)
	g.PUT("/clients/:id", h.UpdateClient)
	g.DELETE("/clients/:id", h.DeleteClient)
}

// ClientRequest represents the client create/update payload
type ClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address" validate:"max=500"`
	State   string `json:"state" validate:"max=100"`
	GSTIN   string `json:"gstin"`
}

func (r ClientRequest) toModel() *models.Client {
	return &models.Client{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
		State:   r.State,
		GSTIN:   r.GSTIN,
	}
}

// ListClients godoc
// @Summary List clients
// @Tags clients
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Router /v1/clients [get]
func (h *ClientHandlers) ListClients(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	limit, offset, err := common.PaginationFromQuery(c)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	clients, err := h.clientService.ListClients(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"clients": clients,
		"limit":   limit,
		"offset":  offset,
	})
}

// CreateClient godoc
// @Summary Create a client
// @Tags clients
// @Accept json
// @Produce json
// @Param request body ClientRequest true "Client"
// @Success 201 {object} models.Client
// @Failure 400 {object} common.ErrorResponse
// @Router /v1/clients [post]
func (h *ClientHandlers) CreateClient(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req ClientRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}

	client := req.toModel()
	if err := h.clientService.CreateClient(c.Request().Context(), userID, client); err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, client)
}

func (h *ClientHandlers) GetClient(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	client, err := h.clientService.GetClient(c.Request().Context(), userID, id)
	if err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

// UpdateClient replaces the client's details. Existing invoices keep the details they were issued with.
func (h *ClientHandlers) UpdateClient(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req ClientRequest
	if proceed, err := bindAndValidate(c, &req); !proceed {
		return err
	}

	client := req.toModel()
	client.ID = id
	if err := h.clientService.UpdateClient(c.Request().Context(), userID, client); err != nil {
		return sendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

func (h *ClientHandlers) DeleteClient(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := pathID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.clientService.DeleteClient(c.Request().Context(), userID, id); err != nil {
		return sendServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
