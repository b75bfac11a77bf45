package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"billbook/internal/caching"
	"billbook/internal/common"
	"billbook/internal/models"
	"billbook/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientInUse    = errors.New("client is referenced by invoices")
)

type ClientService interface {
	CreateClient(ctx context.Context, userID uuid.UUID, client *models.Client) error
	GetClient(ctx context.Context, userID, clientID uuid.UUID) (*models.Client, error)
	ListClients(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, error)
	UpdateClient(ctx context.Context, userID uuid.UUID, client *models.Client) error
	DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error
}

type clientService struct {
	clientRepo  repositories.ClientRepository
	invoiceRepo repositories.InvoiceRepository
	cache       caching.CacheService
	log         zerolog.Logger
}

func NewClientService(clientRepo repositories.ClientRepository, invoiceRepo repositories.InvoiceRepository, cache caching.CacheService, logger zerolog.Logger) ClientService {
	return &clientService{clientRepo: clientRepo, invoiceRepo: invoiceRepo, cache: cache, log: logger}
}

func (s *clientService) validate(client *models.Client) error {
	client.Name = strings.TrimSpace(client.Name)
	client.State = strings.TrimSpace(client.State)
	client.GSTIN = strings.ToUpper(strings.TrimSpace(client.GSTIN))

	if err := common.ValidateRequiredString(client.Name, "name"); err != nil {
		return newValidationError("name", "is required")
	}
	if len(client.Name) > 200 {
		return newValidationError("name", "must be at most 200 characters")
	}
	if err := common.ValidateGSTIN(client.GSTIN, "gstin"); err != nil {
		return newValidationError("gstin", err.Error())
	}
	return nil
}

func (s *clientService) CreateClient(ctx context.Context, userID uuid.UUID, client *models.Client) error {
	if err := s.validate(client); err != nil {
		return err
	}
	client.ID = uuid.New()
	client.UserID = userID
	if err := s.clientRepo.Create(ctx, client); err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("create client failed")
		return common.SecureErrorMessage("create client", err)
	}
	return nil
}

func (s *clientService) GetClient(ctx context.Context, userID, clientID uuid.UUID) (*models.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, userID, clientID)
	if err != nil {
		return nil, mapClientErr("get client", err)
	}
	return client, nil
}

func (s *clientService) ListClients(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, error) {
	clients, err := s.clientRepo.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list clients", err)
	}
	return clients, nil
}

// UpdateClient changes the client record only. Invoices keep the party details they were issued with.
func (s *clientService) UpdateClient(ctx context.Context, userID uuid.UUID, client *models.Client) error {
	if err := s.validate(client); err != nil {
		return err
	}
	client.UserID = userID
	if err := s.clientRepo.Update(ctx, client); err != nil {
		return mapClientErr("update client", err)
	}
	return nil
}

func (s *clientService) DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error {
	n, err := s.invoiceRepo.CountByClient(ctx, userID, clientID)
	if err != nil {
		return common.SecureErrorMessage("check client invoices", err)
	}
	if n > 0 {
		return fmt.Errorf("%w (%d invoices)", ErrClientInUse, n)
	}
	if err := s.clientRepo.Delete(ctx, userID, clientID); err != nil {
		return mapClientErr("delete client", err)
	}
	return nil
}

func mapClientErr(operation string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrClientNotFound
	}
	return common.SecureErrorMessage(operation, err)
}
