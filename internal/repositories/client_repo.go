package repositories

import (
	"context"
	"fmt"

	"billbook/internal/models"

	"github.com/google/uuid"
)

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, error)
}

type clientRepo struct {
	db DBTX
}

func NewClientRepo(db DBTX) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) Create(ctx context.Context, c *models.Client) error {
	query := `
		INSERT INTO clients (id, user_id, name, email, phone, address, state, gstin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.State, c.GSTIN).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (r *clientRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Client, error) {
	c := &models.Client{}
	query := `
		SELECT id, user_id, name, email, phone, address, state, gstin, created_at, updated_at
		FROM clients
		WHERE user_id = $1 AND id = $2
	`
	err := r.db.QueryRow(ctx, query, userID, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.State, &c.GSTIN, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *clientRepo) Update(ctx context.Context, c *models.Client) error {
	query := `
		UPDATE clients
		SET name = $1, email = $2, phone = $3, address = $4, state = $5, gstin = $6, updated_at = NOW()
		WHERE user_id = $7 AND id = $8
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.State, c.GSTIN, c.UserID, c.ID).
		Scan(&c.UpdatedAt)
	if err != nil {
		return notFound(err)
	}
	return nil
}

func (r *clientRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clientRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, error) {
	query := `
		SELECT id, user_id, name, email, phone, address, state, gstin, created_at, updated_at
		FROM clients
		WHERE user_id = $1
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		c := &models.Client{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.State, &c.GSTIN, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
