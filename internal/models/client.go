package models

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Address   string    `json:"address" db:"address"`
	State     string    `json:"state" db:"state"`
	GSTIN     string    `json:"gstin" db:"gstin"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Party returns the client as an invoice recipient.
func (c *Client) Party() Party {
	return Party{
		Name:    c.Name,
		Address: c.Address,
		State:   c.State,
		GSTIN:   c.GSTIN,
		Email:   c.Email,
		Phone:   c.Phone,
	}
}
