package student

import (
	"time"

	"github.com/google/uuid"
)

// Student is a buyer. Accounts are managed by the account service;
// this API only reads the display data it needs for checkout.
type Student struct {
	ID        uuid.UUID `db:"id"`
	FullName  string    `db:"full_name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
