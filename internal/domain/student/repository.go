package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines student data access interface
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new student repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetByID returns student by ID, or nil if there is none
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	query := `
		SELECT id, full_name, email, created_at, updated_at
		FROM students WHERE id = $1
	`

	var s Student
	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("student repository get: %w", err)
	}
	return &s, nil
}
