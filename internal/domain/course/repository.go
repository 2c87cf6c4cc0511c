package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines course data access interface
type Repository interface {
	GetCourseType(ctx context.Context, id uuid.UUID) (*CourseType, error)
	FindGroupByCourseType(ctx context.Context, courseTypeID uuid.UUID) (*StudentGroup, error)
	AddGroupMember(ctx context.Context, groupID, studentID uuid.UUID) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new course repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetCourseType returns a course type joined with its course title, or nil if there is none
func (r *repository) GetCourseType(ctx context.Context, id uuid.UUID) (*CourseType, error) {
	query := `
		SELECT ct.id, ct.course_id, c.title AS course_title, ct.type, ct.batch_number,
		       ct.normal_price, ct.is_discount, ct.discount_type, ct.discount_value,
		       ct.is_active, ct.created_at, ct.updated_at
		FROM course_types ct
		JOIN courses c ON c.id = ct.course_id
		WHERE ct.id = $1
	`

	var ct CourseType
	err := r.db.GetContext(ctx, &ct, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("course repository get type: %w", err)
	}
	return &ct, nil
}

// FindGroupByCourseType returns the student group of a course type, or nil if none was set up.
// A course type has at most one group.
func (r *repository) FindGroupByCourseType(ctx context.Context, courseTypeID uuid.UUID) (*StudentGroup, error) {
	query := `
		SELECT id, course_type_id, name, created_at
		FROM course_student_groups
		WHERE course_type_id = $1
	`

	var g StudentGroup
	err := r.db.GetContext(ctx, &g, query, courseTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("course repository find group: %w", err)
	}
	return &g, nil
}

// AddGroupMember inserts the membership unless it exists. Reports whether a row was created.
func (r *repository) AddGroupMember(ctx context.Context, groupID, studentID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO course_student_group_members (group_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, student_id) DO NOTHING
	`, groupID, studentID)
	if err != nil {
		return false, fmt.Errorf("course repository add member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
