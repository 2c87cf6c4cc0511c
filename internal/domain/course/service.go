package course

import (
	"context"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-api/internal/pkg/logger"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetCourseType returns the course type regardless of whether it is still on sale.
// Rows priced in fractions of a unit are refused: the gateway charges whole units.
func (s *Service) GetCourseType(ctx context.Context, id uuid.UUID) (*CourseType, error) {
	ct, err := s.repo.GetCourseType(ctx, id)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, ErrCourseTypeNotFound
	}
	if !ct.WholeUnitPricing() {
		logger.FromContext(ctx).Error().
			Str("course_type_id", ct.ID.String()).
			Str("normal_price", ct.NormalPrice.String()).
			Msg("course type priced in fractional units")
		return nil, ErrFractionalPrice
	}
	return ct, nil
}

// GetPurchasable returns the course type only if it is on sale.
func (s *Service) GetPurchasable(ctx context.Context, id uuid.UUID) (*CourseType, error) {
	ct, err := s.GetCourseType(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ct.IsActive {
		return nil, ErrCourseTypeNotFound
	}
	return ct, nil
}

// EnrollBatch adds the student to the group of the purchased course type. Repeated calls are no-ops.
func (s *Service) EnrollBatch(ctx context.Context, courseTypeID, studentID uuid.UUID) (*Enrollment, error) {
	group, err := s.repo.FindGroupByCourseType(ctx, courseTypeID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	created, err := s.repo.AddGroupMember(ctx, group.ID, studentID)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("group_id", group.ID.String()).
		Str("student_id", studentID.String()).
		Bool("created", created).
		Msg("batch enrollment")

	return &Enrollment{GroupID: group.ID, Created: created}, nil
}
