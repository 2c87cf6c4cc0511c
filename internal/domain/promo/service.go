package promo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursehub/coursehub-api/internal/domain/pricing"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and stores a new promo code
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*PromoCode, error) {
	now := s.now()
	if !req.ExpiredAt.After(now) {
		return nil, ErrExpiryPast
	}
	t := pricing.DiscountType(req.DiscountType)
	if t == pricing.DiscountPercentage && req.DiscountValue.GreaterThan(hundred) {
		return nil, ErrPercentMax
	}
	if t == pricing.DiscountFixed && !pricing.IsWholeUnit(req.DiscountValue) {
		return nil, ErrFractional
	}

	p := &PromoCode{
		ID:            uuid.New(),
		Code:          NormalizeCode(req.Code),
		DiscountType:  t,
		DiscountValue: req.DiscountValue,
		ExpiredAt:     req.ExpiredAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().Str("code", p.Code).Msg("promo code created")
	return p, nil
}

// FindEligible returns the promo code if it may be applied now, or nil.
// An unknown, used, expired or deleted code is not an error: checkout proceeds without it.
func (s *Service) FindEligible(ctx context.Context, code string) (*PromoCode, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	return s.repo.GetEligibleByCode(ctx, code, s.now())
}

// TermsAt returns the discount terms a transaction created at the given time was priced with.
func (s *Service) TermsAt(ctx context.Context, code string, at time.Time) (*PromoCode, error) {
	p, err := s.repo.GetTermsAt(ctx, NormalizeCode(code), at)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// MarkUsed consumes the code. Reports false when it was already consumed.
func (s *Service) MarkUsed(ctx context.Context, code string) (bool, error) {
	return s.repo.MarkUsed(ctx, NormalizeCode(code))
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]PromoCode, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}
