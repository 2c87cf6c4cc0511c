package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Stats represents transaction statistics for the back office
type Stats struct {
	Total  int `json:"total"`
	Unpaid int `json:"unpaid"`
	Paid   int `json:"paid"`
	Failed int `json:"failed"`

	PaidRevenue       decimal.Decimal `json:"paid_revenue"`
	PaidRevenue30Days decimal.Decimal `json:"paid_revenue_30d"`
	ConversionRatePct float64         `json:"conversion_rate_pct"`
}

// Service provides dashboard statistics
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates dashboard service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// TransactionStats runs the aggregate queries concurrently
func (s *Service) TransactionStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.Unpaid, err = s.repo.CountByStatus(ctx, "unpaid")
		return err
	})
	g.Go(func() (err error) {
		stats.Paid, err = s.repo.CountByStatus(ctx, "paid")
		return err
	})
	g.Go(func() (err error) {
		stats.Failed, err = s.repo.CountByStatus(ctx, "failed")
		return err
	})
	g.Go(func() (err error) {
		stats.PaidRevenue, err = s.repo.PaidRevenue(ctx, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		stats.PaidRevenue30Days, err = s.repo.PaidRevenue(ctx, s.now().AddDate(0, 0, -30))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Total = stats.Unpaid + stats.Paid + stats.Failed
	if settled := stats.Paid + stats.Failed; settled > 0 {
		stats.ConversionRatePct = float64(stats.Paid) * 100 / float64(settled)
	}
	return stats, nil
}
