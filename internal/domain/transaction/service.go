package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-api/internal/domain/course"
	"github.com/coursehub/coursehub-api/internal/domain/pricing"
	"github.com/coursehub/coursehub-api/internal/domain/promo"
	"github.com/coursehub/coursehub-api/internal/domain/student"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
	"github.com/coursehub/coursehub-api/internal/pkg/metrics"
	"github.com/coursehub/coursehub-api/internal/pkg/midtrans"
)

// Transition sources
const (
	SourceWebhook = "webhook"
	SourceAdmin   = "admin"
)

// CourseTypes resolves the offering being bought
type CourseTypes interface {
	GetCourseType(ctx context.Context, id uuid.UUID) (*course.CourseType, error)
	GetPurchasable(ctx context.Context, id uuid.UUID) (*course.CourseType, error)
}

// Students resolves buyers
type Students interface {
	GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error)
}

// Promos resolves promo codes
type Promos interface {
	FindEligible(ctx context.Context, code string) (*promo.PromoCode, error)
	TermsAt(ctx context.Context, code string, at time.Time) (*promo.PromoCode, error)
}

// Gateway creates hosted payment sessions
type Gateway interface {
	CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error)
}

// Publisher fans out applied status changes
type Publisher interface {
	Publish(ctx context.Context, ev StatusEvent) error
}

// PaidHook runs the side effects of a paid transaction. It must be idempotent:
// it is invoked again for every repeated paid notification.
type PaidHook interface {
	OnPaid(ctx context.Context, t *Transaction) error
}

// Config holds the checkout settings
type Config struct {
	FrontendURL        string
	ConsumePromoOnPaid bool
}

// Viewer is the caller reading a transaction
type Viewer struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Priced is a price computation together with its inputs
type Priced struct {
	CourseType *course.CourseType
	Promo      *promo.PromoCode
	Quote      pricing.Quote
}

// TransitionResult describes what a status change did
type TransitionResult struct {
	From    Status
	To      Status
	Changed bool
}

// Session is a gateway payment page
type Session struct {
	Token       string
	RedirectURL string
}

type Service struct {
	repo        Repository
	courseTypes CourseTypes
	students    Students
	promos      Promos
	gateway     Gateway
	publisher   Publisher
	onPaid      PaidHook
	metrics     *metrics.Metrics
	cfg         Config
	now         func() time.Time
}

// NewService creates transaction service. gateway, publisher, onPaid and m may be nil.
func NewService(repo Repository, courseTypes CourseTypes, students Students, promos Promos,
	gateway Gateway, publisher Publisher, onPaid PaidHook, m *metrics.Metrics, cfg Config) *Service {
	return &Service{
		repo:        repo,
		courseTypes: courseTypes,
		students:    students,
		promos:      promos,
		gateway:     gateway,
		publisher:   publisher,
		onPaid:      onPaid,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Quote prices a course type for display. It has no side effects.
func (s *Service) Quote(ctx context.Context, courseTypeID uuid.UUID, promoCode string) (*Priced, error) {
	ct, err := s.courseTypes.GetPurchasable(ctx, courseTypeID)
	if err != nil {
		return nil, err
	}

	var p *promo.PromoCode
	if promoCode != "" {
		if p, err = s.promos.FindEligible(ctx, promoCode); err != nil {
			return nil, err
		}
	}
	return price(ct, p), nil
}

func price(ct *course.CourseType, p *promo.PromoCode) *Priced {
	in := pricing.Input{NormalPrice: ct.NormalPrice, BuiltIn: ct.BuiltInDiscount()}
	if p != nil {
		in.Promo = p.Discount()
	}
	return &Priced{CourseType: ct, Promo: p, Quote: pricing.Compute(in)}
}

// Initiate creates an unpaid transaction for the student
func (s *Service) Initiate(ctx context.Context, studentID uuid.UUID, courseTypeID uuid.UUID, promoCode string) (*Transaction, error) {
	t, err := s.initiate(ctx, studentID, courseTypeID, promoCode)
	s.metrics.ObserveCheckout(checkoutResult(err))
	return t, err
}

func (s *Service) initiate(ctx context.Context, studentID uuid.UUID, courseTypeID uuid.UUID, promoCode string) (*Transaction, error) {
	if studentID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	buyer, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, ErrNotAuthenticated
	}

	priced, err := s.Quote(ctx, courseTypeID, promoCode)
	if err != nil {
		return nil, err
	}
	ct := priced.CourseType

	exists, err := s.repo.HasActivePurchase(ctx, studentID, ct.CourseID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePurchase
	}

	now := s.now()
	t := &Transaction{
		ID:            uuid.New(),
		Code:          NewCode(now),
		CourseID:      ct.CourseID,
		CourseTypeID:  ct.ID,
		StudentID:     studentID,
		Type:          ct.Type,
		BatchNumber:   ct.BatchNumber,
		OriginalPrice: priced.Quote.OriginalPrice,
		Discount:      priced.Quote.Discount,
		FinalPrice:    priced.Quote.FinalPrice,
		Status:        StatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applied := priced.Promo != nil && priced.Quote.PromoApplied()
	if applied {
		t.PromoCode.String = priced.Promo.Code
		t.PromoCode.Valid = true
	}

	if err := s.repo.Create(ctx, t, applied && !s.cfg.ConsumePromoOnPaid); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("transaction_id", t.ID.String()).
		Str("code", t.Code).
		Str("student_id", studentID.String()).
		Str("final_price", t.FinalPrice.String()).
		Bool("promo_applied", applied).
		Msg("checkout initiated")

	return t, nil
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrDuplicatePurchase):
		return "duplicate"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, course.ErrCourseTypeNotFound):
		return "not_found"
	case errors.Is(err, ErrPromoUnavailable):
		return "promo_unavailable"
	default:
		return "error"
	}
}

// Lookup returns the transaction with display data. Other students' transactions
// are reported as not found.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID, viewer Viewer) (*Detail, error) {
	d, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil || (!viewer.IsAdmin && d.StudentID != viewer.UserID) {
		return nil, ErrNotFound
	}
	return d, nil
}

// FindByCode locates a transaction by gateway order id, nil when absent.
func (s *Service) FindByCode(ctx context.Context, code string) (*Transaction, error) {
	return s.repo.GetByCode(ctx, code)
}

// Transition applies a status change through the state machine.
// The write is a compare-and-set on the current status; a lost race is resolved
// by reloading the row once. raw, when present, is stored as the last notification.
func (s *Service) Transition(ctx context.Context, t *Transaction, to Status, raw JSONRawMessage, source string) (*TransitionResult, error) {
	for attempt := 0; ; attempt++ {
		from := t.Status
		changed, err := CheckTransition(from, to)
		if err != nil {
			return &TransitionResult{From: from, To: from}, err
		}

		if !changed {
			if len(raw) > 0 {
				if err := s.repo.SaveNotification(ctx, t.ID, raw); err != nil {
					return nil, err
				}
			}
			return s.afterTransition(ctx, t, &TransitionResult{From: from, To: to})
		}

		ok, err := s.repo.UpdateStatus(ctx, t.ID, from, to, raw)
		if err != nil {
			return nil, err
		}
		if ok {
			t.Status = to
			t.UpdatedAt = s.now()
			s.metrics.ObserveTransition(string(from), string(to), source)
			s.publish(ctx, t)

			logger.FromContext(ctx).Info().
				Str("transaction_id", t.ID.String()).
				Str("from", string(from)).
				Str("to", string(to)).
				Str("source", source).
				Msg("transaction status changed")

			return s.afterTransition(ctx, t, &TransitionResult{From: from, To: to, Changed: true})
		}

		if attempt > 0 {
			return nil, fmt.Errorf("transaction %s: concurrent status update", t.ID)
		}
		current, err := s.repo.GetByID(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrNotFound
		}
		*t = *current
	}
}

func (s *Service) afterTransition(ctx context.Context, t *Transaction, res *TransitionResult) (*TransitionResult, error) {
	if res.To != StatusPaid || s.onPaid == nil {
		return res, nil
	}
	if err := s.onPaid.OnPaid(ctx, t); err != nil {
		return res, fmt.Errorf("%w: %v", ErrFulfillment, err)
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, t *Transaction) {
	if s.publisher == nil {
		return
	}
	ev := StatusEvent{TransactionID: t.ID, Code: t.Code, Status: t.Status, UpdatedAt: t.UpdatedAt}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("transaction_id", t.ID.String()).Msg("status publish failed")
	}
}

// UpdateStatus is the admin override. It goes through the same state machine.
// Setting paid on an already paid transaction re-runs the paid side effects,
// which is how a failed enrollment is retried.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Transaction, *TransitionResult, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, ErrNotFound
	}
	res, err := s.Transition(ctx, t, to, nil, SourceAdmin)
	return t, res, err
}

// CreateSession opens a gateway payment page for the owner's unpaid transaction.
// The price is recomputed and must match the ledger.
func (s *Service) CreateSession(ctx context.Context, studentID, id uuid.UUID) (*Session, error) {
	d, err := s.Lookup(ctx, id, Viewer{UserID: studentID})
	if err != nil {
		return nil, err
	}
	if d.Status != StatusUnpaid {
		return nil, ErrNotPayable
	}
	if d.SnapToken.Valid && d.RedirectURL.Valid {
		return &Session{Token: d.SnapToken.String, RedirectURL: d.RedirectURL.String}, nil
	}
	// the gateway charges whole units only
	if !d.FinalPrice.IsPositive() || !pricing.IsWholeUnit(d.FinalPrice) {
		return nil, ErrNotPayable
	}
	if s.gateway == nil {
		return nil, ErrGateway
	}

	ct, err := s.courseTypes.GetCourseType(ctx, d.CourseTypeID)
	if err != nil {
		return nil, err
	}
	var p *promo.PromoCode
	if d.PromoCode.Valid {
		if p, err = s.promos.TermsAt(ctx, d.PromoCode.String, d.CreatedAt); err != nil {
			return nil, err
		}
	}
	q := price(ct, p).Quote
	if !q.FinalPrice.Equal(d.FinalPrice) {
		logger.FromContext(ctx).Warn().
			Str("transaction_id", d.ID.String()).
			Str("ledger", d.FinalPrice.String()).
			Str("recomputed", q.FinalPrice.String()).
			Msg("price mismatch on session creation")
		return nil, ErrPriceMismatch
	}

	amount := d.FinalPrice.IntPart()
	req := midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{OrderID: d.Code, GrossAmount: amount},
		CustomerDetails:    &midtrans.CustomerDetails{FirstName: d.StudentName, Email: d.StudentEmail},
		ItemDetails: []midtrans.ItemDetail{{
			ID:       d.CourseTypeID.String(),
			Price:    amount,
			Quantity: 1,
			Name:     ct.DisplayName(),
		}},
	}
	if s.cfg.FrontendURL != "" {
		req.Callbacks = &midtrans.Callbacks{
			Finish: strings.TrimRight(s.cfg.FrontendURL, "/") + "/transactions/" + d.ID.String(),
		}
	}

	start := time.Now()
	resp, err := s.gateway.CreateTransaction(ctx, req)
	s.metrics.ObserveGateway(start, err)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("code", d.Code).Msg("gateway session failed")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	ok, err := s.repo.SetSession(ctx, d.ID, resp.Token, resp.RedirectURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPayable
	}

	return &Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// ListMine returns the student's own transactions
func (s *Service) ListMine(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]Transaction, int, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByStudent(ctx, studentID, limit, offset)
}

// ListAll returns transactions for the back office
func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]Detail, int, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.repo.List(ctx, filter)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
