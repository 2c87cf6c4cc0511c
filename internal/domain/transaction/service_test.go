package transaction

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/domain/course"
	"github.com/coursehub/coursehub-api/internal/domain/pricing"
	"github.com/coursehub/coursehub-api/internal/domain/promo"
	"github.com/coursehub/coursehub-api/internal/domain/student"
	"github.com/coursehub/coursehub-api/internal/pkg/midtrans"
)

type repoStub struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*Transaction
	promos   *promoStub
	students *studentStub
	// racer, when set, runs inside UpdateStatus before the compare-and-set.
	racer func(t *Transaction)
}

func newRepoStub(promos *promoStub, students *studentStub) *repoStub {
	return &repoStub{items: map[uuid.UUID]*Transaction{}, promos: promos, students: students}
}

func (r *repoStub) Create(ctx context.Context, t *Transaction, consumePromo bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if consumePromo && t.PromoCode.Valid && !r.promos.markUsed(t.PromoCode.String) {
		return ErrPromoUnavailable
	}
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *repoStub) HasActivePurchase(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.StudentID == studentID && t.CourseID == courseID && t.Status != StatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoStub) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *repoStub) GetByCode(ctx context.Context, code string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *repoStub) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	t, _ := r.GetByID(ctx, id)
	if t == nil {
		return nil, nil
	}
	d := &Detail{Transaction: *t, CourseTitle: "Go for Backend"}
	if s := r.students.byID[t.StudentID]; s != nil {
		d.StudentName, d.StudentEmail = s.FullName, s.Email
	}
	return d, nil
}

func (r *repoStub) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, raw JSONRawMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.items[id]
	if r.racer != nil {
		r.racer(t)
		r.racer = nil
	}
	if t == nil || t.Status != from {
		return false, nil
	}
	t.Status = to
	if len(raw) > 0 {
		t.RawNotification = raw
	}
	return true, nil
}

func (r *repoStub) SaveNotification(ctx context.Context, id uuid.UUID, raw JSONRawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.items[id]; t != nil {
		t.RawNotification = raw
	}
	return nil
}

func (r *repoStub) SetSession(ctx context.Context, id uuid.UUID, token, redirectURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.items[id]
	if t == nil || t.Status != StatusUnpaid {
		return false, nil
	}
	t.SnapToken = sql.NullString{String: token, Valid: true}
	t.RedirectURL = sql.NullString{String: redirectURL, Valid: true}
	return true, nil
}

func (r *repoStub) ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]Transaction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for _, t := range r.items {
		if t.StudentID == studentID {
			out = append(out, *t)
		}
	}
	return out, len(out), nil
}

func (r *repoStub) List(ctx context.Context, filter ListFilter) ([]Detail, int, error) {
	return nil, 0, nil
}

type promoStub struct {
	mu    sync.Mutex
	codes map[string]*promo.PromoCode
}

func (p *promoStub) FindEligible(ctx context.Context, code string) (*promo.PromoCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.codes[promo.NormalizeCode(code)]
	if c == nil || !c.Eligible(time.Now()) {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (p *promoStub) TermsAt(ctx context.Context, code string, at time.Time) (*promo.PromoCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.codes[code]
	if c == nil {
		return nil, promo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (p *promoStub) markUsed(code string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.codes[code]
	if c == nil || c.IsUsed {
		return false
	}
	c.IsUsed = true
	return true
}

type courseStub struct {
	types map[uuid.UUID]*course.CourseType
	err   error
}

func (c *courseStub) GetCourseType(ctx context.Context, id uuid.UUID) (*course.CourseType, error) {
	if c.err != nil {
		return nil, c.err
	}
	ct := c.types[id]
	if ct == nil {
		return nil, course.ErrCourseTypeNotFound
	}
	cp := *ct
	return &cp, nil
}

func (c *courseStub) GetPurchasable(ctx context.Context, id uuid.UUID) (*course.CourseType, error) {
	ct, err := c.GetCourseType(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ct.IsActive {
		return nil, course.ErrCourseTypeNotFound
	}
	return ct, nil
}

type studentStub struct {
	byID map[uuid.UUID]*student.Student
}

func (s *studentStub) GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	return s.byID[id], nil
}

type gatewayStub struct {
	calls int
	last  midtrans.SnapRequest
	err   error
}

func (g *gatewayStub) CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error) {
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &midtrans.SnapResponse{Token: "snap-token", RedirectURL: "https://pay.example/snap-token"}, nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (p *publisherStub) Publish(ctx context.Context, ev StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type hookStub struct {
	calls int
	err   error
}

func (h *hookStub) OnPaid(ctx context.Context, t *Transaction) error {
	h.calls++
	return h.err
}

type fixture struct {
	svc       *Service
	repo      *repoStub
	promos    *promoStub
	courses   *courseStub
	gateway   *gatewayStub
	publisher *publisherStub
	hook      *hookStub
	buyer     *student.Student
	other     *student.Student
	ct        *course.CourseType
}

// newFixture prices a batch course at 500000 with a built-in 10% discount and
// a fixed promo HEMAT worth 100000.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		buyer: &student.Student{ID: uuid.New(), FullName: "Budi Santoso", Email: "budi@example.com"},
		other: &student.Student{ID: uuid.New(), FullName: "Siti", Email: "siti@example.com"},
		ct: &course.CourseType{
			ID:            uuid.New(),
			CourseID:      uuid.New(),
			CourseTitle:   "Go for Backend",
			Type:          course.TypeBatch,
			BatchNumber:   sql.NullInt32{Int32: 3, Valid: true},
			NormalPrice:   decimal.NewFromInt(500000),
			IsDiscount:    true,
			DiscountType:  sql.NullString{String: "percentage", Valid: true},
			DiscountValue: decimal.NewNullDecimal(decimal.NewFromInt(10)),
			IsActive:      true,
		},
		promos: &promoStub{codes: map[string]*promo.PromoCode{
			"HEMAT": {
				ID:            uuid.New(),
				Code:          "HEMAT",
				DiscountType:  pricing.DiscountFixed,
				DiscountValue: decimal.NewFromInt(100000),
				ExpiredAt:     time.Now().Add(time.Hour),
				CreatedAt:     time.Now().Add(-time.Hour),
			},
		}},
		gateway:   &gatewayStub{},
		publisher: &publisherStub{},
		hook:      &hookStub{},
	}
	students := &studentStub{byID: map[uuid.UUID]*student.Student{f.buyer.ID: f.buyer, f.other.ID: f.other}}
	f.courses = &courseStub{types: map[uuid.UUID]*course.CourseType{f.ct.ID: f.ct}}
	f.repo = newRepoStub(f.promos, students)
	f.svc = NewService(f.repo, f.courses, students, f.promos, f.gateway, f.publisher, f.hook, nil, cfg)
	return f
}

func TestQuoteHasNoSideEffects(t *testing.T) {
	f := newFixture(t, Config{})

	priced, err := f.svc.Quote(context.Background(), f.ct.ID, "hemat")
	require.NoError(t, err)
	assert.Equal(t, "350000", priced.Quote.FinalPrice.String())
	assert.Equal(t, "50000", priced.Quote.BuiltInDiscount.String())
	assert.Equal(t, "100000", priced.Quote.PromoDiscount.String())
	assert.False(t, f.promos.codes["HEMAT"].IsUsed)
	assert.Empty(t, f.repo.items)
}

func TestInitiate(t *testing.T) {
	f := newFixture(t, Config{})

	tr, err := f.svc.Initiate(context.Background(), f.buyer.ID, f.ct.ID, "HEMAT")
	require.NoError(t, err)

	assert.Equal(t, StatusUnpaid, tr.Status)
	assert.Equal(t, "500000", tr.OriginalPrice.String())
	assert.Equal(t, "150000", tr.Discount.String())
	assert.Equal(t, "350000", tr.FinalPrice.String())
	assert.True(t, tr.FinalPrice.Add(tr.Discount).Equal(tr.OriginalPrice))
	assert.Equal(t, "HEMAT", tr.PromoCode.String)
	assert.Equal(t, int32(3), tr.BatchNumber.Int32)
	assert.True(t, f.promos.codes["HEMAT"].IsUsed)
}

func TestInitiateRequiresBuyer(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.Initiate(context.Background(), uuid.Nil, f.ct.ID, "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Initiate(context.Background(), uuid.New(), f.ct.ID, "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, f.repo.items)
}

func TestInitiateUnknownOrInactiveCourseType(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.Initiate(context.Background(), f.buyer.ID, uuid.New(), "")
	assert.ErrorIs(t, err, course.ErrCourseTypeNotFound)

	f.ct.IsActive = false
	_, err = f.svc.Initiate(context.Background(), f.buyer.ID, f.ct.ID, "")
	assert.ErrorIs(t, err, course.ErrCourseTypeNotFound)
}

func TestDuplicatePurchaseGuard(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	first, err := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
	assert.ErrorIs(t, err, ErrDuplicatePurchase)

	_, err = f.svc.Transition(ctx, first, StatusFailed, nil, SourceWebhook)
	require.NoError(t, err)

	second, err := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = f.svc.Initiate(ctx, f.other.ID, f.ct.ID, "")
	assert.NoError(t, err)
}

func TestPromoIsSingleUse(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	first, err := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "HEMAT")
	require.NoError(t, err)
	assert.True(t, first.PromoCode.Valid)

	second, err := f.svc.Initiate(ctx, f.other.ID, f.ct.ID, "HEMAT")
	require.NoError(t, err)
	assert.False(t, second.PromoCode.Valid)
	assert.Equal(t, "450000", second.FinalPrice.String())
}

func TestPromoConsumedOnPaidMode(t *testing.T) {
	f := newFixture(t, Config{ConsumePromoOnPaid: true})

	tr, err := f.svc.Initiate(context.Background(), f.buyer.ID, f.ct.ID, "HEMAT")
	require.NoError(t, err)
	assert.Equal(t, "HEMAT", tr.PromoCode.String)
	assert.False(t, f.promos.codes["HEMAT"].IsUsed)
}

func TestTransitionRepeatedPaidIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, err := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
	require.NoError(t, err)

	res, err := f.svc.Transition(ctx, tr, StatusPaid, JSONRawMessage(`{"n":1}`), SourceWebhook)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, StatusUnpaid, res.From)

	res, err = f.svc.Transition(ctx, tr, StatusPaid, JSONRawMessage(`{"n":2}`), SourceWebhook)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	assert.Equal(t, 2, f.hook.calls)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, StatusPaid, f.publisher.events[0].Status)

	stored, _ := f.repo.GetByID(ctx, tr.ID)
	assert.JSONEq(t, `{"n":2}`, string(stored.RawNotification))
}

func TestTransitionCannotLeaveTerminal(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")

	_, err := f.svc.Transition(ctx, tr, StatusPaid, nil, SourceWebhook)
	require.NoError(t, err)

	res, err := f.svc.Transition(ctx, tr, StatusFailed, nil, SourceWebhook)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, res.Changed)

	stored, _ := f.repo.GetByID(ctx, tr.ID)
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestTransitionLosesRaceToConcurrentUpdate(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")

	f.repo.racer = func(t *Transaction) { t.Status = StatusPaid }

	res, err := f.svc.Transition(ctx, tr, StatusFailed, nil, SourceWebhook)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPaid, res.From)
	assert.Equal(t, StatusPaid, tr.Status)
	assert.Empty(t, f.publisher.events)
}

func TestTransitionWrapsFulfillmentError(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
	f.hook.err = errors.New("group missing")

	res, err := f.svc.Transition(ctx, tr, StatusPaid, nil, SourceWebhook)
	assert.ErrorIs(t, err, ErrFulfillment)
	require.NotNil(t, res)
	assert.True(t, res.Changed)
}

func TestAdminUpdateStatus(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")

	updated, res, err := f.svc.UpdateStatus(ctx, tr.ID, StatusFailed)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, StatusFailed, updated.Status)

	_, _, err = f.svc.UpdateStatus(ctx, tr.ID, StatusPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = f.svc.UpdateStatus(ctx, uuid.New(), StatusPaid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminUpdateStatusRetriesFulfillment(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")

	f.hook.err = errors.New("group missing")
	_, err := f.svc.Transition(ctx, tr, StatusPaid, nil, SourceWebhook)
	require.ErrorIs(t, err, ErrFulfillment)

	f.hook.err = nil
	updated, res, err := f.svc.UpdateStatus(ctx, tr.ID, StatusPaid)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, StatusPaid, updated.Status)
	assert.Equal(t, 2, f.hook.calls)
	assert.Len(t, f.publisher.events, 1)
}

func TestLookupHidesOtherStudents(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")

	d, err := f.svc.Lookup(ctx, tr.ID, Viewer{UserID: f.buyer.ID})
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", d.StudentName)

	_, err = f.svc.Lookup(ctx, tr.ID, Viewer{UserID: f.other.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Lookup(ctx, tr.ID, Viewer{UserID: uuid.New(), IsAdmin: true})
	assert.NoError(t, err)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t, Config{FrontendURL: "https://coursehub.example/"})
	ctx := context.Background()
	tr, err := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "HEMAT")
	require.NoError(t, err)

	session, err := f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "snap-token", session.Token)

	req := f.gateway.last
	assert.Equal(t, tr.Code, req.TransactionDetails.OrderID)
	assert.Equal(t, int64(350000), req.TransactionDetails.GrossAmount)
	require.Len(t, req.ItemDetails, 1)
	assert.Equal(t, int64(350000), req.ItemDetails[0].Price)
	assert.Equal(t, "Go for Backend (batch #3)", req.ItemDetails[0].Name)
	assert.Equal(t, "budi@example.com", req.CustomerDetails.Email)
	assert.Equal(t, "https://coursehub.example/transactions/"+tr.ID.String(), req.Callbacks.Finish)

	again, err := f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Token, again.Token)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestCreateSessionRefusals(t *testing.T) {
	ctx := context.Background()

	t.Run("not owner", func(t *testing.T) {
		f := newFixture(t, Config{})
		tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
		_, err := f.svc.CreateSession(ctx, f.other.ID, tr.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("price changed", func(t *testing.T) {
		f := newFixture(t, Config{})
		tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
		f.ct.NormalPrice = decimal.NewFromInt(600000)
		_, err := f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
		assert.ErrorIs(t, err, ErrPriceMismatch)
		assert.Zero(t, f.gateway.calls)
	})

	t.Run("free", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.ct.DiscountValue = decimal.NewNullDecimal(decimal.NewFromInt(100))
		tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
		_, err := f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
		assert.ErrorIs(t, err, ErrNotPayable)
	})

	t.Run("fractional amount never truncated for the gateway", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.ct.NormalPrice = decimal.RequireFromString("99.50")
		tr, err := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
		require.NoError(t, err)
		assert.True(t, tr.FinalPrice.Equal(decimal.RequireFromString("89.50")), "final: got %s", tr.FinalPrice)

		_, err = f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
		assert.ErrorIs(t, err, ErrNotPayable)
		assert.Zero(t, f.gateway.calls)
	})

	t.Run("already paid", func(t *testing.T) {
		f := newFixture(t, Config{})
		tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
		_, _ = f.svc.Transition(ctx, tr, StatusPaid, nil, SourceWebhook)
		_, err := f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
		assert.ErrorIs(t, err, ErrNotPayable)
	})

	t.Run("gateway down", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.gateway.err = errors.New("midtrans timeout")
		tr, _ := f.svc.Initiate(ctx, f.buyer.ID, f.ct.ID, "")
		_, err := f.svc.CreateSession(ctx, f.buyer.ID, tr.ID)
		assert.ErrorIs(t, err, ErrGateway)
	})
}
