package reconciliation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-api/internal/domain/course"
	"github.com/coursehub/coursehub-api/internal/domain/transaction"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
)

// Enroller adds students to batch groups
type Enroller interface {
	EnrollBatch(ctx context.Context, courseTypeID, studentID uuid.UUID) (*course.Enrollment, error)
}

// PromoConsumer flips promo codes to used
type PromoConsumer interface {
	MarkUsed(ctx context.Context, code string) (bool, error)
}

// Fulfiller runs the side effects of a paid transaction: batch enrollment and,
// when promo codes are consumed on payment, the promo flip. Both are idempotent.
type Fulfiller struct {
	enroller     Enroller
	promos       PromoConsumer
	consumePromo bool
}

func NewFulfiller(enroller Enroller, promos PromoConsumer, consumePromoOnPaid bool) *Fulfiller {
	return &Fulfiller{enroller: enroller, promos: promos, consumePromo: consumePromoOnPaid}
}

// OnPaid implements transaction.PaidHook
func (f *Fulfiller) OnPaid(ctx context.Context, t *transaction.Transaction) error {
	l := logger.FromContext(ctx)

	if t.IsBatch() {
		_, err := f.enroller.EnrollBatch(ctx, t.CourseTypeID, t.StudentID)
		switch {
		case errors.Is(err, course.ErrGroupNotFound):
			l.Warn().
				Str("transaction_id", t.ID.String()).
				Str("course_type_id", t.CourseTypeID.String()).
				Int32("batch_number", t.BatchNumber.Int32).
				Msg("no student group for paid batch purchase")
		case err != nil:
			return err
		}
	}

	if f.consumePromo && t.PromoCode.Valid && f.promos != nil {
		used, err := f.promos.MarkUsed(ctx, t.PromoCode.String)
		if err != nil {
			return err
		}
		if !used {
			l.Debug().Str("promo_code", t.PromoCode.String).Msg("promo code already consumed")
		}
	}

	return nil
}

var _ transaction.PaidHook = (*Fulfiller)(nil)
