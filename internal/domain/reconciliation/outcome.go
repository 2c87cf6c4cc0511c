package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coursehub/coursehub-api/internal/domain/transaction"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
	"github.com/coursehub/coursehub-api/internal/pkg/metrics"
)

// Result is what reconciliation did with one delivery
type Result string

const (
	ResultApplied        Result = "applied"
	ResultUnchanged      Result = "unchanged"
	ResultDuplicate      Result = "duplicate"
	ResultNotFound       Result = "not_found"
	ResultUnrecognized   Result = "unrecognized"
	ResultAmountMismatch Result = "amount_mismatch"
	ResultError          Result = "error"
)

// Outcome is the internal record of one authenticated delivery. It is kept
// separate from the acknowledgment sent back to the gateway.
type Outcome struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	Result            Result
	TransactionID     uuid.UUID
	From              transaction.Status
	To                transaction.Status
	LookupAttempts    int
	Err               error
}

// Ack returns the acknowledgment body fields for the gateway.
func (o *Outcome) Ack() (success bool, message string) {
	switch o.Result {
	case ResultApplied:
		return true, "Transaction status updated"
	case ResultUnchanged:
		return true, "No status change"
	case ResultDuplicate:
		return true, "Notification already processed"
	case ResultUnrecognized:
		return true, "Unrecognized transaction status ignored"
	case ResultNotFound:
		return false, "Transaction not found"
	case ResultAmountMismatch:
		return false, "Gross amount does not match transaction"
	default:
		return false, "Failed to process notification"
	}
}

// Recorder logs and counts outcomes
type Recorder struct {
	metrics *metrics.Metrics
}

func NewRecorder(m *metrics.Metrics) *Recorder {
	return &Recorder{metrics: m}
}

func (r *Recorder) Record(ctx context.Context, o *Outcome) {
	l := logger.FromContext(ctx)

	var event *zerolog.Event
	switch o.Result {
	case ResultApplied, ResultUnchanged, ResultDuplicate:
		event = l.Info()
	case ResultError:
		event = l.Error().Err(o.Err)
	default:
		event = l.Warn()
	}

	event = event.
		Str("result", string(o.Result)).
		Str("order_id", o.OrderID).
		Str("transaction_status", o.TransactionStatus).
		Int("lookup_attempts", o.LookupAttempts)
	if o.FraudStatus != "" {
		event = event.Str("fraud_status", o.FraudStatus)
	}
	if o.TransactionID != uuid.Nil {
		event = event.
			Str("transaction_id", o.TransactionID.String()).
			Str("from", string(o.From)).
			Str("to", string(o.To))
	}
	event.Msg("payment notification")

	r.metrics.ObserveWebhook(string(o.Result), o.LookupAttempts)
}
