package reconciliation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/coursehub/coursehub-api/internal/domain/transaction"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
	"github.com/coursehub/coursehub-api/internal/pkg/midtrans"
	"github.com/coursehub/coursehub-api/internal/pkg/storage"
)

const (
	defaultLookupAttempts = 3
	defaultLookupDelay    = time.Second
	defaultDedupeTTL      = 24 * time.Hour
)

var errNotVisible = errors.New("transaction not visible yet")

// Ledger is the part of the transaction service reconciliation drives
type Ledger interface {
	FindByCode(ctx context.Context, code string) (*transaction.Transaction, error)
	Transition(ctx context.Context, t *transaction.Transaction, to transaction.Status, raw transaction.JSONRawMessage, source string) (*transaction.TransitionResult, error)
}

// Config holds reconciliation settings
type Config struct {
	ServerKey      string
	LookupAttempts int
	LookupDelay    time.Duration
	DedupeTTL      time.Duration
}

type Service struct {
	ledger   Ledger
	rdb      *redis.Client
	archive  storage.Storage
	recorder *Recorder
	cfg      Config
}

// NewService creates reconciliation service. rdb and archive may be nil.
func NewService(ledger Ledger, rdb *redis.Client, archive storage.Storage, recorder *Recorder, cfg Config) *Service {
	if cfg.LookupAttempts < 1 {
		cfg.LookupAttempts = defaultLookupAttempts
	}
	if cfg.LookupDelay <= 0 {
		cfg.LookupDelay = defaultLookupDelay
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = defaultDedupeTTL
	}
	if recorder == nil {
		recorder = NewRecorder(nil)
	}
	return &Service{ledger: ledger, rdb: rdb, archive: archive, recorder: recorder, cfg: cfg}
}

// Handle authenticates and applies one notification body.
// The only errors returned are authentication and decoding failures; everything
// else is reported through the Outcome.
func (s *Service) Handle(ctx context.Context, body []byte) (*Outcome, error) {
	n, err := midtrans.ParseNotification(body)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int("size", len(body)).Msg("undecodable notification refused")
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := n.Verify(s.cfg.ServerKey); err != nil {
		logger.FromContext(ctx).Warn().
			Err(err).
			Str("order_id", n.OrderID).
			Msg("payment notification rejected")
		return nil, err
	}

	o := &Outcome{
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
	}
	s.apply(ctx, n, body, o)
	s.recorder.Record(ctx, o)
	return o, nil
}

func (s *Service) apply(ctx context.Context, n *midtrans.Notification, body []byte, o *Outcome) {
	s.store(ctx, n, body)

	if s.seen(ctx, n) {
		o.Result = ResultDuplicate
		return
	}

	t, attempts, err := s.lookup(ctx, n.OrderID)
	o.LookupAttempts = attempts
	if err != nil {
		o.Result, o.Err = ResultError, err
		return
	}
	if t == nil {
		o.Result = ResultNotFound
		return
	}
	o.TransactionID, o.From, o.To = t.ID, t.Status, t.Status

	to, recognized := Classify(n)
	if !recognized {
		o.Result = ResultUnrecognized
		return
	}

	amount, err := n.GrossAmount.Decimal()
	if err != nil || !midtrans.AmountsEqual(t.FinalPrice, amount) {
		o.Result = ResultAmountMismatch
		return
	}

	res, err := s.ledger.Transition(ctx, t, to, transaction.JSONRawMessage(body), transaction.SourceWebhook)
	switch {
	case errors.Is(err, transaction.ErrInvalidTransition):
		// stale or out-of-order delivery for a settled transaction
		o.Result = ResultUnchanged
	case err != nil:
		o.Result, o.Err = ResultError, err
		if res != nil {
			o.To = res.To
		}
		return
	case res.Changed:
		o.Result, o.To = ResultApplied, res.To
	default:
		o.Result = ResultUnchanged
	}

	s.markSeen(ctx, n)
}

// lookup finds the ledger entry by order id, retrying with a constant delay
// while the row is not visible yet.
func (s *Service) lookup(ctx context.Context, code string) (*transaction.Transaction, int, error) {
	var (
		found    *transaction.Transaction
		attempts int
	)
	backoff := retry.WithMaxRetries(uint64(s.cfg.LookupAttempts-1), retry.NewConstant(s.cfg.LookupDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		t, err := s.ledger.FindByCode(ctx, code)
		if err != nil {
			return retry.RetryableError(err)
		}
		if t == nil {
			return retry.RetryableError(errNotVisible)
		}
		found = t
		return nil
	})
	if errors.Is(err, errNotVisible) {
		return nil, attempts, nil
	}
	return found, attempts, err
}

func dedupeKey(n *midtrans.Notification) string {
	return "midtrans:notif:" + n.OrderID + ":" + n.TransactionStatus
}

func (s *Service) seen(ctx context.Context, n *midtrans.Notification) bool {
	if s.rdb == nil {
		return false
	}
	count, err := s.rdb.Exists(ctx, dedupeKey(n)).Result()
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("notification dedupe check failed")
		return false
	}
	return count > 0
}

func (s *Service) markSeen(ctx context.Context, n *midtrans.Notification) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, dedupeKey(n), 1, s.cfg.DedupeTTL).Err(); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("notification dedupe mark failed")
	}
}

// store archives the raw body. Failures never affect reconciliation.
func (s *Service) store(ctx context.Context, n *midtrans.Notification, body []byte) {
	if s.archive == nil {
		return
	}
	key := archiveKey(n, body)
	l := logger.FromContext(ctx)

	// identical redeliveries map to the same key
	exists, err := s.archive.Exists(ctx, key)
	if err != nil {
		l.Warn().Err(err).Str("key", key).Msg("notification archive lookup failed")
	}
	if exists {
		return
	}
	if err := s.archive.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		l.Warn().Err(err).Str("key", key).Msg("notification archive failed")
	}
}

// archiveKey is midtrans/{order_id}/{transaction_status}-{body digest}.json
func archiveKey(n *midtrans.Notification, body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("midtrans/%s/%s-%s.json", n.OrderID, n.TransactionStatus, hex.EncodeToString(sum[:8]))
}
