package transaction

import (
	"crypto/rand"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursehub/coursehub-api/internal/domain/course"
)

// Status represents transaction status
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

func (s Status) Valid() bool {
	return s == StatusUnpaid || s == StatusPaid || s == StatusFailed
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// CheckTransition validates a status change.
// Returns changed=false for a same-state no-op and ErrInvalidTransition when
// leaving a terminal status.
func CheckTransition(from, to Status) (changed bool, err error) {
	if !to.Valid() {
		return false, ErrInvalidTransition
	}
	if from == to {
		return false, nil
	}
	if from == StatusUnpaid {
		return true, nil
	}
	return false, ErrInvalidTransition
}

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

// Value sends the document as text; lib/pq would encode []byte as bytea.
func (j JSONRawMessage) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Transaction is one purchase attempt of a course type by a student
type Transaction struct {
	ID              uuid.UUID       `db:"id"`
	Code            string          `db:"code"`
	CourseID        uuid.UUID       `db:"course_id"`
	CourseTypeID    uuid.UUID       `db:"course_type_id"`
	StudentID       uuid.UUID       `db:"student_id"`
	Type            course.Type     `db:"type"`
	BatchNumber     sql.NullInt32   `db:"batch_number"`
	OriginalPrice   decimal.Decimal `db:"original_price"`
	Discount        decimal.Decimal `db:"discount"`
	FinalPrice      decimal.Decimal `db:"final_price"`
	PromoCode       sql.NullString  `db:"promo_code"`
	Status          Status          `db:"status"`
	SnapToken       sql.NullString  `db:"snap_token"`
	RedirectURL     sql.NullString  `db:"redirect_url"`
	RawNotification JSONRawMessage  `db:"raw_notification"`
	PaidAt          sql.NullTime    `db:"paid_at"`
	FailedAt        sql.NullTime    `db:"failed_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// IsBatch reports whether a paid transaction enrolls the student into a batch group.
func (t *Transaction) IsBatch() bool {
	return t.Type == course.TypeBatch && t.BatchNumber.Valid
}

// Detail is a transaction with course and student display data
type Detail struct {
	Transaction
	CourseTitle  string `db:"course_title"`
	StudentName  string `db:"student_name"`
	StudentEmail string `db:"student_email"`
}

var codeSuffixMax = big.NewInt(10000)

// NewCode returns the gateway order id for a new purchase attempt: TRX-<unix ms>-<4 random digits>.
func NewCode(now time.Time) string {
	n, err := rand.Int(rand.Reader, codeSuffixMax)
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}
	return fmt.Sprintf("TRX-%d-%04d", now.UnixMilli(), n.Int64())
}
