package transaction

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		changed  bool
		err      error
	}{
		{StatusUnpaid, StatusPaid, true, nil},
		{StatusUnpaid, StatusFailed, true, nil},
		{StatusUnpaid, StatusUnpaid, false, nil},
		{StatusPaid, StatusPaid, false, nil},
		{StatusFailed, StatusFailed, false, nil},
		{StatusPaid, StatusFailed, false, ErrInvalidTransition},
		{StatusPaid, StatusUnpaid, false, ErrInvalidTransition},
		{StatusFailed, StatusPaid, false, ErrInvalidTransition},
		{StatusFailed, StatusUnpaid, false, ErrInvalidTransition},
		{StatusUnpaid, Status("refunded"), false, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			changed, err := CheckTransition(tt.from, tt.to)
			assert.Equal(t, tt.changed, changed)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCodeFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	code := NewCode(now)
	assert.Regexp(t, regexp.MustCompile(`^TRX-1700000000123-\d{4}$`), code)
}

func TestJSONRawMessageValue(t *testing.T) {
	v, err := JSONRawMessage(nil).Value()
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONRawMessage(`{"a":1}`).Value()
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	var j JSONRawMessage
	assert.NoError(t, j.Scan([]byte(`{"b":2}`)))
	b, _ := j.MarshalJSON()
	assert.JSONEq(t, `{"b":2}`, string(b))
}
