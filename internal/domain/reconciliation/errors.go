package reconciliation

import (
	"errors"

	"github.com/coursehub/coursehub-api/internal/pkg/midtrans"
)

var (
	ErrMissingSignature = midtrans.ErrMissingSignature
	ErrInvalidSignature = midtrans.ErrInvalidSignature
	ErrMalformed        = errors.New("malformed notification")
)
