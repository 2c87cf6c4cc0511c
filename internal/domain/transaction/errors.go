package transaction

import "errors"

var (
	ErrNotAuthenticated  = errors.New("authentication required")
	ErrDuplicatePurchase = errors.New("course already purchased or awaiting payment")
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotPayable        = errors.New("transaction cannot be paid")
	ErrPriceMismatch     = errors.New("price changed since checkout")
	ErrGateway           = errors.New("payment gateway unavailable")
	ErrPromoUnavailable  = errors.New("promo code is no longer available")
	ErrFulfillment       = errors.New("paid fulfillment failed")
)
