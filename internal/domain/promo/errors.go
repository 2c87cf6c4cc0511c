package promo

import "errors"

var (
	ErrNotFound   = errors.New("promo code not found")
	ErrCodeExists = errors.New("promo code already exists")
	ErrExpiryPast = errors.New("promo code expiry must be in the future")
	ErrPercentMax = errors.New("percentage discount cannot exceed 100")
	ErrFractional = errors.New("fixed discount must be in whole currency units")
)
