package midtrans

import (
	"encoding/json"
	"fmt"
)

// Transaction status values reported in HTTP notifications.
const (
	StatusCapture    = "capture"
	StatusSettlement = "settlement"
	StatusPending    = "pending"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
	StatusRefund     = "refund"
)

// Fraud status values (card payments only).
const (
	FraudAccept    = "accept"
	FraudChallenge = "challenge"
	FraudDeny      = "deny"
)

// Notification is the HTTP notification body posted by the gateway.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       Amount `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id,omitempty"`
	TransactionTime   string `json:"transaction_time,omitempty"`
	Currency          string `json:"currency,omitempty"`
	StatusMessage     string `json:"status_message,omitempty"`
}

// ParseNotification decodes a notification body.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("midtrans: decode notification: %w", err)
	}
	return &n, nil
}

// Verify checks signature_key against the server key.
func (n *Notification) Verify(serverKey string) error {
	if n.SignatureKey == "" {
		return ErrMissingSignature
	}
	expected := Sign(n.OrderID, n.StatusCode, n.GrossAmount.String(), serverKey)
	if serverKey == "" || !VerifySignature(expected, n.SignatureKey) {
		return ErrInvalidSignature
	}
	return nil
}
