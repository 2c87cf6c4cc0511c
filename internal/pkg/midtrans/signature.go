package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// SignatureBase concatenates the notification fields in the order the gateway signs them.
func SignatureBase(orderID, statusCode, grossAmount, serverKey string) string {
	return orderID + statusCode + grossAmount + serverKey
}

// Sign returns the hex-encoded SHA-512 digest of the notification fields and server key.
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(SignatureBase(orderID, statusCode, grossAmount, serverKey)))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares signatures byte for byte in constant time.
// The comparison is case-sensitive: the gateway always sends lowercase hex.
func VerifySignature(expectedHex, receivedHex string) bool {
	return subtle.ConstantTimeCompare([]byte(expectedHex), []byte(receivedHex)) == 1
}
