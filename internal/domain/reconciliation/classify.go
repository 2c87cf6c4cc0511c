package reconciliation

import (
	"github.com/coursehub/coursehub-api/internal/domain/transaction"
	"github.com/coursehub/coursehub-api/internal/pkg/midtrans"
)

// Classify maps a gateway notification to the ledger status it asks for.
// recognized is false for statuses the ledger has no transition for (refunds,
// chargebacks, anything new); those are logged and ignored.
//
// The paid rule is checked first, so a "200" status code wins over the
// transaction status.
func Classify(n *midtrans.Notification) (to transaction.Status, recognized bool) {
	switch {
	case n.TransactionStatus == midtrans.StatusCapture && n.FraudStatus == midtrans.FraudAccept,
		n.TransactionStatus == midtrans.StatusSettlement,
		n.StatusCode == "200":
		return transaction.StatusPaid, true
	}

	switch n.TransactionStatus {
	case midtrans.StatusPending, midtrans.StatusCapture:
		// capture under fraud review stays unpaid until the gateway settles or denies it
		return transaction.StatusUnpaid, true
	case midtrans.StatusDeny, midtrans.StatusCancel, midtrans.StatusExpire:
		return transaction.StatusFailed, true
	default:
		return "", false
	}
}
