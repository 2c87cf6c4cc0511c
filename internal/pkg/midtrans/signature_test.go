package midtrans

import "testing"

func TestSign_SHA512(t *testing.T) {
	got := Sign("a", "b", "c", "")
	want := "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"
	if got != want {
		t.Fatalf("unexpected hash:\nwant %s\ngot  %s", want, got)
	}
}

func TestVerifySignature_CaseSensitive(t *testing.T) {
	if VerifySignature("abcd", "ABCD") {
		t.Fatal("expected case-sensitive comparison")
	}
	if !VerifySignature("abcd", "abcd") {
		t.Fatal("expected identical signatures to match")
	}
}

func flipFirstByte(s string) string {
	b := []byte(s)
	b[0] ^= 0x01
	return string(b)
}

func TestNotificationVerify_FieldTampering(t *testing.T) {
	const key = "SB-Mid-server-test"
	base := Notification{
		OrderID:     "TRX-1712345678901-4821",
		StatusCode:  "200",
		GrossAmount: "150000.00",
	}
	base.SignatureKey = Sign(base.OrderID, base.StatusCode, base.GrossAmount.String(), key)

	if err := base.Verify(key); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	tampered := map[string]func(n *Notification){
		"order_id":     func(n *Notification) { n.OrderID = flipFirstByte(n.OrderID) },
		"status_code":  func(n *Notification) { n.StatusCode = flipFirstByte(n.StatusCode) },
		"gross_amount": func(n *Notification) { n.GrossAmount = Amount(flipFirstByte(n.GrossAmount.String())) },
		"signature":    func(n *Notification) { n.SignatureKey = flipFirstByte(n.SignatureKey) },
	}
	for name, mutate := range tampered {
		t.Run(name, func(t *testing.T) {
			n := base
			mutate(&n)
			if err := n.Verify(key); err != ErrInvalidSignature {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}

	if err := base.Verify("other-key"); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature for wrong key, got %v", err)
	}
}

func TestNotificationVerify_Missing(t *testing.T) {
	n := Notification{OrderID: "TRX-1", StatusCode: "200", GrossAmount: "1000.00"}
	if err := n.Verify("key"); err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}
