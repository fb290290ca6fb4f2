package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier implements ports.PaymentVerifier with the gateway's
// checkout signature: hex(HMAC-SHA256(secret, order_id + "|" + payment_id)).
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) Verify(ctx context.Context, orderID, paymentID, signature string) (bool, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return false, nil
	}
	want := Sign(v.secret, orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature)), nil
}

// Sign computes the checkout signature. Exported for test fixtures and the
// sandbox checkout page.
func Sign(secret []byte, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
