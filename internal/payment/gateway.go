// Package payment drives orders through payment confirmation: the
// cash-on-delivery path and the gateway-callback path, including the rollback
// of stock reservations when a gateway payment is declined.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ResponseCodeSuccess is the gateway's code for an approved transaction;
// every other code is a decline.
const ResponseCodeSuccess = "00"

// Callback is the payload the payment provider posts after processing a
// transaction. Signature covers all other fields.
type Callback struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	ResponseCode  string `json:"response_code"`
	AmountCents   int    `json:"amount_cents"`
	Signature     string `json:"signature"`
}

// Validator checks a callback's integrity before it is allowed to touch an
// order.
type Validator interface {
	Validate(cb Callback) bool
}

// HMACValidator verifies the provider's HMAC-SHA256 signature over the
// canonical field string, with a constant-time compare.
type HMACValidator struct {
	Secret []byte
}

func (v HMACValidator) Validate(cb Callback) bool {
	want := v.Sign(cb)
	return hmac.Equal([]byte(want), []byte(cb.Signature))
}

// Sign computes the signature for a callback; exported so tests and sandbox
// tooling can forge valid callbacks.
func (v HMACValidator) Sign(cb Callback) string {
	mac := hmac.New(sha256.New, v.Secret)
	fmt.Fprintf(mac, "%s|%s|%s|%d", cb.OrderID, cb.TransactionID, cb.ResponseCode, cb.AmountCents)
	return hex.EncodeToString(mac.Sum(nil))
}
