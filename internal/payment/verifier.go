// Package payment checks the signatures the payment gateway attaches to a
// completed checkout. Creating gateway orders happens elsewhere.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrAmountMismatch   = errors.New("payment amount does not match the appointment")
)

// Proof is what the gateway hands back after checkout. Amount is in minor
// currency units and is covered by the signature.
type Proof struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"gt=0"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

// Covers reports whether the proof pays exactly amount.
func (p Proof) Covers(amount int64) error {
	if p.Amount != amount {
		return fmt.Errorf("%w: paid %d, due %d", ErrAmountMismatch, p.Amount, amount)
	}
	return nil
}

type Verifier interface {
	Verify(p Proof) error
}

// HMACVerifier accepts signatures of the form
// hex(HMAC-SHA256(orderID|paymentID|amount)).
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(p Proof) error {
	if len(v.secret) == 0 || p.OrderID == "" || p.PaymentID == "" || p.Amount <= 0 {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(p.Signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, v.sum(p.OrderID, p.PaymentID, p.Amount)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces the signature the gateway would send. Used by tests.
func (v *HMACVerifier) Sign(orderID, paymentID string, amount int64) string {
	return hex.EncodeToString(v.sum(orderID, paymentID, amount))
}

// SignedProof builds a complete proof for the given payment.
func (v *HMACVerifier) SignedProof(orderID, paymentID string, amount int64) Proof {
	return Proof{
		OrderID:   orderID,
		PaymentID: paymentID,
		Amount:    amount,
		Signature: v.Sign(orderID, paymentID, amount),
	}
}

func (v *HMACVerifier) sum(orderID, paymentID string, amount int64) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(orderID + "|" + paymentID + "|" + strconv.FormatInt(amount, 10)))
	return h.Sum(nil)
}
