package payment

import (
	"github.com/example/vitrine/internal/gateway"
)

// CreationError means the gateway could not issue a charge. The attempt is
// over and the payer has to start again.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string { return "create charge: " + e.Err.Error() }
func (e *CreationError) Unwrap() error { return e.Err }

// VerificationError means a status check failed. The charge is still valid
// and the check can be repeated.
type VerificationError struct {
	ChargeID string
	Err      error
}

func (e *VerificationError) Error() string {
	return "verify charge " + e.ChargeID + ": " + e.Err.Error()
}
func (e *VerificationError) Unwrap() error { return e.Err }

func payerMessage(err error, fallback string) string {
	if msg := gateway.UserMessage(err); msg != "" {
		return msg
	}
	return fallback
}
