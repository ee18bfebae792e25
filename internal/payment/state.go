package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a payment session.
type State int

const (
	StateIdle State = iota
	StateCreating
	StateAwaitingPayment
	StateVerifying
	StatePaid
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateCreating:        "creating",
	StateAwaitingPayment: "awaiting_payment",
	StateVerifying:       "verifying",
	StatePaid:            "paid",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DisplayMode selects how the active charge is presented to the payer.
type DisplayMode string

const (
	DisplayCode DisplayMode = "code"
	DisplayQR   DisplayMode = "qr"
)

// PurchaseIntent describes what the payer is buying. Metadata carries the
// flow-specific details needed after payment (call minutes, package id...).
type PurchaseIntent struct {
	Price       decimal.Decimal   `json:"price"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Charge is an issued Pix charge tagged with the intent that produced it.
// It is never mutated after creation.
type Charge struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	EncodedImage string            `json:"encoded_image"`
	Amount       decimal.Decimal   `json:"amount"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (c Charge) HasCode() bool  { return c.Code != "" }
func (c Charge) HasImage() bool { return c.EncodedImage != "" }

// Completion is delivered once per paid charge.
type Completion struct {
	Intent PurchaseIntent
	Charge Charge
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
