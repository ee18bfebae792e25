package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the provider-reported state of a Pix charge.
type Status string

const (
	StatusCreated  Status = "created"
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusExpired  Status = "expired"
	StatusCanceled Status = "canceled"
)

// ParseStatus normalizes a raw provider status value.
func ParseStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// Terminal reports whether no further transition is expected for the charge.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusExpired, StatusCanceled:
		return true
	}
	return false
}

// Charge is a payment request issued by the provider.
type Charge struct {
	ID string
	// Code is the Pix "copia e cola" payload.
	Code string
	// EncodedImage is the QR image as returned by the provider, usually a data URI.
	// Providers are allowed to omit it.
	EncodedImage string
	Amount       decimal.Decimal
}

// Gateway issues Pix charges and reports their status.
type Gateway interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal) (*Charge, error)
	GetChargeStatus(ctx context.Context, id string) (Status, error)
}

// Error is returned for every failed gateway call. Message holds provider text
// that is safe to show to the payer and may be empty.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("pix gateway")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the payer-facing text carried by err, or "" when there is none.
func UserMessage(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}

// Temporary reports whether retrying the same call later may succeed.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.StatusCode == http.StatusTooManyRequests || gwErr.StatusCode >= 500 {
			return true
		}
		// transport failures carry no status code
		return gwErr.StatusCode == 0 && gwErr.Err != nil
	}
	return false
}
