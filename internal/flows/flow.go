// Package flows binds payment sessions to what the storefront sells. Each
// storefront gets one chat, one packages and one video call flow; every flow
// owns its own payment.Session and reacts to a paid charge in its own way.
package flows

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/payment"
)

type Kind string

const (
	KindChat      Kind = "chat"
	KindPackages  Kind = "packages"
	KindVideoCall Kind = "videocall"
)

var Kinds = []Kind{KindChat, KindPackages, KindVideoCall}

var (
	ErrUnknownFlow = errors.New("unknown flow")
	ErrUnknownItem = errors.New("unknown item")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindChat, KindPackages, KindVideoCall:
		return k, nil
	case "video-call", "video_call":
		return KindVideoCall, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFlow, s)
}

// Ledger hands out a payment.Recorder scoped to one flow of one storefront.
type Ledger interface {
	ForFlow(storefrontID uuid.UUID, flow string) payment.Recorder
}

// Purchase describes a completed purchase for notifications.
type Purchase struct {
	StorefrontID uuid.UUID
	Flow         Kind
	ChargeID     string
	Description  string
	Amount       decimal.Decimal
	PaidAt       time.Time
}

type Notifier interface {
	NotifyPurchase(p Purchase)
}

// Dependencies are shared by every flow of every storefront.
type Dependencies struct {
	Gateway  gateway.Gateway
	Catalog  *catalog.Catalog
	Calls    *calls.Manager
	Ledger   Ledger
	Notifier Notifier
	// Session is the template for each flow's payment session options.
	Session       payment.Options
	WhatsAppPhone string
}

// adapter is the flow-specific half of a Flow.
type adapter interface {
	intent(itemID string) (payment.PurchaseIntent, error)
	complete(c payment.Completion)
	extras() any
}

// View is a flow's snapshot as served to the browser.
type View struct {
	Flow Kind `json:"flow"`
	payment.Snapshot
	Extras any `json:"extras,omitempty"`
}

// Flow is one purchase surface: a payment session plus what happens after payment.
type Flow struct {
	kind         Kind
	storefrontID uuid.UUID
	session      *payment.Session
	adapter      adapter
	notifier     Notifier
}

func newFlow(kind Kind, storefrontID uuid.UUID, deps Dependencies, a adapter) *Flow {
	f := &Flow{
		kind:         kind,
		storefrontID: storefrontID,
		adapter:      a,
		notifier:     deps.Notifier,
	}

	opts := deps.Session
	opts.Name = fmt.Sprintf("%s/%s", kind, storefrontID)
	if deps.Ledger != nil {
		opts.Recorder = deps.Ledger.ForFlow(storefrontID, string(kind))
	}
	f.session = payment.NewSession(deps.Gateway, f.complete, opts)
	return f
}

func (f *Flow) Kind() Kind { return f.kind }

// Start opens a purchase of the catalog item. It returns false when the
// session is busy with another gateway call.
func (f *Flow) Start(ctx context.Context, itemID string) (bool, error) {
	intent, err := f.adapter.intent(itemID)
	if err != nil {
		return false, err
	}
	return f.session.Start(ctx, intent), nil
}

func (f *Flow) ToggleDisplay() bool             { return f.session.ToggleDisplayMode() }
func (f *Flow) Copy() (string, bool)            { return f.session.CopyCode() }
func (f *Flow) Verify(ctx context.Context) bool { return f.session.Verify(ctx) }
func (f *Flow) Cancel() bool                    { return f.session.Cancel() }

// Charge returns the charge currently on display.
func (f *Flow) Charge() (payment.Charge, bool) { return f.session.ActiveCharge() }

func (f *Flow) View() View {
	return View{
		Flow:     f.kind,
		Snapshot: f.session.Snapshot(),
		Extras:   f.adapter.extras(),
	}
}

// Close abandons any open purchase. A charge already paid is still completed.
func (f *Flow) Close() { f.session.Close() }

func (f *Flow) complete(c payment.Completion) {
	log.Printf("[Flow] %s/%s: purchase of %q completed", f.kind, f.storefrontID, c.Intent.Description)
	f.adapter.complete(c)

	if f.notifier != nil {
		f.notifier.NotifyPurchase(Purchase{
			StorefrontID: f.storefrontID,
			Flow:         f.kind,
			ChargeID:     c.Charge.ID,
			Description:  c.Intent.Description,
			Amount:       c.Intent.Price,
			PaidAt:       time.Now(),
		})
	}
}

func unknownItem(kind Kind, itemID string, err error) error {
	return fmt.Errorf("%w: %s item %q: %v", ErrUnknownItem, kind, itemID, err)
}
