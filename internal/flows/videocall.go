package flows

import (
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/payment"
)

const metaCallMinutes = "call_minutes"

type videoCallAdapter struct {
	storefrontID uuid.UUID
	catalog      *catalog.Catalog
	calls        *calls.Manager
	phone        string

	mu         sync.Mutex
	contactURL string
}

func (a *videoCallAdapter) intent(itemID string) (payment.PurchaseIntent, error) {
	opt, err := a.catalog.CallOption(itemID)
	if err != nil {
		return payment.PurchaseIntent{}, unknownItem(KindVideoCall, itemID, err)
	}
	return payment.PurchaseIntent{
		Price:       opt.Price,
		Description: "Videochamada " + strconv.Itoa(opt.Minutes) + "min",
		Metadata:    map[string]string{metaCallMinutes: strconv.Itoa(opt.Minutes)},
	}, nil
}

func (a *videoCallAdapter) complete(c payment.Completion) {
	minutes, _ := strconv.Atoi(c.Intent.Metadata[metaCallMinutes])
	startCall(a.calls, a.storefrontID, minutes)

	a.mu.Lock()
	a.contactURL = whatsAppLink(a.phone, callMessage(minutes, c.Intent.Price))
	a.mu.Unlock()
}

type videoCallExtras struct {
	Call       *calls.Status `json:"call,omitempty"`
	ContactURL string        `json:"contact_url,omitempty"`
}

func (a *videoCallAdapter) extras() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return videoCallExtras{Call: currentCall(a.calls, a.storefrontID), ContactURL: a.contactURL}
}

func startCall(m *calls.Manager, storefrontID uuid.UUID, minutes int) {
	if m == nil {
		return
	}
	if _, err := m.Start(storefrontID, minutes); err != nil {
		log.Printf("[Flow] %s: start call: %v", storefrontID, err)
	}
}

func currentCall(m *calls.Manager, storefrontID uuid.UUID) *calls.Status {
	if m == nil {
		return nil
	}
	if st, ok := m.Get(storefrontID); ok {
		return &st
	}
	return nil
}
