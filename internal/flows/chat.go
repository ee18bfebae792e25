package flows

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/payment"
)

const metaOfferID = "offer_id"

// Views the chat can send the visitor to after a purchase.
const (
	ViewChat     = "chat"
	ViewCall     = "call"
	ViewPackages = "packages"
)

const (
	chatCallConfirmed    = "Pagamento confirmado! Já vou te ligar, amor 😘"
	chatContentConfirmed = "Pagamento confirmado! Aqui está seu conteúdo: "
	chatPackagesRedirect = "Pagamento confirmado! Confira meus pacotes 💋"
)

// ChatMessage is one line of the scripted conversation. Offer lines carry the
// id and price of the payment button rendered under them.
type ChatMessage struct {
	Text    string           `json:"text"`
	OfferID string           `json:"offer_id,omitempty"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	At      time.Time        `json:"at"`
}

type chatAdapter struct {
	storefrontID uuid.UUID
	catalog      *catalog.Catalog
	calls        *calls.Manager

	mu         sync.Mutex
	transcript []ChatMessage
	view       string
}

func newChatAdapter(storefrontID uuid.UUID, c *catalog.Catalog, m *calls.Manager) *chatAdapter {
	a := &chatAdapter{storefrontID: storefrontID, catalog: c, calls: m, view: ViewChat}

	now := time.Now()
	if c.Chat.Greeting != "" {
		a.transcript = append(a.transcript, ChatMessage{Text: c.Chat.Greeting, At: now})
	}
	for _, offer := range c.Chat.Offers {
		price := offer.Price
		text := offer.Prompt
		if text == "" {
			text = offer.Label
		}
		a.transcript = append(a.transcript, ChatMessage{Text: text, OfferID: offer.ID, Price: &price, At: now})
	}
	return a
}

func (a *chatAdapter) intent(itemID string) (payment.PurchaseIntent, error) {
	offer, err := a.catalog.ChatOffer(itemID)
	if err != nil {
		return payment.PurchaseIntent{}, unknownItem(KindChat, itemID, err)
	}
	meta := map[string]string{metaOfferID: offer.ID}
	if offer.CallMinutes > 0 {
		meta[metaCallMinutes] = strconv.Itoa(offer.CallMinutes)
	}
	if offer.PackageID != "" {
		meta[metaPackageID] = offer.PackageID
	}
	return payment.PurchaseIntent{Price: offer.Price, Description: offer.Label, Metadata: meta}, nil
}

func (a *chatAdapter) complete(c payment.Completion) {
	text, view := chatPackagesRedirect, ViewPackages

	if minutes, _ := strconv.Atoi(c.Intent.Metadata[metaCallMinutes]); minutes > 0 {
		startCall(a.calls, a.storefrontID, minutes)
		text, view = chatCallConfirmed, ViewCall
	} else if id := c.Intent.Metadata[metaPackageID]; id != "" {
		if pkg, err := a.catalog.Package(id); err == nil && pkg.AccessURL != "" {
			text = chatContentConfirmed + pkg.AccessURL
		}
	}

	a.mu.Lock()
	a.transcript = append(a.transcript, ChatMessage{Text: text, At: time.Now()})
	a.view = view
	a.mu.Unlock()
}

type chatExtras struct {
	Messages []ChatMessage `json:"messages"`
	View     string        `json:"view"`
	Call     *calls.Status `json:"call,omitempty"`
}

func (a *chatAdapter) extras() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return chatExtras{
		Messages: append([]ChatMessage{}, a.transcript...),
		View:     a.view,
		Call:     currentCall(a.calls, a.storefrontID),
	}
}
