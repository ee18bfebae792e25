package flows

import (
	"time"

	"github.com/google/uuid"
)

// Storefront is one visitor's set of purchase flows. The flows share nothing
// but the storefront id.
type Storefront struct {
	ID        uuid.UUID
	CreatedAt time.Time
	flows     map[Kind]*Flow
}

func newStorefront(id uuid.UUID, deps Dependencies) *Storefront {
	sf := &Storefront{ID: id, CreatedAt: time.Now(), flows: make(map[Kind]*Flow, len(Kinds))}
	sf.flows[KindChat] = newFlow(KindChat, id, deps, newChatAdapter(id, deps.Catalog, deps.Calls))
	sf.flows[KindPackages] = newFlow(KindPackages, id, deps, &packagesAdapter{
		catalog: deps.Catalog,
		phone:   deps.WhatsAppPhone,
	})
	sf.flows[KindVideoCall] = newFlow(KindVideoCall, id, deps, &videoCallAdapter{
		storefrontID: id,
		catalog:      deps.Catalog,
		calls:        deps.Calls,
		phone:        deps.WhatsAppPhone,
	})
	return sf
}

func (s *Storefront) Flow(kind Kind) (*Flow, bool) {
	f, ok := s.flows[kind]
	return f, ok
}

// Close cancels every open purchase of the storefront.
func (s *Storefront) Close() {
	for _, kind := range Kinds {
		s.flows[kind].Close()
	}
}
