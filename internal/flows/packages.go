package flows

import (
	"sync"
	"time"

	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/payment"
)

const metaPackageID = "package_id"

// UnlockedPackage is a paid package and where to get its content.
type UnlockedPackage struct {
	PackageID string    `json:"package_id"`
	Name      string    `json:"name"`
	AccessURL string    `json:"access_url"`
	ChargeID  string    `json:"charge_id"`
	PaidAt    time.Time `json:"paid_at"`
}

type packagesAdapter struct {
	catalog *catalog.Catalog
	phone   string

	mu       sync.Mutex
	unlocked []UnlockedPackage
}

func (a *packagesAdapter) intent(itemID string) (payment.PurchaseIntent, error) {
	pkg, err := a.catalog.Package(itemID)
	if err != nil {
		return payment.PurchaseIntent{}, unknownItem(KindPackages, itemID, err)
	}
	return payment.PurchaseIntent{
		Price:       pkg.Price,
		Description: pkg.Name,
		Metadata:    map[string]string{metaPackageID: pkg.ID},
	}, nil
}

func (a *packagesAdapter) complete(c payment.Completion) {
	id := c.Intent.Metadata[metaPackageID]
	unlocked := UnlockedPackage{
		PackageID: id,
		Name:      c.Intent.Description,
		ChargeID:  c.Charge.ID,
		PaidAt:    time.Now(),
	}
	if pkg, err := a.catalog.Package(id); err == nil {
		unlocked.AccessURL = pkg.AccessURL
	}
	if unlocked.AccessURL == "" {
		unlocked.AccessURL = whatsAppLink(a.phone, packageMessage(unlocked.Name))
	}

	a.mu.Lock()
	a.unlocked = append(a.unlocked, unlocked)
	a.mu.Unlock()
}

type packagesExtras struct {
	Unlocked []UnlockedPackage `json:"unlocked"`
}

func (a *packagesAdapter) extras() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return packagesExtras{Unlocked: append([]UnlockedPackage{}, a.unlocked...)}
}
