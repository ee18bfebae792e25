package flows

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/payment"
)

type stubGateway struct {
	mu      sync.Mutex
	issued  []decimal.Decimal
	status  gateway.Status
	lookups int
}

func (g *stubGateway) CreateCharge(ctx context.Context, amount decimal.Decimal) (*gateway.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued = append(g.issued, amount)
	return &gateway.Charge{ID: fmt.Sprintf("pix-%d", len(g.issued)), Code: "000201pix", Amount: amount}, nil
}

func (g *stubGateway) GetChargeStatus(ctx context.Context, id string) (gateway.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	return g.status, nil
}

func (g *stubGateway) setStatus(s gateway.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = s
}

func (g *stubGateway) created() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.issued)
}

type recordingNotifier struct {
	mu        sync.Mutex
	purchases []Purchase
}

func (n *recordingNotifier) NotifyPurchase(p Purchase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purchases = append(n.purchases, p)
}

func (n *recordingNotifier) all() []Purchase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Purchase(nil), n.purchases...)
}

type nopRecorder struct{}

func (nopRecorder) ChargeCreated(ctx context.Context, charge payment.Charge) error { return nil }
func (nopRecorder) StatusChecked(ctx context.Context, id string, s gateway.Status) error {
	return nil
}

type recordingLedger struct {
	mu    sync.Mutex
	flows []string
}

func (l *recordingLedger) ForFlow(storefrontID uuid.UUID, flow string) payment.Recorder {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flows = append(l.flows, flow)
	return nopRecorder{}
}

const testCatalog = `
packages:
  - id: transando
    name: Pacote Transando
    price: "9.90"
    access_url: https://drive.example/transando
  - id: surpresa
    name: Pacote Surpresa
    price: "19.90"
calls:
  - minutes: 5
    price: "14.90"
  - minutes: 10
    price: "34.90"
chat:
  greeting: Oi!
  offers:
    - id: call-10
      label: Videochamada 10min
      price: "14.90"
      call_minutes: 10
    - id: pkg
      label: Pacote Transando
      prompt: Tenho um pacote especial
      price: "9.90"
      package_id: transando
`

type fixture struct {
	gw       *stubGateway
	notifier *recordingNotifier
	ledger   *recordingLedger
	calls    *calls.Manager
	deps     Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	fx := &fixture{
		gw:       &stubGateway{status: gateway.StatusCreated},
		notifier: &recordingNotifier{},
		ledger:   &recordingLedger{},
		calls:    calls.NewManager(calls.Config{}),
	}
	fx.deps = Dependencies{
		Gateway:       fx.gw,
		Catalog:       cat,
		Calls:         fx.calls,
		Ledger:        fx.ledger,
		Notifier:      fx.notifier,
		Session:       payment.Options{GatewayTimeout: time.Second, PaidResetDelay: time.Millisecond},
		WhatsAppPhone: "5521975023352",
	}
	return fx
}

func (fx *fixture) storefront(t *testing.T) *Storefront {
	t.Helper()
	sf := newStorefront(uuid.New(), fx.deps)
	t.Cleanup(sf.Close)
	return sf
}

func flowOf(t *testing.T, sf *Storefront, kind Kind) *Flow {
	t.Helper()
	f, ok := sf.Flow(kind)
	require.True(t, ok)
	return f
}

func payAndWait(t *testing.T, fx *fixture, f *Flow, itemID string) {
	t.Helper()
	before := len(fx.notifier.all())

	started, err := f.Start(context.Background(), itemID)
	require.NoError(t, err)
	require.True(t, started)

	fx.gw.setStatus(gateway.StatusPaid)
	require.True(t, f.Verify(context.Background()))
	require.Eventually(t, func() bool {
		return len(fx.notifier.all()) == before+1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, payment.StateIdle, f.View().State)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"chat":       KindChat,
		"Packages":   KindPackages,
		"videocall":  KindVideoCall,
		"video-call": KindVideoCall,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("feed")
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestStorefront_RegistersLedgerPerFlow(t *testing.T) {
	fx := newFixture(t)
	fx.storefront(t)

	assert.ElementsMatch(t, []string{"chat", "packages", "videocall"}, fx.ledger.flows)
}

func TestPackagesFlow_UnlocksAccessLink(t *testing.T) {
	fx := newFixture(t)
	sf := fx.storefront(t)
	f := flowOf(t, sf, KindPackages)

	payAndWait(t, fx, f, "transando")

	extras, ok := f.View().Extras.(packagesExtras)
	require.True(t, ok)
	require.Len(t, extras.Unlocked, 1)
	assert.Equal(t, "transando", extras.Unlocked[0].PackageID)
	assert.Equal(t, "https://drive.example/transando", extras.Unlocked[0].AccessURL)
	assert.Equal(t, "pix-1", extras.Unlocked[0].ChargeID)

	purchases := fx.notifier.all()
	require.Len(t, purchases, 1)
	assert.Equal(t, KindPackages, purchases[0].Flow)
	assert.Equal(t, sf.ID, purchases[0].StorefrontID)
	assert.True(t, purchases[0].Amount.Equal(decimal.RequireFromString("9.90")))
}

func TestPackagesFlow_FallsBackToWhatsApp(t *testing.T) {
	fx := newFixture(t)
	f := flowOf(t, fx.storefront(t), KindPackages)

	payAndWait(t, fx, f, "surpresa")

	extras := f.View().Extras.(packagesExtras)
	require.Len(t, extras.Unlocked, 1)
	link := extras.Unlocked[0].AccessURL
	assert.True(t, strings.HasPrefix(link, "https://api.whatsapp.com/send/?phone=5521975023352&text="))
	assert.Contains(t, link, "Pacote%20Surpresa")
	assert.NotContains(t, link, "+")
}

func TestVideoCallFlow_StartsPurchasedCall(t *testing.T) {
	fx := newFixture(t)
	sf := fx.storefront(t)
	f := flowOf(t, sf, KindVideoCall)

	started, err := f.Start(context.Background(), "10")
	require.NoError(t, err)
	require.True(t, started)
	charge, ok := f.Charge()
	require.True(t, ok)
	assert.Equal(t, "Videochamada 10min", charge.Description)
	assert.True(t, charge.Amount.Equal(decimal.RequireFromString("34.90")))
	require.True(t, f.Cancel())

	payAndWait(t, fx, f, "10")

	st, ok := fx.calls.Get(sf.ID)
	require.True(t, ok)
	assert.Equal(t, 10, st.Minutes)
	assert.Equal(t, calls.PhaseConnecting, st.Phase)

	extras := f.View().Extras.(videoCallExtras)
	require.NotNil(t, extras.Call)
	assert.Contains(t, extras.ContactURL, "10%20minutos")
}

func TestChatFlow_CallOfferStartsCall(t *testing.T) {
	fx := newFixture(t)
	sf := fx.storefront(t)
	f := flowOf(t, sf, KindChat)

	initial := f.View().Extras.(chatExtras)
	assert.Equal(t, ViewChat, initial.View)
	require.Len(t, initial.Messages, 3)
	assert.Equal(t, "Oi!", initial.Messages[0].Text)
	assert.Equal(t, "call-10", initial.Messages[1].OfferID)
	assert.Equal(t, "Videochamada 10min", initial.Messages[1].Text)

	payAndWait(t, fx, f, "call-10")

	extras := f.View().Extras.(chatExtras)
	assert.Equal(t, ViewCall, extras.View)
	assert.Equal(t, chatCallConfirmed, extras.Messages[len(extras.Messages)-1].Text)
	require.NotNil(t, extras.Call)
	assert.Equal(t, 10, extras.Call.Minutes)
}

func TestChatFlow_PackageOfferRevealsContent(t *testing.T) {
	fx := newFixture(t)
	sf := fx.storefront(t)
	f := flowOf(t, sf, KindChat)

	payAndWait(t, fx, f, "pkg")

	extras := f.View().Extras.(chatExtras)
	assert.Equal(t, ViewPackages, extras.View)
	assert.Equal(t, chatContentConfirmed+"https://drive.example/transando", extras.Messages[len(extras.Messages)-1].Text)
	assert.Nil(t, extras.Call)
}

func TestFlowsAreIndependent(t *testing.T) {
	fx := newFixture(t)
	sf := fx.storefront(t)
	packages := flowOf(t, sf, KindPackages)
	chat := flowOf(t, sf, KindChat)

	_, err := packages.Start(context.Background(), "transando")
	require.NoError(t, err)

	assert.Equal(t, payment.StateAwaitingPayment, packages.View().State)
	assert.Equal(t, payment.StateIdle, chat.View().State)
	assert.Nil(t, chat.View().Charge)

	_, err = chat.Start(context.Background(), "pkg")
	require.NoError(t, err)
	require.True(t, chat.Cancel())
	assert.Equal(t, payment.StateAwaitingPayment, packages.View().State)
}

func TestStart_UnknownItem(t *testing.T) {
	fx := newFixture(t)
	sf := fx.storefront(t)

	for kind, item := range map[Kind]string{KindPackages: "ghost", KindVideoCall: "7", KindChat: "nope"} {
		started, err := flowOf(t, sf, kind).Start(context.Background(), item)
		assert.False(t, started)
		assert.ErrorIs(t, err, ErrUnknownItem, kind)
	}
	assert.Zero(t, fx.gw.created())
}
