package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/config"
	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/payment"
	"github.com/example/vitrine/internal/routes"
	"github.com/example/vitrine/internal/services"
	"github.com/example/vitrine/internal/utils"
)

const testSecret = "test-secret"

type fakeGateway struct {
	mu     sync.Mutex
	n      int
	image  string
	status gateway.Status
}

func (g *fakeGateway) CreateCharge(ctx context.Context, amount decimal.Decimal) (*gateway.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return &gateway.Charge{ID: fmt.Sprintf("pix-%d", g.n), Code: "00020126580014br.gov.bcb.pix", EncodedImage: g.image, Amount: amount}, nil
}

func (g *fakeGateway) GetChargeStatus(ctx context.Context, id string) (gateway.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}

func (g *fakeGateway) set(status gateway.Status, image string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status, g.image = status, image
}

type fakeCharges struct {
	mu     sync.Mutex
	filter services.ChargeFilter
	page   utils.Pagination
}

func (f *fakeCharges) List(ctx context.Context, filter services.ChargeFilter, page utils.Pagination) ([]models.PixCharge, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter, f.page = filter, page
	return []models.PixCharge{{ChargeID: "pix-1", Flow: "packages", Status: "paid", Amount: decimal.RequireFromString("9.90")}}, 1, nil
}

func (f *fakeCharges) Stats(ctx context.Context, now time.Time) (services.ChargeStats, error) {
	return services.ChargeStats{TotalCharges: 3, ByStatus: map[string]int64{"paid": 1, "created": 2}}, nil
}

type testServer struct {
	app     *fiber.App
	gw      *fakeGateway
	charges *fakeCharges
	calls   *calls.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := utils.HashPassword("s3nha")
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret:         testSecret,
		SessionTTL:        time.Hour,
		AdminUser:         "admin",
		AdminPasswordHash: hash,
	}

	cat, err := catalog.Default()
	require.NoError(t, err)

	ts := &testServer{
		gw:      &fakeGateway{status: gateway.StatusCreated},
		charges: &fakeCharges{},
		calls:   calls.NewManager(calls.Config{}),
	}
	registry := flows.NewRegistry(flows.Dependencies{
		Gateway: ts.gw,
		Catalog: cat,
		Calls:   ts.calls,
		Session: payment.Options{GatewayTimeout: time.Second, PaidResetDelay: time.Millisecond},
	}, time.Hour)
	t.Cleanup(registry.Close)

	ts.app = fiber.New()
	routes.Register(ts.app, routes.Dependencies{
		Config:   cfg,
		Registry: registry,
		Catalog:  cat,
		Calls:    ts.calls,
		Charges:  ts.charges,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, 5000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	resp, data := ts.do(t, method, path, token, body)
	var out map[string]any
	if len(data) > 0 && resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (ts *testServer) storefront(t *testing.T) string {
	t.Helper()
	status, body := ts.doJSON(t, http.MethodPost, "/api/storefronts", "", nil)
	require.Equal(t, http.StatusCreated, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func flowView(body map[string]any) map[string]any {
	view, _ := body["flow"].(map[string]any)
	return view
}

func TestCreateStorefront(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.doJSON(t, http.MethodPost, "/api/storefronts", "", nil)

	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["storefront_id"])
	views, ok := body["flows"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, views, 3)
	assert.Contains(t, views, "videocall")
}

func TestCatalog_HidesAccessLinks(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.do(t, http.MethodGet, "/api/catalog", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Pacote Transando")
	assert.NotContains(t, string(data), "drive.google.com")
}

func TestFlowRoutes_RequireToken(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.doJSON(t, http.MethodGet, "/api/flows/packages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.doJSON(t, http.MethodGet, "/api/flows/packages", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	other, err := utils.GenerateStorefrontToken("other-secret", uuid.New(), time.Hour)
	require.NoError(t, err)
	status, _ = ts.doJSON(t, http.MethodGet, "/api/flows/packages", other, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestFlowRoutes_ReopenUnknownStorefront(t *testing.T) {
	ts := newTestServer(t)
	token, err := utils.GenerateStorefrontToken(testSecret, uuid.New(), time.Hour)
	require.NoError(t, err)

	status, body := ts.doJSON(t, http.MethodGet, "/api/flows/chat", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, "chat", body["flow"])
}

func TestPackagePurchase(t *testing.T) {
	ts := newTestServer(t)
	token := ts.storefront(t)

	status, body := ts.doJSON(t, http.MethodPost, "/api/flows/packages/start", token, map[string]string{"item_id": "transando"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["accepted"])
	view := flowView(body)
	assert.Equal(t, "awaiting_payment", view["state"])
	charge, ok := view["charge"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pix-1", charge["id"])
	assert.Equal(t, "Pacote Transando", charge["description"])

	status, body = ts.doJSON(t, http.MethodPost, "/api/flows/packages/copy", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["copied"])
	assert.Equal(t, "00020126580014br.gov.bcb.pix", body["code"])

	status, body = ts.doJSON(t, http.MethodPost, "/api/flows/packages/display", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "qr", flowView(body)["display"])

	resp, png := ts.do(t, http.MethodGet, "/api/flows/packages/qr", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}))

	status, body = ts.doJSON(t, http.MethodPost, "/api/flows/packages/verify", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "awaiting_payment", flowView(body)["state"])
	notice, _ := flowView(body)["notice"].(map[string]any)
	require.NotNil(t, notice)
	assert.Equal(t, "info", notice["kind"])

	ts.gw.set(gateway.StatusPaid, "")
	status, body = ts.doJSON(t, http.MethodPost, "/api/flows/packages/verify", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", flowView(body)["state"])

	require.Eventually(t, func() bool {
		_, body := ts.doJSON(t, http.MethodGet, "/api/flows/packages", token, nil)
		extras, _ := body["extras"].(map[string]any)
		unlocked, _ := extras["unlocked"].([]any)
		return body["state"] == "idle" && len(unlocked) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStart_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.storefront(t)

	status, _ := ts.doJSON(t, http.MethodPost, "/api/flows/feed/start", token, map[string]string{"item_id": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.doJSON(t, http.MethodPost, "/api/flows/packages/start", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.doJSON(t, http.MethodPost, "/api/flows/videocall/start", token, map[string]string{"item_id": "7"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRejectedActionsStillReturnView(t *testing.T) {
	ts := newTestServer(t)
	token := ts.storefront(t)

	for _, action := range []string{"verify", "cancel", "display"} {
		status, body := ts.doJSON(t, http.MethodPost, "/api/flows/chat/"+action, token, nil)
		require.Equal(t, http.StatusOK, status, action)
		assert.Equal(t, false, body["accepted"], action)
		assert.Equal(t, "idle", flowView(body)["state"], action)
	}

	status, body := ts.doJSON(t, http.MethodPost, "/api/flows/chat/copy", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["copied"])
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t)
	token := ts.storefront(t)

	status, _ := ts.doJSON(t, http.MethodGet, "/api/flows/videocall/qr", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	image := []byte("provider-png")
	ts.gw.set(gateway.StatusCreated, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(image))
	status, _ = ts.doJSON(t, http.MethodPost, "/api/flows/videocall/start", token, map[string]string{"item_id": "5"})
	require.Equal(t, http.StatusOK, status)

	resp, data := ts.do(t, http.MethodGet, "/api/flows/videocall/qr", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, image, data)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestCallRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.storefront(t)

	status, body := ts.doJSON(t, http.MethodGet, "/api/call", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["call"])

	status, _ = ts.doJSON(t, http.MethodPost, "/api/call/end", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	ts.gw.set(gateway.StatusPaid, "")
	_, _ = ts.doJSON(t, http.MethodPost, "/api/flows/videocall/start", token, map[string]string{"item_id": "5"})
	_, _ = ts.doJSON(t, http.MethodPost, "/api/flows/videocall/verify", token, nil)

	require.Eventually(t, func() bool {
		_, body := ts.doJSON(t, http.MethodGet, "/api/call", token, nil)
		return body["call"] != nil
	}, 2*time.Second, 10*time.Millisecond)

	status, body = ts.doJSON(t, http.MethodPost, "/api/call/end", token, nil)
	require.Equal(t, http.StatusOK, status)
	call, _ := body["call"].(map[string]any)
	assert.Equal(t, string(calls.PhaseEnded), call["phase"])
	assert.EqualValues(t, 5, call["minutes"])
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)

	basic := func(user, pass string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	}
	request := func(path, auth string) (*http.Response, map[string]any) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := ts.app.Test(req, 5000)
		require.NoError(t, err)
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, _ := request("/api/admin/charges", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	resp, _ = request("/api/admin/charges", basic("admin", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := request("/api/admin/charges?status=PAID&flow=video-call&page=2&limit=500", basic("admin", "s3nha"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)
	assert.Equal(t, services.ChargeFilter{Status: "paid", Flow: "videocall"}, ts.charges.filter)
	assert.Equal(t, 2, ts.charges.page.Page)
	assert.Equal(t, 100, ts.charges.page.Limit)

	resp, _ = request("/api/admin/charges?flow=feed", basic("admin", "s3nha"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = request("/api/admin/stats", basic("admin", "s3nha"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["active_storefronts"])
}
