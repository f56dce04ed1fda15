package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/notifications"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/settlement-backend/internal/webhooks/stripe"
	pkgAuth "github.com/angelmondragon/settlement-backend/pkg/auth"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryRedis struct {
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type countingCheckout struct{ calls int }

func (c *countingCheckout) Execute(_ context.Context, buyerID uuid.UUID, _ checkoutsvc.Input) (*models.Order, error) {
	c.calls++
	return &models.Order{ID: uuid.New(), BuyerID: buyerID, Currency: "usd", Status: enums.OrderStatusPending, TotalMinorUnits: 2800}, nil
}

type stubIssuer struct{}

func (stubIssuer) Issue(context.Context, uuid.UUID, uuid.UUID) (*payments.Result, error) {
	return &payments.Result{}, nil
}

type stubOrders struct{}

func (stubOrders) Get(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (stubOrders) ListForBuyer(context.Context, uuid.UUID, int) ([]models.Order, error) {
	return nil, nil
}

func (stubOrders) ListForSeller(context.Context, uuid.UUID, pagination.Params) (*pagination.Page[models.SellerOrder], error) {
	return &pagination.Page[models.SellerOrder]{}, nil
}

func (stubOrders) Transition(context.Context, *gorm.DB, *models.Order, enums.OrderStatus, orders.TransitionMeta) (bool, error) {
	return false, nil
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, notifications.ListParams) (*pagination.Page[models.Notification], error) {
	return &pagination.Page[models.Notification]{}, nil
}

func (stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 0, nil }

func (stubNotifications) RegisterDestination(_ context.Context, sellerID uuid.UUID, token string, platform enums.PushPlatform) (*models.PushDestination, error) {
	return &models.PushDestination{ID: uuid.New(), SellerID: sellerID, Token: token, Platform: platform}, nil
}

func (stubNotifications) RemoveDestination(context.Context, uuid.UUID, string) error { return nil }

type stubReconciler struct{}

func (stubReconciler) Handle(context.Context, stripe.Event) (stripewebhook.Result, error) {
	return stripewebhook.Result{}, nil
}

type stubVerifier struct{}

func (stubVerifier) ConstructEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{ID: "evt_1"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "settlement", ExpirationMinutes: 60},
		HTTP: config.HTTPConfig{
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitWindow:   time.Minute,
			CheckoutRateLimit: 2,
			PaymentRateLimit:  2,
		},
		Checkout: config.CheckoutConfig{IdempotencyKeyTTL: time.Hour},
	}
}

type testRouter struct {
	handler  http.Handler
	checkout *countingCheckout
}

func newTestRouter(cfg *config.Config) testRouter {
	checkout := &countingCheckout{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := NewRouter(cfg, logg, stubPinger{}, newMemoryRedis(), prometheus.NewRegistry(), Services{
		Checkout:      checkout,
		Payments:      stubIssuer{},
		Orders:        stubOrders{},
		Notifications: stubNotifications{},
		Webhooks:      stubReconciler{},
		Verifier:      stubVerifier{},
	})
	return testRouter{handler: handler, checkout: checkout}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.MemberRole) string {
	t.Helper()
	payload := pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role}
	if role == enums.MemberRoleSeller {
		sellerID := uuid.New()
		payload.SellerID = &sellerID
	}
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), payload)
	require.NoError(t, err)
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(testConfig()).handler

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router := newTestRouter(testConfig()).handler
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestWebhookSkipsAuth(t *testing.T) {
	router := newTestRouter(testConfig()).handler
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp := serve(router, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestBuyerRoutesRejectSellers(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg).handler

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleSeller))
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleBuyer))
	assert.Equal(t, http.StatusOK, serve(router, req).Code)
}

func TestSellerRoutesRejectBuyers(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg).handler

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleBuyer))
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleSeller))
	assert.Equal(t, http.StatusOK, serve(router, req).Code)
}

func TestCheckoutRequiresIdempotencyKeyAndReplays(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(cfg)
	token := buildToken(t, cfg, enums.MemberRoleBuyer)
	body := `{"lines":[{"catalog_ref":"` + uuid.NewString() + `","quantity":1}],"shipping_method":"standard"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, serve(tr.handler, req).Code)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	first.Header.Set("Authorization", "Bearer "+token)
	first.Header.Set("Idempotency-Key", "cart-1")
	firstResp := serve(tr.handler, first)
	require.Equal(t, http.StatusCreated, firstResp.Code)

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	replay.Header.Set("Authorization", "Bearer "+token)
	replay.Header.Set("Idempotency-Key", "cart-1")
	replayResp := serve(tr.handler, replay)
	require.Equal(t, http.StatusCreated, replayResp.Code)
	assert.Equal(t, firstResp.Body.String(), replayResp.Body.String())
	assert.Equal(t, 1, tr.checkout.calls)
}

func TestCheckoutRateLimited(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(cfg)
	token := buildToken(t, cfg, enums.MemberRoleBuyer)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		body := `{"lines":[{"catalog_ref":"` + uuid.NewString() + `","quantity":1}],"shipping_method":"standard"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", uuid.NewString())
		codes = append(codes, serve(tr.handler, req).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}
