package server

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"shop-checkout/internal/client"
	"shop-checkout/internal/config"
	"shop-checkout/internal/repository"
	"shop-checkout/internal/service"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

type relayFixture struct {
	server   *Server
	backend  *httptest.Server
	received atomic.Int32
	lastBody atomic.Value
	lastSig  atomic.Value
}

func newRelayFixture(t *testing.T, webhookSecret string) *relayFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &relayFixture{}

	f.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/webhook/cashfree", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(b))
		f.lastSig.Store(r.Header.Get(service.HeaderWebhookSignature))
		f.received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.backend.Close)

	db, err := client.InitDBClient(config.Database{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	publisher, err := client.NewEventPublisher("", log)
	require.NoError(t, err)

	cfg := config.Webhook{
		Secret:      webhookSecret,
		BackendURL:  f.backend.URL,
		ForwardPath: "/api/user/webhook/cashfree",
	}
	webhookService := service.NewWebhookService(
		cfg.Secret,
		client.NewWebhookForwarder(cfg.BackendURL, cfg.ForwardPath, 5*time.Second),
		repository.NewWebhookEventRepository(db),
		publisher,
		log,
	)
	f.server = NewServer(webhookService, cfg, log)
	return f
}

func (f *relayFixture) post(headers map[string]string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/user/webhook/cashfree", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newRelayFixture(t, secret)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestWebhook_ValidSignatureIsForwarded(t *testing.T) {
	f := newRelayFixture(t, secret)
	body := `{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":42}}}`
	sig := service.Sign(secret, "1700000000", []byte(body))

	rec := f.post(map[string]string{
		service.HeaderWebhookSignature: sig,
		service.HeaderWebhookTimestamp: "1700000000",
	}, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, int32(1), f.received.Load())
	assert.Equal(t, body, f.lastBody.Load())
	assert.Equal(t, sig, f.lastSig.Load())
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := newRelayFixture(t, secret)

	rec := f.post(map[string]string{
		service.HeaderWebhookSignature: "bm90LWEtc2lnbmF0dXJl",
		service.HeaderWebhookTimestamp: "1700000000",
	}, `{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
	assert.Equal(t, int32(0), f.received.Load())
}

func TestWebhook_MissingData(t *testing.T) {
	f := newRelayFixture(t, secret)
	body := `{"type":"PAYMENT_SUCCESS_WEBHOOK"}`

	cases := map[string]struct {
		headers map[string]string
		body    string
	}{
		"no signature": {map[string]string{service.HeaderWebhookTimestamp: "1"}, body},
		"no timestamp": {map[string]string{service.HeaderWebhookSignature: "abc"}, body},
		"no body": {map[string]string{
			service.HeaderWebhookSignature: "abc",
			service.HeaderWebhookTimestamp: "1",
		}, ""},
	}
	for name, tc := range cases {
		rec := f.post(tc.headers, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.JSONEq(t, `{"error":"Missing data"}`, rec.Body.String(), name)
	}
	assert.Equal(t, int32(0), f.received.Load())
}

func TestWebhook_MissingSecret(t *testing.T) {
	f := newRelayFixture(t, "")
	body := `{"type":"PAYMENT_SUCCESS_WEBHOOK"}`

	rec := f.post(map[string]string{
		service.HeaderWebhookSignature: service.Sign("", "1", []byte(body)),
		service.HeaderWebhookTimestamp: "1",
	}, body)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
}

func TestWebhook_BackendDownStillAcknowledged(t *testing.T) {
	f := newRelayFixture(t, secret)
	f.backend.Close()
	body := `{"type":"PAYMENT_SUCCESS_WEBHOOK"}`

	rec := f.post(map[string]string{
		service.HeaderWebhookSignature: service.Sign(secret, "1", []byte(body)),
		service.HeaderWebhookTimestamp: "1",
	}, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
