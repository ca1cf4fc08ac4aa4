// SPDX-License-Identifier: AGPL-3.0-or-later

package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/btouchard/keygate/internal/app"
	"github.com/btouchard/keygate/internal/config"
	"github.com/btouchard/keygate/internal/domain"
	"github.com/btouchard/keygate/internal/middleware"
	"github.com/btouchard/keygate/pkg/api"
	"github.com/btouchard/keygate/pkg/crypto"
)

// Test fixtures
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcad5e784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherKey   = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	suiSeed    = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	adminToken = "test-admin-token"
)

var (
	hex64   = regexp.MustCompile(`^[0-9a-f]{64}$`)
	suiAddr = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockActivityRepo is a test double for ports.ActivityRepository.
type mockActivityRepo struct {
	saved []*domain.Activity
}

func (m *mockActivityRepo) Save(ctx context.Context, a *domain.Activity) error {
	m.saved = append(m.saved, a)
	return nil
}

func (m *mockActivityRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Activity, error) {
	out := make([]*domain.Activity, 0, len(m.saved))
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.saved[i])
	}
	return out, nil
}

func (m *mockActivityRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// panicScheme blows up on every call.
type panicScheme struct{}

func (panicScheme) Name() string { return "ethereum" }

func (panicScheme) Generate() (crypto.Wallet, error) { panic("boom") }

func (panicScheme) WalletFromKey(string) (crypto.Wallet, error) { panic("boom") }

func (panicScheme) Sign(string, string) (crypto.Signed, error) { panic("boom") }

func (panicScheme) Verify(string, string) (crypto.Verification, error) { panic("boom") }

type testServer struct {
	handler http.Handler
	journal *mockActivityRepo
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	logger := testLogger()
	repo := &mockActivityRepo{}
	activity := app.NewActivityService(repo, logger)

	cfg := RouterConfig{
		Wallets:    app.NewWalletService(activity, logger, crypto.NewEthereum(logger), crypto.NewSui()),
		Activity:   activity,
		AdminToken: adminToken,
		Docs:       fstest.MapFS{"index.html": {Data: []byte("<html>keygate docs</html>")}},
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &testServer{handler: NewRouter(cfg), journal: repo}
}

func (s *testServer) do(t *testing.T, method, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) api.Envelope[T] {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	var env api.Envelope[T]
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decode[json.RawMessage](t, rec)
	if env.Success {
		t.Error("success = true, want false")
	}
	if message != "" && env.Error != message {
		t.Errorf("error = %q, want %q", env.Error, message)
	}
}

func TestHandlers_Health(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decode[api.HealthResponse](t, rec)
	if !env.Success || env.Data.Status != "ok" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestHandlers_SignAndVerify(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/sign?key="+devKey+"&message=hello+keygate")
	if rec.Code != http.StatusOK {
		t.Fatalf("sign status = %d: %s", rec.Code, rec.Body.String())
	}
	signed := decode[api.SignResponse](t, rec).Data
	if signed.Address != devAddress {
		t.Errorf("address = %q, want %q", signed.Address, devAddress)
	}
	if signed.Message != "hello keygate" {
		t.Errorf("message = %q", signed.Message)
	}
	if len(signed.Signature) != 132 || !strings.HasPrefix(signed.Signature, "0x") {
		t.Errorf("signature = %q, want 0x + 130 hex", signed.Signature)
	}

	rec = s.do(t, http.MethodGet, "/verify?signature="+signed.Signature+"&message=hello+keygate")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[api.VerifyResponse](t, rec).Data
	if v.RecoveredAddress != devAddress || !v.IsValid || v.Message != "hello keygate" {
		t.Errorf("verify = %+v", v)
	}

	t.Run("other message still valid without expected address", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/verify?signature="+signed.Signature+"&message=tampered")
		v := decode[api.VerifyResponse](t, rec).Data
		if !v.IsValid || v.RecoveredAddress == devAddress {
			t.Errorf("verify = %+v", v)
		}
	})

	t.Run("expected address of another key", func(t *testing.T) {
		other := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
		rec := s.do(t, http.MethodGet, "/verify?signature="+signed.Signature+"&message=hello+keygate&address="+other)
		v := decode[api.VerifyResponse](t, rec).Data
		if v.IsValid {
			t.Error("isValid = true for a different signer")
		}
	})

	t.Run("expected address lowercase", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/verify?signature="+signed.Signature+"&message=hello+keygate&address="+strings.ToLower(devAddress))
		v := decode[api.VerifyResponse](t, rec).Data
		if !v.IsValid {
			t.Error("isValid = false for matching signer")
		}
	})
}

func TestHandlers_SignVerifyProperty(t *testing.T) {
	s := newTestServer(t)

	for _, key := range []string{devKey, otherKey} {
		rec := s.do(t, http.MethodGet, "/eth-key-to-wallet?privateKey="+key)
		want := decode[api.EthereumKeyWallet](t, rec).Data.Address

		for _, msg := range []string{"a", "%C3%A9t%C3%A9", "line1%0Aline2", strings.Repeat("x", 300)} {
			rec := s.do(t, http.MethodGet, "/sign?key="+key+"&message="+msg)
			sig := decode[api.SignResponse](t, rec).Data.Signature

			rec = s.do(t, http.MethodGet, "/verify?signature="+sig+"&message="+msg)
			if got := decode[api.VerifyResponse](t, rec).Data.RecoveredAddress; got != want {
				t.Errorf("recovered %q, want %q (message %q)", got, want, msg)
			}
		}
	}
}

func TestHandlers_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		target  string
		message string
	}{
		{"sign without message", "/sign?key=" + devKey, "Missing required parameter: message"},
		{"sign without key", "/sign?message=hi", "Missing required parameter: key"},
		{"sign with empty message", "/sign?key=" + devKey + "&message=", "Missing required parameter: message"},
		{"verify without signature", "/verify?message=hi", "Missing required parameter: signature"},
		{"verify with bad address", "/verify?signature=0x00&message=hi&address=0x123", ""},
		{"eth key 65 hex chars", "/eth-key-to-wallet?privateKey=" + strings.Repeat("a", 65), ""},
		{"eth key not hex", "/eth-key-to-wallet?privateKey=0x" + strings.Repeat("g", 64), "Invalid privateKey: must be hexadecimal"},
		{"eth key missing", "/eth-key-to-wallet", "Missing required parameter: privateKey"},
		{"sui key 63 hex chars", "/sui-key-to-address?privateKey=0x" + strings.Repeat("a", 63), ""},
		{"sui key missing", "/sui-key-to-address", "Missing required parameter: privateKey"},
		{"sui sign short key", "/sui-sign?key=abcd&message=hi", ""},
		{"sui verify without message", "/sui-verify?signature=AA", "Missing required parameter: message"},
		{"admin limit out of range", "/api/v1/admin/activity?limit=0", ""},
		{"admin limit not a number", "/api/v1/admin/activity?limit=ten", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.target, "Authorization", "Bearer "+adminToken)
			expectError(t, rec, http.StatusBadRequest, tt.message)
		})
	}
}

func TestHandlers_CapabilityFailures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		target  string
		message string
	}{
		{"sign with malformed key", "/sign?key=nothex&message=hi", "Failed to sign message"},
		{"verify with malformed signature", "/verify?signature=0xzz&message=hi", "Failed to verify signature"},
		{"verify with short signature", "/verify?signature=0x1234&message=hi", "Failed to verify signature"},
		{"eth key zero scalar", "/eth-key-to-wallet?privateKey=0x" + strings.Repeat("0", 64), "Failed to derive wallet from private key"},
		{"sui verify not base64", "/sui-verify?signature=%21%21%21&message=hi", "Failed to verify signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.target)
			expectError(t, rec, http.StatusInternalServerError, tt.message)
		})
	}

	// the process keeps serving after failures
	if rec := s.do(t, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health after failures: status = %d", rec.Code)
	}
}

func TestHandlers_EthereumKeyToWallet(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/eth-key-to-wallet?privateKey="+strings.TrimPrefix(devKey, "0x"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	w := decode[api.EthereumKeyWallet](t, rec).Data

	if w.Address != devAddress {
		t.Errorf("address = %q", w.Address)
	}
	if w.PrivateKey != devKey {
		t.Errorf("privateKey = %q, want normalized %q", w.PrivateKey, devKey)
	}
	if !strings.HasPrefix(w.PublicKey, "0x04") || len(w.PublicKey) != 132 {
		t.Errorf("publicKey = %q", w.PublicKey)
	}
	if len(w.CompressedPublicKey) != 68 ||
		!(strings.HasPrefix(w.CompressedPublicKey, "0x02") || strings.HasPrefix(w.CompressedPublicKey, "0x03")) {
		t.Errorf("compressedPublicKey = %q", w.CompressedPublicKey)
	}
}

func TestHandlers_GenerateEthereum(t *testing.T) {
	s := newTestServer(t)

	first := decode[api.EthereumWallet](t, s.do(t, http.MethodGet, "/generate-eth")).Data
	second := decode[api.EthereumWallet](t, s.do(t, http.MethodGet, "/generate-eth")).Data

	for _, w := range []api.EthereumWallet{first, second} {
		if w.DerivationPath != "m/44'/60'/0'/0/0" && w.DerivationPath != crypto.RandomDerivation {
			t.Errorf("derivationPath = %q", w.DerivationPath)
		}
		if len(strings.Fields(w.Mnemonic)) != 12 {
			t.Errorf("mnemonic has %d words", len(strings.Fields(w.Mnemonic)))
		}
		if len(w.PrivateKey) != 66 {
			t.Errorf("privateKey = %q", w.PrivateKey)
		}

		// the returned key must be the one the address belongs to
		rec := s.do(t, http.MethodGet, "/eth-key-to-wallet?privateKey="+w.PrivateKey)
		if got := decode[api.EthereumKeyWallet](t, rec).Data.Address; got != w.Address {
			t.Errorf("key-to-wallet address %q != generated %q", got, w.Address)
		}
	}

	if first.Address == second.Address || first.PrivateKey == second.PrivateKey || first.Mnemonic == second.Mnemonic {
		t.Error("two generations returned the same wallet")
	}
}

func TestHandlers_GenerateSui(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/generate-sui")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	w := decode[api.SuiWallet](t, rec).Data

	if !hex64.MatchString(w.PrivateKey) {
		t.Errorf("privateKey = %q, want 64 lowercase hex", w.PrivateKey)
	}
	if !suiAddr.MatchString(w.Address) {
		t.Errorf("address = %q", w.Address)
	}
	if w.KeyType != "Ed25519" {
		t.Errorf("keyType = %q", w.KeyType)
	}

	rec = s.do(t, http.MethodGet, "/sui-key-to-address?privateKey="+w.PrivateKey)
	again := decode[api.SuiKeyAddress](t, rec).Data
	if again.Address != w.Address || again.PublicKey != w.PublicKey {
		t.Errorf("key-to-address %+v does not match generated %+v", again, w)
	}
}

func TestHandlers_SuiKeyToAddress_Deterministic(t *testing.T) {
	s := newTestServer(t)

	first := decode[api.SuiKeyAddress](t, s.do(t, http.MethodGet, "/sui-key-to-address?privateKey="+suiSeed)).Data
	second := decode[api.SuiKeyAddress](t, s.do(t, http.MethodGet, "/sui-key-to-address?privateKey=0x"+suiSeed)).Data

	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if first.PublicKey != "11qYAYKxCrfVS/7TyWQHOg7hcvPapiMlrwIaaPcHURo=" {
		t.Errorf("publicKey = %q", first.PublicKey)
	}
	if first.PrivateKey != suiSeed || first.KeyType != "Ed25519" {
		t.Errorf("unexpected wallet %+v", first)
	}
}

func TestHandlers_SuiSignAndVerify(t *testing.T) {
	s := newTestServer(t)

	addr := decode[api.SuiKeyAddress](t, s.do(t, http.MethodGet, "/sui-key-to-address?privateKey="+suiSeed)).Data.Address

	rec := s.do(t, http.MethodGet, "/sui-sign?key=0x"+suiSeed+"&message=hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("sui-sign status = %d: %s", rec.Code, rec.Body.String())
	}
	signed := decode[api.SignResponse](t, rec).Data
	if signed.Address != addr {
		t.Errorf("address = %q, want %q", signed.Address, addr)
	}

	sig := strings.NewReplacer("+", "%2B", "/", "%2F", "=", "%3D").Replace(signed.Signature)

	v := decode[api.VerifyResponse](t, s.do(t, http.MethodGet, "/sui-verify?signature="+sig+"&message=hello")).Data
	if !v.IsValid || v.RecoveredAddress != addr {
		t.Errorf("verify = %+v", v)
	}

	v = decode[api.VerifyResponse](t, s.do(t, http.MethodGet, "/sui-verify?signature="+sig+"&message=bye")).Data
	if v.IsValid {
		t.Error("tampered message reported valid")
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := s.do(t, method, "/sign?key="+devKey+"&message=hi")
		expectError(t, rec, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func TestRouter_DocsFallthrough(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "keygate docs") {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/no-such-page")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}

	noDocs := newTestServer(t, func(c *RouterConfig) { c.Docs = nil })
	expectError(t, noDocs.do(t, http.MethodGet, "/"), http.StatusNotFound, "Not found")
}

func TestRouter_RequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health")
	if id := rec.Header().Get(RequestIDHeader); id == "" {
		t.Error("X-Request-ID missing")
	}

	rec = s.do(t, http.MethodGet, "/health", RequestIDHeader, "client-chosen")
	if id := rec.Header().Get(RequestIDHeader); id != "client-chosen" {
		t.Errorf("X-Request-ID = %q, want client-chosen", id)
	}

	rec = s.do(t, http.MethodPost, "/health")
	if id := rec.Header().Get(RequestIDHeader); id == "" {
		t.Error("X-Request-ID missing on 405")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	logger := testLogger()
	s := newTestServer(t, func(c *RouterConfig) {
		c.Wallets = app.NewWalletService(nil, logger, panicScheme{})
	})

	rec := s.do(t, http.MethodGet, "/sign?key="+devKey+"&message=hi")
	expectError(t, rec, http.StatusInternalServerError, "Internal server error")

	if rec := s.do(t, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("next request status = %d, want 200", rec.Code)
	}
}

func TestRouter_Activity(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodGet, "/sign?key="+devKey+"&message=hi", RequestIDHeader, "req-sign")
	s.do(t, http.MethodGet, "/generate-sui")

	t.Run("requires token", func(t *testing.T) {
		expectError(t, s.do(t, http.MethodGet, "/api/v1/admin/activity"), http.StatusUnauthorized, "Unauthorized")
		expectError(t, s.do(t, http.MethodGet, "/api/v1/admin/activity", "Authorization", "Bearer wrong"), http.StatusForbidden, "Forbidden")
	})

	t.Run("lists newest first", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/admin/activity?limit=10", "Authorization", "Bearer "+adminToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		entries := decode[[]api.Activity](t, rec).Data
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].Operation != "generate" || entries[0].Scheme != "sui" {
			t.Errorf("newest = %+v", entries[0])
		}
		if entries[1].Address != devAddress || entries[1].RequestID != "req-sign" {
			t.Errorf("oldest = %+v", entries[1])
		}
	})

	t.Run("journal never stores secrets", func(t *testing.T) {
		for _, a := range s.journal.saved {
			raw, _ := json.Marshal(a)
			if strings.Contains(string(raw), strings.TrimPrefix(devKey, "0x")) {
				t.Errorf("journal entry leaks the private key: %s", raw)
			}
		}
	})

	t.Run("disabled journal", func(t *testing.T) {
		disabled := newTestServer(t, func(c *RouterConfig) { c.Activity = app.NewActivityService(nil, nil) })
		rec := disabled.do(t, http.MethodGet, "/api/v1/admin/activity", "Authorization", "Bearer "+adminToken)
		expectError(t, rec, http.StatusNotFound, "Activity journal is not enabled")
	})

	t.Run("unregistered without token", func(t *testing.T) {
		open := newTestServer(t, func(c *RouterConfig) { c.AdminToken = "" })
		rec := open.do(t, http.MethodGet, "/api/v1/admin/activity")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestRouter_RateLimited(t *testing.T) {
	rl := middleware.NewRateLimiter(config.RateLimitConfig{
		Enabled:  true,
		Crypto:   config.RateLimitRouteConfig{Requests: 100, Period: time.Minute, Burst: 100},
		Generate: config.RateLimitRouteConfig{Requests: 1, Period: time.Minute, Burst: 1},
	}, testLogger())
	defer rl.Stop()

	s := newTestServer(t, func(c *RouterConfig) { c.RateLimiter = rl })

	if rec := s.do(t, http.MethodGet, "/generate-eth"); rec.Code != http.StatusOK {
		t.Fatalf("first generate status = %d", rec.Code)
	}
	expectError(t, s.do(t, http.MethodGet, "/generate-sui"), http.StatusTooManyRequests, "Too Many Requests")

	// health is never limited
	for i := 0; i < 5; i++ {
		if rec := s.do(t, http.MethodGet, "/health"); rec.Code != http.StatusOK {
			t.Fatalf("health status = %d", rec.Code)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", domain.Missing("key"), http.StatusBadRequest, "Missing required parameter: key"},
		{"signing", domain.Fail(domain.ErrSigning, io.EOF), http.StatusInternalServerError, "Failed to sign message"},
		{"generation", domain.Fail(domain.ErrWalletGeneration, io.EOF), http.StatusInternalServerError, "Failed to generate wallet"},
		{"unknown kind", domain.Fail(io.ErrUnexpectedEOF, nil), http.StatusInternalServerError, msgInternal},
		{"journal disabled", domain.ErrJournalDisabled, http.StatusNotFound, "Activity journal is not enabled"},
		{"other", io.EOF, http.StatusInternalServerError, msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := classify(tt.err)
			if status != tt.status || message != tt.message {
				t.Errorf("classify() = (%d, %q), want (%d, %q)", status, message, tt.status, tt.message)
			}
			if strings.Contains(message, io.EOF.Error()) {
				t.Error("cause leaked into client message")
			}
		})
	}
}
