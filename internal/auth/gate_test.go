// ABOUTME: Tests for the auth gate middleware
// ABOUTME: Covers allow-list bypass, bearer extraction, and identity injection

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testGate(t *testing.T) (*Gate, *TokenCodec) {
	t.Helper()

	codec := NewTokenCodec(testSecrets())
	gate := NewGate(codec, []PublicRoute{
		{Method: http.MethodPost, PathPrefix: "/api/sessions"},
		{Method: http.MethodGet, PathPrefix: "/health"},
	})
	return gate, codec
}

func TestGate_PublicRoutesBypass(t *testing.T) {
	gate, _ := testGate(t)

	called := false
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if FromContext(r.Context()) != nil {
			t.Error("public requests should carry no identity")
		}
	}))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/sessions/credentials", nil),
		httptest.NewRequest(http.MethodPost, "/api/sessions", nil),
		httptest.NewRequest(http.MethodGet, "/health/ready", nil),
	} {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if !called {
			t.Errorf("%s %s should bypass the gate, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestGate_MethodMatters(t *testing.T) {
	gate, _ := testGate(t)

	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	// Same prefix, wrong method: not public
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestGate_PrefixStopsAtSegmentBoundary(t *testing.T) {
	gate, _ := testGate(t)

	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("%s %s should not bypass the gate", r.Method, r.URL.Path)
	}))

	// Paths that merely share the allow-list spelling stay protected
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/sessionsfoo", nil),
		httptest.NewRequest(http.MethodPost, "/api/sessions-admin/reset", nil),
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestGate_RejectsMissingOrBadTokens(t *testing.T) {
	gate, codec := testGate(t)

	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	expired, err := codec.Issue(ScopeAccess, uuid.New(), uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("issuing expired token: %v", err)
	}
	wrongScope, err := codec.Issue(ScopeRefresh, uuid.New(), uuid.New(), time.Minute)
	if err != nil {
		t.Fatalf("issuing refresh token: %v", err)
	}
	noDevice, err := codec.Issue(ScopeAccess, uuid.New(), uuid.Nil, time.Minute)
	if err != nil {
		t.Fatalf("issuing deviceless token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage", "Bearer not-a-token"},
		{"expired", "Bearer " + expired},
		{"wrong scope", "Bearer " + wrongScope},
		{"no device claim", "Bearer " + noDevice},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/vault-items", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestGate_InjectsIdentity(t *testing.T) {
	gate, codec := testGate(t)

	userID := uuid.New()
	deviceID := uuid.New()
	token, err := codec.Issue(ScopeAccess, userID, deviceID, time.Minute)
	if err != nil {
		t.Fatalf("issuing access token: %v", err)
	}

	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := MustFromContext(r.Context())
		if identity.UserID != userID || identity.DeviceID != deviceID {
			t.Errorf("wrong identity injected: %+v", identity)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/vault-items", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
