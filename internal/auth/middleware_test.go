package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issueTestToken(t *testing.T, secret []byte) string {
	t.Helper()
	token, err := Issue(secret, Claims{UserID: "u1", Roles: []string{"artist"}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestMiddleware_AcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token := issueTestToken(t, secret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) != "u1" {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_RejectsQueryToken(t *testing.T) {
	secret := []byte("test-secret")
	token := issueTestToken(t, secret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/list?token="+token, nil)
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for query token auth, got %d", rr.Code)
	}
	if rr.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestMiddleware_AcceptsQueryTokenForStreamUpgrade(t *testing.T) {
	secret := []byte("test-secret")
	token := issueTestToken(t, secret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, StreamPath+"?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for websocket query token auth, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestOptional(t *testing.T) {
	secret := []byte("test-secret")
	token := issueTestToken(t, secret)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"anonymous", "", ""},
		{"valid token", "Bearer " + token, "u1"},
		{"garbage token", "Bearer nope", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = UserID(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tracks/likes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			Optional(secret)(next).ServeHTTP(rr, req)
			if rr.Code != http.StatusNoContent {
				t.Fatalf("status=%d", rr.Code)
			}
			if got != tt.want {
				t.Fatalf("user=%q want %q", got, tt.want)
			}
		})
	}
}

func TestAdminPolicy(t *testing.T) {
	policy := NewAdminPolicy([]string{" Boss@Tekkin.test "}, []string{"u-admin"})

	tests := []struct {
		name   string
		claims *Claims
		want   bool
	}{
		{"nil claims", nil, false},
		{"role", &Claims{UserID: "x", Roles: []string{"admin"}}, true},
		{"email allowlist", &Claims{UserID: "x", Email: "boss@tekkin.test"}, true},
		{"id allowlist", &Claims{UserID: "u-admin"}, true},
		{"plain artist", &Claims{UserID: "x", Email: "dj@tekkin.test", Roles: []string{"artist"}}, false},
		{"empty email", &Claims{UserID: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.IsAdmin(tt.claims); got != tt.want {
				t.Fatalf("IsAdmin=%v want %v", got, tt.want)
			}
		})
	}
}
