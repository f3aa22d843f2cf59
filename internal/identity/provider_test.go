package identity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions:create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "api-key" {
			t.Errorf("expected api key in query, got %q", r.URL.RawQuery)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["idToken"] != "id-tok" {
			t.Errorf("unexpected idToken %v", req["idToken"])
		}
		if req["validDuration"] != float64(86400) {
			t.Errorf("unexpected validDuration %v", req["validDuration"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sessionCookie": "signed-cookie",
			"userId":        "user-1",
			"email":         "u@example.com",
			"expiresAt":     time.Now().Add(24 * time.Hour).Unix(),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 0, testLogger())
	cred, err := c.CreateSessionCookie(context.Background(), "id-tok", 24*time.Hour)
	if err != nil {
		t.Fatalf("CreateSessionCookie failed: %v", err)
	}
	if cred.Token != "signed-cookie" || cred.UserID != "user-1" {
		t.Errorf("unexpected credential %+v", cred)
	}
}

func TestCreateSessionCookieRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"INVALID_ID_TOKEN"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 0, testLogger())
	_, err := c.CreateSessionCookie(context.Background(), "bad", 24*time.Hour)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifySessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions:verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["checkRevoked"] != true {
			t.Error("expected checkRevoked=true to pass through")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId":    "user-1",
			"email":     "u@example.com",
			"issuedAt":  time.Now().Unix(),
			"expiresAt": time.Now().Add(time.Hour).Unix(),
			"claims":    map[string]any{"admin": false},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 0, testLogger())
	claims, err := c.VerifySessionCookie(context.Background(), "signed-cookie", true)
	if err != nil {
		t.Fatalf("VerifySessionCookie failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "u@example.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.Expired(time.Now()) {
		t.Error("fresh claims must not be expired")
	}
}

func TestVerifySessionCookieEmpty(t *testing.T) {
	c := NewClient("http://localhost:1", "api-key", 0, testLogger())
	if _, err := c.VerifySessionCookie(context.Background(), "", false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without a network call, got %v", err)
	}
}

func TestVerifySessionCookieUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 0, testLogger())
	_, err := c.VerifySessionCookie(context.Background(), "signed-cookie", true)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("a 5xx must map to ErrUpstream, not a credential failure, got %v", err)
	}
}

func TestSignInWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithPassword" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["returnSecureToken"] != true {
			t.Error("expected returnSecureToken=true")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"idToken":      "fresh-id-token",
			"refreshToken": "refresh",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 0, testLogger())
	tokens, err := c.SignInWithPassword(context.Background(), "u@example.com", "pw")
	if err != nil {
		t.Fatalf("SignInWithPassword failed: %v", err)
	}
	if tokens.IDToken != "fresh-id-token" {
		t.Errorf("unexpected idToken %q", tokens.IDToken)
	}
}

func TestSignInWithPasswordBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"INVALID_PASSWORD"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 0, testLogger())
	_, err := c.SignInWithPassword(context.Background(), "u@example.com", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
