package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akrtake/PromoReels/internal/domain"
)

func validSession(provider *fakeProvider) {
	provider.sessions["signed-cookie"] = &domain.Claims{
		UserID:    "user-1",
		Email:     "u@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestEvaluatePageRedirectsWithOriginalPath(t *testing.T) {
	h := newTestHandler(newFakeProvider(), newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/app/chat?session=abc", nil)
	d := h.EvaluatePage(req)

	if d.Kind != DecisionRedirect {
		t.Fatalf("expected DecisionRedirect, got %v", d.Kind)
	}
	want := "/login?redirect=%2Fapp%2Fchat%3Fsession%3Dabc"
	if d.RedirectTo != want {
		t.Errorf("expected redirect %q, got %q", want, d.RedirectTo)
	}
}

func TestEvaluatePageInvalidCookieRedirects(t *testing.T) {
	h := newTestHandler(newFakeProvider(), newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tampered"})
	d := h.EvaluatePage(req)

	if d.Kind != DecisionRedirect {
		t.Fatalf("an invalid cookie must redirect like an absent one, got %v", d.Kind)
	}
}

func TestEvaluatePageValidCookie(t *testing.T) {
	provider := newFakeProvider()
	validSession(provider)
	h := newTestHandler(provider, newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "signed-cookie"})
	d := h.EvaluatePage(req)

	if d.Kind != DecisionOK {
		t.Fatalf("expected DecisionOK, got %v", d.Kind)
	}
	if d.Claims == nil || d.Claims.UserID != "user-1" {
		t.Errorf("expected claims for user-1, got %+v", d.Claims)
	}
	if d.Token != "signed-cookie" {
		t.Errorf("expected the raw credential in the decision, got %q", d.Token)
	}
}

func TestEvaluateAPIDeniesWithoutCredential(t *testing.T) {
	h := newTestHandler(newFakeProvider(), newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/u/sessions", nil)
	d := h.EvaluateAPI(req)

	if d.Kind != DecisionDeny {
		t.Fatalf("expected DecisionDeny, got %v", d.Kind)
	}
	if d.Status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", d.Status)
	}
}

func TestEvaluateAPIAcceptsBearerToken(t *testing.T) {
	provider := newFakeProvider()
	validSession(provider)
	h := newTestHandler(provider, newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/user-1/sessions", nil)
	req.Header.Set("Authorization", "Bearer signed-cookie")
	d := h.EvaluateAPI(req)

	if d.Kind != DecisionOK {
		t.Fatalf("expected DecisionOK for a bearer credential, got %v", d.Kind)
	}
	if d.Token != "signed-cookie" {
		t.Errorf("unexpected token %q", d.Token)
	}
}

func TestEvaluateAPIRepoFailure(t *testing.T) {
	provider := newFakeProvider()
	validSession(provider)
	repo := newFakeRepo()
	repo.revokedErr = errRepoDown
	h := newTestHandler(provider, repo)

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/user-1/sessions", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "signed-cookie"})
	d := h.EvaluateAPI(req)

	if d.Kind != DecisionDeny || d.Status != http.StatusInternalServerError {
		t.Fatalf("expected a 500 deny when the denylist is unreadable, got %+v", d)
	}
}

func TestEvaluateAPIAdminHeaderBypass(t *testing.T) {
	h := newAdminTestHandler(newFakeProvider(), newFakeRepo(), "shared-secret")

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/u/sessions", nil)
	req.Header.Set(AdminHeaderName, "shared-secret")
	d := h.EvaluateAPI(req)

	if d.Kind != DecisionOK {
		t.Fatalf("expected DecisionOK for the admin header, got %v", d.Kind)
	}
	if !d.Admin {
		t.Error("expected the decision to be marked admin")
	}
	if d.Claims != nil || d.Token != "" {
		t.Errorf("admin admission must carry no claims or token, got %+v", d)
	}
}

func TestEvaluateAPIAdminHeaderWrongValue(t *testing.T) {
	h := newAdminTestHandler(newFakeProvider(), newFakeRepo(), "shared-secret")

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/u/sessions", nil)
	req.Header.Set(AdminHeaderName, "guess")
	d := h.EvaluateAPI(req)

	if d.Kind != DecisionDeny {
		t.Fatalf("expected DecisionDeny for a wrong header value, got %v", d.Kind)
	}
}

func TestEvaluateAPIAdminHeaderDisabled(t *testing.T) {
	// No configured value: the header grants nothing, whatever it carries.
	h := newTestHandler(newFakeProvider(), newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/u/sessions", nil)
	req.Header.Set(AdminHeaderName, "")
	d := h.EvaluateAPI(req)
	if d.Kind != DecisionDeny {
		t.Fatalf("expected DecisionDeny when the bypass is unconfigured, got %v", d.Kind)
	}

	req.Header.Set(AdminHeaderName, "anything")
	d = h.EvaluateAPI(req)
	if d.Kind != DecisionDeny {
		t.Fatalf("expected DecisionDeny when the bypass is unconfigured, got %v", d.Kind)
	}
}

func TestRequireAPIAdminPopulatesContext(t *testing.T) {
	h := newAdminTestHandler(newFakeProvider(), newFakeRepo(), "shared-secret")

	protected := h.RequireAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !AdminFromContext(r.Context()) {
			t.Error("expected the admin marker in context")
		}
		if ClaimsFromContext(r.Context()) != nil {
			t.Error("admin requests must carry no claims")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/u/sessions", nil)
	req.Header.Set(AdminHeaderName, "shared-secret")
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequirePageRedirects(t *testing.T) {
	h := newTestHandler(newFakeProvider(), newFakeRepo())

	called := false
	protected := h.RequirePage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/app/chat", nil)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if called {
		t.Error("protected handler must not run for unauthenticated navigation")
	}
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?redirect=%2Fapp%2Fchat" {
		t.Errorf("unexpected redirect location %q", loc)
	}
}

func TestRequirePagePopulatesContext(t *testing.T) {
	provider := newFakeProvider()
	validSession(provider)
	h := newTestHandler(provider, newFakeRepo())

	protected := h.RequirePage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || claims.UserID != "user-1" {
			t.Errorf("expected claims in context, got %+v", claims)
		}
		if TokenFromContext(r.Context()) != "signed-cookie" {
			t.Error("expected the raw credential in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "signed-cookie"})
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAPIDeniesWithJSON(t *testing.T) {
	h := newTestHandler(newFakeProvider(), newFakeRepo())

	protected := h.RequireAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/apps/a/users/u/sessions", nil)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("API denials must be JSON, got content type %q", ct)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Errorf("API denials must never redirect, got %q", loc)
	}
}
