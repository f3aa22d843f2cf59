package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/akrtake/PromoReels/internal/api"
	"github.com/akrtake/PromoReels/internal/domain"
)

// DecisionKind classifies the outcome of evaluating a request's credential.
type DecisionKind int

const (
	// DecisionOK allows the request; Claims and Token are populated.
	DecisionOK DecisionKind = iota
	// DecisionRedirect sends page navigation to the login flow.
	DecisionRedirect
	// DecisionDeny rejects an API request with the given status.
	DecisionDeny
)

// Decision is the tagged result of a session check. Representing the
// redirect explicitly (instead of performing it inline) keeps the policy
// testable without a browser.
type Decision struct {
	Kind       DecisionKind
	RedirectTo string
	Status     int
	Claims     *domain.Claims
	Token      string

	// Admin marks a request admitted via the admin header. No claims or
	// token accompany it; the per-user path check does not apply.
	Admin bool
}

// AdminHeaderName carries the shared secret for trusted service-to-service
// calls that bypass session verification.
const AdminHeaderName = "X-Firebase-Admin"

type contextKey int

const (
	claimsKey contextKey = iota
	tokenKey
	adminKey
)

// ClaimsFromContext extracts the verified claims from the request context.
func ClaimsFromContext(ctx context.Context) *domain.Claims {
	if v, ok := ctx.Value(claimsKey).(*domain.Claims); ok {
		return v
	}
	return nil
}

// TokenFromContext extracts the raw session credential for reuse as a
// bearer token against the agent API.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey).(string); ok {
		return v
	}
	return ""
}

// AdminFromContext reports whether the request was admitted via the admin
// header rather than a session credential.
func AdminFromContext(ctx context.Context) bool {
	v, ok := ctx.Value(adminKey).(bool)
	return ok && v
}

// EvaluatePage decides how to treat a protected page request: proceed, or
// redirect to the login flow with the original path preserved.
func (h *Handler) EvaluatePage(r *http.Request) Decision {
	cookie := sessionCookieValue(r)
	if cookie == "" {
		return redirectDecision(r)
	}
	claims, errStatus := h.verify(r.Context(), cookie)
	if errStatus != 0 {
		return redirectDecision(r)
	}
	return Decision{Kind: DecisionOK, Claims: claims, Token: cookie}
}

// EvaluateAPI decides how to treat a protected API request: proceed, or a
// structured 401/5xx. A request carrying the configured admin header value
// is admitted without session verification.
func (h *Handler) EvaluateAPI(r *http.Request) Decision {
	if h.adminHeader != "" && r.Header.Get(AdminHeaderName) == h.adminHeader {
		return Decision{Kind: DecisionOK, Admin: true}
	}
	cookie := bearerOrCookie(r)
	if cookie == "" {
		return Decision{Kind: DecisionDeny, Status: http.StatusUnauthorized}
	}
	claims, errStatus := h.verify(r.Context(), cookie)
	if errStatus != 0 {
		return Decision{Kind: DecisionDeny, Status: errStatus}
	}
	return Decision{Kind: DecisionOK, Claims: claims, Token: cookie}
}

func redirectDecision(r *http.Request) Decision {
	original := r.URL.RequestURI()
	return Decision{
		Kind:       DecisionRedirect,
		RedirectTo: LoginPath + "?" + RedirectParam + "=" + url.QueryEscape(original),
	}
}

// bearerOrCookie prefers an Authorization bearer token (API clients reusing
// the credential directly) and falls back to the session cookie.
func bearerOrCookie(r *http.Request) string {
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return sessionCookieValue(r)
}

// RequirePage is middleware for protected page routes: unauthenticated
// navigation is redirected to the login flow, never served content.
func (h *Handler) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := h.EvaluatePage(r)
		if decision.Kind == DecisionRedirect {
			h.metrics.PageDecisions.WithLabelValues("redirect").Inc()
			http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
			return
		}
		h.metrics.PageDecisions.WithLabelValues("ok").Inc()
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), decision)))
	})
}

// RequireAPI is middleware for protected API routes: failures become
// structured JSON errors, never redirects.
func (h *Handler) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := h.EvaluateAPI(r)
		if decision.Kind != DecisionOK {
			status := decision.Status
			if status == 0 {
				status = http.StatusUnauthorized
			}
			api.Error(w, status, "Unauthorized: Invalid or expired session cookie")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), decision)))
	})
}

func withIdentity(ctx context.Context, d Decision) context.Context {
	ctx = context.WithValue(ctx, claimsKey, d.Claims)
	ctx = context.WithValue(ctx, tokenKey, d.Token)
	return context.WithValue(ctx, adminKey, d.Admin)
}
