package gateway

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/akrtake/PromoReels/internal/api"
	"github.com/akrtake/PromoReels/internal/metrics"
)

// AgentProxy forwards protected REST/SSE traffic to the agent-orchestration
// backend, swapping the session cookie for a bearer token and enforcing
// that a user can only touch their own sessions.
type AgentProxy struct {
	proxy   *httputil.ReverseProxy
	metrics *metrics.Metrics
}

// NewAgentProxy creates a proxy targeting the agent API base URL.
func NewAgentProxy(target string, m *metrics.Metrics) (*AgentProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}

	proxy := httputil.NewSingleHostReverseProxy(u)
	// Negative FlushInterval streams SSE bytes through as they arrive
	// instead of buffering whole responses.
	proxy.FlushInterval = -1
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("agent proxy upstream failure", "path", r.URL.Path, "error", err)
		api.Error(w, http.StatusBadGateway, "agent backend unavailable")
	}

	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		// The backend authenticates with the session credential as a bearer
		// token; the browser's cookies must not leak upstream. Admin-header
		// requests carry no credential and keep their own Authorization.
		r.Header.Del("Cookie")
		if token := TokenFromContext(r.Context()); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return &AgentProxy{proxy: proxy, metrics: m}, nil
}

// ServeHTTP enforces the path/identity match, then proxies. Composed behind
// RequireAPI, so claims are always present.
func (p *AgentProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		if !AdminFromContext(r.Context()) {
			p.metrics.ProxyRequests.WithLabelValues("unauthorized").Inc()
			api.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		// Admin requests are not scoped to a user path.
		p.metrics.ProxyRequests.WithLabelValues("admin").Inc()
		p.proxy.ServeHTTP(w, r)
		return
	}

	if pathUID, ok := userIDFromPath(r.URL.Path); ok && pathUID != claims.UserID {
		slog.Warn("proxy path user mismatch",
			"path_user", pathUID,
			"token_user", claims.UserID)
		p.metrics.ProxyRequests.WithLabelValues("forbidden").Inc()
		api.Error(w, http.StatusForbidden, "Forbidden: You do not have permission to access this resource.")
		return
	}

	p.metrics.ProxyRequests.WithLabelValues("ok").Inc()
	p.proxy.ServeHTTP(w, r)
}

// userIDFromPath extracts the user id from /apps/{app}/users/{uid}/... paths.
func userIDFromPath(path string) (string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) > 4 && parts[1] == "apps" && parts[3] == "users" {
		return parts[4], true
	}
	return "", false
}
