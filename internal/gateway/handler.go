package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akrtake/PromoReels/internal/api"
	"github.com/akrtake/PromoReels/internal/config"
	"github.com/akrtake/PromoReels/internal/domain"
	"github.com/akrtake/PromoReels/internal/identity"
	"github.com/akrtake/PromoReels/internal/metrics"
	"github.com/akrtake/PromoReels/internal/store"
)

// maxRequestBodySize bounds auth endpoint bodies (64 KiB).
const maxRequestBodySize = 64 << 10

// Handler implements the session gateway endpoints.
type Handler struct {
	provider    identity.Provider
	repo        store.Repository
	metrics     *metrics.Metrics
	isDev       bool
	adminHeader string
}

// NewHandler creates a session gateway handler. A non-empty adminHeader
// value enables the service-to-service bypass: API requests carrying it in
// the admin header skip session verification.
func NewHandler(provider identity.Provider, repo store.Repository, m *metrics.Metrics, isDev bool, adminHeader string) *Handler {
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		provider:    provider,
		repo:        repo,
		metrics:     m,
		isDev:       isDev,
		adminHeader: adminHeader,
	}
}

// RegisterRoutes registers the gateway's API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/checkSession", h.HandleCheckSession)
	r.Post("/api/sessionLogin", h.HandleSessionLogin)
	r.Post("/api/sessionLogout", h.HandleSessionLogout)
	r.Post("/api/getIdTokenFromCredentials", h.HandleTokenFromCredentials)
}

type sessionLoginRequest struct {
	IDToken string `json:"idToken"`
}

// HandleSessionLogin exchanges an ID token for the session cookie pair.
func (h *Handler) HandleSessionLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req sessionLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		h.metrics.SessionLogins.WithLabelValues("bad_request").Inc()
		api.Error(w, http.StatusBadRequest, "ID token is required")
		return
	}

	cred, err := h.provider.CreateSessionCookie(r.Context(), req.IDToken, config.SessionTTL)
	if err != nil {
		slog.Warn("session cookie exchange failed", "error", err)
		h.metrics.SessionLogins.WithLabelValues("unauthorized").Inc()
		api.Error(w, http.StatusUnauthorized, "Unauthorized: Session cookie could not be created")
		return
	}

	h.recordUser(r.Context(), cred.UserID, cred.Email)
	h.setSessionCookies(w, cred.Token, cred.UserID)
	h.metrics.SessionLogins.WithLabelValues("ok").Inc()

	slog.Info("session established", "user_id", cred.UserID)
	api.JSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleCheckSession validates the inbound session cookie, including local
// and provider revocation state, and returns the decoded identity.
func (h *Handler) HandleCheckSession(w http.ResponseWriter, r *http.Request) {
	cookie := sessionCookieValue(r)
	if cookie == "" {
		h.metrics.SessionChecks.WithLabelValues("unauthorized").Inc()
		api.Error(w, http.StatusUnauthorized, "No session cookie found.")
		return
	}

	claims, errStatus := h.verify(r.Context(), cookie)
	if errStatus != 0 {
		api.Error(w, errStatus, "Invalid or expired session cookie.")
		return
	}

	if claims.Email == "" {
		// Upstream may omit the email; that is a soft condition, not a failure.
		slog.Warn("session claims missing email", "user_id", claims.UserID)
	}

	h.recordUser(r.Context(), claims.UserID, claims.Email)
	h.metrics.SessionChecks.WithLabelValues("ok").Inc()

	api.JSON(w, http.StatusOK, map[string]any{
		"sessionToken":  cookie,
		"userId":        claims.UserID,
		"email":         claims.Email,
		"decodedClaims": claims,
	})
}

// verify runs the full credential check: local denylist first, then the
// provider with revocation enabled. Returns the claims or an HTTP status.
func (h *Handler) verify(ctx context.Context, cookie string) (*domain.Claims, int) {
	revoked, err := h.repo.IsSessionRevoked(ctx, store.HashToken(cookie))
	if err != nil {
		slog.Error("revocation lookup failed", "error", err)
		h.metrics.SessionChecks.WithLabelValues("error").Inc()
		return nil, http.StatusInternalServerError
	}
	if revoked {
		h.metrics.SessionChecks.WithLabelValues("revoked").Inc()
		return nil, http.StatusUnauthorized
	}

	claims, err := h.provider.VerifySessionCookie(ctx, cookie, true)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			h.metrics.SessionChecks.WithLabelValues("unauthorized").Inc()
			return nil, http.StatusUnauthorized
		}
		slog.Error("session verification failed upstream", "error", err)
		h.metrics.SessionChecks.WithLabelValues("error").Inc()
		return nil, http.StatusServiceUnavailable
	}
	return claims, 0
}

// HandleSessionLogout clears cookies unconditionally and denylists the
// presented cookie until its natural expiry. Always succeeds.
func (h *Handler) HandleSessionLogout(w http.ResponseWriter, r *http.Request) {
	if cookie := sessionCookieValue(r); cookie != "" {
		// Best effort: the clear below is the contract, the denylist row
		// just closes the window until provider revocation propagates.
		expiresAt := time.Now().Add(config.SessionTTL)
		if claims, err := h.provider.VerifySessionCookie(r.Context(), cookie, false); err == nil && !claims.ExpiresAt.IsZero() {
			expiresAt = claims.ExpiresAt
		}
		if err := h.repo.RevokeSession(r.Context(), store.HashToken(cookie), expiresAt); err != nil {
			slog.Warn("failed to denylist session on logout", "error", err)
		}
	}

	h.clearSessionCookies(w)
	api.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleTokenFromCredentials exchanges email/password for an ID token via
// the identity provider's REST API.
func (h *Handler) HandleTokenFromCredentials(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		api.Error(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	tokens, err := h.provider.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			api.Error(w, http.StatusUnauthorized, "Authentication failed.")
			return
		}
		slog.Error("credential sign-in failed upstream", "error", err)
		api.Error(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{
		"idToken":      tokens.IDToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// recordUser upserts the local user row and bumps last_seen_at. Failures
// are logged only; local bookkeeping never blocks authentication.
func (h *Handler) recordUser(ctx context.Context, userID, email string) {
	now := time.Now()
	user, err := h.repo.GetUser(ctx, userID)
	if err != nil {
		slog.Warn("failed to load user record", "user_id", userID, "error", err)
		return
	}
	if user != nil && user.Email == email {
		// Existing row, nothing to rewrite: bump last_seen only.
		if err := h.repo.UpdateLastSeen(ctx, userID, now); err != nil {
			slog.Warn("failed to update last_seen", "user_id", userID, "error", err)
		}
		return
	}
	if user == nil {
		user = &domain.User{
			UserID:    userID,
			CreatedAt: now,
		}
	}
	user.Email = email
	user.LastSeenAt = now
	user.UpdatedAt = now
	if err := h.repo.UpsertUser(ctx, user); err != nil {
		slog.Warn("failed to upsert user record", "user_id", userID, "error", err)
	}
}
