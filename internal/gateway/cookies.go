// Package gateway gates access to protected resources behind a verified
// session credential and converts identity-provider ID tokens into
// short-lived session cookies.
package gateway

import (
	"net/http"
	"time"

	"github.com/akrtake/PromoReels/internal/config"
)

const (
	// SessionCookieName carries the signed session credential. httpOnly:
	// script never sees it.
	SessionCookieName = "__session"

	// UserIDCookieName carries the plain user id for client-side display and
	// API correlation only; it grants nothing.
	UserIDCookieName = "uid"

	// LoginPath is where unauthenticated page navigation is sent.
	LoginPath = "/login"

	// RedirectParam names the query parameter preserving the original path.
	RedirectParam = "redirect"
)

func (h *Handler) setSessionCookies(w http.ResponseWriter, sessionCookie, userID string) {
	expires := time.Now().Add(config.SessionTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionCookie,
		Path:     "/",
		MaxAge:   int(config.SessionTTL.Seconds()),
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !h.isDev,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     UserIDCookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(config.SessionTTL.Seconds()),
		Expires:  expires,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Secure:   !h.isDev,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{SessionCookieName, UserIDCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == SessionCookieName,
			SameSite: http.SameSiteLaxMode,
			Secure:   !h.isDev,
		})
	}
}

// sessionCookieValue extracts the session cookie, empty when absent.
func sessionCookieValue(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
