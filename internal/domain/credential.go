// Package domain contains core domain types for the PromoReels BFF.
package domain

import (
	"time"
)

// Claims is the decoded claim set carried by a verified session credential.
type Claims struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email,omitempty"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// Expired reports whether the claims are past their expiry.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// SessionCredential is a signed proof of authentication issued by the
// identity provider and stored in the session cookie. An expired or
// tampered credential is indistinguishable from an absent one to callers:
// verification simply fails.
type SessionCredential struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
}
