package domain

import (
	"time"
)

// User is a locally recorded identity-provider user. The BFF keeps a row
// per user it has seen so logins and logouts can be correlated without
// another round trip to the provider.
type User struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
