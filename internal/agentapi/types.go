// Package agentapi is the HTTP client for the external agent-orchestration
// backend: session CRUD plus the streamed run endpoint.
package agentapi

import (
	"github.com/akrtake/PromoReels/internal/domain"
)

// Session is a server-side conversation resource: an opaque id, the ordered
// event history, and the free-form state blob.
type Session struct {
	ID     string              `json:"id"`
	Events []domain.Event      `json:"events"`
	State  domain.SessionState `json:"state"`
}

// RunRequest is the body of a streamed run call.
type RunRequest struct {
	AppName    string         `json:"app_name"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	NewMessage domain.Content `json:"new_message"`
	Streaming  bool           `json:"streaming"`
}
