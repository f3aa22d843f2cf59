// Package identity integrates with the external identity provider that
// issues and verifies session credentials. The BFF never signs or inspects
// tokens itself; every cryptographic decision is delegated upstream.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/akrtake/PromoReels/internal/domain"
)

var (
	// ErrUnauthorized covers every credential failure: absent, expired,
	// tampered, or revoked. Callers must not be able to tell these apart.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream indicates the provider itself was unreachable or broken.
	ErrUpstream = errors.New("identity provider unavailable")
)

// Provider is the subset of identity-provider operations the gateway needs.
type Provider interface {
	// CreateSessionCookie exchanges a short-lived ID token for a signed
	// session cookie with the given lifetime.
	CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (*domain.SessionCredential, error)

	// VerifySessionCookie validates a session cookie, optionally consulting
	// the provider's revocation state.
	VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*domain.Claims, error)

	// SignInWithPassword exchanges email/password credentials for an ID token.
	SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error)
}

// TokenResponse carries the tokens returned by a password sign-in.
type TokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// Client is an HTTP client for the identity provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates an identity-provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type createSessionRequest struct {
	IDToken       string `json:"idToken"`
	ValidDuration int64  `json:"validDuration"`
}

type createSessionResponse struct {
	SessionCookie string `json:"sessionCookie"`
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// CreateSessionCookie exchanges an ID token for a signed session cookie.
func (c *Client) CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (*domain.SessionCredential, error) {
	var resp createSessionResponse
	err := c.post(ctx, "/v1/sessions:create", createSessionRequest{
		IDToken:       idToken,
		ValidDuration: int64(ttl.Seconds()),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SessionCookie == "" || resp.UserID == "" {
		return nil, fmt.Errorf("%w: empty session cookie in provider response", ErrUpstream)
	}
	return &domain.SessionCredential{
		Token:     resp.SessionCookie,
		UserID:    resp.UserID,
		Email:     resp.Email,
		ExpiresAt: time.Unix(resp.ExpiresAt, 0),
	}, nil
}

type verifySessionRequest struct {
	SessionCookie string `json:"sessionCookie"`
	CheckRevoked  bool   `json:"checkRevoked"`
}

type verifySessionResponse struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email,omitempty"`
	IssuedAt  int64          `json:"issuedAt"`
	ExpiresAt int64          `json:"expiresAt"`
	Claims    map[string]any `json:"claims,omitempty"`
}

// VerifySessionCookie validates a session cookie against the provider.
func (c *Client) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*domain.Claims, error) {
	if cookie == "" {
		return nil, fmt.Errorf("%w: no session cookie", ErrUnauthorized)
	}
	var resp verifySessionResponse
	err := c.post(ctx, "/v1/sessions:verify", verifySessionRequest{
		SessionCookie: cookie,
		CheckRevoked:  checkRevoked,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.UserID == "" {
		return nil, fmt.Errorf("%w: provider response missing user id", ErrUpstream)
	}
	return &domain.Claims{
		UserID:    resp.UserID,
		Email:     resp.Email,
		IssuedAt:  time.Unix(resp.IssuedAt, 0),
		ExpiresAt: time.Unix(resp.ExpiresAt, 0),
		Raw:       resp.Claims,
	}, nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// SignInWithPassword exchanges email/password for an ID token via the
// provider's accounts:signInWithPassword endpoint.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.post(ctx, "/v1/accounts:signInWithPassword", signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.IDToken == "" {
		return nil, fmt.Errorf("%w: provider response missing id token", ErrUpstream)
	}
	return &resp, nil
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + path
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close provider response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest:
		var pe providerError
		if jsonErr := json.Unmarshal(raw, &pe); jsonErr == nil && pe.Error.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, pe.Error.Message)
		}
		return fmt.Errorf("%w: provider returned %d", ErrUnauthorized, resp.StatusCode)
	default:
		return fmt.Errorf("%w: provider returned %d", ErrUpstream, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
		}
	}
	return nil
}
