package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/akrtake/PromoReels/internal/stream"
)

var (
	// ErrSessionNotFound indicates the session id is unknown upstream,
	// typically because it expired or never existed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUpstream covers non-2xx responses and transport failures.
	ErrUpstream = errors.New("agent API unavailable")
)

// Client talks to the agent-orchestration backend. Every call carries the
// caller's session credential as a bearer token.
type Client struct {
	baseURL        string
	agentName      string
	httpClient     *http.Client
	maxBufferBytes int
	logger         *slog.Logger
}

// NewClient creates an agent API client. The zero timeout on the underlying
// HTTP client is deliberate: streamed runs have no bounded duration.
func NewClient(baseURL, agentName string, maxBufferBytes int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        baseURL,
		agentName:      agentName,
		httpClient:     &http.Client{},
		maxBufferBytes: maxBufferBytes,
		logger:         logger,
	}
}

// AgentName returns the configured agent application name.
func (c *Client) AgentName() string {
	return c.agentName
}

func (c *Client) sessionsURL(userID string) string {
	return fmt.Sprintf("%s/apps/%s/users/%s/sessions",
		c.baseURL, url.PathEscape(c.agentName), url.PathEscape(userID))
}

// CreateSession requests a new conversation session for the user.
func (c *Client) CreateSession(ctx context.Context, token, userID string) (*Session, error) {
	var sess Session
	if err := c.doJSON(ctx, http.MethodPost, c.sessionsURL(userID), token, nil, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("%w: response missing session id", ErrUpstream)
	}
	return &sess, nil
}

// GetSession retrieves a session by id. Returns ErrSessionNotFound when the
// backend reports the id as absent or expired.
func (c *Client) GetSession(ctx context.Context, token, userID, sessionID string) (*Session, error) {
	u := c.sessionsURL(userID) + "/" + url.PathEscape(sessionID)
	var sess Session
	if err := c.doJSON(ctx, http.MethodGet, u, token, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions retrieves all of the user's sessions, most useful for a
// history sidebar.
func (c *Client) ListSessions(ctx context.Context, token, userID string) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, http.MethodGet, c.sessionsURL(userID), token, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Run sends a user message and consumes the streamed reply as a sequence of
// frames in strict arrival order. The sequence yields a non-nil error at
// most once, as its final element; the stream cannot be resumed after that.
func (c *Client) Run(ctx context.Context, token string, req RunRequest) iter.Seq2[*stream.Frame, error] {
	return func(yield func(*stream.Frame, error) bool) {
		body, err := json.Marshal(req)
		if err != nil {
			yield(nil, fmt.Errorf("marshal run request: %w", err))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run_sse", bytes.NewReader(body))
		if err != nil {
			yield(nil, fmt.Errorf("create run request: %w", err))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			yield(nil, fmt.Errorf("%w: %v", ErrUpstream, err))
			return
		}
		defer func() {
			if closeErr := resp.Body.Close(); closeErr != nil {
				c.logger.Debug("failed to close run response body", "error", closeErr)
			}
		}()

		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			yield(nil, fmt.Errorf("%w: run returned %d: %s", ErrUpstream, resp.StatusCode, payload))
			return
		}

		r := stream.NewReassembler(c.maxBufferBytes, c.logger)
		buf := make([]byte, 4096)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				for _, frame := range r.Feed(buf[:n]) {
					if !yield(frame, nil) {
						return
					}
				}
			}
			if readErr == io.EOF {
				if frame := r.Flush(); frame != nil {
					yield(frame, nil)
				}
				return
			}
			if readErr != nil {
				yield(nil, fmt.Errorf("%w: read stream: %v", ErrUpstream, readErr))
				return
			}
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, u, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close agent API response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrSessionNotFound, method, u)
	default:
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstream, method, u, resp.StatusCode, raw)
	}

	c.logger.Debug("agent API call",
		"method", method,
		"url", u,
		"duration", time.Since(start))

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
		}
	}
	return nil
}
