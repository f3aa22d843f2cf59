// Package chat owns the lifecycle of one conversation session and the
// reconstruction of streamed agent replies into visible history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/akrtake/PromoReels/internal/agentapi"
	"github.com/akrtake/PromoReels/internal/domain"
	"github.com/akrtake/PromoReels/internal/stream"
)

// State is the controller's lifecycle phase.
type State int

const (
	// StateUninitialized waits for identity and navigation context.
	StateUninitialized State = iota
	// StateResuming is fetching an existing session named by navigation state.
	StateResuming
	// StateCreating is requesting a fresh session.
	StateCreating
	// StateReady accepts user input.
	StateReady
	// StateSending has a streamed reply in flight; further sends are rejected.
	StateSending
	// StateFailed holds a bootstrap error; Retry re-runs initialization.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResuming:
		return "resuming"
	case StateCreating:
		return "creating"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrSendInProgress is returned when Send is called while a previous send
// has not completed or errored.
var ErrSendInProgress = errors.New("send already in progress")

const (
	// RoleUser tags messages typed by the user.
	RoleUser = "user"
	// RoleAgent tags messages produced by the agent.
	RoleAgent = "agent"
)

// Message is one visible entry of conversation history.
type Message struct {
	ID      string
	Role    string
	Author  string
	Text    string
	Pending bool
}

// NavContext abstracts the navigation-layer storage of the current session
// id (a URL query parameter in the browser app).
type NavContext interface {
	SessionID() string
	SetSessionID(id string)
	ClearSessionID()
}

// MemoryNav is an in-memory NavContext.
type MemoryNav struct {
	id string
}

// SessionID returns the stored session id, if any.
func (n *MemoryNav) SessionID() string { return n.id }

// SetSessionID stores a session id.
func (n *MemoryNav) SetSessionID(id string) { n.id = id }

// ClearSessionID removes the stored session id.
func (n *MemoryNav) ClearSessionID() { n.id = "" }

// AgentAPI is the subset of the agent backend the controller needs.
type AgentAPI interface {
	AgentName() string
	CreateSession(ctx context.Context, token, userID string) (*agentapi.Session, error)
	GetSession(ctx context.Context, token, userID, sessionID string) (*agentapi.Session, error)
	Run(ctx context.Context, token string, req agentapi.RunRequest) iter.Seq2[*stream.Frame, error]
}

// Controller drives exactly one conversation session. It is owned by a
// single goroutine (one logical thread of control per tab); no locking is
// needed because there is no concurrent writer.
type Controller struct {
	api    AgentAPI
	nav    NavContext
	logger *slog.Logger

	state        State
	userID       string
	token        string
	sessionID    string
	history      []Message
	sessionState domain.SessionState
	err          error
}

// NewController creates a controller in the Uninitialized state.
func NewController(api AgentAPI, nav NavContext, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if nav == nil {
		nav = &MemoryNav{}
	}
	return &Controller{
		api:    api,
		nav:    nav,
		logger: logger,
	}
}

// Initialize binds a verified identity and resumes or creates a session.
// With a session id in the navigation context it attempts a resume; on any
// resume failure the id is stripped and a fresh session is created, so
// repeated attempts with a dead id are idempotent.
func (c *Controller) Initialize(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		// Identity not ready yet; stay uninitialized, no error surfaces.
		return nil
	}
	c.userID = userID
	c.token = token

	if navID := c.nav.SessionID(); navID != "" {
		c.state = StateResuming
		sess, err := c.api.GetSession(ctx, token, userID, navID)
		if err == nil {
			c.adoptSession(sess)
			c.logger.Info("resumed conversation session", "session_id", sess.ID, "events", len(sess.Events))
			return nil
		}
		c.logger.Warn("failed to resume session, creating a new one",
			"session_id", navID,
			"error", err)
		c.nav.ClearSessionID()
	}

	c.state = StateCreating
	sess, err := c.api.CreateSession(ctx, token, userID)
	if err != nil {
		c.state = StateFailed
		c.err = err
		c.history = append(c.history, Message{
			ID:     uuid.NewString(),
			Role:   RoleAgent,
			Text:   fmt.Sprintf("Failed to start a session: %v", err),
			Author: c.api.AgentName(),
		})
		return err
	}
	c.nav.SetSessionID(sess.ID)
	c.history = nil
	c.adoptSession(sess)
	c.logger.Info("created conversation session", "session_id", sess.ID)
	return nil
}

// Retry re-runs initialization after a bootstrap failure.
func (c *Controller) Retry(ctx context.Context) error {
	if c.state != StateFailed {
		return nil
	}
	c.err = nil
	c.history = nil
	return c.Initialize(ctx, c.userID, c.token)
}

func (c *Controller) adoptSession(sess *agentapi.Session) {
	c.sessionID = sess.ID
	c.sessionState = sess.State
	for _, ev := range sess.Events {
		text := ev.Content.Text()
		if text == "" {
			continue
		}
		role := RoleAgent
		if ev.Content.Role == "user" {
			role = RoleUser
		}
		c.history = append(c.history, Message{
			ID:     uuid.NewString(),
			Role:   role,
			Author: ev.Author,
			Text:   text,
		})
	}
	c.state = StateReady
}

// Send submits a user message and reconstructs the streamed reply.
//
// With no identity or session token bound, the send is a no-op: no network
// call, no history mutation, no error. While a previous send is in flight
// it returns ErrSendInProgress. Accumulated text is cumulative across the
// turn's committed fragments, and each committed fragment overwrites the
// placeholder wholesale with the accumulation so far.
func (c *Controller) Send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if c.state == StateSending {
		return ErrSendInProgress
	}
	if c.userID == "" || c.token == "" || c.sessionID == "" || c.state != StateReady {
		return nil
	}

	c.state = StateSending
	defer func() { c.state = StateReady }()

	c.history = append(c.history,
		Message{ID: uuid.NewString(), Role: RoleUser, Text: text},
		Message{ID: uuid.NewString(), Role: RoleAgent, Pending: true},
	)
	placeholder := len(c.history) - 1

	req := agentapi.RunRequest{
		AppName:   c.api.AgentName(),
		UserID:    c.userID,
		SessionID: c.sessionID,
		NewMessage: domain.Content{
			Role: "user",
			Parts: []domain.Part{
				{Text: text},
			},
		},
		Streaming: true,
	}

	var accumulated string
	for frame, err := range c.api.Run(ctx, c.token, req) {
		if err != nil {
			c.logger.Error("streamed run failed", "session_id", c.sessionID, "error", err)
			c.resolvePlaceholder(placeholder, Message{
				Role:   RoleAgent,
				Author: c.api.AgentName(),
				Text:   fmt.Sprintf("An error occurred: %v", err),
			})
			return nil
		}
		if !frame.Committed() {
			continue
		}
		accumulated += frame.Text()
		// Full overwrite, not append: accumulated already holds the whole
		// committed reply so far.
		c.history[placeholder].Text = accumulated
		c.history[placeholder].Author = frame.Author
		c.history[placeholder].Pending = false
	}

	c.refetchState(ctx)
	return nil
}

// resolvePlaceholder replaces the turn's placeholder if it is still pending,
// otherwise appends, keeping one visible outcome per failed turn.
func (c *Controller) resolvePlaceholder(placeholder int, msg Message) {
	msg.ID = uuid.NewString()
	if placeholder < len(c.history) && c.history[placeholder].Pending {
		msg.ID = c.history[placeholder].ID
		c.history[placeholder] = msg
		return
	}
	c.history = append(c.history, msg)
}

// refetchState performs the single authoritative refetch after a completed
// turn and replaces the cached state blob wholesale. Server-side mutations
// during the turn may land partially or out of order; the refetched copy is
// the only trusted view.
func (c *Controller) refetchState(ctx context.Context) {
	sess, err := c.api.GetSession(ctx, c.token, c.userID, c.sessionID)
	if err != nil {
		c.logger.Warn("authoritative state refetch failed", "session_id", c.sessionID, "error", err)
		return
	}
	c.sessionState = sess.State
}

// State returns the current lifecycle phase.
func (c *Controller) State() State { return c.state }

// SessionID returns the bound session id, empty before initialization.
func (c *Controller) SessionID() string { return c.sessionID }

// Err returns the bootstrap error when the controller is in StateFailed.
func (c *Controller) Err() error { return c.err }

// SessionState returns the last authoritative state blob.
func (c *Controller) SessionState() domain.SessionState { return c.sessionState }

// History returns a copy of the visible conversation history.
func (c *Controller) History() []Message {
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}
