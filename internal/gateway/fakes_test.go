package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akrtake/PromoReels/internal/domain"
	"github.com/akrtake/PromoReels/internal/identity"
)

// fakeProvider scripts identity-provider behavior per credential value.
type fakeProvider struct {
	sessions map[string]*domain.Claims // cookie value -> claims
	exchange map[string]*domain.SessionCredential
	signIn   map[string]*identity.TokenResponse // email -> tokens

	verifyErr   error
	exchangeErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions: map[string]*domain.Claims{},
		exchange: map[string]*domain.SessionCredential{},
		signIn:   map[string]*identity.TokenResponse{},
	}
}

func (p *fakeProvider) CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (*domain.SessionCredential, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	cred, ok := p.exchange[idToken]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return cred, nil
}

func (p *fakeProvider) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*domain.Claims, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	claims, ok := p.sessions[cookie]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return claims, nil
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.TokenResponse, error) {
	tokens, ok := p.signIn[email]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return tokens, nil
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	revoked map[string]time.Time

	upserts         int
	lastSeenUpdates int

	revokedErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   map[string]*domain.User{},
		revoked: map[string]time.Time{},
	}
}

func (r *fakeRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID], nil
}

func (r *fakeRepo) UpsertUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.users[user.UserID] = user
	return nil
}

func (r *fakeRepo) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeenUpdates++
	if u, ok := r.users[userID]; ok {
		u.LastSeenAt = lastSeen
	}
	return nil
}

func (r *fakeRepo) RevokeSession(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenHash] = expiresAt
	return nil
}

func (r *fakeRepo) IsSessionRevoked(ctx context.Context, tokenHash string) (bool, error) {
	if r.revokedErr != nil {
		return false, r.revokedErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.revoked[tokenHash]
	return ok && time.Now().Before(exp), nil
}

func (r *fakeRepo) CleanupExpiredRevocations(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, exp := range r.revoked {
		if time.Now().After(exp) {
			delete(r.revoked, hash)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }
func (r *fakeRepo) Close() error                   { return nil }

var errRepoDown = errors.New("database locked")
