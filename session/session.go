// Package session holds the client side authentication state: the bearer
// token of the signed in user, persisted through a pluggable Storage.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
)

const DefaultKey = "token"

var ErrNotLoggedIn = errors.New("not logged in")

// Token is a bearer token together with what it claims. The claim is read
// without verifying the signature; only the server can do that.
type Token struct {
	Raw       string
	Claim     authsvc.Claim
	ExpiresAt time.Time
}

func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type Session struct {
	mu      sync.RWMutex
	storage Storage
	key     string
	now     func() time.Time
	token   *Token
}

// New returns a session backed by storage and restores the token it holds,
// if any. A stored token that is unreadable or already expired is dropped.
func New(ctx context.Context, storage Storage) (*Session, error) {
	s := &Session{storage: storage, key: DefaultKey, now: time.Now}

	raw, err := storage.Get(ctx, s.key)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return s, nil
	case err != nil:
		return nil, err
	}

	t, err := parse(string(raw))
	if err != nil || t.Expired(s.now()) {
		return s, storage.Delete(ctx, s.key)
	}
	s.token = &t
	return s, nil
}

// Current returns the token of the signed in user. The second result is false
// when nobody is signed in or the token has expired.
func (s *Session) Current() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil || s.token.Expired(s.now()) {
		return Token{}, false
	}
	return *s.token, true
}

// Login replaces the current token with raw and persists it.
func (s *Session) Login(ctx context.Context, raw string) (Token, error) {
	t, err := parse(raw)
	if err != nil {
		return Token{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Put(ctx, s.key, []byte(raw)); err != nil {
		return Token{}, err
	}
	s.token = &t
	return t, nil
}

// Logout forgets the token locally. The token itself stays valid until it
// expires.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	return s.storage.Delete(ctx, s.key)
}

// Context returns ctx carrying the current token the way the HTTP clients
// expect it.
func (s *Session) Context(ctx context.Context) (context.Context, error) {
	t, ok := s.Current()
	if !ok {
		return ctx, ErrNotLoggedIn
	}
	return context.WithValue(ctx, kitjwt.JWTContextKey, t.Raw), nil
}

func parse(raw string) (Token, error) {
	claim, exp, err := authservice.Inspect(raw)
	if err != nil {
		return Token{}, err
	}
	return Token{Raw: raw, Claim: claim, ExpiresAt: exp}, nil
}
