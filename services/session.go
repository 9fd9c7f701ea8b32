// services/session.go
package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Identity is the authenticated principal as the session provider knows it.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

type SessionEventType string

const (
	SessionSignedIn       SessionEventType = "SIGNED_IN"
	SessionSignedOut      SessionEventType = "SIGNED_OUT"
	SessionTokenRefreshed SessionEventType = "TOKEN_REFRESHED"
	SessionUserUpdated    SessionEventType = "USER_UPDATED"
)

type SessionEvent struct {
	Type       SessionEventType `json:"event"`
	IdentityID string           `json:"user_id"`
	At         time.Time        `json:"at"`
}

// SessionProvider authenticates identities and notifies subscribers of session changes.
type SessionProvider interface {
	// SignUp creates an identity. The returned session is nil when the
	// provider requires email confirmation before the first sign-in.
	SignUp(ctx context.Context, email, password string) (*Identity, *Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	// SignOutEverywhere ends every session of the identity behind accessToken.
	SignOutEverywhere(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	// GetSession validates accessToken; it returns ErrNoSession when the token is not usable.
	GetSession(ctx context.Context, accessToken string) (*Session, error)
	GetIdentity(ctx context.Context, accessToken string) (*Identity, error)
	Subscribe(fn func(SessionEvent)) (unsubscribe func())
}

var ErrNoSession = errors.New("no active session")

// AuthError carries a provider message that is shown to the user verbatim.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string { return e.Message }

var (
	ErrInvalidCredentials = &AuthError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}
	ErrUserExists         = &AuthError{Status: http.StatusUnprocessableEntity, Message: "User already registered"}
	ErrWeakPassword       = &AuthError{Status: http.StatusUnprocessableEntity, Message: "Password should be at least 6 characters"}
	ErrInvalidEmail       = &AuthError{Status: http.StatusBadRequest, Message: "Unable to validate email address: invalid format"}
	ErrInvalidRefresh     = &AuthError{Status: http.StatusBadRequest, Message: "Invalid Refresh Token: Refresh Token Not Found"}
)

// SessionNotifier fans session events out to subscribers. Callbacks run
// synchronously on the notifying goroutine and must not block.
type SessionNotifier struct {
	mu   sync.RWMutex
	subs map[uint64]func(SessionEvent)
	next uint64
}

func NewSessionNotifier() *SessionNotifier {
	return &SessionNotifier{subs: make(map[uint64]func(SessionEvent))}
}

func (n *SessionNotifier) Subscribe(fn func(SessionEvent)) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *SessionNotifier) Notify(ev SessionEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	n.mu.RLock()
	fns := make([]func(SessionEvent), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (n *SessionNotifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
