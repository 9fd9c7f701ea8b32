// services/access_gate.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"financial-matrix/models"
	"financial-matrix/store"
	"financial-matrix/utils"
)

type Capability string

const (
	CapabilityAnonymous     Capability = "anonymous"
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityAdministrator Capability = "administrator"
)

// Access is the gate's decision for one session.
type Access struct {
	Capability Capability   `json:"capability"`
	Identity   *Identity    `json:"user,omitempty"`
	Profile    *models.User `json:"profile,omitempty"`
}

func (a Access) IsAnonymous() bool { return a.Capability == CapabilityAnonymous }
func (a Access) IsAdmin() bool     { return a.Capability == CapabilityAdministrator }

type gateEntry struct {
	access     Access
	identityID string
	resolvedAt time.Time
}

// AccessGate is the single place that decides anonymous / authenticated /
// administrator. Decisions are memoized per access token and dropped whenever
// the session provider reports a change for that identity.
type AccessGate struct {
	users store.UserStore
	ttl   time.Duration

	mu   sync.Mutex
	memo map[string]gateEntry
	// gen counts invalidations per identity; a lookup that raced one is not memoized.
	gen         map[string]uint64
	unsubscribe func()
	now         func() time.Time
}

func NewAccessGate(sessions SessionProvider, users store.UserStore, ttl time.Duration) *AccessGate {
	g := &AccessGate{
		users: users,
		ttl:   ttl,
		memo:  make(map[string]gateEntry),
		gen:   make(map[string]uint64),
		now:   time.Now,
	}
	g.unsubscribe = sessions.Subscribe(func(ev SessionEvent) {
		g.Invalidate(ev.IdentityID)
	})
	return g
}

// Resolve never fails: a missing profile or a lookup error yields
// authenticated, never administrator.
func (g *AccessGate) Resolve(ctx context.Context, session *Session) Access {
	if session == nil || session.Identity.ID == "" {
		return Access{Capability: CapabilityAnonymous}
	}

	if access, ok := g.cached(session.AccessToken); ok {
		return access
	}

	ident := session.Identity
	access := Access{Capability: CapabilityAuthenticated, Identity: &ident}

	g.mu.Lock()
	gen := g.gen[ident.ID]
	g.mu.Unlock()

	profile, err := g.users.GetUser(ctx, ident.ID)
	switch {
	case err == nil:
		access.Profile = profile
		if profile.IsAdmin() {
			access.Capability = CapabilityAdministrator
		}
	case errors.Is(err, store.ErrNotFound):
		utils.Component("gate").Debug("no profile row for identity", "user_id", ident.ID)
		return access
	default:
		utils.Component("gate").Error("profile lookup failed, treating as non-admin", "user_id", ident.ID, "error", err)
		return access
	}

	if session.AccessToken != "" {
		g.mu.Lock()
		if g.gen[ident.ID] == gen {
			g.memo[session.AccessToken] = gateEntry{access: access, identityID: ident.ID, resolvedAt: g.now()}
		}
		g.mu.Unlock()
	}
	return access
}

func (g *AccessGate) cached(token string) (Access, bool) {
	if token == "" {
		return Access{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.memo[token]
	if !ok {
		return Access{}, false
	}
	if g.ttl > 0 && g.now().Sub(e.resolvedAt) > g.ttl {
		delete(g.memo, token)
		return Access{}, false
	}
	return e.access, true
}

// Invalidate drops every memoized decision for identityID.
func (g *AccessGate) Invalidate(identityID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen[identityID]++
	for token, e := range g.memo {
		if e.identityID == identityID {
			delete(g.memo, token)
		}
	}
}

// Sweep evicts entries older than the TTL and returns how many were removed.
func (g *AccessGate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	now := g.now()
	for token, e := range g.memo {
		if now.Sub(e.resolvedAt) > g.ttl {
			delete(g.memo, token)
			n++
		}
	}
	return n
}

func (g *AccessGate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.memo)
}

// Close stops listening for session changes.
func (g *AccessGate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}
