package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"financial-matrix/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionNotifier_SubscribeAndUnsubscribe(t *testing.T) {
	n := NewSessionNotifier()

	var mu sync.Mutex
	var got []SessionEvent
	unsubscribe := n.Subscribe(func(ev SessionEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	assert.Equal(t, 1, n.Subscribers())

	n.Notify(SessionEvent{Type: SessionSignedIn, IdentityID: "u1"})
	unsubscribe()
	unsubscribe()
	n.Notify(SessionEvent{Type: SessionSignedOut, IdentityID: "u1"})

	assert.Equal(t, 0, n.Subscribers())
	require.Len(t, got, 1)
	assert.Equal(t, SessionSignedIn, got[0].Type)
	assert.False(t, got[0].At.IsZero(), "notify stamps the event time")
}

func TestLocalSessionProvider_SignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, store.NewMemoryStore())

	ident, sess, err := p.SignUp(ctx, "  Alice@Example.com ", "secret123")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "alice@example.com", ident.Email)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)

	got, err := p.GetSession(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, got.Identity.ID)

	signedIn, err := p.SignIn(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, ident.ID, signedIn.Identity.ID)
}

func TestLocalSessionProvider_Errors(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, store.NewMemoryStore())

	_, _, err := p.SignUp(ctx, "bob@example.com", "secret123")
	require.NoError(t, err)

	_, _, err = p.SignUp(ctx, "BOB@example.com", "another1")
	assert.ErrorIs(t, err, ErrUserExists)

	_, _, err = p.SignUp(ctx, "carol@example.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = p.SignUp(ctx, "not-an-email", "secret123")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.SignIn(ctx, "bob@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Invalid login credentials", err.Error())

	_, err = p.SignIn(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.GetSession(ctx, "garbage")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLocalSessionProvider_SignOutRevokes(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, store.NewMemoryStore())

	var events []SessionEvent
	p.Subscribe(func(ev SessionEvent) { events = append(events, ev) })

	ident, sess, err := p.SignUp(ctx, "dave@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, sess.AccessToken))

	_, err = p.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession)

	require.Len(t, events, 2)
	assert.Equal(t, SessionSignedIn, events[0].Type)
	assert.Equal(t, SessionSignedOut, events[1].Type)
	assert.Equal(t, ident.ID, events[1].IdentityID)
}

func TestLocalSessionProvider_SignOutEverywhere(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, store.NewMemoryStore())

	ident, first, err := p.SignUp(ctx, "erin@example.com", "secret123")
	require.NoError(t, err)
	second, err := p.SignIn(ctx, "erin@example.com", "secret123")
	require.NoError(t, err)
	_, other, err := p.SignUp(ctx, "frank@example.com", "secret123")
	require.NoError(t, err)

	var events []SessionEvent
	p.Subscribe(func(ev SessionEvent) { events = append(events, ev) })

	require.NoError(t, p.SignOutEverywhere(ctx, second.AccessToken))

	_, err = p.GetSession(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = p.GetSession(ctx, second.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = p.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = p.GetSession(ctx, other.AccessToken)
	assert.NoError(t, err, "other identities keep their sessions")

	require.Len(t, events, 1)
	assert.Equal(t, SessionSignedOut, events[0].Type)
	assert.Equal(t, ident.ID, events[0].IdentityID)

	assert.ErrorIs(t, p.SignOutEverywhere(ctx, "garbage"), ErrNoSession)
}

func TestLocalSessionProvider_RefreshRotates(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, store.NewMemoryStore())

	_, sess, err := p.SignUp(ctx, "erin@example.com", "secret123")
	require.NoError(t, err)

	next, err := p.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	_, err = p.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "old refresh token is single use")

	_, err = p.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession, "old access token dies with its session row")

	_, err = p.GetSession(ctx, next.AccessToken)
	assert.NoError(t, err)
}

func TestLocalSessionProvider_ExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := newTestProvider(t, st)

	_, sess, err := p.SignUp(ctx, "frank@example.com", "secret123")
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Hour)
	p.now = func() time.Time { return later }

	_, err = p.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession)

	// refresh TTL is 24h, so the refresh token still works
	_, err = p.Refresh(ctx, sess.RefreshToken)
	assert.NoError(t, err)

	p.now = func() time.Time { return later.Add(48 * time.Hour) }
	n, err := p.PruneSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
