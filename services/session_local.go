// services/session_local.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"financial-matrix/models"
	"financial-matrix/store"
	"financial-matrix/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type accessClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// LocalSessionProvider is a self-hosted session provider: bcrypt password
// hashes, HS256 access tokens and opaque refresh tokens kept in the record store.
type LocalSessionProvider struct {
	*SessionNotifier

	store      store.IdentityStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

func NewLocalSessionProvider(identities store.IdentityStore, secret string, accessTTL, refreshTTL time.Duration) *LocalSessionProvider {
	return &LocalSessionProvider{
		SessionNotifier: NewSessionNotifier(),
		store:           identities,
		secret:          []byte(secret),
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
		bcryptCost:      bcrypt.DefaultCost,
		now:             time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalSessionProvider) SignUp(ctx context.Context, email, password string) (*Identity, *Session, error) {
	email = normalizeEmail(email)
	if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := p.now()
	ident := &models.Identity{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     string(hash),
		EmailConfirmedAt: &now,
	}
	if err := p.store.CreateIdentity(ctx, ident); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, fmt.Errorf("create identity: %w", err)
	}

	sess, err := p.issueSession(ctx, ident)
	if err != nil {
		return nil, nil, err
	}
	utils.Component("auth").Info("identity created", "user_id", ident.ID)
	p.Notify(SessionEvent{Type: SessionSignedIn, IdentityID: ident.ID})
	return &sess.Identity, sess, nil
}

func (p *LocalSessionProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	ident, err := p.store.GetIdentityByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := p.issueSession(ctx, ident)
	if err != nil {
		return nil, err
	}
	p.Notify(SessionEvent{Type: SessionSignedIn, IdentityID: ident.ID})
	return sess, nil
}

func (p *LocalSessionProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.parse(accessToken)
	if err != nil {
		return ErrNoSession
	}
	if err := p.store.RevokeSession(ctx, claims.SessionID, p.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	p.Notify(SessionEvent{Type: SessionSignedOut, IdentityID: claims.Subject})
	return nil
}

func (p *LocalSessionProvider) SignOutEverywhere(ctx context.Context, accessToken string) error {
	claims, err := p.parse(accessToken)
	if err != nil {
		return ErrNoSession
	}
	if err := p.store.RevokeIdentitySessions(ctx, claims.Subject, p.now()); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	utils.Component("auth").Info("all sessions revoked", "user_id", claims.Subject)
	p.Notify(SessionEvent{Type: SessionSignedOut, IdentityID: claims.Subject})
	return nil
}

// Refresh rotates the refresh token: the old session row is revoked and a new one issued.
func (p *LocalSessionProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	row, err := p.store.GetSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	now := p.now()
	if !row.Active(now) {
		return nil, ErrInvalidRefresh
	}

	ident, err := p.store.GetIdentity(ctx, row.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if err := p.store.RevokeSession(ctx, row.ID, now); err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}

	sess, err := p.issueSession(ctx, ident)
	if err != nil {
		return nil, err
	}
	p.Notify(SessionEvent{Type: SessionTokenRefreshed, IdentityID: ident.ID})
	return sess, nil
}

func (p *LocalSessionProvider) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := p.parse(accessToken)
	if err != nil {
		return nil, ErrNoSession
	}

	row, err := p.store.GetAuthSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if row.RevokedAt != nil {
		return nil, ErrNoSession
	}

	return &Session{
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
		Identity:    Identity{ID: claims.Subject, Email: claims.Email},
	}, nil
}

func (p *LocalSessionProvider) GetIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	sess, err := p.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &sess.Identity, nil
}

// PruneSessions deletes expired and revoked refresh-token rows.
func (p *LocalSessionProvider) PruneSessions(ctx context.Context) (int64, error) {
	return p.store.DeleteExpiredSessions(ctx, p.now())
}

func (p *LocalSessionProvider) issueSession(ctx context.Context, ident *models.Identity) (*Session, error) {
	now := p.now()
	row := &models.AuthSession{
		ID:           uuid.NewString(),
		IdentityID:   ident.ID,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    now.Add(p.refreshTTL),
	}
	if err := p.store.CreateSession(ctx, row); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	expiresAt := now.Add(p.accessTTL)
	claims := accessClaims{
		Email:     ident.Email,
		SessionID: row.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &Session{
		AccessToken:  token,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    expiresAt,
		Identity:     Identity{ID: ident.ID, Email: ident.Email},
	}, nil
}

func (p *LocalSessionProvider) parse(accessToken string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, errors.New("token missing subject or session")
	}
	return claims, nil
}

var _ SessionProvider = (*LocalSessionProvider)(nil)
