// services/auth_service_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"financial-matrix/utils"

	"github.com/golang-jwt/jwt/v5"
)

// AuthServiceClient is a SessionProvider backed by a GoTrue-compatible auth
// server (the hosted backend's /auth/v1 API). Session events are emitted
// locally after each successful call.
type AuthServiceClient struct {
	*SessionNotifier

	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewAuthServiceClient(baseURL, apiKey string) *AuthServiceClient {
	return &AuthServiceClient{
		SessionNotifier: NewSessionNotifier(),
		BaseURL:         strings.TrimRight(baseURL, "/"),
		APIKey:          apiKey,
		Client:          utils.AuthHTTPClient,
	}
}

type goTrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// goTrueSession covers both shapes /signup can return: a session, or a bare
// user when email confirmation is pending.
type goTrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *goTrueUser `json:"user"`

	ID    string `json:"id"`
	Email string `json:"email"`
}

type goTrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e goTrueError) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *AuthServiceClient) SignUp(ctx context.Context, email, password string) (*Identity, *Session, error) {
	var out goTrueSession
	body := map[string]interface{}{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &out); err != nil {
		return nil, nil, err
	}

	if out.AccessToken == "" {
		// confirmation pending: only the user object came back
		ident := &Identity{ID: out.ID, Email: out.Email}
		if out.User != nil {
			ident = &Identity{ID: out.User.ID, Email: out.User.Email}
		}
		if ident.ID == "" {
			return nil, nil, fmt.Errorf("auth server signup returned no user id")
		}
		return ident, nil, nil
	}

	sess := c.toSession(&out)
	c.Notify(SessionEvent{Type: SessionSignedIn, IdentityID: sess.Identity.ID})
	return &sess.Identity, sess, nil
}

func (c *AuthServiceClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var out goTrueSession
	body := map[string]interface{}{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &out); err != nil {
		return nil, err
	}
	sess := c.toSession(&out)
	c.Notify(SessionEvent{Type: SessionSignedIn, IdentityID: sess.Identity.ID})
	return sess, nil
}

func (c *AuthServiceClient) SignOut(ctx context.Context, accessToken string) error {
	return c.logout(ctx, accessToken, "local")
}

func (c *AuthServiceClient) SignOutEverywhere(ctx context.Context, accessToken string) error {
	return c.logout(ctx, accessToken, "global")
}

func (c *AuthServiceClient) logout(ctx context.Context, accessToken, scope string) error {
	ident, err := c.GetIdentity(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout?scope="+scope, accessToken, nil, nil); err != nil {
		return err
	}
	c.Notify(SessionEvent{Type: SessionSignedOut, IdentityID: ident.ID})
	return nil
}

func (c *AuthServiceClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var out goTrueSession
	body := map[string]interface{}{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &out); err != nil {
		return nil, err
	}
	sess := c.toSession(&out)
	c.Notify(SessionEvent{Type: SessionTokenRefreshed, IdentityID: sess.Identity.ID})
	return sess, nil
}

// GetSession asks the auth server who owns accessToken. Any 4xx answer means
// there is no usable session.
func (c *AuthServiceClient) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}

	var user goTrueUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		if ae, ok := err.(*AuthError); ok && ae.Status >= 400 && ae.Status < 500 {
			return nil, ErrNoSession
		}
		return nil, err
	}

	return &Session{
		AccessToken: accessToken,
		ExpiresAt:   tokenExpiry(accessToken),
		Identity:    Identity{ID: user.ID, Email: user.Email},
	}, nil
}

func (c *AuthServiceClient) GetIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	sess, err := c.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &sess.Identity, nil
}

func (c *AuthServiceClient) toSession(out *goTrueSession) *Session {
	sess := &Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}
	if out.User != nil {
		sess.Identity = Identity{ID: out.User.ID, Email: out.User.Email}
	}
	switch {
	case out.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	case out.ExpiresIn > 0:
		sess.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	default:
		sess.ExpiresAt = tokenExpiry(out.AccessToken)
	}
	return sess
}

// tokenExpiry reads exp from a JWT without verifying it; the auth server already did.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (c *AuthServiceClient) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.APIKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("auth server request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ge goTrueError
		_ = json.Unmarshal(body, &ge)
		msg := ge.text()
		if msg == "" {
			msg = fmt.Sprintf("auth server returned %d", resp.StatusCode)
		}
		utils.Component("auth").Warn("auth server error", "method", method, "path", path, "status", resp.StatusCode, "msg", msg)
		return &AuthError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode auth server response: %w", err)
	}
	return nil
}

var _ SessionProvider = (*AuthServiceClient)(nil)
