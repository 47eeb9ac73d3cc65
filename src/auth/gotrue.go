package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
)

// GoTrueConfig configures a GoTrue-compatible identity client.
type GoTrueConfig struct {
	BaseURL     string // project URL; requests go to {BaseURL}/auth/v1
	AnonKey     string // public API key sent as the apikey header
	SessionPath string // file holding the signed-in session
	Fs          afero.Fs
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Clock       func() time.Time
}

// GoTrueClient implements Provider over the GoTrue REST API and keeps the
// session in a local file.
type GoTrueClient struct {
	config GoTrueConfig
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

var _ Provider = (*GoTrueClient)(nil)

func NewGoTrueClient(config GoTrueConfig) *GoTrueClient {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &GoTrueClient{
		config: config,
		http:   httpClient,
		logger: logger.With("component", "identity"),
		now:    now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

type errorResponse struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *GoTrueClient) endpoint(path string, query url.Values) string {
	u := c.config.BaseURL + "/auth/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *GoTrueClient) do(ctx context.Context, method, path string, query url.Values, body any, accessToken string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseProviderError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseProviderError(status int, data []byte) *ProviderError {
	perr := &ProviderError{Status: status}
	var er errorResponse
	if err := json.Unmarshal(data, &er); err != nil {
		perr.Message = strings.TrimSpace(string(data))
	} else {
		perr.Code = er.ErrorCode
		if perr.Code == "" {
			perr.Code = er.Error
		}
		perr.Message = er.Msg
		if perr.Message == "" {
			perr.Message = er.ErrorDescription
		}
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}

// SignUp registers a user. Providers that auto-confirm also return a
// session, which is stored.
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	var raw json.RawMessage
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, "", &raw); err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err == nil && tr.AccessToken != "" {
		session := c.sessionFrom(&tr)
		if err := c.saveSession(session); err != nil {
			return nil, err
		}
		return &session.User, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

func (c *GoTrueClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var tr tokenResponse
	query := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/token", query, map[string]string{"email": email, "password": password}, "", &tr); err != nil {
		return nil, err
	}
	session := c.sessionFrom(&tr)
	if err := c.saveSession(session); err != nil {
		return nil, err
	}
	c.logger.Info("signed in", "user", session.User.ID)
	return session, nil
}

// SignInWithOAuth returns the URL the user opens to finish signing in.
func (c *GoTrueClient) SignInWithOAuth(_ context.Context, provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", &ValidationError{Field: "provider", Message: "is required"}
	}
	query := url.Values{"provider": {provider}}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.endpoint("/authorize", query), nil
}

// SignOut revokes the session upstream and always forgets it locally.
func (c *GoTrueClient) SignOut(ctx context.Context) error {
	session, err := c.loadSession()
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	var upstreamErr error
	if err := c.do(ctx, http.MethodPost, "/logout", nil, nil, session.AccessToken, nil); err != nil {
		c.logger.Warn("upstream sign out failed", "error", err)
		upstreamErr = err
	}
	if err := c.clearSession(); err != nil {
		return err
	}
	var perr *ProviderError
	if errors.As(upstreamErr, &perr) && perr.Status == http.StatusUnauthorized {
		return nil
	}
	return upstreamErr
}

// CurrentSession returns the stored session, refreshing it when expired.
func (c *GoTrueClient) CurrentSession(ctx context.Context) (*Session, error) {
	session, err := c.loadSession()
	if err != nil || session == nil {
		return nil, err
	}
	if !session.Expired(c.now()) {
		return session, nil
	}
	if session.RefreshToken == "" {
		return nil, c.clearSession()
	}

	var tr tokenResponse
	query := url.Values{"grant_type": {"refresh_token"}}
	err = c.do(ctx, http.MethodPost, "/token", query, map[string]string{"refresh_token": session.RefreshToken}, "", &tr)
	var perr *ProviderError
	if errors.As(err, &perr) {
		c.logger.Info("session refresh rejected, signing out", "error", err)
		return nil, c.clearSession()
	}
	if err != nil {
		return nil, err
	}

	refreshed := c.sessionFrom(&tr)
	if err := c.saveSession(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// FetchUser reads the user behind the stored session from the provider.
func (c *GoTrueClient) FetchUser(ctx context.Context) (*User, error) {
	session, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	var user User
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, session.AccessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *GoTrueClient) SendPasswordUpdate(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/recover", query, map[string]string{"email": email}, "", nil)
}

// sessionFrom builds a session, preferring the claims in the access token
// over the response fields.
func (c *GoTrueClient) sessionFrom(tr *tokenResponse) *Session {
	session := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		User:         tr.User,
	}
	switch {
	case tr.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		session.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}

	claims, err := parseClaims(tr.AccessToken)
	if err != nil {
		c.logger.Debug("access token claims unreadable", "error", err)
		return session
	}
	if session.User.ID == "" {
		session.User.ID = claims.Subject
	}
	if session.User.Email == "" {
		session.User.Email = claims.Email
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return session
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// parseClaims reads the token without verifying it; the provider already did.
func parseClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *GoTrueClient) loadSession() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := afero.ReadFile(c.config.Fs, c.config.SessionPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		c.logger.Warn("discarding unreadable session file", "error", err)
		return nil, nil
	}
	if session.AccessToken == "" {
		return nil, nil
	}
	return &session, nil
}

func (c *GoTrueClient) saveSession(session *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := c.config.Fs.MkdirAll(filepath.Dir(c.config.SessionPath), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	if err := afero.WriteFile(c.config.Fs, c.config.SessionPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (c *GoTrueClient) clearSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.config.Fs.Remove(c.config.SessionPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
