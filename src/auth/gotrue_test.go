package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionPath = "/state/session.json"

type fakeGoTrue struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
	handler  func(w http.ResponseWriter, r *http.Request, body map[string]any)
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	f.handler(w, r, body)
}

func (f *fakeGoTrue) last() (*http.Request, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newGoTrue(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any), now time.Time) (*GoTrueClient, *fakeGoTrue, afero.Fs) {
	t.Helper()
	fake := &fakeGoTrue{handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	fsys := afero.NewMemMapFs()
	client := NewGoTrueClient(GoTrueConfig{
		BaseURL:     server.URL + "/",
		AnonKey:     "anon-key",
		SessionPath: sessionPath,
		Fs:          fsys,
		Clock:       func() time.Time { return now },
	})
	return client, fake, fsys
}

func TestGoTrueSignIn(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	access := signToken(t, "user-1", "ada@example.com", now.Add(time.Hour))

	client, fake, fsys := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          map[string]any{"id": "user-1", "email": "ada@example.com"},
		})
	}, now)

	session, err := client.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.User.ID)
	assert.True(t, now.Add(time.Hour).Equal(session.ExpiresAt))

	req, body := fake.last()
	assert.Equal(t, "/auth/v1/token", req.URL.Path)
	assert.Equal(t, "password", req.URL.Query().Get("grant_type"))
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	assert.Equal(t, "ada@example.com", body["email"])

	info, err := fsys.Stat(sessionPath)
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	current, err := client.CurrentSession(t.Context())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, access, current.AccessToken)
}

func TestGoTrueSignInRejected(t *testing.T) {
	client, _, fsys := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	}, time.Now())

	_, err := client.SignIn(t.Context(), "ada@example.com", "wrong")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, "invalid_grant", perr.Code)
	assert.Equal(t, "Invalid login credentials", perr.Message)

	exists, err := afero.Exists(fsys, sessionPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGoTrueSignUpShapes(t *testing.T) {
	t.Run("user only", func(t *testing.T) {
		client, fake, fsys := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "user-2", "email": "bob@example.com"})
		}, time.Now())

		user, err := client.SignUp(t.Context(), "bob@example.com", "secret1", map[string]any{"username": "bob"})
		require.NoError(t, err)
		assert.Equal(t, "user-2", user.ID)
		assert.False(t, user.Confirmed())

		req, body := fake.last()
		assert.Equal(t, "/auth/v1/signup", req.URL.Path)
		assert.Equal(t, map[string]any{"username": "bob"}, body["data"])

		exists, _ := afero.Exists(fsys, sessionPath)
		assert.False(t, exists)
	})

	t.Run("auto confirmed", func(t *testing.T) {
		now := time.Now()
		confirmedAt := now.UTC().Format(time.RFC3339)
		access := signToken(t, "user-3", "cy@example.com", now.Add(time.Hour))
		client, _, fsys := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": access,
				"user":         map[string]any{"id": "user-3", "email": "cy@example.com", "email_confirmed_at": confirmedAt},
			})
		}, now)

		user, err := client.SignUp(t.Context(), "cy@example.com", "secret1", nil)
		require.NoError(t, err)
		assert.True(t, user.Confirmed())

		exists, _ := afero.Exists(fsys, sessionPath)
		assert.True(t, exists)
	})
}

func TestGoTrueOAuthURL(t *testing.T) {
	client, _, _ := newGoTrue(t, nil, time.Now())

	link, err := client.SignInWithOAuth(t.Context(), "github", "http://localhost:3000/callback")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	assert.Equal(t, "github", u.Query().Get("provider"))
	assert.Equal(t, "http://localhost:3000/callback", u.Query().Get("redirect_to"))

	_, err = client.SignInWithOAuth(t.Context(), "", "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGoTrueSignOut(t *testing.T) {
	now := time.Now()
	access := signToken(t, "user-1", "ada@example.com", now.Add(time.Hour))
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	client, fake, fsys := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		if r.URL.Path == "/auth/v1/logout" {
			w.WriteHeader(int(status.Load()))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": access,
			"user":         map[string]any{"id": "user-1"},
		})
	}, now)

	require.NoError(t, client.SignOut(t.Context()), "no session is a no-op")
	fake.mu.Lock()
	assert.Empty(t, fake.requests)
	fake.mu.Unlock()

	_, err := client.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(t.Context()))

	req, _ := fake.last()
	assert.Equal(t, "/auth/v1/logout", req.URL.Path)
	assert.Contains(t, req.Header.Get("Authorization"), "Bearer ")
	exists, _ := afero.Exists(fsys, sessionPath)
	assert.False(t, exists)

	status.Store(http.StatusUnauthorized)
	_, err = client.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.NoError(t, client.SignOut(t.Context()), "revoked token still signs out")
	exists, _ = afero.Exists(fsys, sessionPath)
	assert.False(t, exists)
}

func TestGoTrueRefreshesExpiredSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := signToken(t, "user-1", "ada@example.com", now.Add(-time.Minute))
	fresh := signToken(t, "user-1", "ada@example.com", now.Add(time.Hour))

	client, fake, _ := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		switch r.URL.Query().Get("grant_type") {
		case "password":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": expired, "refresh_token": "r1"})
		case "refresh_token":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": fresh, "refresh_token": "r2"})
		}
	}, now)

	_, err := client.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)

	session, err := client.CurrentSession(t.Context())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, fresh, session.AccessToken)
	assert.Equal(t, "user-1", session.User.ID)

	_, body := fake.last()
	assert.Equal(t, "r1", body["refresh_token"])
}

func TestGoTrueRefreshRejectedClearsSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := signToken(t, "user-1", "ada@example.com", now.Add(-time.Minute))

	client, _, fsys := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		if r.URL.Query().Get("grant_type") == "refresh_token" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": expired, "refresh_token": "r1"})
	}, now)

	_, err := client.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)

	session, err := client.CurrentSession(t.Context())
	require.NoError(t, err)
	assert.Nil(t, session)
	exists, _ := afero.Exists(fsys, sessionPath)
	assert.False(t, exists)
}

func TestGoTrueCorruptSessionIgnored(t *testing.T) {
	client, _, fsys := newGoTrue(t, nil, time.Now())
	require.NoError(t, afero.WriteFile(fsys, sessionPath, []byte("{not json"), 0o600))

	session, err := client.CurrentSession(t.Context())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestGoTrueFetchUser(t *testing.T) {
	now := time.Now()
	access := signToken(t, "user-1", "", now.Add(time.Hour))
	client, fake, _ := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		if r.URL.Path == "/auth/v1/user" {
			writeJSON(w, http.StatusOK, map[string]any{
				"id":            "user-1",
				"email":         "ada@example.com",
				"user_metadata": map[string]any{"username": "ada"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": access})
	}, now)

	_, err := client.FetchUser(t.Context())
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = client.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)
	user, err := client.FetchUser(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username())

	req, _ := fake.last()
	assert.Equal(t, http.MethodGet, req.Method)
}

func TestGoTruePasswordReset(t *testing.T) {
	client, fake, _ := newGoTrue(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}, time.Now())

	require.NoError(t, client.SendPasswordUpdate(t.Context(), "ada@example.com", "http://localhost/reset"))
	req, body := fake.last()
	assert.Equal(t, "/auth/v1/recover", req.URL.Path)
	assert.Equal(t, "http://localhost/reset", req.URL.Query().Get("redirect_to"))
	assert.Equal(t, "ada@example.com", body["email"])
}
