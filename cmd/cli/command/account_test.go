package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"accounthub/cmd/cli/authentication"
	"accounthub/internal/microservices/http-api/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// fakeAPI is a minimal account server that accepts a single access token.
type fakeAPI struct {
	mu          sync.Mutex
	validAccess string
	revoked     []string
	lastUpdate  map[string]any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/auth/login":
		f.validAccess = "access-1"
		json.NewEncoder(w).Encode(dto.LoginResponse{
			AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer", ExpiresIn: 900,
			User: dto.UserResponse{Username: "alice", Email: "alice@example.com"},
		})
	case "/auth/refresh":
		f.validAccess = "access-2"
		json.NewEncoder(w).Encode(dto.RefreshResponse{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 900})
	case "/auth/revoke":
		var req dto.RevokeTokenRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.revoked = append(f.revoked, req.RefreshToken)
		json.NewEncoder(w).Encode(dto.RevokeTokenResponse{Message: "ok"})
	case "/account/me":
		if r.Header.Get("Authorization") != "Bearer "+f.validAccess {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Invalid or expired token"})
			return
		}
		if r.Method == http.MethodPatch {
			json.NewDecoder(r.Body).Decode(&f.lastUpdate)
		}
		json.NewEncoder(w).Encode(dto.UserResponse{Username: "alice", Email: "alice@example.com"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func run(t *testing.T, api string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", api}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestLogin_StoresTokens(t *testing.T) {
	keyring.MockInit()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, err := run(t, srv.URL, "account", "login", "-u", "alice", "-p", "password123")

	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")
	assert.Contains(t, out, "First login")
	creds, err := authentication.GetTokens()
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	keyring.MockInit()

	_, err := run(t, "http://127.0.0.1:1", "account", "whoami")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestWhoami_RefreshesExpiredAccessToken(t *testing.T) {
	keyring.MockInit()
	api := &fakeAPI{validAccess: "access-2"}
	srv := httptest.NewServer(api)
	defer srv.Close()
	require.NoError(t, authentication.StoreTokens(&authentication.StoredCredentials{
		AccessToken: "stale", RefreshToken: "refresh-1", Username: "alice",
	}))

	out, err := run(t, srv.URL, "account", "whoami")

	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")
	creds, err := authentication.GetTokens()
	require.NoError(t, err)
	assert.Equal(t, "access-2", creds.AccessToken)
	assert.Equal(t, "refresh-2", creds.RefreshToken)
}

func TestUpdate_SendsOnlyGivenFlags(t *testing.T) {
	keyring.MockInit()
	api := &fakeAPI{validAccess: "access-1"}
	srv := httptest.NewServer(api)
	defer srv.Close()
	require.NoError(t, authentication.StoreTokens(&authentication.StoredCredentials{
		AccessToken: "access-1", RefreshToken: "refresh-1", Username: "alice",
	}))

	out, err := run(t, srv.URL, "account", "update", "--email", "")

	require.NoError(t, err)
	assert.Contains(t, out, "Account updated")
	assert.Equal(t, map[string]any{"email": ""}, api.lastUpdate)
}

func TestLogout_RevokesAndForgets(t *testing.T) {
	keyring.MockInit()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()
	require.NoError(t, authentication.StoreTokens(&authentication.StoredCredentials{
		AccessToken: "access-1", RefreshToken: "refresh-1",
	}))

	_, err := run(t, srv.URL, "account", "logout")

	require.NoError(t, err)
	assert.Equal(t, []string{"refresh-1"}, api.revoked)
	_, err = authentication.GetTokens()
	assert.ErrorIs(t, err, authentication.ErrNotLoggedIn)
}
