package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the token endpoint and the /user endpoint.
func fakeGitHub(t *testing.T, user GitHubUser, userStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_test",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userStatus)
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GitHubProvider {
	p := NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.userURL = srv.URL + "/user"
	return p
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 42, Login: "octocat", Email: "o@example.com"}, http.StatusOK)

	got, err := newTestProvider(srv).Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "octocat", got.Login)
}

func TestGitHubProvider_Exchange_BadStatus(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 42}, http.StatusForbidden)

	_, err := newTestProvider(srv).Exchange(context.Background(), "code")
	assert.Error(t, err)
}

func TestGitHubProvider_Exchange_ZeroID(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{Login: "ghost"}, http.StatusOK)

	_, err := newTestProvider(srv).Exchange(context.Background(), "code")
	assert.Error(t, err)
}

func TestCheckState(t *testing.T) {
	state := NewState()
	assert.NotEmpty(t, state)
	assert.NotEqual(t, state, NewState())

	assert.NoError(t, CheckState(state, state))
	assert.ErrorIs(t, CheckState(state, "other"), ErrStateMismatch)
	assert.ErrorIs(t, CheckState("", ""), ErrStateMismatch)
}
