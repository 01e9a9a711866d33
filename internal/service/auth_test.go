package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/model"
)

type authFixture struct {
	svc       *AuthService
	store     *fakeStore
	tokens    *auth.TokenService
	passwords *auth.PasswordService
}

func newTestAuthService(t *testing.T) authFixture {
	t.Helper()
	store := newFakeStore()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordService(bcrypt.MinCost)
	return authFixture{
		svc:       NewAuthService(store, tokens, passwords, discardLogger()),
		store:     store,
		tokens:    tokens,
		passwords: passwords,
	}
}

func (f authFixture) seedWithPassword(t *testing.T, username, password string) *model.User {
	t.Helper()
	hash, err := f.passwords.Hash(password)
	require.NoError(t, err)
	u := &model.User{Username: username, PasswordHash: hash}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

// =========================================================================
// PASSWORD LOGIN
// =========================================================================

func TestLogin_Success(t *testing.T) {
	f := newTestAuthService(t)
	alice := f.seedWithPassword(t, "alice", "wonderland")

	res, err := f.svc.Login(context.Background(), "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.User.ID)

	subject, err := f.tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, subject)
}

func TestLogin_Failures(t *testing.T) {
	f := newTestAuthService(t)
	f.seedWithPassword(t, "alice", "wonderland")
	require.NoError(t, f.store.Users().Create(context.Background(),
		&model.User{Username: "octo", GitHubID: 1}))

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "wonderland"},
		{"account without password", "octo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, apperror.ErrUnauthorized)
			assert.EqualError(t, err, invalidCredentials)
		})
	}
}

// =========================================================================
// GITHUB SIGN-IN
// =========================================================================

func TestLoginOrRegisterGitHub_FirstLoginCreatesUser(t *testing.T) {
	f := newTestAuthService(t)

	res, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 583231, Login: "octocat", Email: "octo@example.com", AvatarURL: "https://a/1.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "octocat", res.User.Username)
	assert.Equal(t, int64(583231), res.User.GitHubID)
	assert.NotEmpty(t, res.Token)
}

func TestLoginOrRegisterGitHub_SecondLoginUpdatesProfile(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	first, err := f.svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octo", Email: "old@example.com"})
	require.NoError(t, err)
	second, err := f.svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octo", Email: "new@example.com"})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	stored, err := f.store.Users().GetByID(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
}

func TestLoginOrRegisterGitHub_UsernameTaken(t *testing.T) {
	f := newTestAuthService(t)
	f.seedWithPassword(t, "octo", "pw")

	res, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 9, Login: "octo"})
	require.NoError(t, err)
	assert.Equal(t, "octo-9", res.User.Username)
}

func TestLoginOrRegisterGitHub_Nil(t *testing.T) {
	f := newTestAuthService(t)
	_, err := f.svc.LoginOrRegisterGitHub(context.Background(), nil)
	assert.Error(t, err)
}

// =========================================================================
// TOKEN LOOKUP
// =========================================================================

func TestUserForToken(t *testing.T) {
	f := newTestAuthService(t)
	alice := f.seedWithPassword(t, "alice", "pw")
	ctx := context.Background()

	token, err := f.tokens.Generate(alice.ID)
	require.NoError(t, err)
	user, err := f.svc.UserForToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	expired, err := f.tokens.GenerateWithDuration(alice.ID, -time.Second)
	require.NoError(t, err)
	_, err = f.svc.UserForToken(ctx, expired)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	orphan, err := f.tokens.Generate("deleted-user")
	require.NoError(t, err)
	_, err = f.svc.UserForToken(ctx, orphan)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
