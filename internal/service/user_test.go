package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/model"
)

func newTestUserService(t *testing.T) (*UserService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	logger := discardLogger()
	audit := NewAuditLog(store, logger)
	return NewUserService(store, audit, auth.NewPasswordService(bcrypt.MinCost), logger), store
}

func validUserInput() UserInput {
	return UserInput{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "s3cret-pass",
	}
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate_StaffCreatesAndAudits(t *testing.T) {
	svc, store := newTestUserService(t)
	staff := seedUser(t, store, "staff", true, false)

	user, err := svc.Create(context.Background(), staff, validUserInput())
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "bob", user.Username)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	require.Len(t, store.actions, 1)
	rec := store.actions[0]
	assert.Equal(t, staff.ID, rec.UserID)
	assert.Equal(t, model.EntityUser, rec.ModelName)
	assert.Equal(t, user.ID, rec.ModelID)
	assert.Equal(t, model.ActionCreate, rec.Action)
}

func TestUserCreate_Forbidden(t *testing.T) {
	svc, store := newTestUserService(t)
	plain := seedUser(t, store, "plain", false, false)

	for _, actor := range []*model.User{nil, plain} {
		_, err := svc.Create(context.Background(), actor, validUserInput())
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	}
	assert.Empty(t, store.actions)
	_, err := store.Users().GetByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *UserInput)
		field  string
	}{
		{"missing username", func(in *UserInput) { in.Username = "" }, "username"},
		{"whitespace username", func(in *UserInput) { in.Username = "   " }, "username"},
		{"bad username chars", func(in *UserInput) { in.Username = "bob smith" }, "username"},
		{"username too long", func(in *UserInput) { in.Username = strings.Repeat("u", 151) }, "username"},
		{"bad email", func(in *UserInput) { in.Email = "not-an-email" }, "email"},
		{"missing password", func(in *UserInput) { in.Password = "" }, "password"},
		{"password too long", func(in *UserInput) { in.Password = strings.Repeat("p", 73) }, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestUserService(t)
			staff := seedUser(t, store, "staff", true, false)

			in := validUserInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), staff, in)
			assert.Contains(t, fieldsOf(t, err), tt.field)
			assert.Empty(t, store.actions, "no audit record for a rejected request")
		})
	}
}

func TestUserCreate_UsernameAllowedCharacters(t *testing.T) {
	svc, store := newTestUserService(t)
	staff := seedUser(t, store, "staff", true, false)

	in := validUserInput()
	in.Username = "first.last+tag@host_1-x"
	in.Email = ""

	_, err := svc.Create(context.Background(), staff, in)
	assert.NoError(t, err)
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	svc, store := newTestUserService(t)
	staff := seedUser(t, store, "staff", true, false)
	seedUser(t, store, "bob", false, false)

	_, err := svc.Create(context.Background(), staff, validUserInput())
	fields := fieldsOf(t, err)
	assert.Equal(t, "A user with that username already exists.", fields["username"])
	assert.Empty(t, store.actions)
}

func TestUserCreate_AuditFailureRollsBack(t *testing.T) {
	svc, store := newTestUserService(t)
	staff := seedUser(t, store, "staff", true, false)
	store.appendErr = errors.New("disk full")

	_, err := svc.Create(context.Background(), staff, validUserInput())
	require.Error(t, err)

	_, err = store.Users().GetByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "user must not survive a failed audit write")
}

// =========================================================================
// SUPERUSER / READ TESTS
// =========================================================================

func TestUserCreateSuperuser(t *testing.T) {
	svc, store := newTestUserService(t)

	user, err := svc.CreateSuperuser(context.Background(), validUserInput())
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsSuperuser)
	assert.Empty(t, store.actions)

	_, err = svc.CreateSuperuser(context.Background(), validUserInput())
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUserGetAndList_IncludeSnippetIDs(t *testing.T) {
	svc, store := newTestUserService(t)
	alice := seedUser(t, store, "alice", false, false)
	bob := seedUser(t, store, "bob", false, false)

	snippets := NewSnippetService(store, &fakeHighlighter{}, discardLogger())
	s1, err := snippets.Create(context.Background(), alice, SnippetInput{Code: ptr("1")})
	require.NoError(t, err)
	s2, err := snippets.Create(context.Background(), alice, SnippetInput{Code: ptr("2")})
	require.NoError(t, err)

	profile, err := svc.Get(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.User.Username)
	assert.Equal(t, []string{s1.ID, s2.ID}, profile.SnippetIDs)

	list, err := svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, alice.ID, list[0].User.ID)
	assert.Equal(t, bob.ID, list[1].User.ID)
	assert.Empty(t, list[1].SnippetIDs)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
