package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/highlight"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements repository.Store in memory. WithinTx snapshots every
// table and restores the snapshot when fn fails, which is enough to observe
// commit/rollback behaviour from the service tests.

type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	snippets map[string]model.Snippet
	users    map[string]model.User
	order    []string // creation order of snippet and user ids
	actions  []model.APIAction

	// appendErr, when set, makes every audit Append fail.
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snippets: make(map[string]model.Snippet),
		users:    make(map[string]model.User),
	}
}

func (f *fakeStore) Snippets() repository.SnippetRepository { return fakeSnippets{f} }
func (f *fakeStore) Users() repository.UserRepository       { return fakeUsers{f} }
func (f *fakeStore) Actions() repository.ActionRepository   { return fakeActions{f} }

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx repository.Store) error) error {
	f.mu.Lock()
	snippets := maps.Clone(f.snippets)
	users := maps.Clone(f.users)
	order := slices.Clone(f.order)
	actions := slices.Clone(f.actions)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.snippets, f.users, f.order, f.actions = snippets, users, order, actions
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func page[T any](items []T, opts repository.ListOptions) []T {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

type fakeSnippets struct{ f *fakeStore }

func (r fakeSnippets) Create(_ context.Context, s *model.Snippet) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.users[s.OwnerID]; !ok {
		return fmt.Errorf("fake: owner %s does not exist", s.OwnerID)
	}
	s.ID = r.f.id("snippet")
	r.f.snippets[s.ID] = *s
	r.f.order = append(r.f.order, s.ID)
	return nil
}

func (r fakeSnippets) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	s, ok := r.f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	s.OwnerUsername = r.f.users[s.OwnerID].Username
	return &s, nil
}

func (r fakeSnippets) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []model.Snippet
	for _, id := range r.f.order {
		if s, ok := r.f.snippets[id]; ok {
			s.OwnerUsername = r.f.users[s.OwnerID].Username
			out = append(out, s)
		}
	}
	return page(out, opts), nil
}

func (r fakeSnippets) ListIDsByOwner(_ context.Context, ownerID string) ([]string, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	ids := []string{}
	for _, id := range r.f.order {
		if s, ok := r.f.snippets[id]; ok && s.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r fakeSnippets) Update(_ context.Context, s *model.Snippet) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.snippets[s.ID]; !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	r.f.snippets[s.ID] = *s
	return nil
}

func (r fakeSnippets) Delete(_ context.Context, id string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(r.f.snippets, id)
	return nil
}

type fakeUsers struct{ f *fakeStore }

func (r fakeUsers) Create(_ context.Context, u *model.User) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.users {
		if existing.Username == u.Username || (u.GitHubID != 0 && existing.GitHubID == u.GitHubID) {
			return apperror.Conflict("user", u.Username)
		}
	}
	u.ID = r.f.id("user")
	r.f.users[u.ID] = *u
	r.f.order = append(r.f.order, u.ID)
	return nil
}

func (r fakeUsers) find(match func(model.User) bool, label string) (*model.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, u := range r.f.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", label)
}

func (r fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id }, id)
}

func (r fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username }, username)
}

func (r fakeUsers) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.GitHubID == githubID }, fmt.Sprint(githubID))
}

func (r fakeUsers) List(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []model.User
	for _, id := range r.f.order {
		if u, ok := r.f.users[id]; ok {
			out = append(out, u)
		}
	}
	return page(out, opts), nil
}

func (r fakeUsers) Update(_ context.Context, u *model.User) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	r.f.users[u.ID] = *u
	return nil
}

type fakeActions struct{ f *fakeStore }

func (r fakeActions) Append(_ context.Context, a *model.APIAction) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.appendErr != nil {
		return r.f.appendErr
	}
	a.ID = r.f.id("action")
	r.f.actions = append(r.f.actions, *a)
	return nil
}

func (r fakeActions) List(_ context.Context, opts repository.ListOptions) ([]model.APIAction, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	out := slices.Clone(r.f.actions)
	slices.Reverse(out)
	return page(out, opts), nil
}

func (r fakeActions) Count(_ context.Context) (int, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return len(r.f.actions), nil
}

// =========================================================================
// FAKE HIGHLIGHTER
// =========================================================================

// fakeHighlighter renders a deterministic string from its inputs so tests can
// check that the stored document tracks every field.
type fakeHighlighter struct {
	calls int
	err   error
}

func (h *fakeHighlighter) Highlight(code, language, style string, opts highlight.Options) (string, error) {
	h.calls++
	if h.err != nil {
		return "", h.err
	}
	return fmt.Sprintf("<html>%s|%s|%s|%t|%s</html>", code, language, style, opts.LineNumbers, opts.Title), nil
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedUser stores a user directly, bypassing UserService.
func seedUser(t *testing.T, store *fakeStore, username string, staff, superuser bool) *model.User {
	t.Helper()
	u := &model.User{Username: username, IsStaff: staff, IsSuperuser: superuser}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }
