// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite is the production implementation;
// service tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/snippets/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// SnippetRepository persists snippets. Reads fill in OwnerUsername.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

// UserRepository persists accounts. Create returns an apperror.ErrConflict
// error when the username or GitHub id is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
}

// ActionRepository is the append-only audit store. Records are never updated
// or deleted.
type ActionRepository interface {
	Append(ctx context.Context, action *model.APIAction) error
	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]model.APIAction, error)
	Count(ctx context.Context) (int, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Snippets() SnippetRepository
	Users() UserRepository
	Actions() ActionRepository
	// WithinTx runs fn against a transaction-scoped Store. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
