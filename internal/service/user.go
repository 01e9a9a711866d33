package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/policy"
	"github.com/sakif/snippets/internal/repository"
)

var userCreatePolicy = policy.All(policy.IsAuthenticated, policy.StaffOrReadOnly)

// UserInput is the body of a user-creation request. Password is write-only:
// it is hashed and never echoed back.
type UserInput struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"omitempty,max=254,email"`
	Password string `json:"password" validate:"required"`
	IsStaff  bool   `json:"is_staff"`
}

func (in *UserInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
}

func (in *UserInput) validate() error {
	fields, err := fieldErrors(in)
	if err != nil {
		return err
	}
	if len(in.Password) > MaxPasswordLength {
		if fields == nil {
			fields = make(map[string]string, 1)
		}
		fields["password"] = fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordLength)
	}
	if len(fields) > 0 {
		return apperror.Invalid(fields)
	}
	return nil
}

// UserProfile is a user together with the ids of the snippets they own.
type UserProfile struct {
	User       *model.User
	SnippetIDs []string
}

// UserService manages accounts.
type UserService struct {
	store     repository.Store
	audit     *AuditLog
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates a UserService. Every user created through Create is
// recorded in audit.
func NewUserService(store repository.Store, audit *AuditLog, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{
		store:     store,
		audit:     audit,
		passwords: passwords,
		logger:    logger,
	}
}

// Create registers a new account on behalf of a staff actor.
//
// The insert and the audit record share one transaction: if the user cannot
// be stored there is no record, and if the record cannot be written the user
// is rolled back and the call fails.
func (s *UserService) Create(ctx context.Context, actor *model.User, in UserInput) (*model.User, error) {
	if err := policy.Check(userCreatePolicy, actor, http.MethodPost, nil); err != nil {
		return nil, err
	}

	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		return s.audit.Within(tx).LogAction(ctx, actor, model.EntityUser, user.ID, model.ActionCreate)
	})
	if err != nil {
		return nil, s.createError(user, err)
	}

	s.logger.Info("user created",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
		slog.String("created_by", actor.Username),
	)
	return user, nil
}

// CreateSuperuser registers an account holding both the staff and the
// administrative privilege. It is the bootstrap path used by the CLI, so it
// has no actor and writes no audit record.
func (s *UserService) CreateSuperuser(ctx context.Context, in UserInput) (*model.User, error) {
	in.IsStaff = true
	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	user.IsSuperuser = true

	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, s.createError(user, err)
	}

	s.logger.Info("superuser created",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// newUser validates in and hashes the password.
func (s *UserService) newUser(in UserInput) (*model.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: %w", err)
	}

	return &model.User{
		Username:     in.Username,
		Email:        in.Email,
		IsStaff:      in.IsStaff,
		PasswordHash: hash,
	}, nil
}

// createError reports a taken username as a field error on "username".
func (s *UserService) createError(user *model.User, err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		return apperror.ValidationFailed("username", "A user with that username already exists.")
	}
	s.logger.Error("failed to create user",
		slog.String("username", user.Username),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("creating user: %w", err)
}

// Get returns a user and the ids of their snippets.
func (s *UserService) Get(ctx context.Context, id string) (*UserProfile, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, user)
}

// List returns a page of users, oldest first, each with their snippet ids.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]UserProfile, error) {
	users, err := s.store.Users().List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	profiles := make([]UserProfile, 0, len(users))
	for i := range users {
		p, err := s.profile(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

func (s *UserService) profile(ctx context.Context, user *model.User) (*UserProfile, error) {
	ids, err := s.store.Snippets().ListIDsByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing snippets of user %s: %w", user.ID, err)
	}
	return &UserProfile{User: user, SnippetIDs: ids}, nil
}
