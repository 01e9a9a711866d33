package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

const invalidCredentials = "Unable to log in with provided credentials."

// AuthService sits between the auth handlers and the auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Two ways to sign in produce the same result, a user plus a signed JWT:
//   - username + password (accounts created by staff or the CLI)
//   - GitHub OAuth (accounts created on first sign-in)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     store.Users(),
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Login checks a username and password.
//
// Every failure, including an unknown username or a GitHub-only account with
// no password, returns the same Unauthorized error so callers cannot tell
// which part was wrong.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", slog.String("username", username))
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// First sign-in creates an account named after the GitHub login; later
// sign-ins refresh email and avatar. If the login is already taken by a
// password account, the GitHub id is appended to keep usernames unique.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	switch {
	case err == nil:
		user.Email = ghUser.Email
		user.AvatarURL = ghUser.AvatarURL
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: updating user (githubID=%d): %w", ghUser.ID, err)
		}

	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.registerGitHub(ctx, ghUser)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("service/auth: looking up githubID=%d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

func (s *AuthService) registerGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, error) {
	candidates := []string{ghUser.Login, fmt.Sprintf("%s-%d", ghUser.Login, ghUser.ID)}

	for _, username := range candidates {
		user := &model.User{
			Username:  username,
			Email:     ghUser.Email,
			GitHubID:  ghUser.ID,
			AvatarURL: ghUser.AvatarURL,
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating user (githubID=%d): %w", ghUser.ID, err)
		}
	}

	return nil, apperror.ValidationFailed("username",
		fmt.Sprintf("no free username for GitHub login %q", ghUser.Login))
}

// UserForToken validates a JWT and loads the user it names. The auth
// middleware calls this on every request that carries a token.
func (s *AuthService) UserForToken(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized(err.Error())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("auth: token subject no longer exists")
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
