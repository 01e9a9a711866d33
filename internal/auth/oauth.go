package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserURL = "https://api.github.com/user"

// StateCookie holds the OAuth state between the redirect and the callback.
const StateCookie = "oauth_state"

var ErrStateMismatch = errors.New("auth: OAuth state mismatch")

// GitHubUser is the part of GitHub's /user response we keep.
type GitHubUser struct {
	ID        int64  `json:"id"` // stable, never changes
	Login     string `json:"login"`
	Email     string `json:"email"` // empty when hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub authorization code
// flow:
//
//  1. AuthURL sends the browser to GitHub with a random state.
//  2. GitHub redirects back with a short-lived code and the same state.
//  3. Exchange trades the code for an access token server-to-server and
//     fetches the profile with it.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must match the
// "Authorization callback URL" registered for the OAuth app exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
}

// NewState returns a random, URL-safe OAuth state value.
func NewState() string {
	return xid.New().String()
}

// CheckState compares the state echoed by GitHub with the one stored in the
// state cookie.
func CheckState(got, want string) error {
	if got == "" || want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

// AuthURL returns the GitHub authorization URL for state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the GitHub profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}
