package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/service"
)

// AuthHandler manages sign-in and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin          → check username/password, issue JWT
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the signed-in user
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → finish OAuth, issue JWT
//
// github is nil when no OAuth app is configured; the server then leaves the
// GitHub routes unregistered.
type AuthHandler struct {
	auth   *service.AuthService
	tokens *auth.TokenService
	github *auth.GitHubProvider
	secure bool // mark cookies Secure (HTTPS deployments)
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	tokens *auth.TokenService,
	github *auth.GitHubProvider,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		tokens: tokens,
		github: github,
		secure: secureCookies,
		logger: logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// HandleLogin exchanges credentials for a token. The token is returned in
// the body for API clients and set as an HttpOnly cookie for browsers.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"username": "admin", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		fields := map[string]string{}
		if req.Username == "" {
			fields["username"] = "This field is required."
		}
		if req.Password == "" {
			fields["password"] = "This field is required."
		}
		writeError(w, apperror.Invalid(fields))
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, loginResponse{
		Token: res.Token,
		User:  newUserResponse(r, res.User, nil),
	})
}

// HandleLogout clears the JWT cookie. Tokens are stateless, so a copied
// token stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user. Wrapped in auth.RequireAuth, so the
// context always carries a user here.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(r, user, nil))
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
// A random state goes into a short-lived cookie and is checked on callback.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
//  1. check the state against the cookie
//  2. exchange the code for a GitHub profile
//  3. find or create the matching account
//  4. set the JWT cookie and redirect to the API root
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var want string
	if c, err := r.Cookie(auth.StateCookie); err == nil {
		want = c.Value
	}
	if err := auth.CheckState(q.Get("state"), want); err != nil {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.Unauthorized("invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: auth.StateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("GitHub authorization was denied"))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized("authentication failed"))
		return
	}

	res, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
