package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

// OAuthProvider runs the authorization-code flow for one identity provider.
type OAuthProvider interface {
	AuthURL(ctx context.Context) (string, error)
	Identity(ctx context.Context, state, code string) (domain.ExternalIdentity, error)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID      int64  `json:"id"`
	Email   string `json:"email,omitempty"`
	IsGuest bool   `json:"isGuest,omitempty"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

// AuthHandler serves registration, login and the OAuth redirect flow.
type AuthHandler struct {
	identity    *app.IdentityService
	google      OAuthProvider
	frontendURL string
	logger      *zap.Logger
}

func NewAuthHandler(identity *app.IdentityService, google OAuthProvider, frontendURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity:    identity,
		google:      google,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "register", err, "Server error")
		return
	}
	if _, err := h.identity.Register(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, h.logger, "register", err, "Server error")
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "login", err, "Server error")
		return
	}
	res, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, "login", err, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   res.Token,
		User:    loginUser{ID: res.User.ID, Email: res.User.Email},
	})
}

func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	res, err := h.identity.GuestLogin(r.Context())
	if err != nil {
		writeError(w, h.logger, "guest login", err, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Guest login successful",
		Token:   res.Token,
		User:    loginUser{ID: res.User.ID, IsGuest: true},
	})
}

// GoogleStart redirects to the consent page.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.failRedirect(w, r, "google login not configured", nil)
		return
	}
	target, err := h.google.AuthURL(r.Context())
	if err != nil {
		h.failRedirect(w, r, "google auth url", err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// GoogleCallback finishes the flow and hands the token to the frontend.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.failRedirect(w, r, "google login not configured", nil)
		return
	}
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.failRedirect(w, r, "google denied consent: "+errParam, nil)
		return
	}
	identity, err := h.google.Identity(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		h.failRedirect(w, r, "google identity", err)
		return
	}
	res, err := h.identity.LoginWithExternalIdentity(r.Context(), identity)
	if err != nil {
		h.failRedirect(w, r, "external login", err)
		return
	}
	http.Redirect(w, r, h.frontendURL+"/oauth-redirect?token="+url.QueryEscape(res.Token), http.StatusFound)
}

func (h *AuthHandler) failRedirect(w http.ResponseWriter, r *http.Request, reason string, err error) {
	h.logger.Warn("oauth login failed", zap.String("reason", reason), zap.Error(err))
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusFound)
}
