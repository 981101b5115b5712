package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/eduqa/internal/auth"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/service"
)

// AuthHandler serves registration, sign-in and the email-driven account
// flows.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → POST /register
//   - HandleFederated      → POST /auth (sign up or sign in with a provider token)
//   - HandleLogin          → POST /login
//   - HandleVerifyEmail    → GET  /verify-email/{token}
//   - HandleForgotPassword → POST /forgot-password
//   - HandleResetPassword  → POST /reset-password/{token}
//   - HandleLogout         → POST /logout
//
// Every flow that sets or clears the session cookie goes through the same
// auth.CookiePolicy, so they all agree on SameSite and Secure.
type AuthHandler struct {
	accounts *service.AuthService
	cookies  auth.CookiePolicy
	logger   *slog.Logger
}

func NewAuthHandler(accounts *service.AuthService, cookies auth.CookiePolicy, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		cookies:  cookies,
		logger:   logger,
	}
}

// UserResponse wraps an account with a confirmation message.
type UserResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// LoginResponse is deliberately minimal; clients fetch /profile for more.
type LoginResponse struct {
	Message string    `json:"message"`
	User    loginUser `json:"user"`
}

type loginUser struct {
	LastLogin *time.Time `json:"lastLogin"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /register
// On success: 201, session cookie set, sanitized user in the body.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookies.Session(res.Token))
	writeJSON(w, http.StatusCreated, UserResponse{
		Message: "Registration successful, please verify your email.",
		User:    res.User,
	})
}

// HandleFederated signs a user up or in with an identity provider token.
//
// HTTP: POST /auth
// 201 when a new account was created, 200 for an existing one.
func (h *AuthHandler) HandleFederated(w http.ResponseWriter, r *http.Request) {
	var in service.FederatedInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Federated(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookies.Session(res.Token))
	if res.Created {
		writeJSON(w, http.StatusCreated, UserResponse{Message: "User created and login successful", User: res.User})
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Login successful", User: res.User})
}

// HandleLogin signs in with email or username plus password.
//
// HTTP: POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookies.Session(res.Token))
	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		User:    loginUser{LastLogin: res.User.LastLogin},
	})
}

// HandleVerifyEmail marks the account verified.
//
// HTTP: GET /verify-email/{token}
// The path token is tried first; the session cookie is the fallback.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.VerifyEmail(r.Context(), chi.URLParam(r, "token"), auth.SessionCookie(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Welcome aboard, " + user.Username + "! Your email has been verified successfully.",
	})
}

// HandleForgotPassword emails a reset link.
//
// HTTP: POST /forgot-password
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ForgotPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset link sent to your email"})
}

// HandleResetPassword sets a new password using the emailed token.
//
// HTTP: POST /reset-password/{token}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), chi.URLParam(r, "token"), in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully"})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /logout (authenticated)
//
// The token itself stays valid until it expires; without the cookie the
// browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}

	http.SetCookie(w, h.cookies.Clear())
	writeJSON(w, http.StatusOK, MessageResponse{Message: h.accounts.Logout(claims)})
}
