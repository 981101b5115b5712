package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/service"
)

// UserHandler serves profiles and account updates.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// ProfileResponse is an account plus the questions it posted.
type ProfileResponse struct {
	Message   string           `json:"message"`
	User      any              `json:"user"`
	Questions []model.Question `json:"questions"`
}

// RoleResponse reports a role change.
type RoleResponse struct {
	Message string   `json:"message"`
	User    roleUser `json:"user"`
}

type roleUser struct {
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// HandleProfile returns the caller's own account and questions.
//
// HTTP: GET /profile (authenticated)
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.users.Profile(r.Context(), claims.SubjectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Message:   "User profile and questions fetched successfully",
		User:      p.User,
		Questions: p.Questions,
	})
}

// HandleGetUser returns another user's public profile.
//
// HTTP: GET /get-user/{username}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.GetUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Message:   "User and questions fetched successfully",
		User:      p.User,
		Questions: p.Questions,
	})
}

// HandleUpdatePassword changes the caller's password.
//
// HTTP: PUT /update-password (authenticated)
func (h *UserHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	var in service.UpdatePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.users.UpdatePassword(r.Context(), claims.SubjectID, in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password successfully updated"})
}

// HandleUpdateRole sets another user's role. Only admins may.
//
// HTTP: PUT /update-role/{username} (authenticated)
func (h *UserHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	var in service.UpdateRoleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateRole(r.Context(), claims.SubjectID, chi.URLParam(r, "username"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleResponse{
		Message: "User role updated successfully",
		User:    roleUser{Username: user.Username, Role: user.Role},
	})
}

// HandleUpdateInfo applies profile changes to the caller's account.
//
// HTTP: PUT /update-info (authenticated)
func (h *UserHandler) HandleUpdateInfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	var in service.UpdateInfoInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateInfo(r.Context(), claims.SubjectID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "User info updated successfully", User: user})
}
