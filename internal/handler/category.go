package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/service"
)

// CategoryHandler serves the category list and per-user preferences.
type CategoryHandler struct {
	categories *service.CategoryService
	logger     *slog.Logger
}

func NewCategoryHandler(categories *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

type categoryResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Category *model.Category `json:"category"`
}

type categoriesResponse struct {
	Success    bool             `json:"success"`
	Categories []model.Category `json:"categories"`
}

type preferencesResponse struct {
	Success             bool             `json:"success"`
	Message             string           `json:"message,omitempty"`
	Preferred           *bool            `json:"preferred,omitempty"`
	PreferredCategories []model.Category `json:"preferredCategories"`
}

// HandleCreate adds a category.
//
// HTTP: POST /add-category
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.categories.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{
		Success:  true,
		Message:  "Category created successfully",
		Category: c,
	})
}

// HTTP: GET /all-categories
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Success: true, Categories: cats})
}

// HandleToggle adds the category to the caller's preferences, or removes it.
//
// HTTP: POST /update-categories (authenticated)
func (h *CategoryHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	var in service.TogglePreferenceInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	change, err := h.categories.TogglePreference(r.Context(), claims.SubjectID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{
		Success:             true,
		Message:             change.Message,
		Preferred:           &change.Preferred,
		PreferredCategories: change.PreferredCategories,
	})
}

// HTTP: GET /categories-preferences (authenticated)
func (h *CategoryHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}

	cats, err := h.categories.Preferences(r.Context(), claims.SubjectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Success: true, PreferredCategories: cats})
}
