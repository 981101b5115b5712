package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/service"
)

// QuestionHandler serves question CRUD and the personalized timeline.
//
// Ownership is checked in the service; the handler only passes the caller's
// id along.
type QuestionHandler struct {
	questions *service.QuestionService
	logger    *slog.Logger
}

func NewQuestionHandler(questions *service.QuestionService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{questions: questions, logger: logger}
}

type questionResponse struct {
	Message  string          `json:"message,omitempty"`
	Question *model.Question `json:"question"`
}

type questionsResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	Questions []model.Question `json:"questions"`
}

// HandleCreate posts a question as the caller.
//
// HTTP: POST /create-question (authenticated)
// REQUEST BODY: {"content": "...", "subject": "<category id>", "tags": ["Algebra"]}
func (h *QuestionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	var in service.QuestionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	q, err := h.questions.Create(r.Context(), claims.SubjectID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, questionResponse{Message: "Question posted successfully.", Question: q})
}

// HandleList searches questions, newest first.
//
// HTTP: GET /questions?search=&subject=&tags=a,b&limit=&offset=
//
// subject matches a category id or name; tags requires every listed tag.
func (h *QuestionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	query := r.URL.Query()
	var tags []string
	if raw := query.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	qs, err := h.questions.List(r.Context(), service.ListInput{
		Search:  query.Get("search"),
		Subject: query.Get("subject"),
		Tags:    tags,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{Success: true, Questions: qs})
}

// HTTP: GET /question/{id}
func (h *QuestionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q, err := h.questions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: q})
}

// HandleUpdate edits a question the caller owns.
//
// HTTP: PUT /update-question/{id} (authenticated)
// Omitting "tags" keeps the current tags; sending [] clears them.
func (h *QuestionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	var in service.QuestionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	q, err := h.questions.Update(r.Context(), claims.SubjectID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Message: "Question updated successfully", Question: q})
}

// HTTP: DELETE /delete-question/{id} (authenticated)
func (h *QuestionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.questions.Delete(r.Context(), claims.SubjectID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Question deleted successfully"})
}

// HandleTimeline lists questions in the caller's preferred categories.
//
// HTTP: GET /timeline?limit=&offset= (authenticated)
func (h *QuestionHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.logger)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	qs, err := h.questions.Timeline(r.Context(), claims.SubjectID, service.TimelineInput{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{
		Success:   true,
		Message:   "Timeline fetched successfully",
		Questions: qs,
	})
}
