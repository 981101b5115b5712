package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/repository"
)

// QuestionService handles question CRUD and the personalized timeline.
//
// Mutations are ownership-checked: only the user who posted a question may
// update or delete it. Reads are open to anyone.
type QuestionService struct {
	questions  repository.QuestionRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	logger     *slog.Logger
	validate   *inputValidator
}

func NewQuestionService(
	questions repository.QuestionRepository,
	categories repository.CategoryRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *QuestionService {
	return &QuestionService{
		questions:  questions,
		categories: categories,
		users:      users,
		logger:     logger,
		validate:   newInputValidator(),
	}
}

// QuestionInput is the body of POST /create-question and
// PUT /update-question/{id}. Subject is a category id. On update a nil Tags
// keeps the existing tags.
type QuestionInput struct {
	Content string   `json:"content" validate:"required,max=300"`
	Subject string   `json:"subject" validate:"required"`
	Tags    []string `json:"tags"    validate:"max=3,dive,questiontag"`
}

func (in *QuestionInput) normalize() {
	in.Content = strings.TrimSpace(in.Content)
	in.Subject = strings.TrimSpace(in.Subject)
	if in.Tags != nil {
		in.Tags = dedupeTags(in.Tags)
	}
}

func (s *QuestionService) Create(ctx context.Context, userID string, in QuestionInput) (*model.Question, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.checkSubject(ctx, in.Subject); err != nil {
		return nil, err
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	q := &model.Question{
		Content:   in.Content,
		SubjectID: in.Subject,
		UserID:    userID,
		Tags:      tags,
	}
	if err := s.questions.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("service/question: creating: %w", err)
	}

	s.logger.Info("question created", slog.String("questionID", q.ID), slog.String("userID", userID))
	return s.Get(ctx, q.ID)
}

func (s *QuestionService) Get(ctx context.Context, id string) (*model.Question, error) {
	q, err := s.questions.GetQuestionByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("service/question: loading %s: %w", id, err)
	}
	return q, nil
}

// ListInput carries the GET /questions query string.
type ListInput struct {
	Search  string
	Subject string
	Tags    []string
	Limit   int
	Offset  int
}

// List returns questions matching in, newest first.
func (s *QuestionService) List(ctx context.Context, in ListInput) ([]model.Question, error) {
	qs, err := s.questions.ListQuestions(ctx, model.QuestionFilter{
		Search:  strings.TrimSpace(in.Search),
		Subject: strings.TrimSpace(in.Subject),
		Tags:    dedupeTags(in.Tags),
		Limit:   in.Limit,
		Offset:  in.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/question: listing: %w", err)
	}
	return qs, nil
}

// Update replaces content and subject of a question owned by userID, and
// its tags when in.Tags is non-nil.
func (s *QuestionService) Update(ctx context.Context, userID, id string, in QuestionInput) (*model.Question, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	q, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubject(ctx, in.Subject); err != nil {
		return nil, err
	}

	q.Content = in.Content
	q.SubjectID = in.Subject
	if in.Tags != nil {
		q.Tags = in.Tags
	}
	if err := s.questions.UpdateQuestion(ctx, q); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("service/question: updating %s: %w", id, err)
	}

	s.logger.Info("question updated", slog.String("questionID", id), slog.String("userID", userID))
	return s.Get(ctx, id)
}

func (s *QuestionService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.questions.DeleteQuestion(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("service/question: deleting %s: %w", id, err)
	}
	s.logger.Info("question deleted", slog.String("questionID", id), slog.String("userID", userID))
	return nil
}

// TimelineInput pages through the timeline.
type TimelineInput struct {
	Limit  int
	Offset int
}

// Timeline returns questions in the user's preferred categories, newest
// first. A user with no preferences gets ErrNoPreferences rather than an
// empty list.
func (s *QuestionService) Timeline(ctx context.Context, userID string, in TimelineInput) ([]model.Question, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/question: loading user %s: %w", userID, err)
	}
	if len(user.PreferredCategories) == 0 {
		return nil, ErrNoPreferences
	}

	qs, err := s.questions.ListQuestions(ctx, model.QuestionFilter{
		Subjects: user.PreferredCategories,
		Limit:    in.Limit,
		Offset:   in.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/question: timeline of %s: %w", userID, err)
	}
	return qs, nil
}

// owned loads question id and checks userID posted it.
func (s *QuestionService) owned(ctx context.Context, userID, id string) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != userID {
		s.logger.Warn("question ownership check failed",
			slog.String("questionID", id),
			slog.String("userID", userID),
		)
		return nil, ErrNotOwner
	}
	return q, nil
}

func (s *QuestionService) checkSubject(ctx context.Context, categoryID string) error {
	if _, err := s.categories.GetCategoryByID(ctx, categoryID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("subject", "subject must be an existing category id")
		}
		return fmt.Errorf("service/question: checking subject %s: %w", categoryID, err)
	}
	return nil
}

// dedupeTags trims tags and drops empties and repeats, keeping order.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
