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

// CategoryService manages categories and users' preferred categories.
type CategoryService struct {
	categories repository.CategoryRepository
	users      repository.UserRepository
	logger     *slog.Logger
	validate   *inputValidator
}

func NewCategoryService(categories repository.CategoryRepository, users repository.UserRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		users:      users,
		logger:     logger,
		validate:   newInputValidator(),
	}
}

type CreateCategoryInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (s *CategoryService) Create(ctx context.Context, in CreateCategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	c := &model.Category{Name: in.Name}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateCategory) {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("service/category: creating %q: %w", in.Name, err)
	}
	s.logger.Info("category created", slog.String("categoryID", c.ID), slog.String("name", c.Name))
	return c, nil
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/category: listing: %w", err)
	}
	return cats, nil
}

type TogglePreferenceInput struct {
	CategoryID string `json:"categoryId" validate:"required"`
}

// PreferenceChange reports the outcome of a toggle.
type PreferenceChange struct {
	Message             string           `json:"message"`
	Preferred           bool             `json:"preferred"`
	PreferredCategories []model.Category `json:"preferredCategories"`
}

// TogglePreference adds the category to the user's preferences, or removes
// it if already there.
func (s *CategoryService) TogglePreference(ctx context.Context, userID string, in TogglePreferenceInput) (*PreferenceChange, error) {
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/category: loading user %s: %w", userID, err)
	}
	cat, err := s.categories.GetCategoryByID(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("service/category: loading %s: %w", in.CategoryID, err)
	}

	preferred, err := s.users.TogglePreferredCategory(ctx, userID, cat.ID)
	if err != nil {
		return nil, fmt.Errorf("service/category: toggling %s for %s: %w", cat.ID, userID, err)
	}
	cats, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg := cat.Name + " removed from preferred categories."
	if preferred {
		msg = cat.Name + " added to preferred categories."
	}
	return &PreferenceChange{Message: msg, Preferred: preferred, PreferredCategories: cats}, nil
}

// Preferences lists the user's preferred categories with names.
func (s *CategoryService) Preferences(ctx context.Context, userID string) ([]model.Category, error) {
	cats, err := s.users.PreferredCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/category: preferences of %s: %w", userID, err)
	}
	return cats, nil
}
