// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in subpackages (sqlstore).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/eduqa/internal/model"
)

// Uniqueness violations reported by the store. They come from unique
// indexes, never from a read-then-write check, so two concurrent inserts
// cannot both succeed.
var (
	ErrDuplicateEmail    = errors.New("repository: duplicate email")
	ErrDuplicateUsername = errors.New("repository: duplicate username")
	ErrDuplicateCategory = errors.New("repository: duplicate category name")
)

// UserUpdate lists profile fields to change. Nil means "leave as is".
type UserUpdate struct {
	Username      *string
	Email         *string
	Gender        *model.Gender
	ClassGrade    *string
	SchoolName    *string
	Age           *int
	Bio           *string
	Avatar        *string
	Notifications *model.NotificationPreferences
	// Verified is set together with Email when the address changes.
	Verified *bool
}

// Empty reports whether u changes nothing.
func (u UserUpdate) Empty() bool {
	return u == UserUpdate{}
}

type UserRepository interface {
	// CreateUser inserts u, assigning ID and timestamps. Returns
	// ErrDuplicateEmail or ErrDuplicateUsername on a uniqueness violation.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail and GetUserByUsername match case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	UpdateProfile(ctx context.Context, id string, upd UserUpdate) (*model.User, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetVerified(ctx context.Context, id string, verified bool) error
	SetRole(ctx context.Context, id string, role model.Role) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// TogglePreferredCategory adds categoryID to the user's preferences, or
	// removes it if present. Reports whether it is preferred afterwards.
	TogglePreferredCategory(ctx context.Context, userID, categoryID string) (bool, error)
	PreferredCategories(ctx context.Context, userID string) ([]model.Category, error)
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q *model.Question) error
	GetQuestionByID(ctx context.Context, id string) (*model.Question, error)
	ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, error)
	UpdateQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, id string) error
}

// Store is everything the application persists.
type Store interface {
	UserRepository
	CategoryRepository
	QuestionRepository
	Close() error
}
