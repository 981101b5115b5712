package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/auth"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/repository"
)

// profileQuestionLimit caps the questions embedded in a profile response.
const profileQuestionLimit = 100

// UserService serves profile reads and account updates.
type UserService struct {
	users     repository.UserRepository
	questions repository.QuestionRepository
	accounts  *AuthService
	logger    *slog.Logger
	validate  *inputValidator
}

// NewUserService needs the AuthService for password writes and for
// re-sending verification after an email change.
func NewUserService(
	users repository.UserRepository,
	questions repository.QuestionRepository,
	accounts *AuthService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		questions: questions,
		accounts:  accounts,
		logger:    logger,
		validate:  newInputValidator(),
	}
}

// Profile is the caller's own account plus the questions they posted.
type Profile struct {
	User      *model.User      `json:"user"`
	Questions []model.Question `json:"questions"`
}

// PublicUser is another user's public view plus their questions.
type PublicUser struct {
	User      model.PublicProfile `json:"user"`
	Questions []model.Question    `json:"questions"`
}

// Profile returns the account of userID with its questions, oldest first.
func (s *UserService) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	qs, err := s.questionsBy(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Questions: qs}, nil
}

// GetUser returns the public view of username. Email, verification state,
// preferences and notification settings are left out.
func (s *UserService) GetUser(ctx context.Context, username string) (*PublicUser, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/user: loading %q: %w", username, err)
	}
	qs, err := s.questionsBy(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &PublicUser{User: user.Public(), Questions: qs}, nil
}

func (s *UserService) questionsBy(ctx context.Context, userID string) ([]model.Question, error) {
	qs, err := s.questions.ListQuestions(ctx, model.QuestionFilter{
		UserID: userID,
		Oldest: true,
		Limit:  profileQuestionLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("service/user: listing questions of %s: %w", userID, err)
	}
	return qs, nil
}

// UpdatePasswordInput is the body of PUT /update-password.
type UpdatePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

// UpdatePassword changes the password of a password account after checking
// the current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput) error {
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsFederated() {
		return ErrNoPassword
	}

	if err := s.accounts.passwords.Verify(user.PasswordHash, in.OldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return ErrIncorrectPassword
		}
		return fmt.Errorf("service/user: comparing password: %w", err)
	}
	if in.OldPassword == in.NewPassword {
		return ErrPasswordUnchanged
	}

	if err := s.accounts.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}
	s.logger.Info("password updated", slog.String("userID", user.ID))
	return nil
}

// UpdateRoleInput is the body of PUT /update-role/{username}.
type UpdateRoleInput struct {
	NewRole string `json:"newRole" validate:"required"`
}

// UpdateRole sets the role of username. The caller's role is read from the
// store, not from their token, so a demoted admin loses the right at once.
func (s *UserService) UpdateRole(ctx context.Context, callerID, username string, in UpdateRoleInput) (*model.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	role := model.Role(strings.TrimSpace(in.NewRole))
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	caller, err := s.load(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.CanManageRoles() {
		return nil, ErrRoleChangeForbidden
	}

	target, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/user: loading %q: %w", username, err)
	}
	if err := s.users.SetRole(ctx, target.ID, role); err != nil {
		return nil, mapUserWriteError(err, "setting role")
	}
	target.Role = role

	s.logger.Info("role updated",
		slog.String("by", caller.ID),
		slog.String("userID", target.ID),
		slog.String("role", string(role)),
	)
	return target, nil
}

// UpdateInfoInput is the body of PUT /update-info. Absent fields are left
// unchanged. Role and Password exist only to be rejected.
type UpdateInfoInput struct {
	Username      *string                        `json:"username"   validate:"omitempty,min=3,max=32,username"`
	Email         *string                        `json:"email"      validate:"omitempty,email"`
	Gender        *string                        `json:"gender"     validate:"omitempty,oneof=Male Female Other"`
	ClassGrade    *string                        `json:"classGrade" validate:"omitempty,max=50"`
	SchoolName    *string                        `json:"schoolName" validate:"omitempty,max=100"`
	Age           *int                           `json:"age"        validate:"omitempty,min=1,max=120"`
	Bio           *string                        `json:"bio"        validate:"omitempty,max=150"`
	Avatar        *string                        `json:"avatar"     validate:"omitempty,url"`
	Notifications *model.NotificationPreferences `json:"notificationPreferences"`

	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// UpdateInfo applies profile changes. A new email address resets verified
// and queues a fresh verification email.
func (s *UserService) UpdateInfo(ctx context.Context, userID string, in UpdateInfoInput) (*model.User, error) {
	if in.Role != nil || in.Password != nil {
		return nil, apperror.ValidationFailed("", "Updating role or password is not allowed via this endpoint")
	}
	if in.Username != nil {
		*in.Username = strings.TrimSpace(*in.Username)
		if *in.Username == "" {
			return nil, apperror.ValidationFailed("username", "username is required")
		}
	}
	if in.Email != nil {
		*in.Email = normalizeEmail(*in.Email)
		if *in.Email == "" {
			return nil, apperror.ValidationFailed("email", "Invalid email format")
		}
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	upd := repository.UserUpdate{
		Username:      in.Username,
		ClassGrade:    in.ClassGrade,
		SchoolName:    in.SchoolName,
		Age:           in.Age,
		Bio:           in.Bio,
		Avatar:        in.Avatar,
		Notifications: in.Notifications,
	}
	if in.Gender != nil {
		g := model.Gender(*in.Gender)
		upd.Gender = &g
	}
	emailChanged := in.Email != nil && *in.Email != current.Email
	if emailChanged {
		unverified := false
		upd.Email = in.Email
		upd.Verified = &unverified
	}
	if upd.Empty() {
		return nil, ErrNothingToApply
	}

	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, mapUserWriteError(err, "updating profile")
	}

	if emailChanged {
		s.accounts.sendVerification(user)
	}
	s.logger.Info("profile updated", slog.String("userID", user.ID), slog.Bool("emailChanged", emailChanged))
	return user, nil
}

func (s *UserService) load(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/user: loading %s: %w", userID, err)
	}
	return user, nil
}
