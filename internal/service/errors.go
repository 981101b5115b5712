package service

import "github.com/sakif/eduqa/internal/apperror"

// Named flow errors. Each carries a stable code so handlers and clients can
// branch on it; errors.Is matches them by code even after WithCause.
var (
	ErrDuplicateEmail      = apperror.New(apperror.ErrConflict, "duplicate_email", "User already exists")
	ErrDuplicateUsername   = apperror.New(apperror.ErrConflict, "duplicate_username", "Username not available")
	ErrDuplicateCategory   = apperror.New(apperror.ErrConflict, "duplicate_category", "Category already exists")
	ErrAccountTypeConflict = apperror.New(apperror.ErrConflict, "account_type_conflict",
		"An account with this email already exists and signs in with a password")
	ErrAlreadyVerified = apperror.New(apperror.ErrConflict, "already_verified", "Your email is already verified")

	ErrUserNotFound     = apperror.New(apperror.ErrNotFound, "user_not_found", "User not found")
	ErrCategoryNotFound = apperror.New(apperror.ErrNotFound, "category_not_found", "Category not found")
	ErrQuestionNotFound = apperror.New(apperror.ErrNotFound, "question_not_found", "Question not found")

	ErrInvalidCredentials = apperror.New(apperror.ErrUnauthorized, "invalid_credentials", "Invalid credentials")
	ErrInvalidAssertion   = apperror.New(apperror.ErrUnauthorized, "invalid_identity_token", "Identity token could not be verified")

	ErrMissingToken          = apperror.New(apperror.ErrValidation, "missing_token", "We couldn't find your token")
	ErrInvalidToken          = apperror.New(apperror.ErrValidation, "invalid_token", "Verification token is invalid or expired")
	ErrTokenExpiredOrInvalid = apperror.New(apperror.ErrValidation, "token_expired_or_invalid", "Reset link is invalid or has expired")
	ErrPasswordMismatch      = apperror.New(apperror.ErrValidation, "password_mismatch", "Passwords do not match")
	ErrPasswordUnchanged     = apperror.New(apperror.ErrValidation, "password_unchanged", "New password cannot be the same as the old one")
	ErrIncorrectPassword     = apperror.New(apperror.ErrValidation, "incorrect_password", "Old password does not match")
	ErrNoPassword            = apperror.New(apperror.ErrValidation, "no_password",
		"This account signs in with an identity provider and has no password")
	ErrNoPreferences  = apperror.New(apperror.ErrValidation, "no_preferences", "No preferred categories set")
	ErrInvalidRole    = apperror.New(apperror.ErrValidation, "invalid_role", "Invalid role provided")
	ErrNothingToApply = apperror.New(apperror.ErrValidation, "no_fields", "No valid fields to update")

	ErrNotOwner            = apperror.Forbidden("You are not authorized to modify this question")
	ErrRoleChangeForbidden = apperror.New(apperror.ErrForbidden, "role_change_forbidden", "You don't have permission to update roles")
)
