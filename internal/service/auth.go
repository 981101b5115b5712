// Package service holds the business rules of the platform.
//
// Handlers decode requests into the *Input types declared here and call a
// service; services talk to the repository interfaces and return either a
// result or an *apperror.AppError describing what went wrong:
//
//	Handler (HTTP) → Service (rules, validation) → repository.Store (DB)
//	               ↘ auth.TokenService / auth.PasswordService / Notifier
//
// Nothing in this package knows about HTTP, cookies or JSON encoding.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/auth"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/repository"
)

// Notifier queues account emails. Delivery is best-effort; an error only
// means the message was not queued.
type Notifier interface {
	SendVerification(to, username, token string) error
	SendPasswordReset(to, username, token string) error
}

// AuthOptions tunes token lifetimes and federated sign-in.
type AuthOptions struct {
	SessionTTL    time.Duration // session cookie token, default 24h
	EmailTokenTTL time.Duration // verify-email and reset-password links, default 1h

	// Verifiers maps a provider name ("google", "github") to the verifier
	// for its assertions. DefaultProvider is used when the request names none.
	Verifiers        map[string]auth.IdentityVerifier
	DefaultProvider  string
	FederatedTimeout time.Duration // default 10s

	// Now is the clock used for lastLogin. Defaults to time.Now.
	Now func() time.Time
}

func (o *AuthOptions) setDefaults() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.EmailTokenTTL <= 0 {
		o.EmailTokenTTL = time.Hour
	}
	if o.FederatedTimeout <= 0 {
		o.FederatedTimeout = 10 * time.Second
	}
	if o.DefaultProvider == "" {
		o.DefaultProvider = "google"
	}
	if o.Verifiers == nil {
		o.Verifiers = map[string]auth.IdentityVerifier{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// AuthService implements registration, sign-in, email verification and
// password reset.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → account records
//   - tokens     *auth.TokenService         → session and link tokens
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - notifier   Notifier                   → verification / reset emails
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	notifier  Notifier
	logger    *slog.Logger
	validate  *inputValidator
	opts      AuthOptions
}

// NewAuthService creates an AuthService. Zero fields in opts take defaults.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	notifier Notifier,
	logger *slog.Logger,
	opts AuthOptions,
) *AuthService {
	opts.setDefaults()
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		notifier:  notifier,
		logger:    logger,
		validate:  newInputValidator(),
		opts:      opts,
	}
}

// SessionTTL is how long an issued session token (and its cookie) lasts.
func (s *AuthService) SessionTTL() time.Duration {
	return s.opts.SessionTTL
}

// AuthResult bundles the account and its new session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
	// Created is true when the call made a new account (HTTP 201).
	Created bool
}

// RegisterInput is the body of POST /register. Role is deliberately absent:
// new accounts are always students.
type RegisterInput struct {
	Username      string                         `json:"username"   validate:"required,min=3,max=32,username"`
	Email         string                         `json:"email"      validate:"required,email"`
	Password      string                         `json:"password"   validate:"required,max=72"`
	Gender        string                         `json:"gender"     validate:"omitempty,oneof=Male Female Other"`
	ClassGrade    string                         `json:"classGrade" validate:"max=50"`
	SchoolName    string                         `json:"schoolName" validate:"max=100"`
	Age           int                            `json:"age"        validate:"omitempty,min=1,max=120"`
	Bio           string                         `json:"bio"        validate:"max=150"`
	Avatar        string                         `json:"avatar"     validate:"omitempty,url"`
	Notifications *model.NotificationPreferences `json:"notificationPreferences"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Bio = strings.TrimSpace(in.Bio)
}

// Register creates a password account, issues a session token and queues
// the verification email.
//
// Duplicate email/username are reported by the store's unique indexes, so
// two concurrent registrations for the same address cannot both succeed.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	notifications := model.DefaultNotifications()
	if in.Notifications != nil {
		notifications = *in.Notifications
	}

	user := &model.User{
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  hash,
		Role:          model.RoleStudent,
		Gender:        model.Gender(in.Gender),
		ClassGrade:    in.ClassGrade,
		SchoolName:    in.SchoolName,
		Age:           in.Age,
		Bio:           in.Bio,
		Avatar:        in.Avatar,
		Notifications: notifications,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, mapUserWriteError(err, "registering user")
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", user.Username))

	token, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.sendVerification(user)

	return &AuthResult{User: user, Token: token, Created: true}, nil
}

// FederatedInput is the body of POST /auth.
type FederatedInput struct {
	IDToken    string `json:"idToken"    validate:"required"`
	Provider   string `json:"provider"`
	Username   string `json:"username"   validate:"required,min=3,max=32,username"`
	Email      string `json:"email"      validate:"required,email"`
	Gender     string `json:"gender"     validate:"omitempty,oneof=Male Female Other"`
	ClassGrade string `json:"classGrade" validate:"max=50"`
	SchoolName string `json:"schoolName" validate:"max=100"`
	Bio        string `json:"bio"        validate:"max=150"`
	Avatar     string `json:"avatar"     validate:"omitempty,url"`
}

// Federated signs in or signs up with a third-party identity assertion.
//
// FLOW:
//  1. Verify the assertion (bounded by FederatedTimeout) → external subject
//     and a provider-verified email, which must equal in.Email.
//  2. Email belongs to a password account → ErrAccountTypeConflict, never a merge.
//  3. Email belongs to a federated account → login (subject must match).
//  4. Otherwise create a federated account and queue the verification email.
func (s *AuthService) Federated(ctx context.Context, in FederatedInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		provider = s.opts.DefaultProvider
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	verifier, ok := s.opts.Verifiers[provider]
	if !ok {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unsupported identity provider %q", provider))
	}

	identity, err := s.verifyAssertion(ctx, verifier, in.IDToken)
	if err != nil {
		return nil, err
	}
	// The account is keyed by email, so only an address the provider vouches
	// for may claim one.
	if identity.Email == "" || !identity.EmailVerified {
		return nil, apperror.ValidationFailed("email", "identity provider did not confirm an email address")
	}
	if !strings.EqualFold(identity.Email, in.Email) {
		return nil, apperror.ValidationFailed("email", "email does not match the identity token")
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return s.federatedLogin(ctx, existing, identity)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s: %w", in.Email, err)
	}

	avatar := in.Avatar
	if avatar == "" {
		avatar = identity.Picture
	}
	user := &model.User{
		Username:           in.Username,
		Email:              in.Email,
		Role:               model.RoleStudent,
		CredentialAccount:  true,
		ExternalIdentityID: identity.ExternalID(),
		Gender:             model.Gender(in.Gender),
		ClassGrade:         in.ClassGrade,
		SchoolName:         in.SchoolName,
		Bio:                in.Bio,
		Avatar:             avatar,
		Notifications:      model.DefaultNotifications(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, mapUserWriteError(err, "creating federated user")
	}

	s.logger.Info("federated user registered",
		slog.String("userID", user.ID),
		slog.String("provider", identity.Provider),
	)

	token, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.sendVerification(user)

	return &AuthResult{User: user, Token: token, Created: true}, nil
}

func (s *AuthService) verifyAssertion(ctx context.Context, v auth.IdentityVerifier, assertion string) (*auth.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FederatedTimeout)
	defer cancel()

	identity, err := v.Verify(ctx, assertion)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAssertion) {
			return nil, ErrInvalidAssertion.WithCause(err)
		}
		return nil, apperror.Dependency("identity provider", err)
	}
	return identity, nil
}

func (s *AuthService) federatedLogin(ctx context.Context, user *model.User, identity *auth.Identity) (*AuthResult, error) {
	if !user.IsFederated() {
		return nil, ErrAccountTypeConflict
	}
	if user.ExternalIdentityID != identity.ExternalID() {
		s.logger.Warn("federated subject mismatch",
			slog.String("userID", user.ID),
			slog.String("provider", identity.Provider),
		)
		return nil, ErrInvalidCredentials
	}
	return s.completeLogin(ctx, user)
}

// LoginInput is the body of POST /login. Either field may carry the login
// name: a valid address in Email is looked up as an email, anything else as
// a username.
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates by email or username.
//
// Federated accounts have no password and are signed in on identity alone;
// this mirrors the account model and is a known weakness of the flow.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" && username == "" {
		return nil, apperror.ValidationFailed("email", "email or username is required")
	}

	var (
		user *model.User
		err  error
	)
	if s.validate.IsEmail(email) {
		user, err = s.users.GetUserByEmail(ctx, normalizeEmail(email))
	} else {
		if username == "" {
			username = email
		}
		user, err = s.users.GetUserByUsername(ctx, username)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/auth: looking up login: %w", err)
	}

	// Federated accounts have no password and are let through without one.
	if !user.IsFederated() {
		if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				s.logger.Info("login rejected", slog.String("userID", user.ID))
				return nil, ErrInvalidCredentials
			}
			return nil, fmt.Errorf("service/auth: comparing password: %w", err)
		}
	}

	return s.completeLogin(ctx, user)
}

func (s *AuthService) completeLogin(ctx context.Context, user *model.User) (*AuthResult, error) {
	now := s.opts.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("service/auth: recording login for %s: %w", user.ID, err)
	}
	user.LastLogin = &now

	token, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// VerifyEmail marks the account verified.
//
// linkToken is the token from the emailed link. If it is absent or unusable
// the caller's session token is tried instead, so a signed-in user can
// verify from the same browser without the link.
func (s *AuthService) VerifyEmail(ctx context.Context, linkToken, sessionToken string) (*model.User, error) {
	if linkToken == "" && sessionToken == "" {
		return nil, ErrMissingToken
	}

	var subject, fingerprint string
	if linkToken != "" {
		if c, err := s.tokens.VerifyPurpose(linkToken, auth.PurposeVerifyEmail); err == nil {
			subject, fingerprint = c.SubjectID, c.Fingerprint
		}
	}
	if subject == "" && sessionToken != "" {
		if c, err := s.tokens.VerifyPurpose(sessionToken, auth.PurposeSession); err == nil {
			subject = c.SubjectID
		}
	}
	if subject == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service/auth: loading %s: %w", subject, err)
	}
	// A link only verifies the address it was mailed to.
	if fingerprint != "" && fingerprint != auth.EmailFingerprint(user.Email) {
		return nil, ErrInvalidToken
	}
	if user.Verified {
		return nil, ErrAlreadyVerified
	}

	if err := s.users.SetVerified(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("service/auth: verifying %s: %w", user.ID, err)
	}
	user.Verified = true
	s.logger.Info("email verified", slog.String("userID", user.ID))
	return user, nil
}

// ForgotPasswordInput is the body of POST /forgot-password.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword queues a reset link for the account with in.Email.
//
// An unknown address is reported as ErrUserNotFound, which reveals whether
// an account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("service/auth: looking up %s: %w", in.Email, err)
	}
	if user.IsFederated() {
		return ErrNoPassword
	}

	token, err := s.tokens.Issue(auth.Claims{
		SubjectID:   user.ID,
		Role:        user.Role,
		Username:    user.Username,
		Purpose:     auth.PurposeResetPassword,
		Fingerprint: auth.PasswordFingerprint(user.PasswordHash),
	}, s.opts.EmailTokenTTL)
	if err != nil {
		return fmt.Errorf("service/auth: issuing reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(user.Email, user.Username, token); err != nil {
		s.logger.Warn("password reset email not queued",
			slog.String("userID", user.ID), slog.String("error", err.Error()))
	}
	return nil
}

// ResetPasswordInput is the body of POST /reset-password/{token}.
type ResetPasswordInput struct {
	NewPassword     string `json:"newPassword"     validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ResetPassword sets a new password using a reset link token.
//
// The token carries a fingerprint of the password hash it was issued
// against, so it stops working once the password changes.
func (s *AuthService) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) error {
	if token == "" {
		return ErrTokenExpiredOrInvalid
	}
	claims, err := s.tokens.VerifyPurpose(token, auth.PurposeResetPassword)
	if err != nil {
		s.logger.Info("reset token rejected", slog.String("error", err.Error()))
		return ErrTokenExpiredOrInvalid
	}

	if err := s.validate.Struct(in); err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}

	user, err := s.users.GetUserByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("service/auth: loading %s: %w", claims.SubjectID, err)
	}
	if user.IsFederated() || claims.Fingerprint != auth.PasswordFingerprint(user.PasswordHash) {
		return ErrTokenExpiredOrInvalid
	}

	if err := s.passwords.Verify(user.PasswordHash, in.NewPassword); err == nil {
		return ErrPasswordUnchanged
	}

	if err := s.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}
	s.logger.Info("password reset", slog.String("userID", user.ID))
	return nil
}

// Logout has no server-side effect; session tokens stay valid until they
// expire. It only builds the farewell message.
func (s *AuthService) Logout(claims *auth.Claims) string {
	return "Successfully logged out, " + claims.Username
}

// setPassword is the single write path for passwords: it always hashes.
func (s *AuthService) setPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := s.hashPassword(plaintext)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("service/auth: storing password for %s: %w", userID, err)
	}
	return nil
}

func (s *AuthService) hashPassword(plaintext string) (string, error) {
	hash, err := s.passwords.Hash(plaintext)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.ValidationFailed("password", "password must be at most 72 bytes")
		}
		return "", fmt.Errorf("service/auth: hashing password: %w", err)
	}
	return hash, nil
}

func (s *AuthService) issueSession(user *model.User) (string, error) {
	token, err := s.tokens.Issue(auth.Claims{
		SubjectID: user.ID,
		Role:      user.Role,
		Username:  user.Username,
		Purpose:   auth.PurposeSession,
	}, s.opts.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing session for %s: %w", user.ID, err)
	}
	return token, nil
}

// sendVerification queues the verification link. Failures are logged and
// never fail the caller.
func (s *AuthService) sendVerification(user *model.User) {
	token, err := s.tokens.Issue(auth.Claims{
		SubjectID:   user.ID,
		Role:        user.Role,
		Username:    user.Username,
		Purpose:     auth.PurposeVerifyEmail,
		Fingerprint: auth.EmailFingerprint(user.Email),
	}, s.opts.EmailTokenTTL)
	if err != nil {
		s.logger.Error("issuing verification token", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return
	}
	if err := s.notifier.SendVerification(user.Email, user.Username, token); err != nil {
		s.logger.Warn("verification email not queued",
			slog.String("userID", user.ID), slog.String("error", err.Error()))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mapUserWriteError turns store uniqueness errors into flow errors.
func mapUserWriteError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrDuplicateEmail
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrDuplicateUsername
	case errors.Is(err, apperror.ErrNotFound):
		return ErrUserNotFound
	}
	return fmt.Errorf("service/auth: %s: %w", op, err)
}
