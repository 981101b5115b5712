// Package auth issues and verifies session tokens, hashes passwords, verifies
// third-party identity assertions, and gates HTTP routes on a valid session.
//
// TOKEN FLOW:
//  1. A handler in internal/handler calls the service layer to register or log in.
//  2. The service issues a signed token (TokenService.Issue) with a purpose and TTL.
//  3. The handler stores session tokens in the HttpOnly "user_token" cookie.
//  4. RequireAuth reads the cookie, verifies it, and puts the typed Claims in the
//     request context.
//
// Tokens are stateless. Nothing is persisted and there is no revocation list:
// a token stays valid until it expires, and logout only clears the cookie.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/eduqa/internal/model"
)

// Token failures. Verify returns exactly one of these so callers can log the
// reason; clients are only ever told "unauthorized".
var (
	ErrConfig           = errors.New("auth: token service not configured")
	ErrExpiredToken     = errors.New("auth: token expired")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrMalformedToken   = errors.New("auth: malformed token")
)

const issuer = "eduqa"

// Purpose restricts what a token may be used for. A verification link token
// cannot be replayed as a session cookie and vice versa.
type Purpose string

const (
	PurposeSession       Purpose = "session"
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

// Claims is the typed identity carried by a token.
type Claims struct {
	SubjectID string
	Role      model.Role
	Username  string
	Purpose   Purpose
	// Fingerprint binds a reset-password token to the password hash, or a
	// verify-email token to the address, it was issued against.
	Fingerprint string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// tokenClaims is the JWT payload. "sub" holds the user ID.
type tokenClaims struct {
	Role        string  `json:"role,omitempty"`
	Username    string  `json:"username,omitempty"`
	Purpose     Purpose `json:"purpose"`
	Fingerprint string  `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens with a process-wide secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production:
//
//	JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("%w: JWT secret must be at least 16 characters", ErrConfig)
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// WithClock returns a copy of s that reads the current time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *TokenService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Issue signs c with an expiry ttl from now. An empty Purpose means session.
func (s *TokenService) Issue(c Claims, ttl time.Duration) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrConfig
	}
	if c.SubjectID == "" {
		return "", fmt.Errorf("auth: token subject must not be empty")
	}
	if c.Purpose == "" {
		c.Purpose = PurposeSession
	}

	now := s.clock()
	tc := tokenClaims{
		Role:        string(c.Role),
		Username:    c.Username,
		Purpose:     c.Purpose,
		Fingerprint: c.Fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   c.SubjectID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenStr and checks signature, algorithm, issuer and expiry.
//
// Only HS256 is accepted; passing jwt.WithValidMethods blocks the "alg: none"
// and RS/HS confusion tricks.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, ErrConfig
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || tc.Subject == "" {
		return nil, ErrMalformedToken
	}

	c := &Claims{
		SubjectID:   tc.Subject,
		Role:        model.Role(tc.Role),
		Username:    tc.Username,
		Purpose:     tc.Purpose,
		Fingerprint: tc.Fingerprint,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// VerifyPurpose is Verify plus a purpose check. A valid token with the wrong
// purpose is reported as ErrInvalidSignature.
func (s *TokenService) VerifyPurpose(tokenStr string, want Purpose) (*Claims, error) {
	c, err := s.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Purpose != want {
		return nil, fmt.Errorf("%w: purpose %q, want %q", ErrInvalidSignature, c.Purpose, want)
	}
	return c, nil
}

// PasswordFingerprint is a short digest of a bcrypt hash. A reset token
// carries the fingerprint of the hash current at issue time, so it stops
// verifying as soon as the password changes.
func PasswordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// EmailFingerprint binds a verify-email token to the address it was mailed
// to. Changing the email invalidates links sent to the old one.
func EmailFingerprint(email string) string {
	return PasswordFingerprint("email:" + strings.ToLower(email))
}
