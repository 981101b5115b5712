package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// CookieName is the cookie that carries the session token.
const CookieName = "user_token"

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const claimsKey contextKey = "claims"

const unauthorizedBody = `{"error":"unauthorized","code":"unauthorized","message":"valid authentication required"}` + "\n"

// RequireAuth rejects requests without a valid session cookie with 401 and
// otherwise stores the token's Claims in the request context.
//
// The client never learns why a token was rejected. The log line does carry
// the reason (missing, expired, invalid) for operators.
func RequireAuth(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := sessionFromRequest(r, tokens)
			if err != nil {
				logger.Info("request rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", rejectReason(err)),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(unauthorizedBody))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches Claims when a valid session cookie is present and
// never blocks the request.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := sessionFromRequest(r, tokens); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the authenticated caller, or (nil, false) for an
// anonymous request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil && c.SubjectID != ""
}

// SessionCookie returns the raw session token from r, or "" if absent.
func SessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func sessionFromRequest(r *http.Request, tokens *TokenService) (*Claims, error) {
	raw := SessionCookie(r)
	if raw == "" {
		return nil, http.ErrNoCookie
	}
	return tokens.VerifyPurpose(raw, PurposeSession)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, http.ErrNoCookie):
		return "missing"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrConfig):
		return "misconfigured"
	default:
		return "invalid"
	}
}
