package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrInvalidAssertion means the identity provider did not vouch for the
// assertion (bad signature, wrong audience, expired, revoked access token).
var ErrInvalidAssertion = errors.New("auth: identity assertion rejected")

// Identity is what a provider vouches for about the person signing in.
type Identity struct {
	Provider      string
	Subject       string // stable per-provider user id
	Email         string // may be empty
	EmailVerified bool
	Name          string
	Picture       string
}

// ExternalID is the provider-qualified subject stored on federated accounts,
// e.g. "google:1184...".
func (i Identity) ExternalID() string {
	return i.Provider + ":" + i.Subject
}

// IdentityVerifier turns a client-supplied assertion into a verified Identity.
// Implementations must honour ctx cancellation.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (*Identity, error)
}

// OIDCConfig configures an OpenID Connect id_token verifier.
type OIDCConfig struct {
	Provider string // name stored in ExternalID, e.g. "google"
	ClientID string // expected audience
	Issuer   string // e.g. https://accounts.google.com
	JWKSURL  string // e.g. https://www.googleapis.com/oauth2/v3/certs
}

// OIDCVerifier checks id_tokens issued to our client id.
type OIDCVerifier struct {
	provider string
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier fetches signing keys lazily from cfg.JWKSURL and caches
// them. ctx bounds the background key fetches, not individual Verify calls.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) *OIDCVerifier {
	keySet := oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
	return NewOIDCVerifierWithKeySet(cfg, keySet, nil)
}

// NewOIDCVerifierWithKeySet builds a verifier over a fixed key set. now may be
// nil to use the wall clock.
func NewOIDCVerifierWithKeySet(cfg OIDCConfig, keySet oidc.KeySet, now func() time.Time) *OIDCVerifier {
	return &OIDCVerifier{
		provider: cfg.Provider,
		verifier: oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
			ClientID: cfg.ClientID,
			Now:      now,
		}),
	}
}

// Verify checks the id_token signature, issuer, audience and expiry.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("auth: verifying %s id_token: %w", v.provider, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	var extra struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("%w: reading claims: %v", ErrInvalidAssertion, err)
	}

	return &Identity{
		Provider:      v.provider,
		Subject:       idToken.Subject,
		Email:         extra.Email,
		EmailVerified: extra.EmailVerified,
		Name:          extra.Name,
		Picture:       extra.Picture,
	}, nil
}
