package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

const gitHubAPI = "https://api.github.com"

// gitHubUser is the portion of the GitHub /user response we care about.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type gitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"` // empty if hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

// GitHubVerifier accepts a GitHub OAuth access token obtained by the client
// and resolves it to the GitHub account it belongs to. GitHub has no id_token,
// so the /user call is the verification: an invalid or revoked token gets 401.
type GitHubVerifier struct {
	apiURL string
}

// NewGitHubVerifier creates a verifier against api.github.com. apiURL may be
// set to point at a GitHub Enterprise host or a test server.
func NewGitHubVerifier(apiURL string) *GitHubVerifier {
	if apiURL == "" {
		apiURL = gitHubAPI
	}
	return &GitHubVerifier{apiURL: strings.TrimRight(apiURL, "/")}
}

func (v *GitHubVerifier) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty GitHub access token", ErrInvalidAssertion)
	}

	// oauth2.NewClient adds "Authorization: Bearer <token>" to every request.
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: GitHub returned status %d", ErrInvalidAssertion, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var gh gitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if gh.ID == 0 {
		return nil, fmt.Errorf("%w: GitHub returned a user without an id", ErrInvalidAssertion)
	}

	return &Identity{
		Provider: "github",
		Subject:  strconv.FormatInt(gh.ID, 10),
		Email:    gh.Email,
		// GitHub only exposes the primary email if the user made it public,
		// and it has been verified to sign up.
		EmailVerified: gh.Email != "",
		Name:          gh.Login,
		Picture:       gh.AvatarURL,
	}, nil
}
