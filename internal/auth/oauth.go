package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// tokenIdentifierPrefix namespaces external subjects by issuer, so identities
// from a future second provider can never collide with GitHub's numeric IDs.
const tokenIdentifierPrefix = "github|"

// githubUser is the portion of the GitHub /user API response we care about.
// GitHub returns a much larger object — we only unmarshal the fields we need.
type githubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID — stable, never changes
	Login     string `json:"login"`      // GitHub username, e.g. "sakif"
	Name      string `json:"name"`       // Display name (empty if the user never set one)
	Email     string `json:"email"`      // Primary email (empty if hidden in GitHub settings)
	AvatarURL string `json:"avatar_url"` // Profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow. It is the concrete identity provider behind the auth boundary: the
// callback handler exchanges the code through it and receives a verified
// Identity.
//
// The code-for-token exchange happens server-to-server using the client
// secret; the access token never touches the browser.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must exactly match the "Authorization callback URL" configured
// in the GitHub OAuth App settings, e.g.
// "http://localhost:8080/auth/github/callback".
//
// Scopes requested:
//   - "read:user" — the user's public profile (ID, login, name, avatar)
//   - "user:email" — the user's email addresses
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state is a random string the login handler generates and stores in a
// cookie before redirecting; the callback handler verifies the returned state
// matches, which blocks CSRF-initiated flows.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// verified Identity.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. Use the token to call GitHub's /user API endpoint
//  3. Map the GitHub profile onto our Identity value
//
// The token identifier is "github|<numeric id>" — GitHub's numeric ID is
// stable across username changes, so the same person always maps to the same
// identifier. The display name falls back to the login when the user never
// set a profile name.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return Identity{}, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var gh githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return Identity{}, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if gh.ID == 0 {
		return Identity{}, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	name := gh.Name
	if name == "" {
		name = gh.Login
	}

	return Identity{
		TokenIdentifier: fmt.Sprintf("%s%d", tokenIdentifierPrefix, gh.ID),
		Name:            name,
		Email:           gh.Email,
		PictureURL:      gh.AvatarURL,
	}, nil
}
