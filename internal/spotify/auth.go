package spotify

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	spotifyoauth "golang.org/x/oauth2/spotify"
)

// Scopes requested from Spotify; playlist modification is all this
// application ever does on the user's behalf.
var authScopes = []string{"playlist-modify-private", "playlist-modify-public"}

// Authenticator wraps the Spotify authorization-code flow.
type Authenticator struct {
	config *oauth2.Config
}

// NewAuthenticator creates an authenticator for the registered application.
func NewAuthenticator(clientID, clientSecret, redirectURL string) *Authenticator {
	return NewAuthenticatorWithEndpoint(clientID, clientSecret, redirectURL, spotifyoauth.Endpoint)
}

// NewAuthenticatorWithEndpoint creates an authenticator against a custom
// authorization server (for testing).
func NewAuthenticatorWithEndpoint(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint) *Authenticator {
	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       authScopes,
			Endpoint:     endpoint,
		},
	}
}

// AuthURL returns the consent page URL the user should be redirected to.
func (a *Authenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token, nil
}

// Refresh returns a valid token, refreshing the given one if it has expired.
func (a *Authenticator) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := a.config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return fresh, nil
}
