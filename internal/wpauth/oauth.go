package wpauth

import (
	"context"

	"golang.org/x/oauth2"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.bundle.OAuthClientID,
		ClientSecret: m.bundle.OAuthClientSecret,
		RedirectURL:  m.bundle.OAuthRedirectURL,
		Scopes:       m.bundle.OAuthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.bundle.OAuthAuthURL,
			TokenURL: m.bundle.OAuthTokenURL,
		},
	}
}

// startOAuth generates a fresh PKCE pair and anti-CSRF state token,
// stashes them against the manager, and returns the authorization URL
// the caller must visit in their own browser.
func (m *Manager) startOAuth() (string, error) {
	pair, err := newPKCEPair()
	if err != nil {
		return "", wperrors.Wrap(wperrors.KindTransportError, "generating pkce pair", err)
	}
	state, err := newOAuthStateToken()
	if err != nil {
		return "", wperrors.Wrap(wperrors.KindTransportError, "generating oauth state token", err)
	}

	m.pendingPKCE = pair
	m.pendingState = state

	conf := m.oauthConfig()
	authURL := conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(pair.verifier),
		oauth2.AccessTypeOffline,
	)
	return authURL, nil
}

// completeOAuth exchanges an authorization code returned to the
// caller's redirect URI for an access/refresh token pair.
func (m *Manager) completeOAuth(ctx context.Context, code, state string) error {
	if state == "" || state != m.pendingState {
		return wperrors.New(wperrors.KindAuthRefreshFailed, "oauth state token mismatch, possible CSRF")
	}

	conf := m.oauthConfig()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(m.pendingPKCE.verifier))
	if err != nil {
		return wperrors.Wrap(wperrors.KindAuthRefreshFailed, "oauth code exchange failed", err)
	}

	m.bundle.oauthAccessToken = token.AccessToken
	m.bundle.oauthRefreshToken = token.RefreshToken
	m.bundle.oauthExpiresAt = token.Expiry
	m.pendingPKCE = pkcePair{}
	m.pendingState = ""
	return nil
}

// oauthRefresh exchanges the stored refresh token for a new access
// token, failing the site's credential if WordPress has revoked it.
func (m *Manager) oauthRefresh(ctx context.Context) error {
	if m.bundle.oauthRefreshToken == "" {
		return wperrors.New(wperrors.KindAuthRefreshFailed, "no refresh token available, re-authorization required")
	}

	conf := m.oauthConfig()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: m.bundle.oauthRefreshToken})
	token, err := src.Token()
	if err != nil {
		return wperrors.Wrap(wperrors.KindAuthRefreshFailed, "oauth refresh failed", err)
	}

	m.bundle.oauthAccessToken = token.AccessToken
	if token.RefreshToken != "" {
		m.bundle.oauthRefreshToken = token.RefreshToken
	}
	m.bundle.oauthExpiresAt = token.Expiry
	return nil
}
