// Package wpauth implements the Auth Manager: a per-site finite-state
// machine that turns one of four credential schemes (Application
// Password, Basic, JWT, OAuth 2.0) into outbound request headers, and
// knows how to refresh itself when a scheme is mutable.
package wpauth

import "time"

// Scheme identifies which of the four credential kinds a bundle carries.
type Scheme string

const (
	SchemeAppPassword Scheme = "app_password"
	SchemeBasic       Scheme = "basic"
	SchemeJWT         Scheme = "jwt"
	SchemeOAuth       Scheme = "oauth"
)

// Bundle is a tagged union over the four credential schemes. Only the
// fields matching Scheme are populated; the rest are zero.
type Bundle struct {
	Scheme Scheme

	// SchemeAppPassword / SchemeBasic
	Username string
	Secret   string // application password or basic-auth password

	// SchemeJWT
	JWTLoginUsername string
	JWTLoginPassword string
	jwtAccessToken   string
	jwtExpiresAt     time.Time

	// SchemeOAuth
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthRedirectURL  string
	OAuthScopes       []string
	oauthAccessToken  string
	oauthRefreshToken string
	oauthExpiresAt    time.Time
}

// Mutable reports whether the scheme carries state that can expire and
// be refreshed in place (JWT, OAuth), as opposed to a static credential
// that never changes (AppPassword, Basic).
func (b Scheme) Mutable() bool {
	return b == SchemeJWT || b == SchemeOAuth
}

// NewAppPassword builds a static Application Password bundle.
func NewAppPassword(username, appPassword string) *Bundle {
	return &Bundle{Scheme: SchemeAppPassword, Username: username, Secret: appPassword}
}

// NewBasic builds a static HTTP Basic credential bundle.
func NewBasic(username, password string) *Bundle {
	return &Bundle{Scheme: SchemeBasic, Username: username, Secret: password}
}

// NewJWTLogin builds a JWT bundle that authenticates via the WordPress
// JWT-auth plugin's username/password login endpoint.
func NewJWTLogin(username, password string) *Bundle {
	return &Bundle{Scheme: SchemeJWT, JWTLoginUsername: username, JWTLoginPassword: password}
}

// NewOAuth builds an OAuth 2.0 authorization-code-with-PKCE bundle.
func NewOAuth(clientID, clientSecret, authURL, tokenURL, redirectURL string, scopes []string) *Bundle {
	return &Bundle{
		Scheme:            SchemeOAuth,
		OAuthClientID:     clientID,
		OAuthClientSecret: clientSecret,
		OAuthAuthURL:      authURL,
		OAuthTokenURL:     tokenURL,
		OAuthRedirectURL:  redirectURL,
		OAuthScopes:       scopes,
	}
}
