// Package config loads the site table the Multi-Site Router is built
// from, either a single site described by environment variables or a
// multi-site JSON document, resolving any secret-reference field
// (aws/vault/gcp/env/file URIs) through the injected secrets.Resolver
// before it reaches a credential bundle.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docdyhr/mcp-wordpress/internal/secrets"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// AuthMethod names which of the four credential schemes a site uses.
// "api-key" is accepted as a synonym for "app-password" for operators
// migrating from plugins that call application passwords API keys.
type AuthMethod string

const (
	AuthAppPassword AuthMethod = "app-password"
	AuthJWT         AuthMethod = "jwt"
	AuthBasic       AuthMethod = "basic"
	AuthOAuth       AuthMethod = "oauth"
)

func normalizeAuthMethod(s string) AuthMethod {
	if s == "api-key" {
		return AuthAppPassword
	}
	return AuthMethod(s)
}

// OAuthConfig carries the pre-resolved OAuth 2.0 client fields for one site.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// SiteConfig is one resolved, ready-to-use site entry: every secret
// reference has already been turned into its plaintext value.
type SiteConfig struct {
	ID      string
	Name    string
	BaseURL string

	AuthMethod AuthMethod
	Username   string
	Secret     string // app-password, basic-auth or JWT login password, resolved
	OAuth      OAuthConfig

	RequestTimeout time.Duration
	RetryAttempts  int
	CacheEnabled   bool
	CacheTTL       time.Duration
	Debug          bool
}

// Config is the fully resolved site table the Router is built from.
type Config struct {
	Sites []SiteConfig
}

// rawSiteConfig mirrors the "config" object nested under each site in
// the multi-site JSON document, and the single-site env var surface,
// before secret refs are resolved.
type rawSiteConfig struct {
	SiteURL    string `json:"site_url"`
	Username   string `json:"username"`
	AuthMethod string `json:"auth_method"`

	AppPassword string `json:"app_password"`

	OAuthClientID     string   `json:"oauth_client_id"`
	OAuthClientSecret string   `json:"oauth_client_secret"`
	OAuthAuthURL      string   `json:"oauth_auth_url"`
	OAuthTokenURL     string   `json:"oauth_token_url"`
	OAuthRedirectURL  string   `json:"oauth_redirect_url"`
	OAuthScopes       []string `json:"oauth_scopes"`

	RequestTimeout int  `json:"request_timeout"`
	RetryAttempts  int  `json:"retry_attempts"`
	CacheEnabled   bool `json:"cache_enabled"`
	CacheTTL       int  `json:"cache_ttl"`
	Debug          bool `json:"debug"`
}

type rawSiteEntry struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Config rawSiteConfig `json:"config"`
}

type rawMultiSiteDoc struct {
	Sites []rawSiteEntry `json:"sites"`
}

// LoadFromEnv builds a single-site Config from environment variables,
// resolving any secret-reference values (e.g. "vault://secret/wp#pass")
// through resolver.
func LoadFromEnv(ctx context.Context, resolver secrets.Resolver) (*Config, error) {
	siteURL := getEnv("WORDPRESS_SITE_URL", "")
	if siteURL == "" {
		return nil, wperrors.New(wperrors.KindConfigInvalid, "WORDPRESS_SITE_URL is required")
	}

	raw := rawSiteConfig{
		SiteURL:           siteURL,
		Username:          getEnv("WORDPRESS_USERNAME", ""),
		AuthMethod:        getEnv("WORDPRESS_AUTH_METHOD", "app-password"),
		AppPassword:       getEnv("WORDPRESS_APP_PASSWORD", ""),
		OAuthClientID:     getEnv("WORDPRESS_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("WORDPRESS_OAUTH_CLIENT_SECRET", ""),
		OAuthAuthURL:      getEnv("WORDPRESS_OAUTH_AUTH_URL", ""),
		OAuthTokenURL:     getEnv("WORDPRESS_OAUTH_TOKEN_URL", ""),
		OAuthRedirectURL:  getEnv("WORDPRESS_OAUTH_REDIRECT_URL", ""),
		RequestTimeout:    getEnvAsInt("REQUEST_TIMEOUT", 30),
		RetryAttempts:     getEnvAsInt("RETRY_ATTEMPTS", 3),
		CacheEnabled:      getEnvAsBool("CACHE_ENABLED", true),
		CacheTTL:          getEnvAsInt("CACHE_TTL", 900),
		Debug:             getEnvAsBool("DEBUG", false),
	}

	site, err := resolveSite(ctx, "default", "default", raw, resolver)
	if err != nil {
		return nil, err
	}
	return &Config{Sites: []SiteConfig{*site}}, nil
}

// LoadMultiSite parses the `{ "sites": [...] }` document and resolves
// every site's secret-reference fields through resolver.
func LoadMultiSite(ctx context.Context, doc []byte, resolver secrets.Resolver) (*Config, error) {
	var parsed rawMultiSiteDoc
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, wperrors.Wrap(wperrors.KindConfigInvalid, "parsing multi-site config document", err)
	}
	if len(parsed.Sites) == 0 {
		return nil, wperrors.New(wperrors.KindConfigInvalid, "multi-site config document has no sites")
	}

	seen := make(map[string]bool, len(parsed.Sites))
	sites := make([]SiteConfig, 0, len(parsed.Sites))
	for _, entry := range parsed.Sites {
		if entry.ID == "" {
			return nil, wperrors.New(wperrors.KindConfigInvalid, "site entry missing required id")
		}
		if seen[entry.ID] {
			return nil, wperrors.New(wperrors.KindConfigInvalid, "duplicate site id "+entry.ID)
		}
		seen[entry.ID] = true

		site, err := resolveSite(ctx, entry.ID, entry.Name, entry.Config, resolver)
		if err != nil {
			return nil, fmt.Errorf("site %q: %w", entry.ID, err)
		}
		sites = append(sites, *site)
	}
	return &Config{Sites: sites}, nil
}

func resolveSite(ctx context.Context, id, name string, raw rawSiteConfig, resolver secrets.Resolver) (*SiteConfig, error) {
	if raw.SiteURL == "" {
		return nil, wperrors.New(wperrors.KindConfigInvalid, "site_url is required")
	}

	method := normalizeAuthMethod(raw.AuthMethod)
	if method == "" {
		method = AuthAppPassword
	}

	site := &SiteConfig{
		ID:             id,
		Name:           name,
		BaseURL:        raw.SiteURL,
		AuthMethod:     method,
		Username:       raw.Username,
		RequestTimeout: time.Duration(raw.RequestTimeout) * time.Second,
		RetryAttempts:  raw.RetryAttempts,
		CacheEnabled:   raw.CacheEnabled,
		CacheTTL:       time.Duration(raw.CacheTTL) * time.Second,
		Debug:          raw.Debug,
	}

	switch method {
	case AuthAppPassword, AuthBasic:
		secret, err := resolver.Resolve(ctx, raw.AppPassword)
		if err != nil {
			return nil, fmt.Errorf("resolving credential secret: %w", err)
		}
		site.Secret = secret

	case AuthJWT:
		secret, err := resolver.Resolve(ctx, raw.AppPassword)
		if err != nil {
			return nil, fmt.Errorf("resolving jwt login password: %w", err)
		}
		site.Secret = secret

	case AuthOAuth:
		clientSecret, err := resolver.Resolve(ctx, raw.OAuthClientSecret)
		if err != nil {
			return nil, fmt.Errorf("resolving oauth client secret: %w", err)
		}
		site.OAuth = OAuthConfig{
			ClientID:     raw.OAuthClientID,
			ClientSecret: clientSecret,
			AuthURL:      raw.OAuthAuthURL,
			TokenURL:     raw.OAuthTokenURL,
			RedirectURL:  raw.OAuthRedirectURL,
			Scopes:       raw.OAuthScopes,
		}

	default:
		return nil, wperrors.New(wperrors.KindConfigInvalid, "unsupported auth_method "+string(method))
	}

	return site, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
