package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/secrets"
)

func testRegistry(mock secrets.MapResolver) secrets.Resolver {
	return secrets.NewRegistry(map[string]secrets.Resolver{"mock": mock}, zap.NewNop())
}

func TestLoadFromEnvRequiresSiteURL(t *testing.T) {
	_, err := LoadFromEnv(context.Background(), testRegistry(nil))
	require.Error(t, err)
}

func TestLoadFromEnvDefaultsToAppPassword(t *testing.T) {
	t.Setenv("WORDPRESS_SITE_URL", "https://example.com")
	t.Setenv("WORDPRESS_USERNAME", "admin")
	t.Setenv("WORDPRESS_APP_PASSWORD", "xxxx yyyy zzzz")

	cfg, err := LoadFromEnv(context.Background(), testRegistry(nil))
	require.NoError(t, err)
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, AuthAppPassword, cfg.Sites[0].AuthMethod)
	assert.Equal(t, "xxxx yyyy zzzz", cfg.Sites[0].Secret)
	assert.Equal(t, "https://example.com", cfg.Sites[0].BaseURL)
}

func TestLoadFromEnvResolvesSecretReference(t *testing.T) {
	t.Setenv("WORDPRESS_SITE_URL", "https://example.com")
	t.Setenv("WORDPRESS_APP_PASSWORD", "mock://wp-app-password")

	cfg, err := LoadFromEnv(context.Background(), testRegistry(secrets.MapResolver{"wp-app-password": "resolved-secret"}))
	require.NoError(t, err)
	assert.Equal(t, "resolved-secret", cfg.Sites[0].Secret)
}

func TestLoadMultiSiteParsesMultipleSitesWithDistinctAuth(t *testing.T) {
	doc := []byte(`{
		"sites": [
			{"id": "s1", "name": "Site One", "config": {"site_url": "https://a.example.com", "auth_method": "app-password", "username": "admin", "app_password": "secret-a"}},
			{"id": "s2", "name": "Site Two", "config": {"site_url": "https://b.example.com", "auth_method": "oauth", "oauth_client_id": "cid", "oauth_client_secret": "mock://oauth-secret", "oauth_auth_url": "https://b.example.com/oauth/authorize", "oauth_token_url": "https://b.example.com/oauth/token"}}
		]
	}`)

	cfg, err := LoadMultiSite(context.Background(), doc, testRegistry(secrets.MapResolver{"oauth-secret": "resolved-oauth-secret"}))
	require.NoError(t, err)
	require.Len(t, cfg.Sites, 2)

	assert.Equal(t, "s1", cfg.Sites[0].ID)
	assert.Equal(t, AuthAppPassword, cfg.Sites[0].AuthMethod)
	assert.Equal(t, "secret-a", cfg.Sites[0].Secret)

	assert.Equal(t, "s2", cfg.Sites[1].ID)
	assert.Equal(t, AuthOAuth, cfg.Sites[1].AuthMethod)
	assert.Equal(t, "resolved-oauth-secret", cfg.Sites[1].OAuth.ClientSecret)
}

func TestLoadMultiSiteRejectsDuplicateIDs(t *testing.T) {
	doc := []byte(`{
		"sites": [
			{"id": "s1", "config": {"site_url": "https://a.example.com", "app_password": "x"}},
			{"id": "s1", "config": {"site_url": "https://b.example.com", "app_password": "y"}}
		]
	}`)

	_, err := LoadMultiSite(context.Background(), doc, testRegistry(nil))
	require.Error(t, err)
}

func TestLoadMultiSiteRejectsMissingSiteID(t *testing.T) {
	doc := []byte(`{"sites": [{"config": {"site_url": "https://a.example.com", "app_password": "x"}}]}`)

	_, err := LoadMultiSite(context.Background(), doc, testRegistry(nil))
	require.Error(t, err)
}

func TestLoadMultiSiteRejectsEmptyDocument(t *testing.T) {
	_, err := LoadMultiSite(context.Background(), []byte(`{"sites": []}`), testRegistry(nil))
	require.Error(t, err)
}

func TestNormalizeAuthMethodAcceptsAPIKeyAlias(t *testing.T) {
	assert.Equal(t, AuthAppPassword, normalizeAuthMethod("api-key"))
	assert.Equal(t, AuthMethod("jwt"), normalizeAuthMethod("jwt"))
}
