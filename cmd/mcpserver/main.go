// Command mcpserver is the stdio MCP entrypoint: it loads the
// configured WordPress site table, builds the Multi-Site Router over
// it, exposes one MCP tool per operation in the vocabulary on stdio,
// and runs a side-channel HTTP server for Prometheus metrics and
// per-site health checks.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docdyhr/mcp-wordpress/internal/breaker"
	"github.com/docdyhr/mcp-wordpress/internal/clock"
	"github.com/docdyhr/mcp-wordpress/internal/config"
	"github.com/docdyhr/mcp-wordpress/internal/invalidation"
	"github.com/docdyhr/mcp-wordpress/internal/operations"
	"github.com/docdyhr/mcp-wordpress/internal/ratelimit"
	"github.com/docdyhr/mcp-wordpress/internal/router"
	"github.com/docdyhr/mcp-wordpress/internal/secrets"
	"github.com/docdyhr/mcp-wordpress/internal/wpauth"
	"github.com/docdyhr/mcp-wordpress/internal/wpcache"
	"github.com/docdyhr/mcp-wordpress/internal/wpclient"
	wphttp "github.com/docdyhr/mcp-wordpress/pkg/http"
	"github.com/docdyhr/mcp-wordpress/pkg/observability"
	"github.com/docdyhr/mcp-wordpress/pkg/shutdown"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting mcp-wordpress", zap.String("version", "0.1.0"))

	ctx := context.Background()

	secretRegistry := buildSecretRegistry(ctx, logger)

	cfg, err := loadSiteConfig(ctx, secretRegistry)
	if err != nil {
		logger.Fatal("failed to load site configuration", zap.Error(err))
	}
	logger.Info("site configuration loaded", zap.Int("site_count", len(cfg.Sites)))

	clk := clock.New()

	httpClientCfg := wphttp.SingleSiteClientConfig()
	if len(cfg.Sites) > 1 {
		httpClientCfg = wphttp.MultiSiteClientConfig()
	}
	requestTimeout := time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second
	httpClient := wphttp.NewHTTPClient(httpClientCfg, requestTimeout)

	uploadTimeout := time.Duration(getEnvAsInt("UPLOAD_TIMEOUT_SECONDS", 120)) * time.Second
	uploadClient := wphttp.NewHTTPClient(httpClientCfg, uploadTimeout)

	limiter := ratelimit.New(ratelimit.DefaultSiteConfig(), ratelimit.DefaultProcessConfig())
	breakers := breaker.NewRegistry(breaker.DefaultConfig(), clk)
	client := wpclient.New(httpClient, limiter, breakers, clk, logger, wpclient.WithUploadClient(uploadClient))

	store := wpcache.NewStore(getEnvAsInt("CACHE_MAX_BYTES", 64*1024*1024), clk)
	cache := wpcache.NewWrapper(store, clk)
	invalidator := invalidation.NewEngine(store, logger)

	rtr := router.New(client, cache, invalidator, clk, logger)

	siteProbes := make(map[string]observability.SiteProbe, len(cfg.Sites))
	for _, site := range cfg.Sites {
		authManager, err := buildAuthManager(site, httpClient, clk, logger)
		if err != nil {
			logger.Fatal("failed to build auth manager for site",
				zap.String("site_id", site.ID), zap.Error(err),
			)
		}
		rtr.AddSite(site.ID, site.BaseURL, authManager)
		siteProbes[site.ID] = func(ctx context.Context, siteID string) error {
			_, err := rtr.Execute(ctx, siteID, "users.me", nil)
			return err
		}
		logger.Info("site registered",
			zap.String("site_id", site.ID),
			zap.String("base_url", site.BaseURL),
			zap.String("auth_method", string(site.AuthMethod)),
		)
	}

	healthChecker := observability.NewHealthChecker(siteProbes)
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsServer := observability.StartMetricsServer(metricsPort, healthChecker)
	logger.Info("metrics and health server listening", zap.String("port", metricsPort))

	mcpServer := server.NewMCPServer("mcp-wordpress", "0.1.0", server.WithToolCapabilities(true))
	registerTools(mcpServer, rtr, logger)

	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT_MINUTES", 1)
	shutdownMgr := shutdown.NewManager(logger, shutdownTimeout)
	shutdownMgr.RegisterHTTPServer("metrics-server", metricsServer)

	go func() {
		logger.Info("serving MCP tools over stdio")
		if err := server.ServeStdio(mcpServer); err != nil {
			logger.Error("stdio MCP server exited with error", zap.Error(err))
		}
	}()

	shutdownMgr.WaitForShutdown()
}

// registerTools exposes one MCP tool per vocabulary entry, translating
// each operation's declared params into mcp-go tool schema fields and
// dispatching tool calls through the Router.
func registerTools(s *server.MCPServer, rtr *router.Router, logger *zap.Logger) {
	for _, op := range operations.All() {
		tool := buildTool(op)
		opName := op.Name
		s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleToolCall(ctx, rtr, logger, opName, request)
		})
	}
	logger.Info("registered MCP tools", zap.Int("count", len(operations.All())))
}

func buildTool(op operations.Operation) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(fmt.Sprintf("%s %s (WordPress REST %s %s)", op.Name, op.Method, op.Method, op.PathTemplate)),
	}
	for _, p := range op.Params {
		paramOpts := []mcp.PropertyOption{mcp.Description(fmt.Sprintf("%s parameter (%s)", p.Name, p.Kind))}
		if p.Required {
			paramOpts = append(paramOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, paramOpts...))
	}
	opts = append(opts, mcp.WithString("site_id", mcp.Description("id of the configured site to run against"), mcp.Required()))
	return mcp.NewTool(op.Name, opts...)
}

func handleToolCall(ctx context.Context, rtr *router.Router, logger *zap.Logger, opName string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("tool arguments must be an object"), nil
	}

	siteID, _ := args["site_id"].(string)
	if siteID == "" {
		return mcp.NewToolResultError("site_id is required"), nil
	}
	delete(args, "site_id")

	result, err := rtr.Execute(ctx, siteID, opName, args)
	if err != nil {
		logger.Warn("tool call failed",
			zap.String("op", opName), zap.String("site_id", siteID), zap.Error(err),
		)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(result.Body)), nil
}

// buildAuthManager constructs the credential Bundle matching the
// site's configured auth method and wraps it in an Auth Manager.
func buildAuthManager(site config.SiteConfig, httpClient *http.Client, clk clock.Clock, logger *zap.Logger) (*wpauth.Manager, error) {
	var bundle *wpauth.Bundle

	switch site.AuthMethod {
	case config.AuthAppPassword:
		bundle = wpauth.NewAppPassword(site.Username, site.Secret)
	case config.AuthBasic:
		bundle = wpauth.NewBasic(site.Username, site.Secret)
	case config.AuthJWT:
		bundle = wpauth.NewJWTLogin(site.Username, site.Secret)
	case config.AuthOAuth:
		bundle = wpauth.NewOAuth(
			site.OAuth.ClientID, site.OAuth.ClientSecret,
			site.OAuth.AuthURL, site.OAuth.TokenURL, site.OAuth.RedirectURL,
			site.OAuth.Scopes,
		)
	default:
		return nil, fmt.Errorf("site %s: unsupported auth method %q", site.ID, site.AuthMethod)
	}

	return wpauth.NewManager(site.ID, site.BaseURL, bundle, httpClient, clk, logger), nil
}

func initLogger() *zap.Logger {
	env := getEnv("ENVIRONMENT", "development")

	if env == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		logger, _ := zapCfg.Build()
		return logger
	}

	logger, _ := zap.NewDevelopment()
	return logger
}

// loadSiteConfig loads the site table from WORDPRESS_SITES_CONFIG (a
// path to a multi-site JSON document) if set, falling back to the
// single-site environment variable surface.
func loadSiteConfig(ctx context.Context, resolver secrets.Resolver) (*config.Config, error) {
	if path := os.Getenv("WORDPRESS_SITES_CONFIG"); path != "" {
		doc, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading multi-site config %s: %w", path, err)
		}
		return config.LoadMultiSite(ctx, doc, resolver)
	}
	return config.LoadFromEnv(ctx, resolver)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultMinutes int) time.Duration {
	minutes := getEnvAsInt(key, defaultMinutes)
	return time.Duration(minutes) * time.Minute
}
