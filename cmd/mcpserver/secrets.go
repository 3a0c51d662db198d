package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/secrets"
)

// buildSecretRegistry wires every secret backend whose required
// environment variables are present into one Registry, keyed by the
// URI scheme each handles. Refs with no "scheme://" prefix pass through
// as literals, so a deployment with no backend configured still works
// for operators who put plaintext app-passwords directly in config; a
// ref naming a scheme whose backend is not enabled fails to resolve.
//
// Environment Variables:
//   - AWS_REGION: enables "secretsmanager://" refs against AWS Secrets Manager
//   - AWS_PROFILE, AWS_SECRETS_ENDPOINT: optional AWS tuning
//   - VAULT_ADDR: enables "vault://" refs against HashiCorp Vault
//   - VAULT_AUTH_METHOD, VAULT_TOKEN, VAULT_ROLE_ID, VAULT_SECRET_ID,
//     VAULT_K8S_ROLE, VAULT_K8S_TOKEN_PATH, VAULT_NAMESPACE,
//     VAULT_MOUNT_PATH, VAULT_KV_VERSION: Vault auth/mount tuning
//   - GCP_PROJECT_ID: enables "gcpsm://" refs against GCP Secret Manager
//   - LOCAL_SECRETS_BASE_PATH: enables "file://" refs against a local directory
//   - SECRET_CACHE_TTL_MINUTES: TTL cache around the AWS, Vault and GCP
//     backends (default 5); "env://" and "file://" refs are not cached
func buildSecretRegistry(ctx context.Context, logger *zap.Logger) *secrets.Registry {
	backends := map[string]secrets.Resolver{
		"env": secrets.NewEnvResolver(),
	}

	cacheTTL := getEnvDuration("SECRET_CACHE_TTL_MINUTES", 5)

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg := secrets.AWSConfig{
			Region:   region,
			Profile:  os.Getenv("AWS_PROFILE"),
			Endpoint: os.Getenv("AWS_SECRETS_ENDPOINT"),
		}
		resolver, err := secrets.NewAWSResolver(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize AWS Secrets Manager backend", zap.Error(err))
		} else {
			backends["secretsmanager"] = secrets.WithCache(resolver, cacheTTL)
			logger.Info("AWS Secrets Manager backend enabled", zap.String("region", region))
		}
	}

	if vaultAddr := os.Getenv("VAULT_ADDR"); vaultAddr != "" {
		cfg := secrets.VaultConfig{
			Address:      vaultAddr,
			AuthMethod:   getEnv("VAULT_AUTH_METHOD", "token"),
			Token:        os.Getenv("VAULT_TOKEN"),
			RoleID:       os.Getenv("VAULT_ROLE_ID"),
			SecretID:     os.Getenv("VAULT_SECRET_ID"),
			K8sRole:      os.Getenv("VAULT_K8S_ROLE"),
			K8sTokenPath: getEnv("VAULT_K8S_TOKEN_PATH", "/var/run/secrets/kubernetes.io/serviceaccount/token"),
			Namespace:    os.Getenv("VAULT_NAMESPACE"),
			MountPath:    getEnv("VAULT_MOUNT_PATH", "secret"),
			KVVersion:    getEnv("VAULT_KV_VERSION", "v2"),
		}
		resolver, err := secrets.NewVaultResolver(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize Vault backend", zap.Error(err))
		} else {
			backends["vault"] = secrets.WithCache(resolver, cacheTTL)
			logger.Info("Vault backend enabled", zap.String("addr", vaultAddr))
		}
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		resolver, err := secrets.NewGCPResolver(ctx, projectID, logger)
		if err != nil {
			logger.Error("failed to initialize GCP Secret Manager backend", zap.Error(err))
		} else {
			backends["gcpsm"] = secrets.WithCache(resolver, cacheTTL)
			logger.Info("GCP Secret Manager backend enabled", zap.String("project_id", projectID))
		}
	}

	if basePath := os.Getenv("LOCAL_SECRETS_BASE_PATH"); basePath != "" {
		logger.Warn("local file-based secret backend enabled - not for production use",
			zap.String("base_path", basePath),
		)
		backends["file"] = secrets.NewLocalResolver(basePath, logger)
	}

	return secrets.NewRegistry(backends, logger)
}
