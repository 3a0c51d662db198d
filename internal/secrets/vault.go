package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// VaultConfig configures the HashiCorp Vault backend.
type VaultConfig struct {
	Address    string
	AuthMethod string // "token", "approle", "kubernetes"
	Token      string
	RoleID     string
	SecretID   string

	K8sRole      string
	K8sTokenPath string

	Namespace string
	MountPath string // KV mount, default "secret"
	KVVersion string // "v1" or "v2", default "v2"
}

// VaultResolver resolves "vault://<path>#<field>" refs against a
// HashiCorp Vault KV engine. Field defaults to "value" when omitted.
type VaultResolver struct {
	client    *vault.Client
	mountPath string
	kvVersion string
	logger    *zap.Logger
}

// NewVaultResolver authenticates with Vault using cfg.AuthMethod and
// returns a resolver over the configured KV mount.
func NewVaultResolver(ctx context.Context, cfg VaultConfig, logger *zap.Logger) (*VaultResolver, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticate(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("authenticating with vault: %w", err)
	}

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "secret"
	}
	kvVersion := cfg.KVVersion
	if kvVersion == "" {
		kvVersion = "v2"
	}

	logger.Info("vault resolver initialized", zap.String("address", cfg.Address), zap.String("auth_method", cfg.AuthMethod))
	return &VaultResolver{client: client, mountPath: mountPath, kvVersion: kvVersion, logger: logger}, nil
}

func authenticate(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for approle auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("approle login: %w", err)
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	case "kubernetes":
		if cfg.K8sRole == "" {
			return fmt.Errorf("k8s role is required for kubernetes auth")
		}
		jwt, err := readFile(cfg.K8sTokenPath)
		if err != nil {
			return fmt.Errorf("reading kubernetes service account token: %w", err)
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/kubernetes/login", map[string]interface{}{
			"role": cfg.K8sRole,
			"jwt":  jwt,
		})
		if err != nil {
			return fmt.Errorf("kubernetes login: %w", err)
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported vault auth method %q", cfg.AuthMethod)
	}
}

func (r *VaultResolver) Resolve(ctx context.Context, ref string) (string, error) {
	path, field, _ := strings.Cut(ref, "#")
	if field == "" {
		field = "value"
	}

	logicalPath := r.mountPath + "/" + path
	if r.kvVersion == "v2" {
		logicalPath = r.mountPath + "/data/" + path
	}

	secret, err := r.client.Logical().ReadWithContext(ctx, logicalPath)
	if err != nil {
		return "", wperrors.Wrap(wperrors.KindConfigInvalid, "reading vault secret "+ref, err)
	}
	if secret == nil {
		return "", wperrors.New(wperrors.KindConfigInvalid, "vault secret not found: "+ref)
	}

	data := secret.Data
	if r.kvVersion == "v2" {
		nested, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return "", wperrors.New(wperrors.KindConfigInvalid, "malformed kv2 response for "+ref)
		}
		data = nested
	}

	value, ok := data[field].(string)
	if !ok {
		return "", wperrors.New(wperrors.KindConfigInvalid, "vault secret "+ref+" has no string field "+field)
	}
	return value, nil
}
