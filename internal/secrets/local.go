package secrets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// LocalResolver resolves "file://<relative-path>" refs against a base
// directory on disk. Development only: production deployments should
// resolve through Vault, AWS Secrets Manager, or GCP Secret Manager.
type LocalResolver struct {
	basePath string
	logger   *zap.Logger
}

func NewLocalResolver(basePath string, logger *zap.Logger) *LocalResolver {
	return &LocalResolver{basePath: basePath, logger: logger}
}

type localSecretFile struct {
	Value string `json:"value"`
}

func (r *LocalResolver) Resolve(_ context.Context, ref string) (string, error) {
	path := filepath.Join(r.basePath, ref)
	r.logger.Debug("reading local secret file", zap.String("path", ref))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", wperrors.New(wperrors.KindConfigInvalid, "local secret not found: "+ref)
		}
		return "", wperrors.Wrap(wperrors.KindConfigInvalid, "reading local secret "+ref, err)
	}

	var f localSecretFile
	if err := json.Unmarshal(data, &f); err == nil && f.Value != "" {
		return f.Value, nil
	}

	return strings.TrimSpace(string(data)), nil
}
