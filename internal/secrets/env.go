package secrets

import (
	"context"
	"os"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// EnvResolver resolves "env://VAR_NAME" refs against the process
// environment, for local development and container-injected secrets.
type EnvResolver struct{}

func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

func (EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", wperrors.New(wperrors.KindConfigInvalid, "environment variable "+ref+" is not set")
	}
	return v, nil
}
