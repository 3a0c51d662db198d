package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"go.uber.org/zap"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// GCPResolver resolves "gcpsm://<secret-name>" refs (optionally
// "gcpsm://<secret-name>@<version>", default version "latest") against
// Google Cloud Secret Manager.
type GCPResolver struct {
	client    *secretmanager.Client
	projectID string
	logger    *zap.Logger
}

// NewGCPResolver authenticates via application default credentials
// (GOOGLE_APPLICATION_CREDENTIALS, workload identity, or gcloud ADC).
func NewGCPResolver(ctx context.Context, projectID string, logger *zap.Logger) (*GCPResolver, error) {
	if projectID == "" {
		return nil, fmt.Errorf("gcp project id is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating gcp secret manager client: %w", err)
	}
	logger.Info("gcp secret manager resolver initialized", zap.String("project_id", projectID))
	return &GCPResolver{client: client, projectID: projectID, logger: logger}, nil
}

func (r *GCPResolver) Resolve(ctx context.Context, ref string) (string, error) {
	name, version := ref, "latest"
	for i := 0; i < len(ref); i++ {
		if ref[i] == '@' {
			name, version = ref[:i], ref[i+1:]
			break
		}
	}

	full := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", r.projectID, name, version)
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: full})
	if err != nil {
		return "", wperrors.Wrap(wperrors.KindConfigInvalid, "fetching gcp secret "+ref, err)
	}
	return string(resp.Payload.Data), nil
}

// Close releases the underlying gRPC connection.
func (r *GCPResolver) Close() error {
	return r.client.Close()
}
