package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// AWSConfig configures the AWS Secrets Manager backend.
type AWSConfig struct {
	Region   string
	Profile  string // optional, local development
	Endpoint string // optional, LocalStack
}

// AWSResolver resolves "secretsmanager://<secret-id>" refs against AWS
// Secrets Manager.
type AWSResolver struct {
	client *secretsmanager.Client
	logger *zap.Logger
}

// NewAWSResolver constructs an AWSResolver, loading credentials from the
// default chain (or the given profile for local development).
func NewAWSResolver(ctx context.Context, cfg AWSConfig, logger *zap.Logger) (*AWSResolver, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("aws secrets manager resolver initialized", zap.String("region", cfg.Region))
	return &AWSResolver{client: secretsmanager.NewFromConfig(awsCfg, clientOpts...), logger: logger}, nil
}

func (r *AWSResolver) Resolve(ctx context.Context, ref string) (string, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", wperrors.Wrap(wperrors.KindConfigInvalid, "fetching aws secret "+ref, err)
	}
	return aws.ToString(out.SecretString), nil
}
