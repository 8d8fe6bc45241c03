package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
)

// DialerConfig describes how to reach the table
type DialerConfig struct {
	Region    string
	Profile   string // optional shared config profile
	Endpoint  string // optional endpoint override, e.g. DynamoDB Local
	TableName string
}

// NewDialer returns a StoreDialer that loads AWS credentials, builds a client
// and verifies the table before handing out the store. The SDK's own retries
// are disabled; retrying is done by the connection manager.
func NewDialer(cfg DialerConfig, logger *zap.Logger) ports.StoreDialer {
	return func(ctx context.Context) (ports.DocumentStore, error) {
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithRetryMaxAttempts(1),
		}
		if cfg.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})

		store := NewDocumentStore(client, cfg.TableName, logger)
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
}
