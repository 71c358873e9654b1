package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/logger"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient resolves secrets from AWS Secrets Manager with a
// plain configuration value as fallback.
type SecretsManagerClient struct {
	svc SecretsAPI
}

// NewSecretsManagerClient creates a client from the default AWS configuration
// chain (environment variables, shared config, IAM role).
func NewSecretsManagerClient(ctx context.Context, region string) (*SecretsManagerClient, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return &SecretsManagerClient{svc: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewSecretsManagerClientWithAPI wraps an existing client.
func NewSecretsManagerClientWithAPI(svc SecretsAPI) *SecretsManagerClient {
	return &SecretsManagerClient{svc: svc}
}

// GetSecretString returns the secret stored under arn. When arn is empty or
// the lookup fails it returns fallback, and fails only if both are empty.
func (c *SecretsManagerClient) GetSecretString(ctx context.Context, arn, fallback string) (string, error) {
	if arn != "" {
		value, err := c.fetch(ctx, arn)
		if err == nil && value != "" {
			logger.Log.Info("Fetched secret from Secrets Manager", zap.String("secretArn", arn))
			return value, nil
		}
		logger.Log.Warn("Failed to retrieve secret from Secrets Manager, using configured value",
			zap.String("secretArn", arn),
			zap.Error(err),
		)
	}

	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("secret not found in Secrets Manager (%q) and no configured value", arn)
}

// rdsSecret is the JSON layout of an RDS-managed database secret.
type rdsSecret struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	DBName   string      `json:"dbname"`
}

// GetDatabaseURL resolves a Postgres connection string. The secret may hold
// either a URL or an RDS JSON document.
func (c *SecretsManagerClient) GetDatabaseURL(ctx context.Context, arn, fallback string) (string, error) {
	value, err := c.GetSecretString(ctx, arn, fallback)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(strings.TrimSpace(value), "{") {
		return value, nil
	}

	var secret rdsSecret
	if err := json.Unmarshal([]byte(value), &secret); err != nil {
		return "", fmt.Errorf("failed to parse database secret: %w", err)
	}
	return BuildPostgresURL(secret.Username, secret.Password, secret.Host, secret.Port.String(), secret.DBName), nil
}

// BuildPostgresURL assembles a postgres:// URL with escaped credentials.
func BuildPostgresURL(user, password, host, port, dbname string) string {
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + dbname,
		RawQuery: "sslmode=require",
	}
	return u.String()
}

func (c *SecretsManagerClient) fetch(ctx context.Context, arn string) (string, error) {
	if c == nil || c.svc == nil {
		return "", fmt.Errorf("secrets manager client not configured")
	}
	out, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(arn)})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.SecretString), nil
}
