package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxrates/taxrates-api/internal/config"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STAGE", "LOG_LEVEL", "STORE_DRIVER", "DATA_DIR", "STAGING_DIR", "CHANGELOG_PATH",
		"STORE_BUCKET", "AWS_REGION", "S3_ENDPOINT", "S3_PATH_STYLE", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "POLICY_FILE", "HTTP_TIMEOUT",
		"ARCHIVE_DRIVER", "DATABASE_URL", "DATABASE_URL_ARN", "SQLITE_PATH", "SQS_QUEUE_URL",
		"RESEND_API_KEY", "RESEND_API_KEY_ARN", "NOTIFY_EMAIL_FROM", "NOTIFY_EMAIL_TO", "PORT",
		"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_PER_HOUR", "WATCH_DATA", "METRICS_TEXTFILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Stage)
	assert.Equal(t, "fs", cfg.StoreDriver)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "staged-data", cfg.StagingDir)
	assert.Equal(t, "CHANGELOG.md", cfg.ChangelogPath)
	assert.Equal(t, "none", cfg.ArchiveDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.RateLimitMinute)
	assert.Equal(t, 100, cfg.RateLimitHour)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.WatchData)
	assert.Nil(t, cfg.NotifyEmailTo)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STAGE", "prod")
	t.Setenv("STORE_DRIVER", "s3")
	t.Setenv("STORE_BUCKET", "taxrates-data")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "20")
	t.Setenv("RATE_LIMIT_PER_HOUR", "200")
	t.Setenv("WATCH_DATA", "false")
	t.Setenv("NOTIFY_EMAIL_FROM", "pipeline@example.com")
	t.Setenv("NOTIFY_EMAIL_TO", " ops@example.com, ,data@example.com ")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.StoreDriver)
	assert.Equal(t, "taxrates-data", cfg.StoreBucket)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 20, cfg.RateLimitMinute)
	assert.Equal(t, 200, cfg.RateLimitHour)
	assert.False(t, cfg.WatchData)
	assert.Equal(t, []string{"ops@example.com", "data@example.com"}, cfg.NotifyEmailTo)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown stage", env: map[string]string{"STAGE": "staging"}},
		{name: "unknown store driver", env: map[string]string{"STORE_DRIVER": "gcs"}},
		{name: "s3 without bucket", env: map[string]string{"STORE_DRIVER": "s3"}},
		{name: "sqlite without path", env: map[string]string{"ARCHIVE_DRIVER": "sqlite"}},
		{name: "hour budget below minute budget", env: map[string]string{"RATE_LIMIT_PER_MINUTE": "50", "RATE_LIMIT_PER_HOUR": "20"}},
		{name: "non-numeric port", env: map[string]string{"PORT": "http"}},
		{name: "bad recipient", env: map[string]string{"NOTIFY_EMAIL_TO": "not-an-address"}},
		{name: "access key without secret", env: map[string]string{"S3_ACCESS_KEY_ID": "minio"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestParsePolicy(t *testing.T) {
	doc := []byte(`
policy:
  max_rate: 0.25
  warn_rate: 0.18
  fully_scraped_states: [ca, tx]
sources:
  tx:
    urls:
      - https://example.com/tx.csv
`)

	policy, sources, err := config.ParsePolicy(doc)

	require.NoError(t, err)
	assert.Equal(t, 0.25, policy.MaxRate)
	assert.Equal(t, 0.18, policy.WarnRate)
	assert.Equal(t, 3.0, policy.OutlierSigma, "unset fields keep their defaults")
	assert.Equal(t, 50, policy.MinJurisdictions("TX"))
	assert.Equal(t, 1, policy.MinJurisdictions("NV"))
	assert.Equal(t, []string{"https://example.com/tx.csv"}, sources.For("tx").URLs)
	assert.NotEmpty(t, sources.For("CA").URLs)
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "malformed yaml", doc: "policy: [", want: "failed to parse policy file"},
		{name: "warn above max", doc: "policy:\n  max_rate: 0.1\n  warn_rate: 0.15\n", want: "invalid policy"},
		{name: "error threshold below warning", doc: "policy:\n  diff_count_error_percent: 5\n", want: "invalid policy"},
		{name: "bad source url", doc: "sources:\n  tx:\n    urls: [\"not a url\"]\n", want: "invalid sources for TX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := config.ParsePolicy([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	policy, sources, err := config.LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPolicy(), policy)
	assert.Contains(t, sources.States, "CA")

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  gate_warning_limit: 25\n"), 0o600))
	policy, _, err = config.LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 25, policy.GateWarningLimit)

	_, _, err = config.LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
