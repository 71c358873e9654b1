package app

import (
	"context"
	"path"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/archive"
	"github.com/taxrates/taxrates-api/internal/catalog"
	awsclient "github.com/taxrates/taxrates-api/internal/client/aws"
	httpclient "github.com/taxrates/taxrates-api/internal/client/http"
	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/notify"
	"github.com/taxrates/taxrates-api/internal/scraper"
	"github.com/taxrates/taxrates-api/internal/services"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/validation"
)

// Application holds the dependencies shared by the CLI, the API server and
// the update processor.
type Application struct {
	Config       *config.Config
	Policy       config.Policy
	Sources      config.Sources
	Committed    store.Store
	Staging      store.Store
	Changelog    store.Store
	ChangelogKey string
	Metrics      *metrics.Metrics
	Validator    *validation.Validator
	Profiles     dataset.Profiles
	ZipPrefix    dataset.ZipPrefixTable

	archive archive.Archive
	logger  *zap.Logger
}

// New opens the stores and loads the policy described by cfg.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Application, error) {
	policy, sources, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	committed, err := openStore(ctx, cfg, cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open data store")
	}
	staging, err := openStore(ctx, cfg, cfg.StagingDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open staging store")
	}
	changelogDir, changelogKey := splitChangelogPath(cfg.ChangelogPath)
	changelog, err := openStore(ctx, cfg, changelogDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open changelog store")
	}

	if m == nil {
		m = metrics.New()
	}

	return &Application{
		Config:       cfg,
		Policy:       policy,
		Sources:      sources,
		Committed:    committed,
		Staging:      staging,
		Changelog:    changelog,
		ChangelogKey: changelogKey,
		Metrics:      m,
		Validator:    validation.NewValidator(policy),
		Profiles:     dataset.DefaultProfiles(),
		ZipPrefix:    dataset.DefaultZipPrefixTable(),
		archive:      archive.Nop{},
		logger:       logger.Log,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, location string) (store.Store, error) {
	if store.Driver(cfg.StoreDriver) == store.DriverS3 && location == "." {
		location = ""
	}
	return store.Open(ctx, store.Options{
		Driver:    store.Driver(cfg.StoreDriver),
		Path:      location,
		Bucket:    cfg.StoreBucket,
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,

		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
}

// splitChangelogPath turns CHANGELOG_PATH into a store location and a key.
func splitChangelogPath(p string) (string, string) {
	p = filepath.ToSlash(p)
	dir, key := path.Split(p)
	if dir == "" {
		dir = "."
	}
	return filepath.FromSlash(path.Clean(dir)), key
}

// Fetcher is the HTTP client used by the scrapers.
func (a *Application) Fetcher() *httpclient.HTTPClient {
	return httpclient.NewHTTPClient(
		httpclient.WithTimeout(a.Config.HTTPTimeout),
		httpclient.WithMetricsCollector(a.Metrics),
		httpclient.WithMiddleware(httpclient.LoggingMiddleware()),
	)
}

// Registry is the default scraper registry.
func (a *Application) Registry() scraper.Registry {
	return scraper.DefaultRegistry(a.Fetcher(), a.Validator, a.Sources)
}

func (a *Application) ScrapeService() *services.ScrapeService {
	return services.NewScrapeService(a.Registry(), a.Committed, a.Staging, services.WithScrapeMetrics(a.Metrics))
}

func (a *Application) DiffService() *services.DiffService {
	return services.NewDiffService(a.Committed, a.Staging, a.Policy)
}

func (a *Application) GateService() *services.GateService {
	return services.NewGateService(a.Committed, a.Staging, a.Validator)
}

func (a *Application) ApplyService() *services.ApplyService {
	return services.NewApplyService(a.Committed, a.Staging, a.Changelog, a.ChangelogKey)
}

func (a *Application) SeedService() *services.SeedService {
	return services.NewSeedService(a.Committed, a.Profiles)
}

// Holder creates a catalog holder over the committed store that reports
// every reload to the metrics.
func (a *Application) Holder() *catalog.Holder {
	return catalog.NewHolder(a.Committed, a.logger, catalog.WithReloadHook(func(c *catalog.Catalog, err error) {
		if err != nil {
			a.Metrics.RecordCatalog(0, 0, false)
			return
		}
		a.Metrics.RecordCatalog(c.Len(), c.Generation(), true)
	}))
}

// RateService resolves rates from holder's current catalog.
func (a *Application) RateService(holder *catalog.Holder) *services.RateService {
	return services.NewRateService(holder, a.Profiles, a.ZipPrefix, services.WithRateMetrics(a.Metrics))
}

// Pipeline wires the update pipeline with the configured archive and
// notifiers. Call Close when done.
func (a *Application) Pipeline(ctx context.Context) (*services.PipelineService, error) {
	arch, err := a.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	a.archive = arch

	notifier, err := a.openNotifier(ctx)
	if err != nil {
		return nil, err
	}

	return services.NewPipelineService(
		a.ScrapeService(),
		a.DiffService(),
		a.GateService(),
		a.ApplyService(),
		services.WithArchive(arch),
		services.WithNotifier(notifier),
		services.WithPipelineMetrics(a.Metrics),
	), nil
}

func (a *Application) openArchive(ctx context.Context) (archive.Archive, error) {
	cfg := a.Config
	switch cfg.ArchiveDriver {
	case archive.DriverPostgres:
		secrets, err := awsclient.NewSecretsManagerClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize secrets client")
		}
		dsn, err := secrets.GetDatabaseURL(ctx, cfg.DatabaseSecretARN, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve database URL")
		}
		return archive.Open(ctx, archive.DriverPostgres, dsn)
	case archive.DriverSQLite:
		return archive.Open(ctx, archive.DriverSQLite, cfg.SQLitePath)
	default:
		return archive.Open(ctx, cfg.ArchiveDriver, "")
	}
}

func (a *Application) openNotifier(ctx context.Context) (notify.Notifier, error) {
	cfg := a.Config
	var notifiers notify.Multi

	if cfg.SQSQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, errors.Wrap(err, "unable to load AWS SDK config")
		}
		notifiers = append(notifiers, notify.NewSQS(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL, a.logger))
	}

	if len(cfg.NotifyEmailTo) > 0 {
		apiKey := cfg.ResendAPIKey
		if cfg.ResendSecretARN != "" {
			secrets, err := awsclient.NewSecretsManagerClient(ctx, cfg.AWSRegion)
			if err != nil {
				return nil, errors.Wrap(err, "failed to initialize secrets client")
			}
			if apiKey, err = secrets.GetSecretString(ctx, cfg.ResendSecretARN, cfg.ResendAPIKey); err != nil {
				return nil, errors.Wrap(err, "failed to resolve Resend API key")
			}
		}
		if apiKey == "" {
			return nil, errors.New("NOTIFY_EMAIL_TO is set but no Resend API key is configured")
		}
		notifiers = append(notifiers, notify.NewEmail(apiKey, cfg.NotifyEmailFrom, cfg.NotifyEmailTo, a.logger))
	}

	if len(notifiers) == 0 {
		return notify.Noop{}, nil
	}
	return notifiers, nil
}

// Recent returns the most recently archived runs.
func (a *Application) Recent(ctx context.Context, limit int) ([]archive.Record, error) {
	arch, err := a.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	defer arch.Close()
	return arch.Recent(ctx, limit)
}

// WriteMetrics exports the registry to METRICS_TEXTFILE when configured.
func (a *Application) WriteMetrics() {
	if a.Config.MetricsTextfile == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(a.Config.MetricsTextfile); err != nil {
		a.logger.Warn("Failed to write metrics textfile", zap.String("path", a.Config.MetricsTextfile), zap.Error(err))
	}
}

// Close releases the archive connection.
func (a *Application) Close() error {
	return a.archive.Close()
}
