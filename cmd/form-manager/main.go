// cmd/form-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dynamic-forms/internal/api"
	"dynamic-forms/internal/blob"
	awsclient "dynamic-forms/internal/common/aws"
	"dynamic-forms/internal/common/camunda"
	"dynamic-forms/internal/common/config"
	"dynamic-forms/internal/common/database"
	httpclient "dynamic-forms/internal/common/http"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/common/observability"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/normalizer"
	"dynamic-forms/internal/engine/registry"
	"dynamic-forms/internal/engine/workflow"
	"dynamic-forms/internal/search"
	"dynamic-forms/internal/service"
	"dynamic-forms/internal/store"
	"dynamic-forms/pkg/catalog"

	ds "dynamic-forms/internal/workers/submission/decide-submission"
	nd "dynamic-forms/internal/workers/submission/notify-decision"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// jobHandler is the lifecycle every job worker exposes.
type jobHandler interface {
	Register() error
	Close()
	GetTaskType() string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting form manager...",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", cfg.Blob.Driver),
		zap.Bool("camunda", cfg.Camunda.Enabled),
		zap.Bool("search", cfg.Search.Enabled),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	var readiness []func(context.Context) error

	// --- Redis (caches) ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" && (cfg.Storage.FormCacheTTL > 0 || cfg.PAN.CacheTTL > 0) {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		readiness = append(readiness, rdb.Ping)
		zapLog.Info("Redis connected successfully")
	}

	// --- Stores ---
	var forms store.FormStore
	var submissions store.SubmissionStore
	switch cfg.Storage.Driver {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("postgres migration failed", zap.Error(err))
		}
		readiness = append(readiness, pg.Ping)
		zapLog.Info("PostgreSQL connected successfully")

		forms = store.NewPostgresFormStore(pg.GetDB())
		submissions = store.NewPostgresSubmissionStore(pg.GetDB(), cfg.Storage.AuditTransitions, log)
	default:
		forms = store.NewMemoryFormStore()
		submissions = store.NewMemorySubmissionStore()
	}
	if cfg.Storage.FormCacheTTL > 0 {
		forms = store.NewCachedFormStore(forms, rdb.Cmdable(), config.GetDuration(cfg.Storage.FormCacheTTL), log)
	}

	// --- Blob storage ---
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		zapLog.Fatal("blob store init failed", zap.Error(err))
	}

	// --- PAN verifier ---
	var verifier registry.PANVerifier = registry.NewPrefixVerifier(cfg.PAN.Prefix)
	if cfg.PAN.Verifier == "http" {
		client := httpclient.NewClient(config.GetDuration(cfg.PAN.Timeout))
		if cfg.PAN.APIKey != "" {
			client.WithHeader("X-API-Key", cfg.PAN.APIKey)
		}
		verifier = registry.NewHTTPVerifier(client, cfg.PAN.URL)
	}
	if cfg.PAN.CacheTTL > 0 {
		verifier = registry.NewCachingVerifier(verifier, rdb.Cmdable(), config.GetDuration(cfg.PAN.CacheTTL), log)
	}
	fields := registry.New(verifier)

	// --- Search index ---
	var indexer *search.Indexer
	var listeners []workflow.Listener
	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := esClient.EnsureIndex(ctx, cfg.Search.Index, search.Mapping); err != nil {
			zapLog.Fatal("elasticsearch index setup failed", zap.Error(err))
		}
		readiness = append(readiness, esClient.Ping)
		zapLog.Info("Elasticsearch connected successfully")

		indexer = search.NewIndexer(esClient.Client, cfg.Search.Index)
		listeners = append(listeners, indexer)
	}

	// --- Engine & services ---
	norm := normalizer.New(
		fields,
		binder.New(blobs, binder.WithPublicRoot(cfg.HTTP.PublicAttachmentRoot)),
		forms,
		normalizer.Config{
			Report:           normalizer.ReportPolicy(cfg.Validation.Report),
			MaxParallelBinds: cfg.Validation.MaxParallelBinds,
		},
	)
	flow := workflow.New(submissions, log, listeners...)

	var formIndex service.FormIndex
	var subIndex service.SubmissionIndex
	if indexer != nil {
		formIndex, subIndex = indexer, indexer
	}
	formService := service.NewFormService(forms, submissions, formIndex, log)

	deps := service.SubmissionDeps{
		Normalizer:  norm,
		Workflow:    flow,
		Submissions: submissions,
		Forms:       forms,
		PAN:         fields,
		Index:       subIndex,
		Logger:      log,
	}

	// --- Form catalog ---
	seedCatalog(ctx, cfg.CatalogPath, formService, log, zapLog)

	// --- Camunda review process ---
	var zeebe *camunda.Client
	var handlers []jobHandler
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		readiness = append(readiness, zeebe.HealthCheck)
		zapLog.Info("Zeebe client connected successfully")

		deps.Starter = camunda.NewProcessStarter(zeebe, cfg.Camunda.ReviewProcessID, log)
		handlers = buildWorkers(ctx, cfg, zeebe, flow, submissions, forms, log, zapLog)
	}
	submissionService := service.NewSubmissionService(deps)

	for _, h := range handlers {
		if err := h.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", h.GetTaskType()), zap.Error(err))
		}
	}

	// --- HTTP server ---
	router := api.NewRouter(api.Deps{
		Forms:          formService,
		Submissions:    submissionService,
		Blobs:          blobs,
		Observability:  obs,
		Logger:         log,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		PublicRoot:     cfg.HTTP.PublicAttachmentRoot,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Ready: func(ctx context.Context) error {
			for _, check := range readiness {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, h := range handlers {
		h.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Form manager stopped gracefully")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Driver {
	case "s3":
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Blob.S3.Region)
		if err != nil {
			return nil, err
		}
		return blob.NewS3StoreFromConfig(awsCfg, cfg.Blob.S3.Endpoint, cfg.Blob.S3.Bucket, cfg.Blob.S3.Prefix), nil
	case "minio":
		m := cfg.Blob.Minio
		return blob.DialMinio(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.UseSSL, m.Bucket)
	default:
		return blob.NewLocalStore(cfg.Blob.LocalRoot), nil
	}
}

func seedCatalog(ctx context.Context, path string, forms *service.FormService, log logger.Logger, zapLog *zap.Logger) {
	cat, err := catalog.Load(path)
	if err != nil {
		if catalog.IsNotExist(err) {
			zapLog.Info("no form catalog found, skipping seed", zap.String("path", path))
			return
		}
		zapLog.Fatal("form catalog load failed", zap.Error(err))
	}
	if err := cat.Validate(); err != nil {
		zapLog.Fatal("form catalog invalid", zap.Error(err))
	}
	forms.SetCategories(cat.Categories)

	created, err := catalog.Seed(ctx, cat, forms, log)
	if err != nil {
		zapLog.Fatal("form catalog seed failed", zap.Error(err))
	}
	zapLog.Info("form catalog loaded",
		zap.Int("forms", len(cat.Forms)),
		zap.Int("created", created),
	)
}

func buildWorkers(ctx context.Context, cfg *config.Config, zeebe *camunda.Client, flow *workflow.Workflow, submissions store.SubmissionStore, forms store.FormStore, log logger.Logger, zapLog *zap.Logger) []jobHandler {
	decide, err := ds.NewHandler(ds.HandlerOptions{
		AppConfig: cfg,
		Camunda:   zeebe,
		Workflow:  flow,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create decide-submission handler", zap.Error(err))
	}

	opts := nd.HandlerOptions{
		AppConfig:   cfg,
		Camunda:     zeebe,
		Submissions: submissions,
		Forms:       forms,
		Logger:      log,
	}
	n := cfg.Notifications
	if n.Email.Enabled || n.SNS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, n.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		if n.Email.Enabled {
			opts.Email = awsclient.NewSESClientFromConfig(awsCfg, n.Email.FromEmail)
		}
		if n.SNS.Enabled {
			opts.Publisher = awsclient.NewSNSClientFromConfig(awsCfg, n.SNS.TopicARN)
		}
	}
	notify, err := nd.NewHandler(opts)
	if err != nil {
		zapLog.Fatal("failed to create notify-decision handler", zap.Error(err))
	}

	return []jobHandler{decide, notify}
}
