// Package service wires the document store, importers and operator jobs from settings.
// The HTTP server, the upload worker and the CLI all build on it.
package service

import (
	"context"

	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/imports"
	"github.com/mmdatafocus/winery_ingest/normalize"
	"github.com/mmdatafocus/winery_ingest/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

type Service struct {
	Settings *config.Settings
	Store    docstore.Store
	Jobs     *workflow.Jobs
	Router   *imports.Router
	Sales    *imports.SalesImporter
	Balances *imports.BalanceImporter
	Logger   *logrus.Logger
}

// Deps are the collaborators that depend on the deployment.
type Deps struct {
	Store       docstore.Store
	Locker      workflow.JobLocker
	Checkpoints imports.Checkpointer
	Indexer     workflow.SearchIndexer
}

// New wires a Service around deps. A nil Locker falls back to an in-process lock.
func New(settings *config.Settings, deps Deps, logger *logrus.Logger) *Service {
	if deps.Locker == nil {
		deps.Locker = workflow.NewLocalLocker()
	}
	tokenizer := Tokenizer(settings)

	jobs := &workflow.Jobs{
		Store:                deps.Store,
		Locker:               deps.Locker,
		Tokenizer:            tokenizer,
		Indexer:              deps.Indexer,
		Logger:               logger,
		Tracer:               otel.Tracer("winery-ingest"),
		Ceiling:              settings.CommitCeiling,
		InvoiceCollection:    settings.InvoiceCollection,
		BottleTypeCollection: settings.BottleTypeCollection,
		IndexBatch:           settings.SearchIndexBatch,
	}

	sales := &imports.SalesImporter{
		Config: imports.Config{
			Store:       deps.Store,
			Collection:  settings.InvoiceCollection,
			Prefix:      settings.SalesUploadPrefix,
			Ceiling:     settings.CommitCeiling,
			Checkpoints: deps.Checkpoints,
			Logger:      logger,
		},
		Tokenizer: tokenizer,
	}
	balances := &imports.BalanceImporter{
		Config: imports.Config{
			Store:       deps.Store,
			Collection:  settings.BalanceCollection,
			Prefix:      settings.BalanceUploadPrefix,
			Ceiling:     settings.CommitCeiling,
			Checkpoints: deps.Checkpoints,
			Logger:      logger,
		},
	}

	router := imports.NewRouter(deps.Locker, logger)
	router.Register(settings.SalesUploadPrefix, sales)
	router.Register(settings.BalanceUploadPrefix, balances)

	return &Service{
		Settings: settings,
		Store:    deps.Store,
		Jobs:     jobs,
		Router:   router,
		Sales:    sales,
		Balances: balances,
		Logger:   logger,
	}
}

// Tokenizer is the default note grammar extended with the configured markers.
func Tokenizer(settings *config.Settings) *normalize.Tokenizer {
	return normalize.DefaultTokenizer().
		WithMarkers(normalize.FieldBottleInfo, settings.BottleMarkers...).
		WithMarkers(normalize.FieldWineInfo, settings.WineMarkers...)
}

// Open connects everything the settings ask for: the document backend, Redis for job
// leases and import checkpoints, and the search index topic.
func Open(ctx context.Context, settings *config.Settings, logger *logrus.Logger) (*Service, error) {
	store, err := config.OpenDocStore(ctx, settings)
	if err != nil {
		return nil, err
	}
	deps := Deps{Store: store}

	if (settings.JobLocks || settings.ImportCheckpoints) && config.RedisConfigured() {
		if err := config.ConnectRedisWithRetry(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	if settings.JobLocks && config.GetRedisLock() != nil {
		deps.Locker = workflow.NewRedisLocker(config.GetRedisLock(), settings.JobLockTTL, logger)
	}
	if settings.ImportCheckpoints && config.GetRedisDB() != nil {
		deps.Checkpoints = imports.NewRedisCheckpointer(config.GetRedisDB(), settings.CheckpointTTL)
	}

	if settings.SearchIndexTopic != "" {
		client, err := config.GetClient(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Indexer = &workflow.PubSubIndexer{Topic: client.Topic(settings.SearchIndexTopic)}
	}

	logger.WithFields(logrus.Fields{
		"backend":     settings.Backend,
		"locks":       deps.Locker != nil,
		"checkpoints": deps.Checkpoints != nil,
		"search":      deps.Indexer != nil,
	}).Info("[service.open]")
	return New(settings, deps, logger), nil
}

func (s *Service) Close() error {
	_ = config.CloseRedis()
	return s.Store.Close()
}
