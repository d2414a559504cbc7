package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path"
	"syscall"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openkenya/ecitizen-crawler/internal/api"
	"github.com/openkenya/ecitizen-crawler/internal/config"
	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/export"
	exportgcs "github.com/openkenya/ecitizen-crawler/internal/export/gcs"
	"github.com/openkenya/ecitizen-crawler/internal/fetcher/headless"
	"github.com/openkenya/ecitizen-crawler/internal/governor"
	"github.com/openkenya/ecitizen-crawler/internal/logging"
	"github.com/openkenya/ecitizen-crawler/internal/pipeline"
	pubsubpub "github.com/openkenya/ecitizen-crawler/internal/publisher/pubsub"
	"github.com/openkenya/ecitizen-crawler/internal/store"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs a full directory crawl and exports the datasets",
		Long: `Crawls the FAQ page, the global agency directory, and the ministry
hierarchy in order, then validates the assembled graph and writes the CSV
and JSON datasets. All navigation is paced through a single sequential path
that backs off when the platform shows signs of rate limiting.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	artifacts, err := store.NewArtifactStore(cfg.Store.ArtifactDir)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	ledger, err := store.OpenLedger(cfg.Store.LedgerDir)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	fetcher, err := headless.New(headless.Config{UserAgent: cfg.Crawler.UserAgent})
	if err != nil {
		return fmt.Errorf("start headless browser: %w", err)
	}
	defer fetcher.Close()

	govCfg := governor.DefaultConfig()
	govCfg.BaseDelayMin = cfg.Governor.BaseDelayMin()
	govCfg.BaseDelayMax = cfg.Governor.BaseDelayMax()
	govCfg.JitterMax = cfg.Governor.JitterMax()
	govCfg.CautiousDelayMin = cfg.Governor.CautiousDelayMin()
	govCfg.CautiousDelayMax = cfg.Governor.CautiousDelayMax()
	govCfg.CautiousWindow = cfg.Governor.CautiousWindow
	govCfg.BackoffPause = cfg.Governor.BackoffPause()
	govCfg.AbortThreshold = cfg.Governor.AbortThreshold
	govCfg.MaxAttempts = cfg.Governor.MaxAttempts
	govCfg.AttemptTimeout = cfg.Governor.AttemptTimeout()
	paced := governor.New(fetcher, govCfg, logger)

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	if cfg.Server.Enabled {
		srv := api.New(cfg.Server.Port, logger)
		srv.Start()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	coord := pipeline.NewCoordinator(paced, artifacts, ledger, publisher, logger, pipeline.Options{
		Seeds: pipeline.Seeds{
			FAQURL:             cfg.Crawler.FAQURL,
			AgencyDirectoryURL: cfg.Crawler.AgencyDirectoryURL,
			MinistryListURL:    cfg.Crawler.MinistryListURL,
		},
		PoolSize:       cfg.Crawler.PoolSize,
		CountTolerance: cfg.Crawler.CountTolerance,
		EventTopic:     cfg.PubSub.TopicName,
	})

	report, graph, err := coord.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl run: %w", err)
	}

	written, err := export.WriteDataset(cfg.Export.Dir, graph)
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	reportPath, err := export.WriteReport(cfg.Export.Dir, report)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	insightsPath, err := export.WriteInsights(cfg.Export.Dir, report)
	if err != nil {
		return fmt.Errorf("write insights: %w", err)
	}
	logger.Info("dataset written",
		zap.Int("files", len(written)),
		zap.String("report", reportPath),
		zap.String("insights", insightsPath),
	)

	if cfg.Export.GCSBucket != "" {
		paths := append(written, reportPath, insightsPath)
		if err := mirrorDataset(ctx, cfg, report.RunID, paths, logger); err != nil {
			return err
		}
	}

	if report.Status == pipeline.StatusAborted {
		return fmt.Errorf("crawl aborted after repeated anomalies; partial dataset kept")
	}
	return nil
}

// buildPublisher returns a nil publisher when no topic is configured.
func buildPublisher(ctx context.Context, cfg config.Config) (directory.Publisher, func(), error) {
	if cfg.PubSub.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("connect pubsub: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return pubsubpub.New(topic), closeFn, nil
}

func mirrorDataset(ctx context.Context, cfg config.Config, runID string, paths []string, logger *zap.Logger) error {
	client, err := gcpstorage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("connect gcs: %w", err)
	}
	defer func() { _ = client.Close() }()

	blobs, err := exportgcs.New(client, cfg.Export.GCSBucket)
	if err != nil {
		return err
	}
	prefix := path.Join(cfg.Export.GCSPrefix, runID)
	uris, err := export.Mirror(ctx, blobs, prefix, paths)
	if err != nil {
		return fmt.Errorf("mirror dataset: %w", err)
	}
	logger.Info("dataset mirrored",
		zap.String("bucket", cfg.Export.GCSBucket),
		zap.Int("objects", len(uris)),
	)
	return nil
}
