package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"newsdesk/apps/backend/internal/adapter/gemini"
	"newsdesk/apps/backend/internal/adapter/segmentation"
	"newsdesk/apps/backend/internal/analyze"
	"newsdesk/apps/backend/internal/app"
	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/keys"
	"newsdesk/apps/backend/internal/logger"
	"newsdesk/apps/backend/internal/pipeline"
	"newsdesk/apps/backend/internal/progress"
	"newsdesk/apps/backend/internal/publish"
	"newsdesk/apps/backend/internal/raster"
	"newsdesk/apps/backend/internal/segment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("newsdesk exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	opts := &app.Options{}
	if deps.Objects != nil {
		opts.Uploads = deps.Objects
	}
	if cfg.EnableDocumentWorker || cfg.EnableDigitalWorker {
		p, closeFn, err := buildPipeline(ctx, cfg, deps)
		if err != nil {
			return err
		}
		defer closeFn()
		opts.Pipeline = p
	}

	application, err := app.New(cfg, deps.DB, deps.Redis, deps.NSQProducer, log, opts)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

// buildPipeline picks this process's oracle credential and assembles the
// orchestrator around it.
func buildPipeline(ctx context.Context, cfg *config.Config, deps *app.Dependencies) (*app.Pipeline, func(), error) {
	picker := keys.NewPicker(keys.NewRedisCounter(deps.Redis), cfg.KeyCounterName)
	assignment, err := picker.Pick(ctx, cfg.APIKeys(), os.Getpid())
	if err != nil {
		return nil, nil, err
	}

	var clientOpts []option.ClientOption
	if cfg.GeminiEndpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.GeminiEndpoint))
	}
	topics := analyze.NewTaxonomy(cfg.TopicTaxonomy).Names()
	classifier, err := gemini.NewClassifier(ctx, assignment.Key, gemini.ModelConfig{
		ContentModel: cfg.GeminiContentModel,
		TextModel:    cfg.GeminiTextModel,
		AdModel:      cfg.GeminiAdModel,
		Topics:       topics,
	}, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini classifier: %w", err)
	}

	rasterOpts := raster.DefaultOptions()
	rasterOpts.MutoolPath = cfg.MutoolPath
	rasterOpts.MaxDimension = cfg.RasterMaxDimension
	rasterOpts.ChunkSize = cfg.RasterChunkSize
	rasterOpts.Timeout = cfg.RasterTimeout()
	rasterOpts.MemoryLimitMB = cfg.RasterMemoryLimitMB
	rasterOpts.MaxRetries = cfg.RasterMaxRetries
	rasterOpts.ConvertWorkers = cfg.RasterConvertWorkers

	segOpts := segment.DefaultOptions()
	segOpts.MaxDimension = cfg.SegmentMaxDimension
	segOpts.Quality = cfg.CropQuality
	segClient := segmentation.NewClient(cfg.SegmentationURL, cfg.SegmentationAPIKey,
		time.Duration(cfg.SegmentationTimeoutSeconds)*time.Second)

	progressStore := progress.NewRedisStore(deps.Redis)
	orch := pipeline.New(pipeline.Deps{
		Rasterizer: raster.New(rasterOpts),
		Segmenter:  segment.New(segClient, segOpts),
		Analyzer: analyze.New(classifier, analyze.Options{
			MaxDimension: cfg.AnalyzeMaxDimension,
			Quality:      cfg.AnalyzeQuality,
			Topics:       topics,
		}),
		Publisher: publish.New(deps.Objects, cfg.S3KeyPrefix),
		Trackers: func(taskID string) *progress.Tracker {
			return progress.NewTracker(progressStore, taskID, progress.WithTTL(cfg.ProgressTTL()))
		},
	}, pipeline.Options{
		FanoutLimit: cfg.FanoutLimit,
		ScratchDir:  cfg.ScratchDir,
	})

	slog.InfoContext(ctx, "pipeline ready",
		"credential_index", assignment.Index, "credential_pool", assignment.Pool, "fallback", assignment.Fallback,
		"topics", len(topics))

	return &app.Pipeline{
		Processor:  orch,
		Objects:    deps.Objects,
		Bucket:     cfg.S3Bucket,
		Credential: &assignment,
	}, func() { classifier.Close() }, nil
}
