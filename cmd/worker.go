package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	inboundmessaging "mediaenrich/internal/adapter/inbound/messaging"
	"mediaenrich/internal/adapter/outbound/ffmpeg"
	"mediaenrich/internal/adapter/outbound/mediafetch"
	outboundmessaging "mediaenrich/internal/adapter/outbound/messaging"
	"mediaenrich/internal/adapter/outbound/repository"
	"mediaenrich/internal/adapter/outbound/speech"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/application/service"
	"mediaenrich/internal/application/worker"
	"mediaenrich/internal/config"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"
	"mediaenrich/internal/version"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/oauth2"
)

const serviceName = "mediaenrich-worker"

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the enrichment worker for one client",
		Long: `Run the enrichment worker. It polls enrichment_jobs for the configured
client, enriches each claimed post and records the outcome.

Startup fails if the database, cloud credentials or ffmpeg are unavailable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context())
		},
	}
}

// workerApp holds everything the worker command starts and must shut down.
type workerApp struct {
	worker    *worker.EnrichmentWorker
	publisher outbound.JobEventPublisher
	wake      *inboundmessaging.WakeSubscriber
	reporter  *worker.MetricsReporter
	provider  *sdkmetric.MeterProvider
	close     func()
}

func runWorker(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg := GetConfig()
	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildWorker(ctx, cfg)
	if err != nil {
		slogger.ErrorNoCtx("Worker startup failed", slogger.Fields{"error": err.Error()})
		return err
	}
	defer app.close()

	if app.reporter != nil {
		go app.reporter.Run(ctx)
	}
	if app.wake != nil {
		if err := app.wake.Start(); err != nil {
			slogger.WarnNoCtx("Wake subscription unavailable, relying on polling", slogger.Fields{"error": err.Error()})
		}
	}
	if err := app.worker.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slogger.InfoNoCtx("Received shutdown signal, finishing current job", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout+5*time.Second)
	defer cancel()

	var errs []error
	if app.wake != nil {
		errs = append(errs, app.wake.Stop())
	}
	errs = append(errs, app.worker.Stop(shutdownCtx))
	if app.provider != nil {
		errs = append(errs, app.provider.Shutdown(shutdownCtx))
	}
	if err := errors.Join(errs...); err != nil {
		slogger.ErrorNoCtx("Error during worker shutdown", slogger.Fields{"error": err.Error()})
		return err
	}
	slogger.InfoNoCtx("Worker shutdown completed", nil)
	return nil
}

func buildWorker(ctx context.Context, cfg *config.Config) (*workerApp, error) {
	var closers []func()
	app := &workerApp{close: func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}}
	fail := func(err error) (*workerApp, error) {
		app.close()
		return nil, err
	}

	processor := ffmpeg.NewProcessor(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	if err := processor.CheckAvailable(); err != nil {
		return fail(err)
	}

	var adc oauth2.TokenSource
	embedder, err := newEmbedder(ctx, cfg, &adc)
	if err != nil {
		return fail(err)
	}
	speechTokens, err := tokenSource(ctx, cfg.Speech.UseADC, &adc)
	if err != nil {
		return fail(err)
	}
	recognizer, err := speech.NewClient(speech.Config{
		BaseURL:     cfg.Speech.BaseURL,
		APIKey:      cfg.Speech.APIKey,
		TokenSource: speechTokens,
		Timeout:     cfg.Speech.Timeout,
		UseEnhanced: cfg.Speech.UseEnhanced,
	})
	if err != nil {
		return fail(fmt.Errorf("create speech client: %w", err))
	}

	pool, err := setupDatabaseConnection(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, pool.Close)

	fetcher := mediafetch.NewHTTPFetcher(cfg.Media.VideoTimeout)
	extractor := service.NewAudioExtractor(fetcher, processor, service.AudioExtractorConfig{
		MaxVideoBytes:    cfg.Media.MaxVideoBytes,
		DownloadTimeout:  cfg.Media.VideoTimeout,
		ChunkConcurrency: cfg.Worker.ChunkConcurrency,
	})
	transcriber := service.NewTranscriber(recognizer, extractor, service.TranscriberConfig{
		Language:      cfg.Worker.Language,
		Threshold:     cfg.Worker.TranscriptionThreshold,
		ChunkDuration: cfg.Worker.ChunkDuration,
		Concurrency:   cfg.Worker.ChunkConcurrency,
	})
	pipeline := worker.NewPipeline(
		repository.NewPostgreSQLContentRepository(pool),
		extractor,
		transcriber,
		newEmbeddingGenerator(embedder, fetcher, cfg),
		worker.PipelineConfig{
			TempDir:  cfg.Worker.TempDir,
			ModelTag: cfg.Embedding.ModelTag,
			Language: cfg.Worker.Language,
		},
	)

	metrics, err := setupMetrics(cfg, app)
	if err != nil {
		return fail(err)
	}

	app.publisher = setupPublisher(cfg)
	closers = append(closers, func() { _ = app.publisher.Close() })

	policy, err := valueobject.NewRetryPolicyFromMinutes(cfg.Worker.MaxRetryAttempts, cfg.Worker.RetryBackoffMinutes)
	if err != nil {
		return fail(fmt.Errorf("retry policy: %w", err))
	}

	app.worker, err = worker.NewEnrichmentWorker(
		repository.NewPostgreSQLEnrichmentJobRepository(pool),
		pipeline,
		app.publisher,
		metrics,
		worker.Config{
			ClientID:          cfg.Worker.ClientID,
			PollInterval:      cfg.Worker.PollInterval(),
			MaxErrorBackoff:   cfg.Worker.MaxErrorBackoff,
			JobTimeout:        cfg.Worker.JobTimeout,
			ShutdownTimeout:   cfg.Worker.ShutdownTimeout,
			FailFastPermanent: cfg.Worker.FailFastPermanent,
			RetryPolicy:       policy,
		},
	)
	if err != nil {
		return fail(err)
	}

	if nats, ok := app.publisher.(*outboundmessaging.NATSJobEventPublisher); ok && cfg.NATS.WakeSubject != "" {
		app.wake, err = inboundmessaging.NewWakeSubscriber(nats.Conn(), cfg.NATS.WakeSubject, cfg.Worker.ClientID, app.worker)
		if err != nil {
			return fail(err)
		}
	}

	slogger.InfoNoCtx("Worker configured", slogger.Fields{
		"client_id":          cfg.Worker.ClientID,
		"poll_interval_ms":   cfg.Worker.PollIntervalMS,
		"max_retry_attempts": cfg.Worker.MaxRetryAttempts,
		"retry_backoff":      cfg.Worker.RetryBackoffMinutes,
		"nats":               app.wake != nil,
		"metrics":            metrics != nil,
		"version":            version.GetVersion().Version,
	})
	return app, nil
}

func setupMetrics(cfg *config.Config, app *workerApp) (*worker.Metrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil //nolint:nilnil // metrics disabled
	}
	reader := sdkmetric.NewManualReader()
	provider, err := worker.NewMeterProvider(serviceName, version.GetVersion().Version, reader)
	if err != nil {
		return nil, fmt.Errorf("create meter provider: %w", err)
	}
	metrics, err := worker.NewMetrics(provider, cfg.Worker.ClientID)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	app.provider = provider
	app.reporter = worker.NewMetricsReporter(reader, cfg.Metrics.ExportInterval)
	return metrics, nil
}

// setupPublisher connects to NATS when enabled. Event publishing is optional,
// so connection problems fall back to a no-op publisher.
func setupPublisher(cfg *config.Config) outbound.JobEventPublisher {
	if !cfg.NATS.Enabled {
		return outboundmessaging.NoopJobEventPublisher{}
	}

	publisher, err := outboundmessaging.NewNATSJobEventPublisher(cfg.NATS)
	if err == nil {
		err = publisher.Connect()
	}
	if err == nil {
		err = publisher.EnsureStream()
	}
	if err != nil {
		slogger.WarnNoCtx("NATS unavailable, job events disabled", slogger.Fields{"error": err.Error()})
		if publisher != nil {
			_ = publisher.Close()
		}
		return outboundmessaging.NoopJobEventPublisher{}
	}
	return publisher
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(newWorkerCmd())
}
