package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/acast"
	"github.com/book-expert/speech-publisher/internal/artifact"
	"github.com/book-expert/speech-publisher/internal/audio"
	"github.com/book-expert/speech-publisher/internal/chunker"
	"github.com/book-expert/speech-publisher/internal/config"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/httpapi"
	"github.com/book-expert/speech-publisher/internal/objectstore"
	"github.com/book-expert/speech-publisher/internal/pipeline"
	"github.com/book-expert/speech-publisher/internal/queue"
	"github.com/book-expert/speech-publisher/internal/status"
	"github.com/book-expert/speech-publisher/internal/synth"
	"github.com/book-expert/speech-publisher/internal/tracker"
	"github.com/book-expert/speech-publisher/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout    = 30 * time.Second
	readHeaderTimeout  = 10 * time.Second
	modelRetryInterval = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the queue poller and the optional NATS worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx)
		},
	}
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "speech-publisher.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// service holds everything serve wires together.
type service struct {
	cfg      *config.Config
	log      *logger.Logger
	runtime  *synth.Runtime
	pipeline *pipeline.Pipeline
	tracker  *tracker.Client
	natsConn *nats.Conn
	format   audio.Format
}

func serve(ctx context.Context) error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	svc, err := buildService(cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to initialize service: %v", err)

		return err
	}

	if svc.natsConn != nil {
		defer svc.natsConn.Close()
	}

	return svc.run(ctx)
}

func buildService(cfg *config.Config, log *logger.Logger) (*service, error) {
	format, err := audio.ParseFormat(cfg.Service.AudioFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	if !format.SupportsSampleRate(cfg.Model.SampleRate) {
		return nil, fmt.Errorf("%w: %s cannot encode %d Hz audio", core.ErrConfiguration, format, cfg.Model.SampleRate)
	}

	textChunker, err := chunker.New(cfg.Service.MaxChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	svc := &service{
		cfg:     cfg,
		log:     log,
		runtime: synth.NewRuntime(newModel(cfg, log), log),
		format:  format,
	}

	var sink status.Sink

	if cfg.Tracker.BaseURL != "" {
		svc.tracker = tracker.NewClient(cfg.Tracker.BaseURL, cfg.Tracker.APIToken, cfg.TrackerTimeout())
		sink = svc.tracker
	} else {
		log.Warn("tracker.base_url is not set, status updates are only logged")
	}

	reporter := status.NewReporter(sink, cfg.TrackerTimeout(), log)

	uploader, err := acast.NewClient(acast.Config{
		BaseURL:       cfg.Acast.BaseURL,
		APIKey:        cfg.Acast.APIKey,
		DefaultShowID: cfg.Acast.DefaultShowID,
		AssetsDir:     cfg.Acast.AssetsDir,
		Timeout:       cfg.AcastTimeout(),
	}, reporter, log)
	if err != nil {
		return nil, err
	}

	var archive core.ArtifactArchive

	if cfg.NATS.URL != "" {
		natsArchive, connectErr := svc.connectNATS()
		if connectErr != nil {
			return nil, connectErr
		}

		archive = natsArchive
	}

	svc.pipeline, err = pipeline.New(pipeline.Dependencies{
		Chunker:     textChunker,
		Synthesizer: svc.runtime,
		Store:       artifact.NewStore(cfg.Service.OutputDir, cfg.Service.FallbackDir, log),
		Uploader:    uploader,
		Reporter:    reporter,
		Archive:     archive,
		Logger:      log,
	}, pipeline.Options{
		Format:       format,
		PromptPath:   cfg.Service.AudioPromptPath,
		Exaggeration: cfg.Service.Exaggeration,
		MinP:         cfg.Service.MinP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return svc, nil
}

func newModel(cfg *config.Config, log *logger.Logger) synth.Model {
	if cfg.Model.Backend == config.BackendCommand {
		return synth.NewCommandModel(cfg.Model.BinaryPath, cfg.Model.ModelPath, cfg.Model.SampleRate, log)
	}

	client := synth.NewHTTPClient(cfg.Model.ServiceURL, cfg.ModelTimeout())

	return synth.NewHTTPModel(client, cfg.Model.Workers, cfg.Model.SampleRate, log)
}

func (s *service) connectNATS() (*objectstore.Archive, error) {
	natsConnection, err := nats.Connect(s.cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", s.cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, s.cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, err
	}

	s.natsConn = natsConnection
	s.log.System("Connected to NATS at %s, archiving artifacts in %s", s.cfg.NATS.URL, s.cfg.NATS.AudioObjectStoreBucket)

	return objectstore.NewArchive(store, natsConnection, s.cfg.NATS.AudioCreatedSubject), nil
}

func (s *service) run(parent context.Context) error {
	ctx, cancelRun := context.WithCancel(parent)
	defer cancelRun()

	var (
		waitGroup sync.WaitGroup
		queueSrc  core.QueueSource
	)

	if s.tracker != nil {
		queueSrc = s.tracker
	}

	waitGroup.Add(1)

	go func() {
		defer waitGroup.Done()

		loadErr := s.runtime.LoadWithRetry(ctx, modelRetryInterval)
		if loadErr != nil {
			s.log.Warn("Model never loaded: %v", loadErr)
		}
	}()

	if s.cfg.Poller.Enabled && queueSrc != nil {
		poller := queue.NewPoller(queueSrc, s.pipeline, s.runtime, s.cfg.PollerWarmup(), s.cfg.PollerIdle(), s.log)

		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			poller.Run(ctx)
		}()
	}

	if s.natsConn != nil {
		natsWorker, err := worker.NewNatsWorker(s.natsConn, s.cfg.NATS.SpeechSubject, s.pipeline,
			s.cfg.NATSRequestTimeout(), s.log)
		if err != nil {
			return fmt.Errorf("failed to create NATS worker: %w", err)
		}

		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			runErr := natsWorker.Run(ctx)
			if runErr != nil {
				s.log.Error("NATS worker stopped with error: %v", runErr)
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)

	handler := httpapi.NewHandler(s.pipeline, s.runtime, queueSrc, s.format, s.log)
	server := &http.Server{
		Addr:              s.cfg.Service.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		s.log.System("Speech publisher listening on %s", s.cfg.Service.HTTPAddr)
		serveErr <- server.ListenAndServe()
	}()

	var runErr error

	select {
	case <-ctx.Done():
		s.log.System("Shutdown signal received.")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.log.Error("HTTP server shutdown failed: %v", shutdownErr)
	}

	waitGroup.Wait()

	modelErr := s.runtime.Shutdown()
	if modelErr != nil && runErr == nil {
		runErr = modelErr
	}

	s.log.System("Speech publisher stopped.")

	return runErr
}
