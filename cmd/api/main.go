package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dvloznov/blobshare/internal/api"
	"github.com/dvloznov/blobshare/internal/config"
	"github.com/dvloznov/blobshare/internal/history"
	"github.com/dvloznov/blobshare/internal/jobs"
	"github.com/dvloznov/blobshare/internal/jobs/inmemory"
	"github.com/dvloznov/blobshare/internal/jobs/redisstore"
	"github.com/dvloznov/blobshare/internal/logger"
	"github.com/dvloznov/blobshare/internal/metrics"
	"github.com/dvloznov/blobshare/internal/services"
	"github.com/dvloznov/blobshare/internal/share"
	"github.com/dvloznov/blobshare/internal/worker"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "", "Path to the config file")
		port       = flag.Int("port", 0, "HTTP server port (overrides server.port)")
	)
	flag.Parse()

	log := logger.New()

	catalogue := services.All()
	cfg, err := config.Load(*configPath, catalogue)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read settings")
	}
	if *port != 0 {
		settings.Server.Port = *port
	}

	log = log.Level(logger.ParseLevel(settings.Log.Level))
	ctx := logger.WithContext(context.Background(), log)

	for _, svc := range catalogue {
		if missing := cfg.Missing(svc); len(missing) > 0 {
			log.Warn().Str("service", svc.Name).Strs("missing", missing).Msg("Service is not configured, its shares will fail")
		}
		if unknown := services.UnknownPlaceholders(svc, cfg.Service(svc.Name)); len(unknown) > 0 {
			log.Warn().Str("service", svc.Name).Strs("unknown", unknown).Msg("Patterns contain unknown placeholders, they are kept as written")
		}
	}

	// Initialize job infrastructure
	var jobStore jobs.JobStore
	if settings.Redis.URL != "" {
		client, err := redisstore.NewClient(ctx, settings.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		jobStore = redisstore.New(client, redisstore.DefaultConfig())
		log.Info().Msg("Using Redis job store")
	} else {
		jobStore = inmemory.NewStore()
		log.Info().Msg("Using in-memory job store")
	}

	var recorder history.Recorder = history.Nop{}
	if h := settings.History; h.Project != "" {
		bq, err := history.NewBigQueryRecorder(ctx, h.Project, h.Dataset, h.Table)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create history recorder")
		}
		defer bq.Close()
		recorder = bq
		log.Info().Str("project", h.Project).Str("dataset", h.Dataset).Str("table", h.Table).Msg("Recording share history")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewShareObserver(metrics.DefaultNamespace, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(settings.Server.Workers),
		inmemory.WithMaxRetries(settings.Server.MaxRetries),
	)

	lookup := func(name string) (*share.Service, error) { return services.Lookup(name) }
	shareWorker := worker.New(lookup, cfg, jobStore,
		worker.WithRecorder(recorder),
		worker.WithObserver(observer),
		worker.WithLogger(log),
	)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", settings.Server.Workers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, shareWorker.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	handler := api.NewRouter(api.Config{
		Log:            log,
		Services:       catalogue,
		Publisher:      jobQueue,
		Store:          jobStore,
		Recorder:       recorder,
		Observer:       observer,
		Gatherer:       registry,
		DefaultService: settings.DefaultService,
		TempDir:        settings.Server.TempDir,
		MaxUpload:      settings.Server.MaxUploadMB << 20,
		APIToken:       settings.Server.APIToken,
	})

	// Uploads can be large, so there is no write timeout on the request body.
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(settings.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", settings.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight shares
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
