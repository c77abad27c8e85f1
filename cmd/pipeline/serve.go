package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/guardianai/telemetry-pipeline/internal/aiclient"
	"github.com/guardianai/telemetry-pipeline/internal/anomaly"
	"github.com/guardianai/telemetry-pipeline/internal/breaker"
	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/database"
	"github.com/guardianai/telemetry-pipeline/internal/emitter"
	"github.com/guardianai/telemetry-pipeline/internal/httpapi"
	"github.com/guardianai/telemetry-pipeline/internal/incident"
	"github.com/guardianai/telemetry-pipeline/internal/ingress"
	"github.com/guardianai/telemetry-pipeline/internal/normalize"
	"github.com/guardianai/telemetry-pipeline/internal/pipeline"
	"github.com/guardianai/telemetry-pipeline/internal/quality"
	"github.com/guardianai/telemetry-pipeline/internal/queryapi"
	"github.com/guardianai/telemetry-pipeline/internal/server"
	"github.com/guardianai/telemetry-pipeline/internal/store"
	"github.com/guardianai/telemetry-pipeline/internal/telemetry"
	"github.com/guardianai/telemetry-pipeline/internal/threat"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load pipeline config: %v\n", err)
		os.Exit(1)
	}
	boot, err := config.LoadBootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bootstrap config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting telemetry pipeline",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(telemetry.Config{
		Enabled:      boot.OTelEnabled,
		ServiceName:  boot.OTelServiceName,
		OTLPEndpoint: boot.OTelEndpoint,
		SampleRate:   boot.OTelSampleRate,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProviders.Shutdown(shutdownCtx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	st, err := store.NewPostgresStore(store.PostgresConfig{
		DatabaseURL: boot.DatabaseURL,
		Pool:        database.DefaultPoolConfig(),
	}, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer st.Close()

	if cfg.RequireOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := st.Ping(ctx); err != nil {
			cancel()
			logger.Error("record store not reachable at startup", zap.Error(err))
			logger.Sync()
			os.Exit(2)
		}
		cancel()
	}

	aiClient := newAIClient(cfg, boot, logger)

	sink := emitter.NewSafeSink(emitter.NewPrometheusSink(cfg.MetricsNamespace, registry, logger), logger)
	em := emitter.New(sink)

	parseFailures := promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: cfg.MetricsNamespace,
		Name:      "quality_parse_failures_total",
		Help:      "Total number of records the quality classifier could not score after exhausting retries (unparsable responses or AI call errors).",
	})

	qapi := queryapi.New(st, logger)

	deps := pipeline.Dependencies{
		Normalizer:  normalize.New(cfg),
		Quality:     quality.New(aiClient, cfg, logger, parseFailures),
		Threat:      threat.New(aiClient, cfg, logger),
		Anomaly:     anomaly.NewDetector(cfg),
		Synthesizer: incident.New(cfg),
		Store:       st,
		Emitter:     em,
		Publisher:   qapi,
		Logger:      logger,
	}
	pl := pipeline.New(cfg, deps)

	ingressAdapter := ingress.New(pl, em, logger)
	ingressHandler := ingress.NewHandler(ingressAdapter, logger)

	incidentAPI := httpapi.NewMux(qapi, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /telemetry", ingressHandler)
	mux.Handle("/incidents", incidentAPI)
	mux.Handle("/incidents/", incidentAPI)
	mux.Handle(boot.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	health := httpapi.NewHealthHandler(logger)
	health.RegisterCheck(httpapi.NewPingHealthCheck("record_store", st.Ping))
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	srv := server.NewManager(mux, server.Config{
		Addr:            boot.ListenAddr,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: boot.ShutdownGracePeriod,
	}, logger)

	pipelineCtx, cancelPipeline := context.WithCancel(context.Background())
	pipelineDone := make(chan error, 1)
	go func() { pipelineDone <- pl.Run(pipelineCtx) }()

	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start HTTP listener", zap.Error(err))
	}

	srv.WaitForShutdown()

	cancelPipeline()
	<-pipelineDone

	logger.Info("telemetry pipeline stopped")
}

func newAIClient(cfg *config.PipelineConfig, boot *config.BootstrapConfig, logger *zap.Logger) aiclient.Client {
	inner := aiclient.NewHTTPClient(aiclient.HTTPConfig{
		BaseURL: boot.AIBaseURL,
		APIKey:  boot.AIAPIKey,
		Timeout: cfg.PerCallTimeout,
	}, logger)

	br := breaker.New(breaker.Config{
		Threshold:        5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("ai client circuit breaker transition", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return aiclient.NewResilient(inner, br, cfg.MaxRetries, logger)
}
