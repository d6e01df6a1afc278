package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/egvia-interpret-server/internal/api"
	"github.com/egvia-interpret-server/internal/config"
	"github.com/egvia-interpret-server/internal/generate"
	"github.com/egvia-interpret-server/internal/pipeline"
	"github.com/egvia-interpret-server/internal/policy"
	"github.com/egvia-interpret-server/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	retriever, err := buildRetriever(configManager, logger)
	if err != nil {
		log.Fatalf("Failed to build retrieval toolchain: %v", err)
	}

	gate, err := policy.NewEngine(cfg.Policy, logger)
	if err != nil {
		log.Fatalf("Failed to build gate engine: %v", err)
	}

	orchestrator := pipeline.New(pipeline.Options{
		Retriever:    retriever,
		Extractor:    generate.NewEvidenceExtractor(logger),
		Synthesizer:  generate.NewTemplateSynthesizer(),
		Gate:         gate,
		StageTimeout: cfg.Retrieval.StageTimeout,
		RunDeadline:  cfg.Server.RunDeadline,
		Logger:       logger,
	})

	server := api.NewServer(&cfg.Server, orchestrator, logger)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting EG-VIA interpretation server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// buildRetriever assembles the retrieval toolchain from configuration:
// each enabled source wrapped in a circuit breaker, the whole set behind
// an optional cache, merged by the multi retriever.
func buildRetriever(configManager *config.Manager, logger *logrus.Logger) (external.Retriever, error) {
	cfg := configManager.GetConfig()

	var sources []external.Retriever
	if cfg.Retrieval.ClinVar.Enabled {
		sources = append(sources, external.NewResilientRetriever(external.NewClinVarClient(cfg.Retrieval.ClinVar), logger))
	}
	if cfg.Retrieval.PubMed.Enabled {
		sources = append(sources, external.NewResilientRetriever(external.NewPubMedClient(cfg.Retrieval.PubMed), logger))
	}

	var retriever external.Retriever = external.NewMultiRetriever(sources...)
	if cfg.Cache.Enabled && len(sources) > 0 {
		cached, err := external.NewCachingRetriever(retriever, cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		retriever = cached
	}
	return retriever, nil
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	if strings.ToLower(format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
