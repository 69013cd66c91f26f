package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/agent"
	"github.com/drug-repurposing-server/internal/api"
	"github.com/drug-repurposing-server/internal/config"
	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/internal/orchestrator"
	"github.com/drug-repurposing-server/internal/report"
	"github.com/drug-repurposing-server/internal/runstore"
	"github.com/drug-repurposing-server/internal/service"
	"github.com/drug-repurposing-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting drug repurposing server")

	// Shared infrastructure
	cache, err := external.NewResponseCache(cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize response cache")
	}

	graph, err := external.NewGraphStore(cfg.GraphDB, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to graph database")
	}
	defer graph.Close(context.Background())

	// External collaborator clients
	apis := cfg.ExternalAPI
	ols := external.NewOLSClient(apis.OLS, cache, logger)
	mesh := external.NewMeSHClient(apis.MeSH, cache, logger)
	opentargets := external.NewOpenTargetsClient(apis.OpenTargets, cache, logger)
	chembl := external.NewChEMBLClient(apis.ChEMBL, cache, logger)
	dgidb := external.NewDGIdbClient(apis.DGIdb, cache, logger)
	reactome := external.NewReactomeClient(apis.Reactome, cache, logger)
	uniprot := external.NewUniProtClient(apis.UniProt, cache, logger)
	ncbiGene := external.NewNCBIGeneClient(apis.NCBIGene, cache, logger)
	stringdb := external.NewStringDBClient(apis.StringDB, cache, logger)
	pubmed := external.NewPubMedClient(apis.PubMed, cache, logger)
	trialsRegistry := external.NewClinicalTrialsClient(apis.ClinicalTrials, cache, logger)
	websearch := external.NewWebSearchClient(apis.WebSearch, cache, logger)
	llm := external.NewLLMClient(apis.LLM, logger)

	// Domain services
	areaMapper := service.NewTherapeuticAreaMapper(logger, mesh, ols)
	resolver := service.NewDiseaseResolver(logger, ols, mesh, areaMapper)
	pathways := service.NewPathwayService(logger, uniprot, reactome)
	targets := service.NewTargetDiscovery(logger, opentargets, uniprot, ncbiGene, pathways, graph, cfg.Pipeline)
	engine := service.NewRepurposingEngine(logger, opentargets, pathways, graph, cfg.Pipeline)
	enricher := service.NewCandidateEnricher(logger, dgidb, stringdb)
	deduper := service.NewDrugDeduplicator(logger, chembl)
	validator := service.NewEvidenceValidator(logger)

	scorer, err := service.NewScoringEngine(logger, service.DefaultScoringWeights())
	if err != nil {
		logger.WithError(err).Fatal("Invalid scoring weights")
	}
	ranker := service.NewCandidateRanker(logger, domain.RankingStrategy(cfg.Pipeline.RankingStrategy))
	discovery := service.NewDiscoveryPipeline(logger, opentargets, targets, engine, enricher, deduper, validator, scorer)

	// Evidence-gathering agents
	webintel := agent.NewWebIntelAgent(logger, websearch, llm)
	literature := agent.NewLiteratureAgent(logger, pubmed, llm)
	trials := agent.NewTrialsAgent(logger, trialsRegistry)
	patents := agent.NewPatentAgent(logger, websearch)
	supply := agent.NewSupplyAgent(logger, websearch)

	// Run persistence
	if err := os.MkdirAll(cfg.Pipeline.DataDir, 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}
	index, err := runstore.OpenIndex(logger, filepath.Join(cfg.Pipeline.DataDir, "index.db"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to open run catalog")
	}
	defer index.Close()

	store, err := runstore.NewStore(logger, cfg.Pipeline.DataDir, index)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open run store")
	}

	pipeline := orchestrator.NewPipeline(
		logger,
		store,
		resolver,
		discovery,
		webintel,
		literature,
		trials,
		patents,
		supply,
		ranker,
		areaMapper,
		report.NewRenderer(),
	)

	server := api.NewServer(logger, *cfg, store, pipeline)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		logger.SetOutput(os.Stdout)
	}

	return logger
}
