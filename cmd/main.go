package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/paperdesk-backend/internal/config"
	"github.com/yungbote/paperdesk-backend/internal/data/db"
	"github.com/yungbote/paperdesk-backend/internal/data/graph"
	"github.com/yungbote/paperdesk-backend/internal/data/repos/documents"
	jobsrepo "github.com/yungbote/paperdesk-backend/internal/data/repos/jobs"
	"github.com/yungbote/paperdesk-backend/internal/jobs"
	"github.com/yungbote/paperdesk-backend/internal/jobs/handlers"
	"github.com/yungbote/paperdesk-backend/internal/jobs/runtime"
	"github.com/yungbote/paperdesk-backend/internal/jobs/worker"
	"github.com/yungbote/paperdesk-backend/internal/modules/kg"
	"github.com/yungbote/paperdesk-backend/internal/modules/rag"
	"github.com/yungbote/paperdesk-backend/internal/modules/rag/extract"
	"github.com/yungbote/paperdesk-backend/internal/observability"
	"github.com/yungbote/paperdesk-backend/internal/platform/elastic"
	"github.com/yungbote/paperdesk-backend/internal/platform/envutil"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/neo4jdb"
	"github.com/yungbote/paperdesk-backend/internal/platform/openai"
	"github.com/yungbote/paperdesk-backend/internal/platform/qdrant"
	"github.com/yungbote/paperdesk-backend/internal/platform/redisdb"
)

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.LoadRetrieval()
	if err != nil {
		log.Error("Retrieval config invalid", "error", err)
		os.Exit(1)
	}

	// Metrics
	metrics := observability.Init(log)
	metrics.StartServer(ctx, log, envutil.Str("METRICS_ADDR", ":9090"))

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Neo4j (optional; graph features are skipped when unset)
	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j init failed", "error", err)
	}
	var graphStore *graph.Store
	if neoClient != nil {
		graphStore = graph.NewStore(neoClient, log)
		graphStore.EnsureSchema(ctx)
		defer neoClient.Close(context.Background())
	}

	// Qdrant
	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Error("Qdrant config invalid", "error", err)
		os.Exit(1)
	}
	vectorStore, err := qdrant.NewVectorStore(log, qdrantCfg)
	if err != nil {
		log.Error("Qdrant init failed", "error", err)
		os.Exit(1)
	}

	// Elasticsearch (optional; retrieval falls back to vector-only)
	esClient, err := elastic.NewFromEnv(log)
	if err != nil {
		log.Warn("Elasticsearch init failed", "error", err)
	}

	// Redis (optional; concept extraction caches in-process)
	redisClient, err := redisdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Redis init failed", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// OpenAI
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("OpenAI init failed", "error", err)
		os.Exit(1)
	}

	// Repos
	documentRepo := documents.NewDocumentRepo(thePG, log)
	jobRunRepo := jobsrepo.NewJobRunRepo(thePG, log)

	// Concept extraction
	var extractCache extract.Cache
	if redisClient != nil {
		extractCache = extract.NewRedisCache(log, redisClient.RDB)
	}
	conceptExtractor := extract.NewConceptExtractor(log, openaiClient, extractCache)

	// Knowledge graph
	var (
		graphBuilder  *kg.Builder
		queryExpander *kg.QueryExpander
		visualizer    *kg.Visualizer
	)
	if graphStore != nil {
		graphExtractor := kg.NewLLMExtractor(log, openaiClient)
		graphBuilder = kg.NewBuilder(log, graphStore, graphExtractor)
		queryExpander = kg.NewQueryExpander(log, graphStore, conceptExtractor)
		visualizer = kg.NewVisualizer(log, graphStore, conceptExtractor)
	}
	_ = visualizer

	// Retrieval
	var lexical rag.LexicalSearcher
	if esClient != nil {
		lexical = esClient
	}
	var reranker rag.Reranker
	if cfg.RerankEnabled {
		reranker = rag.NewLLMReranker(log, openaiClient)
	}
	var graphExpander rag.GraphExpander
	if queryExpander != nil {
		graphExpander = queryExpander
	}
	retrievalService := rag.NewService(log, cfg, openaiClient, vectorStore, lexical, reranker, graphExpander, documentRepo)
	_ = retrievalService

	// Jobs
	enqueuer := jobs.NewEnqueuer(log, thePG, jobRunRepo)
	_ = enqueuer
	registry := runtime.NewRegistry()
	if graphBuilder != nil && esClient != nil {
		if err := registry.Register(handlers.NewKGBuildHandler(log, documentRepo, esClient, graphBuilder)); err != nil {
			log.Error("Handler registration failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("Graph build handler disabled", "neo4j", neoClient != nil, "elasticsearch", esClient != nil)
	}
	jobWorker := worker.NewWorker(thePG, log, jobRunRepo, registry)
	jobWorker.Start(ctx)

	// Collectors
	metrics.StartPostgresCollector(ctx, log, thePG)
	if redisClient != nil {
		metrics.StartRedisCollector(ctx, log, redisClient.Addr)
	}
	metrics.StartJobQueueCollector(ctx, log, thePG)

	log.Info("paperdesk worker up", "rerank", cfg.RerankEnabled, "graph", graphStore != nil, "lexical", esClient != nil)
	<-ctx.Done()
	log.Info("Shutting down")
}
