package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reply-orchestrator/internal/adapter/catalog"
	"reply-orchestrator/internal/adapter/gateway"
	"reply-orchestrator/internal/adapter/httpapi"
	"reply-orchestrator/internal/adapter/repository"
	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra"
	"reply-orchestrator/internal/infra/config"
	"reply-orchestrator/internal/infra/httpclient"
	"reply-orchestrator/internal/infra/logger"
	"reply-orchestrator/internal/usecase"
	"reply-orchestrator/internal/worker"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOTel(cfg.Env == "production")
	slog.SetDefault(log)

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(context.Background(), cfg.DSN())
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Initialize Adapters
	docRepo := repository.NewDocumentRepository(dbPool)
	chunkRepo := repository.NewChunkRepository(dbPool)
	itemRepo := repository.NewContentItemRepository(dbPool)
	poolRepo := repository.NewPoolRepository(dbPool)
	jobRepo := repository.NewIngestJobRepository(dbPool)
	txManager := repository.NewPostgresTransactionManager(dbPool)

	gatewayClient := httpclient.NewPooledClient(time.Duration(cfg.GatewayTimeoutSec) * time.Second)
	embedder, err := gateway.NewOpenAIEmbedder(
		cfg.GatewayBaseURL,
		cfg.GatewayAPIKey,
		cfg.EmbeddingModel,
		cfg.GatewayRatePerSec,
		cfg.GatewayMaxRetries,
		cfg.EmbeddingCacheSize,
		gateway.WithEmbedderHTTPClient(gatewayClient),
	)
	if err != nil {
		log.Error("failed to build embedder", "error", err)
		os.Exit(1)
	}
	completer := gateway.NewOpenAICompleter(
		cfg.GatewayBaseURL,
		cfg.GatewayAPIKey,
		cfg.CompletionModel,
		cfg.GatewayRatePerSec,
		cfg.GatewayMaxRetries,
		gateway.WithCompleterHTTPClient(gatewayClient),
	)
	catalogClient := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogTimeoutSec, nil)

	// 5. Initialize Usecases
	chunker := domain.NewChunker()
	budgets := domain.NewBudgetExtractor()

	ingestUsecase := usecase.NewIngestDocumentUsecase(
		docRepo,
		chunkRepo,
		itemRepo,
		txManager,
		chunker,
		embedder,
		cfg.ChunkEmbedRetries,
	)
	retrieveUsecase := usecase.NewRetrieveUsecase(chunkRepo, embedder, usecase.FusionWeights{
		Semantic: cfg.SemanticWeight,
		Lexical:  cfg.LexicalWeight,
	})
	poolUsecase := usecase.NewBuildPoolUsecase(poolRepo, itemRepo, catalogClient, usecase.PoolWeights{
		Brand:    cfg.PoolBrandWeight,
		Category: cfg.PoolCategoryWeight,
		Price:    cfg.PoolPriceWeight,
		Tags:     cfg.PoolTagWeight,
	})
	reranker := usecase.NewPriceReranker(budgets, usecase.RerankWeights{
		Semantic: cfg.RerankSemanticWeight,
		Price:    cfg.RerankPriceWeight,
	})
	composeUsecase := usecase.NewComposeAnswerUsecase(
		retrieveUsecase,
		poolRepo,
		itemRepo,
		reranker,
		usecase.NewXMLPromptBuilder(),
		completer,
		usecase.NewOutputValidator(cfg.MaxOutboundLinks),
		usecase.AnswerLimits{
			MaxTranscriptChunks:  cfg.MaxTranscriptChunks,
			MaxCatalogCandidates: cfg.MaxCatalogCandidates,
			MaxCommentChunks:     cfg.MaxCommentChunks,
			MaxTokens:            cfg.AnswerMaxTokens,
			Temperature:          cfg.AnswerTemperature,
			BatchConcurrency:     cfg.BatchConcurrency,
		},
	)
	statsUsecase := usecase.NewStatsUsecase(docRepo, poolRepo, jobRepo)

	// 6. Initialize & Start Worker
	ingestWorker := worker.NewIngestWorker(jobRepo, ingestUsecase, log, worker.Options{
		BatchSize:       cfg.WorkerBatchSize,
		InterBatchPause: time.Duration(cfg.WorkerPauseMS) * time.Millisecond,
		PollInterval:    time.Duration(cfg.WorkerPollMS) * time.Millisecond,
	})
	ingestWorker.Start()
	defer func() {
		log.Info("Stopping worker...")
		ingestWorker.Stop()
	}()

	// 7. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 8. Register Handlers
	handler := httpapi.NewHandler(
		ingestUsecase,
		retrieveUsecase,
		poolUsecase,
		composeUsecase,
		statsUsecase,
		itemRepo,
		jobRepo,
	)
	handler.Register(e)

	// 9. Health Checks & Metrics
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// 10. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
