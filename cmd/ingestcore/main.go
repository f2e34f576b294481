package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ingestcore/internal/config"
	"github.com/kailas-cloud/ingestcore/internal/db"
	dbRedis "github.com/kailas-cloud/ingestcore/internal/db/redis"
	dbValkey "github.com/kailas-cloud/ingestcore/internal/db/valkey"
	"github.com/kailas-cloud/ingestcore/internal/domain"
	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
	domrecord "github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/ingestcore/internal/logger"
	"github.com/kailas-cloud/ingestcore/internal/metrics"
	budgetrepo "github.com/kailas-cloud/ingestcore/internal/repository/budget"
	collectionrepo "github.com/kailas-cloud/ingestcore/internal/repository/collection"
	"github.com/kailas-cloud/ingestcore/internal/repository/backupstore"
	"github.com/kailas-cloud/ingestcore/internal/repository/embcache"
	recordrepo "github.com/kailas-cloud/ingestcore/internal/repository/record"
	searchrepo "github.com/kailas-cloud/ingestcore/internal/repository/search"
	mcptransport "github.com/kailas-cloud/ingestcore/internal/transport/mcp"
	openaiEmb "github.com/kailas-cloud/ingestcore/internal/transport/openai"
	"github.com/kailas-cloud/ingestcore/internal/version"
	"github.com/kailas-cloud/ingestcore/internal/usecase/bulk"
	"github.com/kailas-cloud/ingestcore/internal/usecase/collection"
	embeddinguc "github.com/kailas-cloud/ingestcore/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ingestcore/internal/usecase/health"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
	"github.com/kailas-cloud/ingestcore/internal/usecase/query"
)

// documentsCollection and codeCollection are the two fixed collections the
// ingestion surface writes to; every tool accepts content_type "docs" or
// "code" and maps it to one of these.
const (
	documentsCollection = "documents"
	codeCollection      = "code"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ingestcore",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	domain.KeyPrefix = cfg.Storage.KeyPrefix

	var store db.Store
	switch cfg.Database.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]

	var budget *embeddinguc.BudgetTracker
	budgetCfg := provCfg.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			provName, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	docEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.DocumentInstruction, store, budgetChecker, logger)
	queryEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.QueryInstruction, store, budgetChecker, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	vectorDim := vecCfg.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}

	collRepo := collectionrepo.New(store, vectorDim).WithHNSW(collectionrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	collSvc := collection.New(collRepo, vectorDim)
	if err := bootstrapCollections(ctx, collSvc); err != nil {
		logger.Fatal("Failed to bootstrap collections", zap.Error(err))
	}
	logger.Info("Collections ready", zap.Strings("collections", []string{documentsCollection, codeCollection}))

	recRepo := recordrepo.New(store)
	searchRepo := searchrepo.New(store)
	backupStore := backupstore.New(cfg.Backup.Directory)

	var simChecker ingest.SimilarityChecker
	if cfg.Ingestion.EnableSimilarityCheck {
		simChecker = cosineSimilarityChecker{}
	}
	ingestSvc := ingest.New(recRepo, docEmbedder, simChecker).
		WithChunkDefaults(cfg.Ingestion.ChunkSizeDefault, cfg.Ingestion.ChunkOverlapDefault).
		WithSimilarityThreshold(cfg.Ingestion.SimilarityThreshold)

	querySvc := query.New(queryRepo{searchRepo: searchRepo, recordRepo: recRepo}, queryEmbedder, indexedFieldSet()).
		WithQualityThreshold(cfg.Verify.QualityThreshold)
	bulkSvc := bulk.New(recRepo, backupStore, ingestSvc)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(docEmbedder))

	mcpServer, err := mcptransport.NewServer(&mcptransport.Ports{
		Ingest: ingestSvc,
		Query:  querySvc,
		Bulk:   bulkSvc,
	})
	if err != nil {
		logger.Fatal("Failed to build MCP server", zap.Error(err))
	}

	mcpCtx, cancelMCP := context.WithCancel(context.Background())
	mcpErrCh := make(chan error, 1)
	go func() {
		logger.Info("Starting MCP tool server over stdio")
		mcpErrCh <- mcpServer.Run(mcpCtx)
	}()

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		report := healthSvc.Check(req.Context())
		status := http.StatusOK
		if report.Status != healthuc.Healthy {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(string(report.Status)))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting ambient HTTP side-channel", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP side-channel error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-mcpErrCh:
		if err != nil {
			logger.Error("MCP server stopped with an error", zap.Error(err))
		}
	}

	cancelMCP()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// bootstrapCollections provisions the two fixed collections idempotently.
func bootstrapCollections(ctx context.Context, svc *collection.Service) error {
	for _, name := range []string{documentsCollection, codeCollection} {
		_, err := svc.Create(ctx, name, recordrepo.SchemaFields())
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return err
	}
	return nil
}

// indexedFieldSet builds the field-name lookup query.Service uses to reject
// filters over fields the collections never index (boundary scenario for
// IndexRequired), from the same schema bootstrapCollections provisions.
func indexedFieldSet() map[string]bool {
	fields := recordrepo.SchemaFields()
	indexed := make(map[string]bool, len(fields))
	for _, f := range fields {
		indexed[f.Name()] = true
	}
	return indexed
}

// queryRepo composes the search-scoring repository with the flat-record
// repository into the single contract query.Service needs: both are named
// Repo in their own packages, so a plain struct embed of both would collide
// on the field name "Repo" — each is held in its own named field instead,
// and the methods below delegate to it.
type queryRepo struct {
	searchRepo *searchrepo.Repo
	recordRepo *recordrepo.Repo
}

func (q queryRepo) SearchKNN(
	ctx context.Context, collection string, vector []float32, filter *filterexpr.Node, topK int, includeVectors bool,
) ([]result.Result, error) {
	return q.searchRepo.SearchKNN(ctx, collection, vector, filter, topK, includeVectors)
}

func (q queryRepo) SearchBM25(
	ctx context.Context, collection, text string, filter *filterexpr.Node, topK int,
) ([]result.Result, error) {
	return q.searchRepo.SearchBM25(ctx, collection, text, filter, topK)
}

func (q queryRepo) SupportsTextSearch(ctx context.Context) bool {
	return q.searchRepo.SupportsTextSearch(ctx)
}

func (q queryRepo) GetByPath(ctx context.Context, collection, filePath string) (domrecord.Record, bool, error) {
	return q.recordRepo.GetByPath(ctx, collection, filePath)
}

func (q queryRepo) FindByFilter(
	ctx context.Context, collection string, filter *filterexpr.Node, offset, limit int,
) ([]domrecord.Record, int, error) {
	return q.recordRepo.FindByFilter(ctx, collection, filter, offset, limit)
}

// cosineSimilarityChecker adapts fingerprint.CosineSimilarity to
// ingest.SimilarityChecker.
type cosineSimilarityChecker struct{}

func (cosineSimilarityChecker) Similar(a, b []float32) (float64, bool) {
	return fingerprint.CosineSimilarity(a, b)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, budget, logger)

	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"code":"internal_error","message":"internal error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
			)
		})
	}
}

