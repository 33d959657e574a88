// Command server boots the workflow orchestration service: it wires the
// Executor Registry (C1), Task Catalog Store (C2), Workflow Repository
// (C4), Workflow Engine (C5), Task Scheduler (C7), Execution Stream (C8),
// and HTTP Surface (C9) together and serves them over gin.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/compozy/workflows/internal/catalog"
	"github.com/compozy/workflows/internal/config"
	"github.com/compozy/workflows/internal/executor"
	"github.com/compozy/workflows/internal/httpapi"
	"github.com/compozy/workflows/internal/logger"
	"github.com/compozy/workflows/internal/paramanalyzer"
	"github.com/compozy/workflows/internal/postgres"
	"github.com/compozy/workflows/internal/scheduler"
	"github.com/compozy/workflows/internal/stream"
	"github.com/compozy/workflows/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := config.NewManager()
	cfg, err := mgr.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Level(cfg.Runtime.LogLevel))
	ctx = logger.ContextWithLogger(ctx, log)

	dsn := postgresDSN(&cfg.Database)
	if err := postgres.ApplyMigrationsWithLock(ctx, dsn); err != nil {
		log.Error("applying migrations", "error", err)
		os.Exit(1)
	}

	pool, err := connectPostgres(ctx, dsn)
	if err != nil {
		log.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	catalogStore := catalog.NewStore(pool)
	workflowRepo := workflow.NewPostgresRepository(pool)
	nodeTypeCache := workflow.NewNodeTypeCache(0, workflowRepo.NodeTypeByShape)

	registry := buildRegistry(pool, catalogStore, cfg)

	gw, err := workflow.NewGatewayEvaluator(cfg.Engine.GatewayCacheSz)
	if err != nil {
		log.Error("building gateway evaluator", "error", err)
		os.Exit(1)
	}

	engine := workflow.NewEngine(
		cachedRepository{Repository: workflowRepo, cache: nodeTypeCache},
		registry,
		catalogStore.Resolver(),
		gw,
		cfg.Engine.MaxSteps,
	)

	recurringStore := scheduler.NewRedisRecurringStore(redisClient)
	schedulerStore := scheduler.NewStore(pool)
	sched := scheduler.New(catalogStore.SchedulerCatalog(), schedulerStore, recurringStore, registry)
	schedRunner := scheduler.NewRunner(sched, recurringStore, cfg.Scheduler.PollInterval)

	deps := &httpapi.Deps{
		Engine:         engine,
		Repo:           workflowRepo,
		NodeTypeOf:     nodeTypeCache.Func(),
		DeclaredParams: paramanalyzer.DeclaredParams(catalogStore.DeclaredParamsFunc()),
		ScriptPath:     paramanalyzer.ScriptPath(catalogStore.ScriptPathFunc()),
		StreamSource:   stream.Source(workflowRepo),
		Scheduler:      sched,
		MaxSteps:       cfg.Engine.MaxSteps,
		Metrics:        httpapi.NewMetrics(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	deps.Register(r, []byte(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "error", err)
		}
	}()

	go func() {
		log.Info("starting scheduler runner", "poll_interval", cfg.Scheduler.PollInterval)
		schedRunner.Start(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func postgresDSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)
}

func connectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// buildRegistry assembles the Executor Registry (C1) with every kind
// spec.md §4.1 names.
func buildRegistry(pool *pgxpool.Pool, catalogStore *catalog.Store, cfg *config.Config) *executor.Registry {
	reg := executor.NewRegistry()
	reg.Register(executor.KindPython, executor.NewScriptExecutor("python3", cfg.Engine.ScriptsRoot, cfg.Engine.ExecTimeout))
	reg.Register(executor.KindBash, executor.NewScriptExecutor("bash", cfg.Engine.ScriptsRoot, cfg.Engine.ExecTimeout))
	reg.Register(
		executor.KindStoredProcedure,
		executor.NewDBExecutor(pool, executor.ParamOrder(catalogStore.ParamOrderFor), true),
	)
	reg.Register(
		executor.KindStoredFunction,
		executor.NewDBExecutor(pool, executor.ParamOrder(catalogStore.ParamOrderFor), false),
	)
	reg.Register(executor.KindHTTP, executor.NewHTTPExecutor(resty.New().SetTimeout(cfg.Engine.ExecTimeout)))
	return reg
}

// cachedRepository overlays NodeTypeCache onto a Repository so the Engine's
// own NodeTypeByShape calls hit the LRU cache instead of the database.
type cachedRepository struct {
	workflow.Repository
	cache *workflow.NodeTypeCache
}

func (c cachedRepository) NodeTypeByShape(shapeName string) (workflow.NodeType, bool) {
	return c.cache.Get(shapeName)
}
