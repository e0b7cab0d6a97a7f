package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wasiiff/blokk-lens/internal/advisor"
	"github.com/wasiiff/blokk-lens/internal/alert"
	"github.com/wasiiff/blokk-lens/internal/bot"
	"github.com/wasiiff/blokk-lens/internal/cache"
	"github.com/wasiiff/blokk-lens/internal/config"
	"github.com/wasiiff/blokk-lens/internal/db"
	"github.com/wasiiff/blokk-lens/internal/handler"
	"github.com/wasiiff/blokk-lens/internal/job"
	"github.com/wasiiff/blokk-lens/internal/marketdata"
	"github.com/wasiiff/blokk-lens/internal/provider"
	"github.com/wasiiff/blokk-lens/internal/repository"
	"github.com/wasiiff/blokk-lens/internal/service"
	"github.com/wasiiff/blokk-lens/pkg/tracing"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newAlertRepoFunc       = repository.NewAlertRepository
	newBacktestRepoFunc    = repository.NewBacktestRepository
	newMarketServiceFunc   = marketdata.NewService
	newAnalysisServiceFunc = service.NewAnalysisService
	newBacktestServiceFunc = service.NewBacktestService
	newEvaluatorFunc       = alert.NewEvaluator
	newAlertPollerFunc     = job.NewAlertPoller
	startAlertPollerFunc   = func(p *job.AlertPoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Shared cache: Redis when reachable, in-process map otherwise.
	var store cache.Store
	if client, err := initRedisFunc(ctx, cfg.RedisURL); err != nil {
		log.Printf("Redis unavailable (%v), using in-memory cache", err)
		store = cache.NewMemoryStore()
	} else {
		store = cache.NewRedisStore(client, time.Duration(cfg.CacheTTLSecs)*time.Second)
	}

	// Repositories only exist when Postgres is wired; the server still
	// serves market data without them.
	var (
		backtestStore service.BacktestStore
		alertStore    handler.AlertStore
		alertRepo     *repository.AlertRepository
	)
	if db.Pool != nil {
		alertRepo = newAlertRepoFunc(db.Pool, tracer)
		backtestRepo := newBacktestRepoFunc(db.Pool, tracer)
		if err := alertRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run alert migrations: %v", err)
		}
		if err := backtestRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run backtest migrations: %v", err)
		}
		backtestStore = backtestRepo
		alertStore = alertRepo
	}

	providers := []provider.DataProvider{
		provider.NewCoinGecko(tracer, cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey),
		provider.NewBinance(tracer, cfg.BinanceBaseURL),
	}
	marketService := newMarketServiceFunc(
		tracer,
		store,
		providers,
		time.Duration(cfg.CacheStalenessSecs)*time.Second,
		marketdata.Timeouts{
			Primary:  time.Duration(cfg.PrimaryTimeoutSecs) * time.Second,
			Heavy:    time.Duration(cfg.HeavyTimeoutSecs) * time.Second,
			Fallback: time.Duration(cfg.FallbackTimeoutSecs) * time.Second,
		},
	)

	var textGen service.TextGenerator
	if cfg.OpenAIAPIKey != "" {
		textGen = advisor.New(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	analysisService := newAnalysisServiceFunc(tracer, marketService)
	backtestService := newBacktestServiceFunc(tracer, marketService, backtestStore, textGen)
	backtestService.SetDefaultMinConfidence(cfg.DefaultMinConfidence)

	dispatcher := startTelegramBotFunc(cfg.TelegramBotToken, marketService, analysisService)

	h := newHandlerFunc(tracer, marketService, analysisService, backtestService, alertStore)

	if alertRepo != nil {
		evaluator := newEvaluatorFunc(tracer, marketService, alertRepo, dispatcher)
		h.SetAlertEvaluator(evaluator)
		poller := newAlertPollerFunc(tracer, evaluator, time.Duration(cfg.AlertPollSecs)*time.Second)
		startAlertPollerFunc(poller, ctx)
	}

	r := newRouterFunc()
	r.Use(otelgin.Middleware("blokk-lens"))
	r.Use(cors.Default())
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
