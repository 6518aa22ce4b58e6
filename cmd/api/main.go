package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"rental_moderation/internal/adapters/gemini"
	server "rental_moderation/internal/adapters/http_server"
	"rental_moderation/internal/adapters/observability"
	redisad "rental_moderation/internal/adapters/redis"
	"rental_moderation/internal/app"
	"rental_moderation/internal/domain"
	"rental_moderation/internal/shared"
	mongorepo "rental_moderation/internal/storage/mongo"
	mysqlrepo "rental_moderation/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "moderation-api")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	th, err := shared.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid moderation thresholds")
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// redis: read cache + realtime notifications
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	cache := redisad.NewCache(rdb, cfg.CachePrefix)
	notifiers := app.MultiNotifier{redisad.NewNotifier(rdb)}

	// listing store
	var store domain.ListingStore
	switch cfg.StoreBackend {
	case shared.BackendMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connect failed")
		}
		defer client.Disconnect(context.Background())
		repo := mongorepo.New(client.Database(cfg.MongoDB))
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("ensure mongo indexes failed")
		}
		store = repo
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		repo := mysqlrepo.New(db)
		store = repo
		// stored first so the web app can list it even if the push fails
		notifiers = append(app.MultiNotifier{repo}, notifiers...)
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("listing store ready")

	// vision
	fetch := gemini.NewFetcher(cfg.VisionTimeout, cfg.FetchRPS, cfg.UploadsDir)
	vision, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL}, fetch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Gemini client")
	}

	analyzer := app.NewImageAnalyzer(vision, cfg.VisionTimeout, cfg.VisionConcurrency)
	m := app.NewModerationService(analyzer, store, notifiers, cache, th).WithMaxImages(cfg.MaxImages)
	q := app.NewQueryService(store, cache, cfg.CacheTTL)

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{M: m, Q: q})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	// in-flight reviews finish before their notifications are awaited
	<-drained
	m.WaitNotifications()
	log.Info().Msg("API stopped")
}
