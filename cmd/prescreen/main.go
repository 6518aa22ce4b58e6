// Command prescreen evaluates the pending queue once and logs what the
// pipeline would recommend. It never writes to the store.
package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rental_moderation/internal/adapters/gemini"
	"rental_moderation/internal/adapters/observability"
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

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "prescreen")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	th, err := shared.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid moderation thresholds")
	}

	log.Info().
		Str("backend", cfg.StoreBackend).
		Int("workers", cfg.PrescreenWorkers).
		Int("limit", cfg.PrescreenLimit).
		Msg("prescreen starting")

	var store domain.ListingStore
	switch cfg.StoreBackend {
	case shared.BackendMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connect failed")
		}
		defer client.Disconnect(context.Background())
		store = mongorepo.New(client.Database(cfg.MongoDB))
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		store = mysqlrepo.New(db)
	}

	fetch := gemini.NewFetcher(cfg.VisionTimeout, cfg.FetchRPS, cfg.UploadsDir)
	vision, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL}, fetch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Gemini client")
	}
	analyzer := app.NewImageAnalyzer(vision, cfg.VisionTimeout, cfg.VisionConcurrency)
	// no notifier and no cache: this run only reads
	m := app.NewModerationService(analyzer, store, nil, nil, th).WithMaxImages(cfg.MaxImages)

	pending, err := store.ListPending(ctx, cfg.PrescreenLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("list pending failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.PrescreenWorkers))
	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[domain.Recommendation]int{}

	for _, l := range pending {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("prescreen interrupted")
			break
		}
		wg.Add(1)
		go func(l domain.Listing) {
			defer wg.Done()
			defer sem.Release(1)

			if len(l.Images) == 0 {
				log.Info().Str("listing", l.ID).Msg("no photos, needs a moderator")
				mu.Lock()
				counts[domain.RecommendReview]++
				mu.Unlock()
				return
			}
			ev, err := m.Evaluate(ctx, l.Images, l.Amenities, l.Meta())
			if err != nil {
				log.Warn().Str("listing", l.ID).Err(err).Msg("evaluate failed")
				return
			}
			mu.Lock()
			counts[ev.Recommendation]++
			mu.Unlock()
			log.Info().
				Str("listing", l.ID).
				Int("score", ev.TotalScore).
				Str("recommendation", string(ev.Recommendation)).
				Int("accuracy", ev.AmenitiesComparison.AccuracyScore).
				Strs("reasons", ev.Reasons).
				Msg("prescreened")
		}(l)
	}

	wg.Wait()
	log.Info().
		Int("listings", len(pending)).
		Int("approved", counts[domain.RecommendApproved]).
		Int("review", counts[domain.RecommendReview]).
		Int("rejected", counts[domain.RecommendRejected]).
		Msg("prescreen completed")
}
