package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/goldenmouse/bulletin-bot/internal/config"
	"github.com/goldenmouse/bulletin-bot/internal/crawler"
	"github.com/goldenmouse/bulletin-bot/internal/mailer"
	"github.com/goldenmouse/bulletin-bot/internal/masker"
	"github.com/goldenmouse/bulletin-bot/internal/notifier"
	"github.com/goldenmouse/bulletin-bot/internal/parser"
	"github.com/goldenmouse/bulletin-bot/internal/source"
	"github.com/goldenmouse/bulletin-bot/internal/storage"
	"github.com/goldenmouse/bulletin-bot/internal/summary"
)

func main() {
	cfg := config.Get()

	db, err := sqlx.Connect("postgres", cfg.DatabaseDSN)
	if err != nil {
		log.Printf("failed to connect to database: %v", err)
		return
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := storage.InitSchema(ctx, db); err != nil {
		log.Printf("failed to init schema: %v", err)
		return
	}

	subscriberStorage := storage.NewSubscriberPostgresStorage(db, cfg.SubscriberMask)
	if err := subscriberStorage.SeedPlatforms(ctx, storage.DefaultPlatforms); err != nil {
		log.Printf("failed to seed platforms: %v", err)
		return
	}

	var (
		articleStorage = storage.NewArticlePostgresStorage(db)
		client         = source.NewClient(
			cfg.RequestTimeout,
			cfg.MaxRetries,
			cfg.RequestsPerSecond,
			cfg.UserAgent,
			cfg.Referer,
		)
		site         = source.NewSite(client, cfg.BaseURL, cfg.TotalPages)
		detailParser = parser.New(masker.New(cfg.DLPMaskURL), site, site)
		crawl        = crawler.New(
			articleStorage,
			site,
			detailParser,
			cfg.StartPage,
			cfg.EndPage,
			crawler.DefaultSleepIntervals(),
		)
		notify = notifier.New(
			articleStorage,
			subscriberStorage,
			mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SMTPPassword),
			summary.NewOpenAISummarizer(cfg.OpenAIKey, cfg.OpenAIPromt),
			notifier.NewSentCache(200),
			cfg.SubscribePageURL,
		)
	)

	// One pass: crawl, enrich, then notify when anything new landed
	runOnce := func() {
		newURLs, err := crawl.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[ERROR] crawl run failed: %v", err)
		}
		if len(newURLs) == 0 {
			return
		}

		log.Printf("found %d new articles, notifying subscribers", len(newURLs))

		if err := notify.Notify(ctx, newURLs); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[ERROR] notification run failed: %v", err)
		}
	}

	log.Printf("bulletin bot started, crawling every %s", cfg.CrawlInterval)

	// Runs stay serial on purpose: a pass must finish before the next tick
	// is picked up, so two enrichment sweeps never race on the same rows
	runOnce()

	ticker := time.NewTicker(cfg.CrawlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("bulletin bot stopped")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
