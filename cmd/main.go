package main

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/car-tracker/internal/api"
	"github.com/maxaizer/car-tracker/internal/bot"
	"github.com/maxaizer/car-tracker/internal/clients/scraper"
	"github.com/maxaizer/car-tracker/internal/config"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/logger"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/maxaizer/car-tracker/internal/repositories"
	"github.com/maxaizer/car-tracker/internal/services"
	log "github.com/sirupsen/logrus"
	"os/signal"
	"sync"
	"syscall"
)

const snapshotKey = "searches"

func openStore(cfg config.StorageConfig) (services.Store, func()) {

	switch cfg.Driver {
	case config.DriverSqlite:
		dbContext, err := repositories.NewDbContext(cfg.Path)
		if err != nil {
			log.Fatalf("can't create db context: %v", err)
		}
		if err = dbContext.Migrate(); err != nil {
			log.Fatalf("can't migrate db context: %v", err)
		}
		blob := repositories.NewDataBlob(repositories.NewDataRepository(dbContext.DB), snapshotKey)
		return repositories.NewCachedStore(repositories.NewSnapshotStore(blob)), func() {
			if err := dbContext.Close(); err != nil {
				log.Errorf("can't close db context: %v", err)
			}
		}
	case config.DriverMemory:
		log.Warn("searches are kept in memory and will be lost on exit")
		return repositories.NewSnapshotStore(repositories.NewMemoryBlob()), func() {}
	default:
		store := repositories.NewSnapshotStore(repositories.NewFileBlob(cfg.Path))
		return repositories.NewCachedStore(store), func() {}
	}
}

func createScrapers(cfg config.ScrapersConfig) map[models.Platform]*scraper.Client {

	clients := make(map[models.Platform]*scraper.Client, len(cfg))
	for name, scraperCfg := range cfg {
		platform, err := models.ToPlatform(name)
		if err != nil {
			log.Fatalf("invalid scraper config: %v", err)
		}
		client := scraper.NewClient(platform, scraperCfg.URL)
		client.SetRateLimit(scraperCfg.MaxRequestsPerSecond)
		client.SetTimeout(scraperCfg.Timeout)
		clients[platform] = client
	}
	return clients
}

func createNotifier(cfg config.TelegramConfig, bus EventBus.Bus) *bot.Notifier {
	var notifier *bot.Notifier
	var err error

	if cfg.Enabled {
		notifier, err = bot.NewNotifier(cfg.Token, bus)
	} else {
		log.Info("telegram is disabled, notifications will be logged")
		notifier, err = bot.NewLogNotifier(bus)
	}
	if err != nil {
		log.Fatalf("can't create notifier: %v", err)
	}
	return notifier
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.Register()

	store, closeStore := openStore(cfg.Storage)
	defer closeStore()

	bus := EventBus.New()

	registry, err := services.NewSearchRegistry(store, bus, services.Limits{
		MaxSearchesPerUser:  cfg.Registry.MaxSearchesPerUser,
		MaxResultsPerSearch: cfg.Registry.MaxResultsPerSearch,
	})
	if err != nil {
		log.Fatalf("can't create registry: %v", err)
	}

	scrapers := createScrapers(cfg.Scrapers)
	fetchers := make(map[models.Platform]services.AdsFetcher, len(scrapers))
	catalogs := make(map[models.Platform]api.BrandsCatalog, len(scrapers))
	for platform, client := range scrapers {
		fetchers[platform] = client
		catalogs[platform] = client
	}

	engine, err := services.NewRecheckEngine(registry, fetchers, cfg.Scheduler.RecheckKeep)
	if err != nil {
		log.Fatalf("can't create recheck engine: %v", err)
	}

	scheduler, err := services.NewRecheckScheduler(bus, registry, engine, cfg.Scheduler.Interval, cfg.Scheduler.Workers)
	if err != nil {
		log.Fatalf("can't create recheck scheduler: %v", err)
	}

	cleaner, err := services.NewSearchesCleaner(registry, cfg.Scheduler.CleanupSchedule, cfg.Registry.MaxSearchAgeDays)
	if err != nil {
		log.Fatalf("can't create searches cleaner: %v", err)
	}

	notifier := createNotifier(cfg.Telegram, bus)

	server, err := api.NewServer(cfg.API, api.Dependencies{
		Registry:   registry,
		Comparison: services.NewComparisonEngine(registry),
		Exporter:   services.NewExporter(registry, registry),
		Fetchers:   fetchers,
		Catalogs:   catalogs,
	})
	if err != nil {
		log.Fatalf("can't create API server: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeApi).Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down services...")
	cleaner.Stop()
	wg.Wait()
	notifier.Stop()
	log.Info("Services stopped.")
}
