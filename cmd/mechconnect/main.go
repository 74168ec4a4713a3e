package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mechconnect/internal/api"
	"mechconnect/internal/config"
	"mechconnect/internal/database"
	"mechconnect/internal/domain"
	"mechconnect/internal/events"
	"mechconnect/internal/logging"
	"mechconnect/internal/metrics"
	"mechconnect/internal/models"
	"mechconnect/internal/notify"
	"mechconnect/internal/repository"
	"mechconnect/internal/service"
	"mechconnect/internal/sheets"
	"mechconnect/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, logger); err != nil {
		return err
	}

	store, err := database.NewStore(cfg.Store.Path)
	if err != nil {
		logger.Error().Err(err).Msg("open local store error")
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, jobCache := initJobCache(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	dispatcher := api.NewClient(cfg.Backend.BaseURL, store, api.Options{
		Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		RateRPS:   cfg.Client.RateRPS,
		RateBurst: cfg.Client.RateBurst,
	})

	eventBus := events.NewEventBus()

	ledgerWorker, err := initLedgerWorker(ctx, cfg, store, redisClient, logger)
	if err != nil {
		return err
	}
	var ledger domain.LedgerWorker
	if ledgerWorker != nil {
		ledger = ledgerWorker
	}

	jobService := service.NewJobService(
		dispatcher,
		jobCache,
		eventBus,
		ledger,
		time.Duration(cfg.Client.RefreshDelayMs)*time.Millisecond,
		logging.Component(logger, "jobs"),
	)

	if err := initTelegram(cfg, eventBus, logger); err != nil {
		return err
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go serveMetrics(cfg.Monitoring.PrometheusPort, logger)
	}

	go refreshLoop(ctx, jobService, time.Duration(cfg.Client.CacheTTLSeconds)*time.Second, logging.Component(logger, "refresh"))

	logger.Info().Str("backend", cfg.Backend.BaseURL).Msg("mechconnect started")
	<-ctx.Done()
	logger.Info().Msg("mechconnect stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.Component(baseLogger, "main")
	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create store directory error")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create export directory error")
		return err
	}
	return nil
}

// initJobCache builds the list cache: redis with the in-memory cache as
// fallback when reachable, memory only otherwise.
func initJobCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.JobCache) {
	ttl := time.Duration(cfg.Client.CacheTTLSeconds) * time.Second
	memory := repository.NewMemoryJobCache(ttl)

	if cfg.Redis.Address == "" {
		return nil, memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using memory cache")
		_ = client.Close()
		return nil, memory
	}

	primary := repository.NewRedisJobCache(client, ttl)
	return client, repository.NewFailoverJobCache(primary, memory, logger)
}

func initLedgerWorker(ctx context.Context, cfg *config.Config, store *database.Store, redisClient *redis.Client, logger *zerolog.Logger) (*worker.LedgerWorker, error) {
	if cfg.Google.LedgerSpreadsheetID == "" {
		return nil, nil
	}

	ledgerService, err := sheets.NewLedgerService(ctx, cfg.Google.CredentialsFile, cfg.Google.LedgerSpreadsheetID)
	if err != nil {
		logger.Error().Err(err).Msg("google sheets init error")
		return nil, err
	}
	if err := ledgerService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed")
	}

	ledgerWorker := worker.NewLedgerWorker(store, ledgerService, redisClient, worker.RetryPolicy{}, logging.Component(logger, "ledger-worker"))
	go ledgerWorker.Start(ctx)
	return ledgerWorker, nil
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) error {
	if !cfg.Telegram.Enabled {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("telegram init error")
		return err
	}
	bot.Debug = cfg.Telegram.Debug

	notify.NewTelegramNotifier(bot, cfg.Telegram.ChatID, logging.Component(logger, "notifier")).Subscribe(bus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
	return nil
}

// refreshLoop keeps the job lists warm so the mechanic's views render from
// cache. Missing credentials are expected until the mechanic signs in.
func refreshLoop(ctx context.Context, jobs domain.JobService, interval time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		interval = time.Duration(models.DefaultCacheTTL) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		warmLists(ctx, jobs, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func warmLists(ctx context.Context, jobs domain.JobService, logger *zerolog.Logger) {
	for _, bucket := range []string{models.BucketPending, models.BucketQuoted, models.BucketAvailable} {
		if _, err := jobs.Requests(ctx, bucket); err != nil {
			logger.Debug().Err(err).Str("bucket", bucket).Msg("request refresh error")
		}
	}
	for _, status := range []string{models.StatusActive, models.StatusBackjob} {
		if _, err := jobs.Bookings(ctx, status); err != nil {
			logger.Debug().Err(err).Str("status", status).Msg("booking refresh error")
		}
	}
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
