package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"mechconnect/internal/api"
	"mechconnect/internal/config"
	"mechconnect/internal/database"
	"mechconnect/internal/events"
	"mechconnect/internal/export"
	"mechconnect/internal/logging"
	"mechconnect/internal/repository"
	"mechconnect/internal/service"
)

// Standalone earnings export: fetches completed bookings from the backend
// and writes an xlsx workbook under the configured exports directory.
func main() {
	days := flag.Int("days", 30, "export bookings completed in the last N days")
	flag.Parse()

	if err := run(*days); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(days int) error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "export")

	store, err := database.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	dispatcher := api.NewClient(cfg.Backend.BaseURL, store, api.Options{
		Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		RateRPS:   cfg.Client.RateRPS,
		RateBurst: cfg.Client.RateBurst,
	})

	cache := repository.NewMemoryJobCache(time.Duration(cfg.Client.CacheTTLSeconds) * time.Second)
	jobs := service.NewJobService(dispatcher, cache, events.NewEventBus(), nil, 0, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	since := time.Now().AddDate(0, 0, -days)
	path, err := export.NewEarningsExporter(jobs, cfg.Exports.Path, logger).Export(ctx, since)
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}
