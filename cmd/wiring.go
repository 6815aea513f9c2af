package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"listingpilot/backend/internal/config"
	"listingpilot/backend/internal/fillers"
	"listingpilot/backend/internal/mapping"
	"listingpilot/backend/internal/orchestrator"
	"listingpilot/backend/internal/page"
	"listingpilot/backend/internal/simulator"
	"listingpilot/backend/pkg/database"
	"listingpilot/backend/pkg/textgen"
)

// openMappingStore returns the configured store and a function releasing it.
// The mysql store expects database.InitDatabase to have run.
func openMappingStore(ctx context.Context, cfg *config.Config) (mapping.Store, func(), error) {
	switch cfg.Mapping.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Mapping.RedisAddr,
			Password: cfg.Mapping.RedisPassword,
			DB:       cfg.Mapping.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Mapping.RedisAddr, err)
		}
		log.Printf("✅ Field mappings stored in Redis hash %s", cfg.Mapping.Key)
		return mapping.NewRedisStore(client, cfg.Mapping.Key), func() { client.Close() }, nil
	case "mysql":
		if database.DB == nil {
			return nil, nil, fmt.Errorf("mysql mapping store needs the database")
		}
		log.Printf("✅ Field mappings stored in MySQL")
		return mapping.NewGormStore(database.DB), func() {}, nil
	default:
		log.Printf("⚠️ Field mappings kept in memory and lost on restart")
		return mapping.NewMemoryStore(), func() {}, nil
	}
}

// newEngine assembles the fillers and the orchestrator over p.
func newEngine(cfg *config.Config, catalog fillers.Catalog, p page.Page, store mapping.Store, sink orchestrator.AttemptSink) *orchestrator.Orchestrator {
	t := cfg.Timing
	env := &fillers.Env{
		Page: p,
		Sim: simulator.New(p, simulator.Pacing{
			StepDelay:       t.StepDelay,
			FieldPause:      t.FieldPause,
			WidgetOpenDelay: t.WidgetOpenDelay,
			KeystrokeMin:    t.KeystrokeMin,
			KeystrokeMax:    t.KeystrokeMax,
		}),
		Catalog:          catalog,
		ElementWait:      t.ElementWait,
		DefaultLocation:  cfg.Marketplace.DefaultLocation,
		VehicleTypeValue: cfg.Marketplace.VehicleTypeValue,
	}
	if cfg.Mapping.ConsultInFillers && store != nil {
		env.Mappings = store
		log.Printf("🧭 Recorded field mappings are consulted as last-resort selectors")
	}

	generator := textgen.NewClient(cfg.TextGen.URL, cfg.TextGen.Timeout)
	fetcher := fillers.NewHTTPFetcher(cfg.Images.Timeout, cfg.Images.BaseURL)
	sequence := fillers.Sequence(env, generator, fetcher, cfg.Images.MaxImages)

	opts := orchestrator.OptionsFromConfig(cfg.Marketplace, t, catalog.Readiness)
	return orchestrator.New(p, sequence, opts, sink)
}
