package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/listing"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/matching"
	"github.com/spigell/job-radar/internal/ratelimit"
	"github.com/spigell/job-radar/internal/scrape"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/storage"
	"github.com/spigell/job-radar/internal/transport"
)

// runtime holds the components every command shares.
type runtime struct {
	config       *Config
	logger       *zap.Logger
	store        storage.Store
	registry     *sources.Registry
	orchestrator *scrape.Orchestrator
	lister       *listing.Service
	scorer       *matching.Scorer
	closers      []func() error
}

// setup builds the logger and config, then wires the pipeline. Fatal errors
// end the process the way every command expects.
func setup(ctx context.Context) *runtime {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-radar", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	rt, err := wire(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring components", zap.Error(err))
	}
	return rt
}

func wire(ctx context.Context, config *Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{config: config, logger: logger}

	store, err := storage.New(ctx, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", config.Storage.Type, err)
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	limiter, err := rt.limiter(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	proxies, err := config.proxies()
	if err != nil {
		rt.Close()
		return nil, err
	}

	fetcher := transport.NewCollyFetcher(transport.CollyOptions{
		UserAgent: config.Transport.UserAgent,
		Timeout:   config.Transport.Timeout,
	}, logger.Named("transport"))

	rt.registry = sources.NewDefaultRegistry(sources.Deps{
		Fetcher: fetcher,
		Proxies: proxies,
		Limiter: limiter,
		Logger:  logger.Named("sources"),
		Config:  config.Sources,
	})
	rt.orchestrator = scrape.New(rt.registry, store, logger.Named("scrape"),
		scrape.WithSourceTimeout(config.Scrape.SourceTimeout),
	)
	rt.scorer = matching.NewScorer(nil)
	rt.lister = listing.New(store, rt.scorer)
	return rt, nil
}

func (rt *runtime) limiter(ctx context.Context) (ratelimit.Limiter, error) {
	rates := ratelimit.MergeRates(rt.config.RateLimit.Rates)
	switch strings.ToLower(strings.TrimSpace(rt.config.RateLimit.Backend)) {
	case "", "memory":
		return ratelimit.NewMemory(rates, rt.logger.Named("ratelimit")), nil
	case "redis":
		url, err := loadSecret("redis url", rt.config.Secrets.RedisURL)
		if err != nil {
			return nil, err
		}
		if url == "" {
			return nil, fmt.Errorf("redis rate limiting requires secrets.redis-url (or %s_REDIS_URL)", envPrefix)
		}
		client, err := ratelimit.NewRedisClient(ctx, url)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		return ratelimit.NewRedis(client, rates, rt.logger.Named("ratelimit")), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend %q", rt.config.RateLimit.Backend)
	}
}

// filterSteps returns the default filters, minus the ones disabled in config.
func (rt *runtime) filterSteps() ([]filtering.Filter, *filtering.Config) {
	steps := filtering.DefaultSteps()
	for _, name := range rt.config.Filters.Disabled {
		filtering.DisableByName(steps, strings.TrimSpace(name), "disabled in config")
	}
	return steps, &filtering.Config{
		Profiles:     rt.config.Profiles,
		RemoteOnly:   rt.config.Filters.RemoteOnly,
		MinimumScore: rt.config.Filters.MinimumScore,
	}
}

func (rt *runtime) filterDeps() filtering.Deps {
	return filtering.Deps{Logger: rt.logger.Named("filtering"), Scorer: rt.scorer, Resume: rt.config.Resume}
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("closing component", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}
