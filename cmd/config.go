package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/scheduler"
	"github.com/spigell/job-radar/internal/secrets"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/storage"
	"github.com/spigell/job-radar/internal/transport"
)

type Config struct {
	Storage   storage.Config        `mapstructure:"storage"`
	Sources   sources.Config        `mapstructure:"sources"`
	Secrets   SecretsConfig         `mapstructure:"secrets"`
	RateLimit RateLimitConfig       `mapstructure:"rate-limit"`
	Transport TransportConfig       `mapstructure:"transport"`
	Scrape    ScrapeConfig          `mapstructure:"scrape"`
	Scheduler SchedulerConfig       `mapstructure:"scheduler"`
	Filters   FiltersConfig         `mapstructure:"filters"`
	HTTP      HTTPConfig            `mapstructure:"http"`
	Profiles  []*jobs.SearchProfile `mapstructure:"profiles"`
	Resume    *jobs.ParsedResume    `mapstructure:"resume"`
}

// SecretConfig points at a credential. File wins over Env, Env over Value.
type SecretConfig struct {
	Value string `mapstructure:"value" json:"-"`
	Env   string `mapstructure:"env"`
	File  string `mapstructure:"file"`
}

type SecretsConfig struct {
	DatabaseURL      SecretConfig `mapstructure:"database-url"`
	RedisURL         SecretConfig `mapstructure:"redis-url"`
	DiceAPIKey       SecretConfig `mapstructure:"dice-api-key"`
	AdzunaAppID      SecretConfig `mapstructure:"adzuna-app-id"`
	AdzunaAppKey     SecretConfig `mapstructure:"adzuna-app-key"`
	ResidentialProxy SecretConfig `mapstructure:"residential-proxy"`
	DatacenterProxy  SecretConfig `mapstructure:"datacenter-proxy"`
}

type RateLimitConfig struct {
	// Backend is memory or redis.
	Backend string             `mapstructure:"backend"`
	Rates   map[string]float64 `mapstructure:"rates"`
}

type TransportConfig struct {
	UserAgent string        `mapstructure:"user-agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ScrapeConfig struct {
	Options       jobs.ScrapeOptions `mapstructure:"defaults"`
	Platforms     []string           `mapstructure:"platforms"`
	SourceTimeout time.Duration      `mapstructure:"source-timeout"`
}

type SchedulerConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	scheduler.Config `mapstructure:",squash"`
}

type FiltersConfig struct {
	RemoteOnly   bool     `mapstructure:"remote-only"`
	MinimumScore int      `mapstructure:"minimum-score"`
	Disabled     []string `mapstructure:"disabled"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.type", storage.TypeSQLite)
	v.SetDefault("storage.path", "data/job-radar.db")
	v.SetDefault("rate-limit.backend", "memory")
	v.SetDefault("transport.timeout", transport.DefaultTimeout)
	v.SetDefault("transport.user-agent", transport.DefaultUserAgent)
	v.SetDefault("scrape.source-timeout", 2*time.Minute)
	v.SetDefault("scrape.defaults.max-results", jobs.DefaultMaxResults)
	v.SetDefault("scheduler.interval-hours", scheduler.DefaultIntervalHours)
	v.SetDefault("scheduler.posted-within", string(jobs.Within24h))
	v.SetDefault("scheduler.run-on-start", true)
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("secrets.database-url.env", envPrefix+"_DATABASE_URL")
	v.SetDefault("secrets.redis-url.env", envPrefix+"_REDIS_URL")
	v.SetDefault("secrets.dice-api-key.env", "DICE_API_KEY")
	v.SetDefault("secrets.adzuna-app-id.env", "ADZUNA_APP_ID")
	v.SetDefault("secrets.adzuna-app-key.env", "ADZUNA_APP_KEY")
	v.SetDefault("secrets.residential-proxy.env", envPrefix+"_RESIDENTIAL_PROXY")
	v.SetDefault("secrets.datacenter-proxy.env", envPrefix+"_DATACENTER_PROXY")
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	if err := config.resolveSecrets(); err != nil {
		return config, err
	}
	return config, nil
}

func loadSecret(name string, c SecretConfig) (string, error) {
	return secrets.Load(secrets.Source{
		Name:     name,
		Value:    c.Value,
		Env:      c.Env,
		File:     c.File,
		Optional: true,
	})
}

// resolveSecrets copies credentials into the component configs that consume them.
func (c *Config) resolveSecrets() error {
	targets := []struct {
		name string
		src  SecretConfig
		dst  *string
	}{
		{"database url", c.Secrets.DatabaseURL, &c.Storage.DSN},
		{"dice api key", c.Secrets.DiceAPIKey, &c.Sources.Dice.APIKey},
		{"adzuna app id", c.Secrets.AdzunaAppID, &c.Sources.Adzuna.AppID},
		{"adzuna app key", c.Secrets.AdzunaAppKey, &c.Sources.Adzuna.AppKey},
	}
	for _, t := range targets {
		value, err := loadSecret(t.name, t.src)
		if err != nil {
			return err
		}
		*t.dst = value
	}

	if strings.EqualFold(c.Storage.Type, storage.TypePostgres) && c.Storage.DSN == "" {
		return fmt.Errorf("postgres storage requires secrets.database-url (or %s_DATABASE_URL)", envPrefix)
	}
	return nil
}

func (c *Config) proxies() (transport.StaticProxies, error) {
	residential, err := loadSecret("residential proxy", c.Secrets.ResidentialProxy)
	if err != nil {
		return transport.StaticProxies{}, err
	}
	datacenter, err := loadSecret("datacenter proxy", c.Secrets.DatacenterProxy)
	if err != nil {
		return transport.StaticProxies{}, err
	}
	return transport.StaticProxies{Residential: residential, Datacenter: datacenter}, nil
}
