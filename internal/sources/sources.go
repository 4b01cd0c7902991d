// Package sources scrapes individual job boards into normalized postings.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/ratelimit"
	"github.com/spigell/job-radar/internal/transport"
)

// Source scrapes one job board. Failures are reported in the result's
// Errors, never returned.
type Source interface {
	Name() string
	Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult
}

type BoardConfig struct {
	BaseURL string `mapstructure:"base-url"`
}

type DiceConfig struct {
	BaseURL string `mapstructure:"base-url"`
	APIKey  string `mapstructure:"-" json:"-"`
}

type AdzunaConfig struct {
	BaseURL string `mapstructure:"base-url"`
	Country string `mapstructure:"country"`
	AppID   string `mapstructure:"-" json:"-"`
	AppKey  string `mapstructure:"-" json:"-"`
}

type HeadHunterConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base-url"`
	// Areas are hh.ru region ids. Without them the location goes into the search text.
	Areas []int `mapstructure:"areas"`
}

// Config holds per-board settings. Credentials are resolved through
// internal/secrets by the caller.
type Config struct {
	Indeed       BoardConfig  `mapstructure:"indeed"`
	LinkedIn     BoardConfig  `mapstructure:"linkedin"`
	ZipRecruiter BoardConfig  `mapstructure:"ziprecruiter"`
	RemoteOK     BoardConfig  `mapstructure:"remoteok"`
	Dice         DiceConfig   `mapstructure:"dice"`
	Adzuna       AdzunaConfig `mapstructure:"adzuna"`

	HeadHunter HeadHunterConfig `mapstructure:"headhunter"`
}

// Deps are the collaborators every source shares.
type Deps struct {
	Fetcher transport.Fetcher
	Proxies transport.ProxyProvider
	Limiter ratelimit.Limiter
	Logger  *zap.Logger
	Now     func() time.Time
	Config  Config
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) logger(source string) *zap.Logger {
	return logger.OrNop(d.Logger).With(zap.String(logger.FieldPlatform, source))
}

type proxyMode int

const (
	proxyNone proxyMode = iota
	// proxyRequired refuses to fetch without a proxy.
	proxyRequired
	// proxyFallback goes direct and retries once through a proxy on failure.
	proxyFallback
)

type proxyPolicy struct {
	mode proxyMode
	kind transport.ProxyKind
}

func (d Deps) proxy(kind transport.ProxyKind) (string, bool) {
	if d.Proxies == nil {
		return "", false
	}
	return d.Proxies.Proxy(kind)
}

// checkProxy fails early for sources that cannot work without a proxy.
func (d Deps) checkProxy(policy proxyPolicy) error {
	if policy.mode != proxyRequired {
		return nil
	}
	if _, ok := d.proxy(policy.kind); !ok {
		return fmt.Errorf("%s proxy required: %w", policy.kind, transport.ErrNoProxy)
	}
	return nil
}

// fetch waits for the source's rate limit and performs one request
// according to the proxy policy.
func (d Deps) fetch(ctx context.Context, source string, policy proxyPolicy, req transport.Request) ([]byte, error) {
	if d.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}

	switch policy.mode {
	case proxyRequired:
		proxy, ok := d.proxy(policy.kind)
		if !ok {
			return nil, fmt.Errorf("%s proxy required: %w", policy.kind, transport.ErrNoProxy)
		}
		req.ProxyURL = proxy
	case proxyNone, proxyFallback:
		req.ProxyURL = ""
	}

	body, err := d.throttledFetch(ctx, source, req)
	if err == nil || policy.mode != proxyFallback || ctx.Err() != nil {
		return body, err
	}

	proxy, ok := d.proxy(policy.kind)
	if !ok {
		return nil, err
	}
	d.logger(source).Debug("direct fetch failed, retrying through proxy", zap.Error(err))
	req.ProxyURL = proxy
	body, proxyErr := d.throttledFetch(ctx, source, req)
	if proxyErr != nil {
		return nil, fmt.Errorf("direct: %v; via proxy: %w", err, proxyErr)
	}
	return body, nil
}

func (d Deps) throttledFetch(ctx context.Context, source string, req transport.Request) ([]byte, error) {
	if d.Limiter != nil {
		if err := d.Limiter.Throttle(ctx, source); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	return d.Fetcher.Fetch(ctx, req)
}

// Registry maps board names to implementations.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// NewDefaultRegistry registers every supported board. HeadHunter is opt-in.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(NewIndeed(deps))
	r.Register(NewLinkedIn(deps))
	r.Register(NewZipRecruiter(deps))
	r.Register(NewDice(deps))
	r.Register(NewRemoteOK(deps))
	r.Register(NewAdzuna(deps))
	if deps.Config.HeadHunter.Enabled {
		r.Register(NewHeadHunter(deps))
	}
	return r
}

func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[strings.ToLower(s.Name())] = s
}

func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names returns the registered board names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
