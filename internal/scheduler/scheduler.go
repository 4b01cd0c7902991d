// Package scheduler periodically scrapes on behalf of every active search profile.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/scrape"
)

// TriggerSchedule is the trigger name recorded for scheduled runs.
const TriggerSchedule = "schedule"

const DefaultIntervalHours = 6

type Runner interface {
	ScrapeAll(ctx context.Context, req scrape.Request) (*scrape.Summary, error)
}

type ProfileSource interface {
	ActiveProfiles(ctx context.Context) ([]*jobs.SearchProfile, error)
}

type Config struct {
	IntervalHours int               `mapstructure:"interval-hours"`
	PostedWithin  jobs.PostedWithin `mapstructure:"posted-within"`
	MaxResults    int               `mapstructure:"max-results"`
	// RunOnStart fires one cycle immediately instead of waiting for the first tick.
	RunOnStart bool `mapstructure:"run-on-start"`
}

type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	profiles ProfileSource
	cfg      Config
	spec     string
	logger   *zap.Logger
}

func New(runner Runner, profiles ProfileSource, cfg Config, log *zap.Logger) *Scheduler {
	if cfg.IntervalHours <= 0 {
		cfg.IntervalHours = DefaultIntervalHours
	}
	log = logger.OrNop(log).With(zap.String("component", "scheduler"))
	cronLog := cronLogger{log}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		runner:   runner,
		profiles: profiles,
		cfg:      cfg,
		spec:     fmt.Sprintf("@every %dh", cfg.IntervalHours),
		logger:   log,
	}
}

// Start registers the cycle and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.cycle(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	if s.cfg.RunOnStart {
		go s.cycle(ctx)
	}
	return nil
}

// Stop halts the cron loop. The returned context is done once running cycles finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopped")
	return s.cron.Stop()
}

func (s *Scheduler) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scrape cycle failed", zap.Error(err))
	}
}

// RunOnce scrapes every job title of every active profile.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*scrape.Summary, error) {
	profiles, err := s.profiles.ActiveProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active profiles: %w", err)
	}
	if len(profiles) == 0 {
		s.logger.Info("no active search profiles, nothing to scrape")
		return nil, nil
	}

	s.logger.Info("scrape cycle started", zap.Int("profiles", len(profiles)))
	var summaries []*scrape.Summary
	for _, profile := range profiles {
		for _, req := range s.requests(profile) {
			if ctx.Err() != nil {
				return summaries, ctx.Err()
			}
			summary, err := s.runner.ScrapeAll(ctx, req)
			if err != nil {
				s.logger.Warn("profile scrape failed",
					zap.String("profile_id", profile.ID),
					zap.String("query", req.Options.Query),
					zap.Error(err),
				)
				if errors.Is(err, context.Canceled) {
					return summaries, err
				}
			}
			if summary != nil {
				summaries = append(summaries, summary)
			}
		}
	}
	s.logger.Info("scrape cycle complete", zap.Int("runs", len(summaries)))
	return summaries, nil
}

func (s *Scheduler) requests(p *jobs.SearchProfile) []scrape.Request {
	var location string
	for _, l := range p.Locations {
		if l = strings.TrimSpace(l); l != "" && !strings.EqualFold(l, "remote") {
			location = l
			break
		}
	}

	var reqs []scrape.Request
	for _, title := range p.JobTitles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		reqs = append(reqs, scrape.Request{
			Options: jobs.ScrapeOptions{
				Query:        title,
				Location:     location,
				MaxResults:   s.cfg.MaxResults,
				PostedWithin: s.cfg.PostedWithin,
				RemoteOnly:   p.Remote,
			},
			Platforms: p.Platforms,
			Requester: p.UserID,
			Trigger:   TriggerSchedule,
			Profiles:  []string{p.ID},
		})
	}
	return reqs
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
