// Package scrape fans a search out to job boards and persists the merged result.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/normalize"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/storage"
	"github.com/spigell/job-radar/internal/utils"
)

var (
	// ErrNoSources is returned when none of the requested platforms is registered.
	ErrNoSources      = errors.New("no known sources requested")
	ErrInvalidOptions = errors.New("invalid scrape options")
)

// maxLoggedErrors caps the joined source errors written to the log line.
const maxLoggedErrors = 500

// Resolver looks up sources by platform name. *sources.Registry satisfies it.
type Resolver interface {
	Get(name string) (sources.Source, bool)
	Names() []string
}

type Request struct {
	Options   jobs.ScrapeOptions
	Platforms []string
	Requester string
	Trigger   string
	Profiles  []string
}

// Summary is the outcome of one ScrapeAll call.
type Summary struct {
	RunID      string          `json:"runId"`
	Status     jobs.RunStatus  `json:"status"`
	TotalFound int             `json:"totalFound"`
	NewJobs    int             `json:"newJobs"`
	Duplicates int             `json:"duplicates"`
	Existing   int             `json:"existing"`
	Errors     []string        `json:"errors"`
	Contacts   []jobs.Contact  `json:"contacts,omitempty"`
	Jobs       []*jobs.Posting `json:"-"`
	Duration   time.Duration   `json:"duration"`
}

type Orchestrator struct {
	sources       Resolver
	store         storage.Store
	logger        *zap.Logger
	now           func() time.Time
	sourceTimeout time.Duration
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSourceTimeout bounds every source invocation. Zero means no extra deadline.
func WithSourceTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.sourceTimeout = d }
}

func New(resolver Resolver, store storage.Store, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sources: resolver,
		store:   store,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type outcome struct {
	platform string
	result   *jobs.ScrapeResult
	duration time.Duration
}

// ScrapeAll runs every requested source concurrently and stores the unique postings.
// A source failure never aborts the others; it is recorded in the summary and the run.
func (o *Orchestrator) ScrapeAll(ctx context.Context, req Request) (*Summary, error) {
	opts := req.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	summary := &Summary{Errors: []string{}}
	selected, platforms := o.resolve(req.Platforms, summary)
	if len(selected) == 0 {
		return summary, fmt.Errorf("%w: %s", ErrNoSources, strings.Join(req.Platforms, ","))
	}

	started := o.now()
	run := &jobs.Run{
		Requester: req.Requester,
		Trigger:   req.Trigger,
		Status:    jobs.RunRunning,
		Platforms: platforms,
		Profiles:  req.Profiles,
		StartedAt: started.UTC(),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	summary.RunID = run.ID

	// Bookkeeping outlives the caller: a cancelled run still gets its logs,
	// its postings and a final status.
	bookkeeping := context.WithoutCancel(ctx)

	log := o.logger.With(zap.String(logger.FieldRunID, run.ID), zap.String(logger.FieldRequester, req.Requester))
	log.Info("starting scrape run",
		zap.String("query", opts.Query),
		zap.Strings("platforms", platforms),
		zap.Int("max_results", opts.MaxResults),
	)

	results := make(chan outcome, len(selected))
	for _, src := range selected {
		go o.invoke(ctx, src, opts, results)
	}

	var (
		merged []*jobs.Posting
		failed int
	)
	for range selected {
		out := <-results
		o.recordLog(bookkeeping, run.ID, out)

		merged = append(merged, out.result.Jobs...)
		summary.Contacts = append(summary.Contacts, out.result.Contacts...)
		if out.result.Failed() {
			failed++
			for _, msg := range out.result.Errors {
				summary.Errors = append(summary.Errors, prefixed(out.platform, msg))
			}
		}
	}
	summary.TotalFound = len(merged)

	unique, duplicates := dedupe(merged)
	summary.Duplicates = duplicates
	o.persist(bookkeeping, log, unique, summary)

	finished := o.now()
	summary.Duration = finished.Sub(started)
	summary.Status = status(failed, len(selected))

	run.Status = summary.Status
	run.Found = summary.TotalFound
	run.New = summary.NewJobs
	run.ErrorCount = len(summary.Errors)
	run.Duration = summary.Duration
	run.FinishedAt = finished.UTC()
	run.ErrorSummary = errorSummary(summary.Errors)
	if err := o.store.FinishRun(bookkeeping, run); err != nil {
		log.Error("finishing run", zap.Error(err))
		summary.Errors = append(summary.Errors, fmt.Sprintf("finish run: %v", err))
	}

	log.Info("scrape run finished",
		zap.String("status", string(summary.Status)),
		zap.Int("total_found", summary.TotalFound),
		zap.Int("new_jobs", summary.NewJobs),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("existing", summary.Existing),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// resolve maps requested names onto registered sources. Unknown names become summary errors.
// An empty request selects every registered source.
func (o *Orchestrator) resolve(requested []string, summary *Summary) ([]sources.Source, []string) {
	if len(requested) == 0 {
		requested = o.sources.Names()
	}
	var (
		selected []sources.Source
		names    []string
		seen     = make(map[string]bool)
	)
	for _, name := range requested {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		src, ok := o.sources.Get(name)
		if !ok {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: unknown platform", name))
			continue
		}
		selected = append(selected, src)
		names = append(names, name)
	}
	return selected, names
}

func (o *Orchestrator) invoke(ctx context.Context, src sources.Source, opts jobs.ScrapeOptions, results chan<- outcome) {
	name := strings.ToLower(src.Name())
	started := o.now()
	out := outcome{platform: name}

	defer func() {
		if r := recover(); r != nil {
			out.result = &jobs.ScrapeResult{Errors: []string{fmt.Sprintf("panic: %v", r)}}
		}
		if out.result == nil {
			out.result = &jobs.ScrapeResult{Errors: []string{"source returned no result"}}
		}
		out.duration = o.now().Sub(started)
		results <- out
	}()

	if o.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.sourceTimeout)
		defer cancel()
	}
	out.result = src.Scrape(ctx, opts)
}

func (o *Orchestrator) recordLog(ctx context.Context, runID string, out outcome) {
	entry := &jobs.Log{
		RunID:     runID,
		Platform:  out.platform,
		Status:    jobs.LogSuccess,
		Duration:  out.duration,
		Count:     len(out.result.Jobs),
		CreatedAt: o.now().UTC(),
	}
	sourceLog := logger.ForSource(o.logger, out.platform, runID)
	if out.result.Failed() {
		entry.Status = jobs.LogError
		entry.Error = strings.Join(out.result.Errors, "; ")
		sourceLog.Warn("source finished with errors",
			zap.String("errors", utils.TruncateForLog(entry.Error, maxLoggedErrors)),
			zap.Int("count", entry.Count),
		)
	} else {
		sourceLog.Info("source finished", zap.Int("count", entry.Count), zap.Duration("duration", out.duration))
	}
	if err := o.store.AddLog(ctx, entry); err != nil {
		sourceLog.Error("writing scrape log", zap.Error(err))
	}
}

// persist inserts postings one by one. A failing record is logged and skipped.
func (o *Orchestrator) persist(ctx context.Context, log *zap.Logger, unique []*jobs.Posting, summary *Summary) {
	for _, p := range unique {
		if p.Hash == "" {
			p.Hash = normalize.Hash(p.Title, p.Company, p.Location)
		}
		inserted, err := o.store.InsertPosting(ctx, p)
		if err != nil {
			log.Warn("skipping posting",
				zap.String(logger.FieldPlatform, p.Platform),
				zap.String("hash", p.Hash),
				zap.Error(err),
			)
			continue
		}
		if inserted {
			summary.NewJobs++
		} else {
			summary.Existing++
		}
		summary.Jobs = append(summary.Jobs, p)
	}
}

// dedupe keeps the first posting per normalized title/company/location key.
func dedupe(postings []*jobs.Posting) ([]*jobs.Posting, int) {
	seen := make(map[string]bool, len(postings))
	unique := make([]*jobs.Posting, 0, len(postings))
	for _, p := range postings {
		if p == nil {
			continue
		}
		key := normalize.Key(p.Title, p.Company, p.Location)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	return unique, countNonNil(postings) - len(unique)
}

func countNonNil(postings []*jobs.Posting) int {
	n := 0
	for _, p := range postings {
		if p != nil {
			n++
		}
	}
	return n
}

func status(failed, attempted int) jobs.RunStatus {
	switch {
	case failed == 0:
		return jobs.RunCompleted
	case failed < attempted:
		return jobs.RunPartial
	default:
		return jobs.RunFailed
	}
}

func prefixed(platform, msg string) string {
	if strings.HasPrefix(strings.ToLower(msg), platform) {
		return msg
	}
	return platform + ": " + msg
}

func errorSummary(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return strings.Join(errs, "; ")
	}
	return string(raw)
}
