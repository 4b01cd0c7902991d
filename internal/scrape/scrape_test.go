package scrape

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/normalize"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/storage"
)

type fakeSource struct {
	name   string
	jobs   []*jobs.Posting
	errs   []string
	panics bool
	block  bool
	before func()
	calls  atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Scrape(ctx context.Context, _ jobs.ScrapeOptions) *jobs.ScrapeResult {
	f.calls.Add(1)
	if f.before != nil {
		f.before()
	}
	if f.panics {
		panic("selector exploded")
	}
	if f.block {
		<-ctx.Done()
		return &jobs.ScrapeResult{Errors: []string{ctx.Err().Error()}}
	}
	out := make([]*jobs.Posting, 0, len(f.jobs))
	for _, p := range f.jobs {
		cp := *p
		out = append(out, &cp)
	}
	return &jobs.ScrapeResult{Jobs: out, Errors: f.errs, TotalFound: len(out)}
}

func posting(platform, title, company, location string) *jobs.Posting {
	return &jobs.Posting{
		Platform: platform,
		Title:    title,
		Company:  company,
		Location: location,
		ApplyURL: "https://jobs.example.test/" + platform,
		Hash:     normalize.Hash(title, company, location),
		PostedAt: time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC),
	}
}

func registry(srcs ...sources.Source) *sources.Registry {
	r := sources.NewRegistry()
	for _, s := range srcs {
		r.Register(s)
	}
	return r
}

func options() jobs.ScrapeOptions {
	return jobs.ScrapeOptions{Query: "go developer"}
}

func TestScrapeAllIsolatesFailingSources(t *testing.T) {
	store := storage.NewMemory()
	ok := &fakeSource{name: "dice", jobs: []*jobs.Posting{
		posting("dice", "Go Developer", "Acme", "Austin, TX"),
		posting("dice", "Backend Engineer", "Beta", "Remote"),
	}}
	broken := &fakeSource{name: "indeed", panics: true}
	erroring := &fakeSource{name: "linkedin", errs: []string{"page 1: status 429"}}

	core, logs := observer.New(zapcore.WarnLevel)
	o := New(registry(ok, broken, erroring), store, zap.New(core))

	summary, err := o.ScrapeAll(context.Background(), Request{
		Options:   options(),
		Platforms: []string{"dice", "indeed", "linkedin"},
		Requester: "user-1",
		Trigger:   "manual",
	})
	require.NoError(t, err)

	assert.Equal(t, jobs.RunPartial, summary.Status)
	assert.Equal(t, 2, summary.TotalFound)
	assert.Equal(t, 2, summary.NewJobs)
	assert.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors, "indeed: panic: selector exploded")
	assert.Contains(t, summary.Errors, "linkedin: page 1: status 429")
	assert.NotZero(t, logs.FilterMessage("source finished with errors").Len())

	runLogs, err := store.RunLogs(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, runLogs, 3)
	statuses := map[string]jobs.LogStatus{}
	for _, l := range runLogs {
		statuses[l.Platform] = l.Status
	}
	assert.Equal(t, map[string]jobs.LogStatus{
		"dice":     jobs.LogSuccess,
		"indeed":   jobs.LogError,
		"linkedin": jobs.LogError,
	}, statuses)

	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.RunPartial, runs[0].Status)
	assert.Equal(t, 2, runs[0].New)
	assert.Equal(t, 2, runs[0].ErrorCount)
	assert.Equal(t, "manual", runs[0].Trigger)
	assert.Contains(t, runs[0].ErrorSummary, "selector exploded")
}

func TestScrapeAllFinalizesCancelledRun(t *testing.T) {
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := posting("dice", "Go Developer", "Acme", "Austin, TX")
	src := &fakeSource{
		name:   "dice",
		jobs:   []*jobs.Posting{p},
		before: cancel,
	}

	summary, err := New(registry(src), store, nil).ScrapeAll(ctx, Request{Options: options()})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewJobs)
	assert.Equal(t, jobs.RunCompleted, summary.Status)

	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.RunCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Found)
	assert.False(t, runs[0].FinishedAt.IsZero())

	runLogs, err := store.RunLogs(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Len(t, runLogs, 1)

	_, err = store.PostingByHash(context.Background(), p.Hash)
	assert.NoError(t, err)
}

type failingFinish struct {
	storage.Store
}

func (failingFinish) FinishRun(context.Context, *jobs.Run) error {
	return errors.New("disk full")
}

func TestScrapeAllReportsFinishFailureInSummary(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{name: "dice", jobs: []*jobs.Posting{posting("dice", "Go Developer", "Acme", "Austin, TX")}}

	summary, err := New(registry(src), failingFinish{store}, nil).ScrapeAll(context.Background(), Request{Options: options()})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewJobs)
	assert.Contains(t, summary.Errors, "finish run: disk full")
}

func TestScrapeAllDeduplicatesWithinRun(t *testing.T) {
	store := storage.NewMemory()
	a := &fakeSource{name: "dice", jobs: []*jobs.Posting{posting("dice", "Go Developer", "Acme Inc", "Austin, TX")}}
	b := &fakeSource{name: "linkedin", jobs: []*jobs.Posting{posting("linkedin", "go developer", "ACME, Inc.", "Austin TX")}}

	summary, err := New(registry(a, b), store, nil).ScrapeAll(context.Background(), Request{Options: options()})
	require.NoError(t, err)

	assert.Equal(t, jobs.RunCompleted, summary.Status)
	assert.Equal(t, 2, summary.TotalFound)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.NewJobs)
	assert.Len(t, summary.Jobs, 1)

	page, err := store.ListPostings(context.Background(), storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestScrapeAllIsIdempotent(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{name: "remoteok", jobs: []*jobs.Posting{
		posting("remoteok", "Go Developer", "Acme", "Remote"),
		posting("remoteok", "SRE", "Beta", "Remote"),
	}}
	o := New(registry(src), store, nil)

	first, err := o.ScrapeAll(context.Background(), Request{Options: options()})
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewJobs)

	second, err := o.ScrapeAll(context.Background(), Request{Options: options()})
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewJobs)
	assert.Equal(t, 2, second.Existing)
	assert.Equal(t, 2, second.TotalFound)
}

func TestScrapeAllFailsWhenEverySourceFails(t *testing.T) {
	store := storage.NewMemory()
	o := New(registry(
		&fakeSource{name: "dice", errs: []string{"dice: configuration: api key is required"}},
		&fakeSource{name: "adzuna", panics: true},
	), store, nil)

	summary, err := o.ScrapeAll(context.Background(), Request{Options: options()})
	require.NoError(t, err)
	assert.Equal(t, jobs.RunFailed, summary.Status)
	assert.Contains(t, summary.Errors, "dice: configuration: api key is required")
}

func TestScrapeAllUnknownPlatforms(t *testing.T) {
	store := storage.NewMemory()
	dice := &fakeSource{name: "dice", jobs: []*jobs.Posting{posting("dice", "Go Developer", "Acme", "Remote")}}
	o := New(registry(dice), store, nil)

	summary, err := o.ScrapeAll(context.Background(), Request{Options: options(), Platforms: []string{"monster"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSources))
	assert.Equal(t, []string{"monster: unknown platform"}, summary.Errors)
	assert.Zero(t, dice.calls.Load())

	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	summary, err = o.ScrapeAll(context.Background(), Request{Options: options(), Platforms: []string{"Dice", "monster", "dice"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), dice.calls.Load())
	assert.Equal(t, jobs.RunCompleted, summary.Status)
	assert.Equal(t, []string{"monster: unknown platform"}, summary.Errors)
}

func TestScrapeAllRejectsInvalidOptions(t *testing.T) {
	o := New(registry(&fakeSource{name: "dice"}), storage.NewMemory(), nil)
	_, err := o.ScrapeAll(context.Background(), Request{Options: jobs.ScrapeOptions{Query: "  "}})
	assert.Error(t, err)
}

func TestScrapeAllSourceTimeout(t *testing.T) {
	slow := &fakeSource{name: "indeed", block: true}
	fast := &fakeSource{name: "dice", jobs: []*jobs.Posting{posting("dice", "Go Developer", "Acme", "Remote")}}
	o := New(registry(slow, fast), storage.NewMemory(), nil, WithSourceTimeout(20*time.Millisecond))

	summary, err := o.ScrapeAll(context.Background(), Request{Options: options()})
	require.NoError(t, err)
	assert.Equal(t, jobs.RunPartial, summary.Status)
	assert.Equal(t, []string{"indeed: " + context.DeadlineExceeded.Error()}, summary.Errors)
	assert.Equal(t, 1, summary.NewJobs)
}

func TestTrigger(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{name: "dice", jobs: []*jobs.Posting{posting("dice", "Go Developer", "Acme", "Remote")}}
	o := New(registry(src), store, nil)

	resp, err := o.Trigger(context.Background(), TriggerRequest{
		SearchQuery:  "go",
		PostedWithin: jobs.Within7d,
		Platforms:    []string{"dice"},
	}, "user-7")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.NewJobs)
	assert.Equal(t, jobs.RunCompleted, resp.Status)
	assert.Empty(t, resp.Errors)

	runs, err := store.Runs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "user-7", runs[0].Requester)
	assert.Equal(t, TriggerAPI, runs[0].Trigger)

	resp, err = o.Trigger(context.Background(), TriggerRequest{SearchQuery: "go", Platforms: []string{"nope"}}, "user-7")
	assert.True(t, errors.Is(err, ErrNoSources))
	assert.Equal(t, []string{"nope: unknown platform"}, resp.Errors)
}
