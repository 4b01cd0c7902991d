package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/normalize"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func posting(title, company, platform string, remote bool, salaryMin, salaryMax float64, age time.Duration) *jobs.Posting {
	return &jobs.Posting{
		Platform:       platform,
		Title:          title,
		Company:        company,
		Location:       "Austin, TX",
		Remote:         remote,
		SalaryMin:      salaryMin,
		SalaryMax:      salaryMax,
		SalaryPeriod:   jobs.SalaryHourly,
		EmploymentType: "full-time",
		Description:    title + " at " + company,
		PostedAt:       base.Add(-age),
		ApplyURL:       "https://example.com/" + company,
		Hash:           normalize.Hash(title, company, "Austin, TX"),
		ScrapedAt:      base,
	}
}

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	factories := map[string]storeFactory{
		"memory": func(*testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "job-radar.db"))
			require.NoError(t, err)
			return s
		},
	}
	if dsn := os.Getenv("JOB_RADAR_TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) Store {
			s, err := NewPostgres(context.Background(), dsn)
			require.NoError(t, err)
			_, err = s.pool.Exec(context.Background(), `TRUNCATE postings, scrape_logs, runs, search_profiles`)
			require.NoError(t, err)
			return s
		}
	}
	return factories
}

func TestInsertPostingIsInsertIfAbsent(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			p := posting("Go Developer", "Acme", "dice", true, 50, 60, time.Hour)
			inserted, err := s.InsertPosting(ctx, p)
			require.NoError(t, err)
			assert.True(t, inserted)
			assert.NotEmpty(t, p.ID)

			again := posting("go developer", "ACME", "linkedin", false, 0, 0, 0)
			inserted, err = s.InsertPosting(ctx, again)
			require.NoError(t, err)
			assert.False(t, inserted)

			stored, err := s.PostingByHash(ctx, p.Hash)
			require.NoError(t, err)
			assert.Equal(t, "dice", stored.Platform)
			assert.Equal(t, p.PostedAt, stored.PostedAt)
			assert.True(t, stored.Remote)
			assert.Equal(t, jobs.SalaryHourly, stored.SalaryPeriod)

			_, err = s.PostingByHash(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = s.InsertPosting(ctx, &jobs.Posting{Title: "no hash"})
			assert.Error(t, err)
		})
	}
}

func TestListPostingsFiltersAndSorts(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			for _, p := range []*jobs.Posting{
				posting("Go Developer", "Acme", "dice", true, 50, 60, 1*time.Hour),
				posting("Python Developer", "Beta", "indeed", false, 40, 45, 2*time.Hour),
				posting("Senior Go Engineer", "Gamma", "dice", false, 0, 0, 30*time.Hour),
				posting("Rust Engineer", "Delta", "linkedin", true, 80, 90, 72*time.Hour),
			} {
				_, err := s.InsertPosting(ctx, p)
				require.NoError(t, err)
			}

			page, err := s.ListPostings(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, 4, page.Total)
			assert.Equal(t, []string{"Go Developer", "Python Developer", "Senior Go Engineer", "Rust Engineer"}, titles(page))

			page, err = s.ListPostings(ctx, Query{Platform: "DICE"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Go Developer", "Senior Go Engineer"}, titles(page))

			remote := true
			page, err = s.ListPostings(ctx, Query{Remote: &remote, SortBy: "salary_min", Order: "asc"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Go Developer", "Rust Engineer"}, titles(page))

			page, err = s.ListPostings(ctx, Query{SalaryMin: 55, SalaryMax: 85})
			require.NoError(t, err)
			assert.Equal(t, []string{"Go Developer", "Rust Engineer"}, titles(page))

			page, err = s.ListPostings(ctx, Query{Search: "go", SortBy: "title", Order: "asc"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Go Developer", "Senior Go Engineer"}, titles(page))

			page, err = s.ListPostings(ctx, Query{PostedAfter: base.Add(-24 * time.Hour)})
			require.NoError(t, err)
			assert.Equal(t, 2, page.Total)

			page, err = s.ListPostings(ctx, Query{PostedBefore: base.Add(-24 * time.Hour), EmploymentType: "Full-Time"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Senior Go Engineer", "Rust Engineer"}, titles(page))

			page, err = s.ListPostings(ctx, Query{Page: 2, PageSize: 3})
			require.NoError(t, err)
			assert.Equal(t, 4, page.Total)
			assert.Equal(t, []string{"Rust Engineer"}, titles(page))

			_, err = s.ListPostings(ctx, Query{SortBy: "description; DROP TABLE postings"})
			assert.Error(t, err)
		})
	}
}

func TestRunsAndLogs(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			older := &jobs.Run{Status: jobs.RunRunning, Platforms: []string{"dice"}, StartedAt: base.Add(-time.Hour)}
			require.NoError(t, s.CreateRun(ctx, older))
			run := &jobs.Run{Requester: "user-1", Trigger: "manual", Status: jobs.RunRunning, Platforms: []string{"dice", "indeed"}, StartedAt: base}
			require.NoError(t, s.CreateRun(ctx, run))
			require.NotEmpty(t, run.ID)

			require.NoError(t, s.AddLog(ctx, &jobs.Log{RunID: run.ID, Platform: "dice", Status: jobs.LogSuccess, Count: 3, Duration: 1500 * time.Millisecond, CreatedAt: base}))
			require.NoError(t, s.AddLog(ctx, &jobs.Log{RunID: run.ID, Platform: "indeed", Status: jobs.LogError, Error: "no proxy", CreatedAt: base.Add(time.Second)}))

			run.Status = jobs.RunPartial
			run.Found = 3
			run.New = 2
			run.ErrorCount = 1
			run.Duration = 2 * time.Second
			run.FinishedAt = base.Add(2 * time.Second)
			run.ErrorSummary = `["indeed: no proxy"]`
			require.NoError(t, s.FinishRun(ctx, run))

			runs, err := s.Runs(ctx, 10)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			got := runs[0]
			assert.Equal(t, run.ID, got.ID)
			assert.Equal(t, jobs.RunPartial, got.Status)
			assert.Equal(t, []string{"dice", "indeed"}, got.Platforms)
			assert.Equal(t, 2, got.New)
			assert.Equal(t, 2*time.Second, got.Duration)
			assert.Equal(t, base.Add(2*time.Second), got.FinishedAt)
			assert.Equal(t, "manual", got.Trigger)

			limited, err := s.Runs(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			logs, err := s.RunLogs(ctx, run.ID)
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Equal(t, "dice", logs[0].Platform)
			assert.Equal(t, 1500*time.Millisecond, logs[0].Duration)
			assert.Equal(t, "no proxy", logs[1].Error)

			_, err = s.RunLogs(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.True(t, errors.Is(s.FinishRun(ctx, &jobs.Run{ID: "missing"}), ErrNotFound))
		})
	}
}

func TestProfiles(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			active := &jobs.SearchProfile{
				ID:              "p1",
				UserID:          "u1",
				Name:            "Backend",
				JobTitles:       []string{"Senior Go Developer"},
				ExcludeKeywords: []string{"clearance"},
				Remote:          true,
				Active:          true,
			}
			require.NoError(t, s.SaveProfile(ctx, active))
			require.NoError(t, s.SaveProfile(ctx, &jobs.SearchProfile{ID: "p2", Name: "Paused", JobTitles: []string{"SRE"}}))

			active.SalaryMin = 70
			require.NoError(t, s.SaveProfile(ctx, active))

			profiles, err := s.ActiveProfiles(ctx)
			require.NoError(t, err)
			require.Len(t, profiles, 1)
			assert.Equal(t, "Backend", profiles[0].Name)
			assert.Equal(t, []string{"Senior Go Developer"}, profiles[0].JobTitles)
			assert.Equal(t, []string{"clearance"}, profiles[0].ExcludeKeywords)
			assert.Equal(t, 70.0, profiles[0].SalaryMin)
			assert.True(t, profiles[0].Remote)
		})
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = New(context.Background(), Config{Type: "SQLite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = New(context.Background(), Config{Type: "sqlite"})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{Type: "postgres"})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{Type: "mongo"})
	assert.Error(t, err)
}

func TestQueryNormalize(t *testing.T) {
	q, err := Query{PageSize: 1000, SortBy: " Salary_Max ", Order: "ASC"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, "salary_max", q.SortBy)
	assert.Equal(t, "asc", q.Order)

	_, err = Query{Order: "sideways"}.Normalize()
	assert.Error(t, err)
}

func TestQueryWhereUsesDialectPlaceholders(t *testing.T) {
	remote := false
	q, err := Query{Platform: "dice", Remote: &remote, Search: "Go"}.Normalize()
	require.NoError(t, err)

	where, args := q.where(dollar)
	assert.Equal(t, " WHERE platform = $1 AND remote = $2 AND (LOWER(title) LIKE $3 OR LOWER(company) LIKE $4 OR LOWER(description) LIKE $5)", where)
	assert.Equal(t, []any{"dice", false, "%go%", "%go%", "%go%"}, args)

	where, args = Query{}.where(dollar)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func titles(page *Page) []string {
	out := make([]string, 0, len(page.Items))
	for _, p := range page.Items {
		out = append(out, p.Title)
	}
	return out
}
