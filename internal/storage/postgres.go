package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/job-radar/internal/jobs"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS postings (
	id TEXT PRIMARY KEY,
	hash TEXT NOT NULL UNIQUE,
	platform TEXT NOT NULL,
	source_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	location TEXT NOT NULL,
	remote BOOLEAN NOT NULL DEFAULT false,
	salary_text TEXT NOT NULL DEFAULT '',
	salary_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	salary_max DOUBLE PRECISION NOT NULL DEFAULT 0,
	salary_period TEXT NOT NULL DEFAULT '',
	employment_type TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	description_html TEXT NOT NULL DEFAULT '',
	requirements TEXT NOT NULL DEFAULT '',
	posted_at TIMESTAMPTZ NOT NULL,
	posted_raw TEXT NOT NULL DEFAULT '',
	apply_url TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	scraped_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_postings_platform ON postings(platform);
CREATE INDEX IF NOT EXISTS idx_postings_posted_at ON postings(posted_at);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	requester TEXT NOT NULL DEFAULT '',
	trigger_source TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	platforms TEXT[] NOT NULL DEFAULT '{}',
	profiles TEXT[] NOT NULL DEFAULT '{}',
	found INTEGER NOT NULL DEFAULT 0,
	new_jobs INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	error_summary TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scrape_logs (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	platform TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	job_count INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scrape_logs_run ON scrape_logs(run_id);

CREATE TABLE IF NOT EXISTS search_profiles (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	job_titles TEXT[] NOT NULL DEFAULT '{}',
	skills TEXT[] NOT NULL DEFAULT '{}',
	locations TEXT[] NOT NULL DEFAULT '{}',
	remote BOOLEAN NOT NULL DEFAULT false,
	salary_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	salary_max DOUBLE PRECISION NOT NULL DEFAULT 0,
	include_keywords TEXT[] NOT NULL DEFAULT '{}',
	exclude_keywords TEXT[] NOT NULL DEFAULT '{}',
	platforms TEXT[] NOT NULL DEFAULT '{}',
	active BOOLEAN NOT NULL DEFAULT true
);
`

type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func (s *Postgres) InsertPosting(ctx context.Context, p *jobs.Posting) (bool, error) {
	if err := validatePosting(p); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO postings (`+postingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (hash) DO NOTHING`,
		p.ID, p.Hash, p.Platform, p.SourceID, p.Title, p.Company, p.Location, p.Remote, p.SalaryText,
		p.SalaryMin, p.SalaryMax, string(p.SalaryPeriod), p.EmploymentType, p.Description, p.DescriptionHTML,
		p.Requirements, p.PostedAt.UTC(), p.PostedRaw, p.ApplyURL, p.SourceURL, p.ScrapedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert posting: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanPgPosting(row pgx.Row) (*jobs.Posting, error) {
	var (
		p      jobs.Posting
		period string
	)
	err := row.Scan(&p.ID, &p.Hash, &p.Platform, &p.SourceID, &p.Title, &p.Company, &p.Location, &p.Remote,
		&p.SalaryText, &p.SalaryMin, &p.SalaryMax, &period, &p.EmploymentType, &p.Description, &p.DescriptionHTML,
		&p.Requirements, &p.PostedAt, &p.PostedRaw, &p.ApplyURL, &p.SourceURL, &p.ScrapedAt)
	if err != nil {
		return nil, err
	}
	p.SalaryPeriod = jobs.SalaryPeriod(period)
	p.PostedAt = p.PostedAt.UTC()
	p.ScrapedAt = p.ScrapedAt.UTC()
	return &p, nil
}

func (s *Postgres) PostingByHash(ctx context.Context, hash string) (*jobs.Posting, error) {
	p, err := scanPgPosting(s.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("posting %s: %w", hash, ErrNotFound)
	}
	return p, err
}

func (s *Postgres) ListPostings(ctx context.Context, q Query) (*Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	where, args := q.where(dollar)

	page := &Page{Items: []*jobs.Posting{}, Page: q.Page, PageSize: q.PageSize}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM postings`+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count postings: %w", err)
	}

	limit := fmt.Sprintf(" LIMIT %s OFFSET %s", dollar(len(args)+1), dollar(len(args)+2))
	rows, err := s.pool.Query(ctx, `SELECT `+postingColumns+` FROM postings`+where+q.orderBy()+limit,
		append(args, q.PageSize, q.offset())...)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPgPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		page.Items = append(page.Items, p)
	}
	return page, rows.Err()
}

func (s *Postgres) CreateRun(ctx context.Context, run *jobs.Run) error {
	ensureID(&run.ID)
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO runs (id, requester, trigger_source, status, platforms, profiles, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Requester, run.Trigger, string(run.Status), nonNil(run.Platforms), nonNil(run.Profiles), run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Postgres) FinishRun(ctx context.Context, run *jobs.Run) error {
	tag, err := s.pool.Exec(ctx, `UPDATE runs SET status = $1, found = $2, new_jobs = $3, error_count = $4,
		duration_ms = $5, finished_at = $6, error_summary = $7 WHERE id = $8`,
		string(run.Status), run.Found, run.New, run.ErrorCount, run.Duration.Milliseconds(),
		run.FinishedAt.UTC(), run.ErrorSummary, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *Postgres) Runs(ctx context.Context, limit int) ([]*jobs.Run, error) {
	query := `SELECT id, requester, trigger_source, status, platforms, profiles, found, new_jobs,
		error_count, duration_ms, started_at, finished_at, error_summary FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*jobs.Run
	for rows.Next() {
		var (
			r          jobs.Run
			status     string
			durationMs int64
			finished   *time.Time
		)
		if err := rows.Scan(&r.ID, &r.Requester, &r.Trigger, &status, &r.Platforms, &r.Profiles,
			&r.Found, &r.New, &r.ErrorCount, &durationMs, &r.StartedAt, &finished, &r.ErrorSummary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = jobs.RunStatus(status)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.StartedAt = r.StartedAt.UTC()
		if finished != nil {
			r.FinishedAt = finished.UTC()
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (s *Postgres) AddLog(ctx context.Context, l *jobs.Log) error {
	ensureID(&l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO scrape_logs (id, run_id, platform, status, duration_ms, job_count, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.RunID, l.Platform, string(l.Status), l.Duration.Milliseconds(), l.Count, l.Error, l.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("add log: %w", err)
	}
	return nil
}

func (s *Postgres) RunLogs(ctx context.Context, runID string) ([]*jobs.Log, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	rows, err := s.pool.Query(ctx, `SELECT id, run_id, platform, status, duration_ms, job_count, error, created_at
		FROM scrape_logs WHERE run_id = $1 ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	logs := []*jobs.Log{}
	for rows.Next() {
		var (
			l          jobs.Log
			status     string
			durationMs int64
		)
		if err := rows.Scan(&l.ID, &l.RunID, &l.Platform, &status, &durationMs, &l.Count, &l.Error, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		l.Status = jobs.LogStatus(status)
		l.Duration = time.Duration(durationMs) * time.Millisecond
		l.CreatedAt = l.CreatedAt.UTC()
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *Postgres) SaveProfile(ctx context.Context, p *jobs.SearchProfile) error {
	ensureID(&p.ID)
	_, err := s.pool.Exec(ctx, `INSERT INTO search_profiles
		(id, user_id, name, job_titles, skills, locations, remote, salary_min, salary_max,
		 include_keywords, exclude_keywords, platforms, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, name = EXCLUDED.name, job_titles = EXCLUDED.job_titles,
			skills = EXCLUDED.skills, locations = EXCLUDED.locations, remote = EXCLUDED.remote,
			salary_min = EXCLUDED.salary_min, salary_max = EXCLUDED.salary_max,
			include_keywords = EXCLUDED.include_keywords, exclude_keywords = EXCLUDED.exclude_keywords,
			platforms = EXCLUDED.platforms, active = EXCLUDED.active`,
		p.ID, p.UserID, p.Name, nonNil(p.JobTitles), nonNil(p.Skills), nonNil(p.Locations),
		p.Remote, p.SalaryMin, p.SalaryMax, nonNil(p.IncludeKeywords), nonNil(p.ExcludeKeywords),
		nonNil(p.Platforms), p.Active,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *Postgres) ActiveProfiles(ctx context.Context) ([]*jobs.SearchProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, name, job_titles, skills, locations, remote,
		salary_min, salary_max, include_keywords, exclude_keywords, platforms, active
		FROM search_profiles WHERE active = true ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query search_profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*jobs.SearchProfile
	for rows.Next() {
		var p jobs.SearchProfile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.JobTitles, &p.Skills, &p.Locations, &p.Remote,
			&p.SalaryMin, &p.SalaryMax, &p.IncludeKeywords, &p.ExcludeKeywords, &p.Platforms, &p.Active); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
