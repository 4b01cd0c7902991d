package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/job-radar/internal/jobs"
)

const postingColumns = `id, hash, platform, source_id, title, company, location, remote, salary_text,
	salary_min, salary_max, salary_period, employment_type, description, description_html,
	requirements, posted_at, posted_raw, apply_url, source_url, scraped_at`

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS postings (
		id TEXT PRIMARY KEY,
		hash TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL,
		source_id TEXT,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		location TEXT NOT NULL,
		remote INTEGER NOT NULL DEFAULT 0,
		salary_text TEXT,
		salary_min REAL NOT NULL DEFAULT 0,
		salary_max REAL NOT NULL DEFAULT 0,
		salary_period TEXT,
		employment_type TEXT,
		description TEXT,
		description_html TEXT,
		requirements TEXT,
		posted_at TIMESTAMP,
		posted_raw TEXT,
		apply_url TEXT NOT NULL,
		source_url TEXT,
		scraped_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_postings_platform ON postings(platform);
	CREATE INDEX IF NOT EXISTS idx_postings_posted_at ON postings(posted_at);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		requester TEXT,
		trigger_source TEXT,
		status TEXT NOT NULL,
		platforms TEXT,
		profiles TEXT,
		found INTEGER NOT NULL DEFAULT 0,
		new_jobs INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		error_summary TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		job_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scrape_logs_run ON scrape_logs(run_id);

	CREATE TABLE IF NOT EXISTS search_profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT,
		job_titles TEXT,
		skills TEXT,
		locations TEXT,
		remote INTEGER NOT NULL DEFAULT 0,
		salary_min REAL NOT NULL DEFAULT 0,
		salary_max REAL NOT NULL DEFAULT 0,
		include_keywords TEXT,
		exclude_keywords TEXT,
		platforms TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) InsertPosting(ctx context.Context, p *jobs.Posting) (bool, error) {
	if err := validatePosting(p); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO postings (`+postingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Hash, p.Platform, p.SourceID, p.Title, p.Company, p.Location, p.Remote, p.SalaryText,
		p.SalaryMin, p.SalaryMax, string(p.SalaryPeriod), p.EmploymentType, p.Description, p.DescriptionHTML,
		p.Requirements, p.PostedAt.UTC(), p.PostedRaw, p.ApplyURL, p.SourceURL, p.ScrapedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert posting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (*jobs.Posting, error) {
	var (
		p                                                     jobs.Posting
		sourceID, salaryText, period, employment, description sql.NullString
		html, requirements, postedRaw, sourceURL              sql.NullString
		postedAt, scrapedAt                                   sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Hash, &p.Platform, &sourceID, &p.Title, &p.Company, &p.Location, &p.Remote,
		&salaryText, &p.SalaryMin, &p.SalaryMax, &period, &employment, &description, &html,
		&requirements, &postedAt, &postedRaw, &p.ApplyURL, &sourceURL, &scrapedAt)
	if err != nil {
		return nil, err
	}
	p.SourceID = sourceID.String
	p.SalaryText = salaryText.String
	p.SalaryPeriod = jobs.SalaryPeriod(period.String)
	p.EmploymentType = employment.String
	p.Description = description.String
	p.DescriptionHTML = html.String
	p.Requirements = requirements.String
	p.PostedRaw = postedRaw.String
	p.SourceURL = sourceURL.String
	p.PostedAt = postedAt.Time.UTC()
	p.ScrapedAt = scrapedAt.Time.UTC()
	return &p, nil
}

func (s *SQLite) PostingByHash(ctx context.Context, hash string) (*jobs.Posting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE hash = ?`, hash)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("posting %s: %w", hash, ErrNotFound)
	}
	return p, err
}

func (s *SQLite) ListPostings(ctx context.Context, q Query) (*Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	where, args := q.where(func(int) string { return "?" })

	page := &Page{Items: []*jobs.Posting{}, Page: q.Page, PageSize: q.PageSize}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings`+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count postings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postingColumns+` FROM postings`+where+q.orderBy()+` LIMIT ? OFFSET ?`,
		append(args, q.PageSize, q.offset())...,
	)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		page.Items = append(page.Items, p)
	}
	return page, rows.Err()
}

func (s *SQLite) CreateRun(ctx context.Context, run *jobs.Run) error {
	ensureID(&run.ID)
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(id, requester, trigger_source, status, platforms, profiles, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Requester, run.Trigger, string(run.Status),
		encodeList(run.Platforms), encodeList(run.Profiles), run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *SQLite) FinishRun(ctx context.Context, run *jobs.Run) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, found = ?, new_jobs = ?, error_count = ?,
		duration_ms = ?, finished_at = ?, error_summary = ? WHERE id = ?`,
		string(run.Status), run.Found, run.New, run.ErrorCount, run.Duration.Milliseconds(),
		run.FinishedAt.UTC(), run.ErrorSummary, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) Runs(ctx context.Context, limit int) ([]*jobs.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, requester, trigger_source, status, platforms, profiles,
		found, new_jobs, error_count, duration_ms, started_at, finished_at, error_summary
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*jobs.Run
	for rows.Next() {
		var (
			r                           jobs.Run
			requester, trigger, summary sql.NullString
			platforms, profiles         sql.NullString
			status                      string
			durationMs                  int64
			finished                    sql.NullTime
		)
		if err := rows.Scan(&r.ID, &requester, &trigger, &status, &platforms, &profiles,
			&r.Found, &r.New, &r.ErrorCount, &durationMs, &r.StartedAt, &finished, &summary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Requester = requester.String
		r.Trigger = trigger.String
		r.Status = jobs.RunStatus(status)
		r.Platforms = decodeList(platforms.String)
		r.Profiles = decodeList(profiles.String)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.StartedAt = r.StartedAt.UTC()
		if finished.Valid {
			r.FinishedAt = finished.Time.UTC()
		}
		r.ErrorSummary = summary.String
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (s *SQLite) AddLog(ctx context.Context, l *jobs.Log) error {
	ensureID(&l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO scrape_logs
		(id, run_id, platform, status, duration_ms, job_count, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.RunID, l.Platform, string(l.Status), l.Duration.Milliseconds(), l.Count, l.Error, l.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("add log: %w", err)
	}
	return nil
}

func (s *SQLite) RunLogs(ctx context.Context, runID string) ([]*jobs.Log, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, platform, status, duration_ms, job_count, error, created_at
		FROM scrape_logs WHERE run_id = ? ORDER BY created_at, id`, runID)
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
			msg        sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.RunID, &l.Platform, &status, &durationMs, &l.Count, &msg, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		l.Status = jobs.LogStatus(status)
		l.Duration = time.Duration(durationMs) * time.Millisecond
		l.Error = msg.String
		l.CreatedAt = l.CreatedAt.UTC()
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *SQLite) SaveProfile(ctx context.Context, p *jobs.SearchProfile) error {
	ensureID(&p.ID)
	_, err := s.db.ExecContext(ctx, `INSERT INTO search_profiles
		(id, user_id, name, job_titles, skills, locations, remote, salary_min, salary_max,
		 include_keywords, exclude_keywords, platforms, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id, name = excluded.name, job_titles = excluded.job_titles,
			skills = excluded.skills, locations = excluded.locations, remote = excluded.remote,
			salary_min = excluded.salary_min, salary_max = excluded.salary_max,
			include_keywords = excluded.include_keywords, exclude_keywords = excluded.exclude_keywords,
			platforms = excluded.platforms, active = excluded.active`,
		p.ID, p.UserID, p.Name, encodeList(p.JobTitles), encodeList(p.Skills), encodeList(p.Locations),
		p.Remote, p.SalaryMin, p.SalaryMax, encodeList(p.IncludeKeywords), encodeList(p.ExcludeKeywords),
		encodeList(p.Platforms), p.Active,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *SQLite) ActiveProfiles(ctx context.Context) ([]*jobs.SearchProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, name, job_titles, skills, locations, remote,
		salary_min, salary_max, include_keywords, exclude_keywords, platforms, active
		FROM search_profiles WHERE active = 1 ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*jobs.SearchProfile
	for rows.Next() {
		var (
			p                           jobs.SearchProfile
			userID, name                sql.NullString
			titles, skills, locations   sql.NullString
			include, exclude, platforms sql.NullString
		)
		if err := rows.Scan(&p.ID, &userID, &name, &titles, &skills, &locations, &p.Remote,
			&p.SalaryMin, &p.SalaryMax, &include, &exclude, &platforms, &p.Active); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.UserID = userID.String
		p.Name = name.String
		p.JobTitles = decodeList(titles.String)
		p.Skills = decodeList(skills.String)
		p.Locations = decodeList(locations.String)
		p.IncludeKeywords = decodeList(include.String)
		p.ExcludeKeywords = decodeList(exclude.String)
		p.Platforms = decodeList(platforms.String)
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// encodeList stores string slices as JSON arrays.
func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeList(raw string) []string {
	var values []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
