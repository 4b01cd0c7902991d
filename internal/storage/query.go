package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrInvalidQuery = errors.New("invalid query")

// Sortable posting fields mapped to their column names.
var sortColumns = map[string]string{
	"posted_at":  "posted_at",
	"scraped_at": "scraped_at",
	"salary_min": "salary_min",
	"salary_max": "salary_max",
	"title":      "title",
	"company":    "company",
}

// Query filters stored postings. Zero values do not filter.
type Query struct {
	Platform       string    `form:"platform"`
	Remote         *bool     `form:"remote"`
	SalaryMin      float64   `form:"salary_min"`
	SalaryMax      float64   `form:"salary_max"`
	EmploymentType string    `form:"employment_type"`
	Search         string    `form:"q"`
	PostedAfter    time.Time `form:"posted_after" time_format:"2006-01-02"`
	PostedBefore   time.Time `form:"posted_before" time_format:"2006-01-02"`
	Page           int       `form:"page"`
	PageSize       int       `form:"page_size"`
	SortBy         string    `form:"sort"`
	Order          string    `form:"order"`
}

type Page struct {
	Items    []*jobs.Posting `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// Normalize applies paging defaults and validates sorting.
func (q Query) Normalize() (Query, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	if q.SortBy == "" {
		q.SortBy = "posted_at"
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return q, fmt.Errorf("%w: unsupported sort field %q", ErrInvalidQuery, q.SortBy)
	}
	q.Order = strings.ToLower(strings.TrimSpace(q.Order))
	switch q.Order {
	case "":
		q.Order = "desc"
	case "asc", "desc":
	default:
		return q, fmt.Errorf("%w: unsupported sort order %q", ErrInvalidQuery, q.Order)
	}
	q.Platform = strings.ToLower(strings.TrimSpace(q.Platform))
	q.EmploymentType = strings.ToLower(strings.TrimSpace(q.EmploymentType))
	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

func (q Query) offset() int {
	return (q.Page - 1) * q.PageSize
}

// matches is the in-memory equivalent of where.
func (q Query) matches(p *jobs.Posting) bool {
	if q.Platform != "" && p.Platform != q.Platform {
		return false
	}
	if q.Remote != nil && p.Remote != *q.Remote {
		return false
	}
	if q.SalaryMin > 0 && p.SalaryMax < q.SalaryMin {
		return false
	}
	if q.SalaryMax > 0 && (p.SalaryMin <= 0 || p.SalaryMin > q.SalaryMax) {
		return false
	}
	if q.EmploymentType != "" && !strings.Contains(p.EmploymentType, q.EmploymentType) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Company), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	if !q.PostedAfter.IsZero() && p.PostedAt.Before(q.PostedAfter) {
		return false
	}
	if !q.PostedBefore.IsZero() && p.PostedAt.After(q.PostedBefore) {
		return false
	}
	return true
}

func (q Query) sort(items []*jobs.Posting) {
	less := func(a, b *jobs.Posting) bool {
		switch q.SortBy {
		case "scraped_at":
			return a.ScrapedAt.Before(b.ScrapedAt)
		case "salary_min":
			return a.SalaryMin < b.SalaryMin
		case "salary_max":
			return a.SalaryMax < b.SalaryMax
		case "title":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case "company":
			return strings.ToLower(a.Company) < strings.ToLower(b.Company)
		default:
			return a.PostedAt.Before(b.PostedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if q.Order == "asc" {
			return less(items[i], items[j])
		}
		return less(items[j], items[i])
	})
}

// where renders the filter as a SQL condition. placeholder returns the
// dialect's n-th bind marker.
func (q Query) where(placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, values ...any) {
		markers := make([]any, len(values))
		for i, v := range values {
			args = append(args, v)
			markers[i] = placeholder(len(args))
		}
		conds = append(conds, fmt.Sprintf(cond, markers...))
	}

	if q.Platform != "" {
		add("platform = %s", q.Platform)
	}
	if q.Remote != nil {
		add("remote = %s", *q.Remote)
	}
	if q.SalaryMin > 0 {
		add("salary_max >= %s", q.SalaryMin)
	}
	if q.SalaryMax > 0 {
		add("salary_min > 0 AND salary_min <= %s", q.SalaryMax)
	}
	if q.EmploymentType != "" {
		add("employment_type LIKE %s", "%"+q.EmploymentType+"%")
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		add("(LOWER(title) LIKE %s OR LOWER(company) LIKE %s OR LOWER(description) LIKE %s)", like, like, like)
	}
	if !q.PostedAfter.IsZero() {
		add("posted_at >= %s", q.PostedAfter.UTC())
	}
	if !q.PostedBefore.IsZero() {
		add("posted_at <= %s", q.PostedBefore.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q Query) orderBy() string {
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", sortColumns[q.SortBy], strings.ToUpper(q.Order))
}
