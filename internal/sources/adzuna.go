package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/transport"
)

const (
	adzunaName     = "adzuna"
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaCountry  = "us"
)

type adzunaResponse struct {
	Results []any `json:"results"`
	Count   int   `json:"count"`
}

type adzunaJob struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	SalaryMin    float64 `json:"salary_min"`
	SalaryMax    float64 `json:"salary_max"`
	RedirectURL  string  `json:"redirect_url"`
	Created      string  `json:"created"`
	ContractTime string  `json:"contract_time"`
	ContractType string  `json:"contract_type"`
	Company      struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Adzuna uses the public search API. Missing credentials make it a
// configuration error rather than a silent skip.
type Adzuna struct {
	deps    Deps
	baseURL string
	country string
	appID   string
	appKey  string
}

func NewAdzuna(deps Deps) *Adzuna {
	cfg := deps.Config.Adzuna
	base := cfg.BaseURL
	if base == "" {
		base = adzunaBaseURL
	}
	country := strings.ToLower(cfg.Country)
	if country == "" {
		country = adzunaCountry
	}
	return &Adzuna{
		deps:    deps,
		baseURL: strings.TrimRight(base, "/"),
		country: country,
		appID:   cfg.AppID,
		appKey:  cfg.AppKey,
	}
}

func (s *Adzuna) Name() string { return adzunaName }

func (s *Adzuna) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()
	if s.appID == "" || s.appKey == "" {
		return configError(adzunaName, errors.New("app id or app key is not set"))
	}

	pg := pager{name: adzunaName, deps: s.deps, perPage: adzunaPageSize}
	return pg.collect(ctx, opts, func(ctx context.Context, page int) ([]candidate, error) {
		body, err := s.deps.fetch(ctx, adzunaName, proxyPolicy{}, transport.Request{
			URL:     s.searchURL(opts, page),
			Headers: http.Header{"Accept": []string{"application/json"}},
		})
		if err != nil {
			return nil, err
		}
		return s.parse(body)
	})
}

func (s *Adzuna) searchURL(opts jobs.ScrapeOptions, page int) string {
	q := url.Values{}
	q.Set("app_id", s.appID)
	q.Set("app_key", s.appKey)
	q.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	what := opts.Query
	if opts.RemoteOnly {
		what += " remote"
	}
	q.Set("what", what)
	if opts.Location != "" {
		q.Set("where", opts.Location)
	}
	if days := opts.PostedWithin.Days(); days > 0 {
		q.Set("max_days_old", strconv.Itoa(days))
	}
	for _, t := range opts.EmploymentTypes {
		switch t {
		case "full-time":
			q.Set("full_time", "1")
		case "part-time":
			q.Set("part_time", "1")
		case "contract":
			q.Set("contract", "1")
		case "permanent":
			q.Set("permanent", "1")
		}
	}
	q.Set("sort_by", "date")
	q.Set("content-type", "application/json")
	return fmt.Sprintf("%s/%s/search/%d?%s", s.baseURL, s.country, page+1, q.Encode())
}

func (s *Adzuna) parse(body []byte) ([]candidate, error) {
	var resp adzunaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var items []adzunaJob
	if err := decodeItems(resp.Results, &items); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	cands := make([]candidate, 0, len(items))
	for _, j := range items {
		c := candidate{
			sourceID:       j.ID,
			title:          j.Title,
			company:        j.Company.DisplayName,
			location:       j.Location.DisplayName,
			salaryMin:      j.SalaryMin,
			salaryMax:      j.SalaryMax,
			salaryPeriod:   jobs.SalaryAnnual,
			employmentType: strings.ReplaceAll(j.ContractTime, "_", "-"),
			description:    j.Description,
			posted:         j.Created,
			applyURL:       j.RedirectURL,
		}
		if t, err := time.Parse(time.RFC3339, j.Created); err == nil {
			c.postedAt = t
		}
		cands = append(cands, c)
	}
	return cands, nil
}
