package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/normalize"
	"github.com/spigell/job-radar/internal/transport"
)

const (
	headHunterName    = "headhunter"
	headHunterBaseURL = "https://api.hh.ru"
	headHunterAgent   = "job-radar (+https://github.com/spigell/job-radar)"
	// Max value for search per page.
	headHunterPerPage = 100
	// hh.ru timestamps look like 2024-05-09T10:00:00+0300.
	headHunterTimeLayout = "2006-01-02T15:04:05-0700"
)

type headHunterResponse struct {
	Items   []any `json:"items"`
	Found   int   `json:"found"`
	Pages   int   `json:"pages"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

type headHunterVacancy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Area struct {
		Name string `json:"name"`
	} `json:"area"`
	Salary struct {
		From     float64 `json:"from"`
		To       float64 `json:"to"`
		Currency string  `json:"currency"`
	} `json:"salary"`
	Schedule struct {
		ID string `json:"id"`
	} `json:"schedule"`
	Employment struct {
		ID string `json:"id"`
	} `json:"employment"`
	Employer struct {
		Name string `json:"name"`
	} `json:"employer"`
	Snippet struct {
		Requirement    string `json:"requirement"`
		Responsibility string `json:"responsibility"`
	} `json:"snippet"`
	AlternateURL string `json:"alternate_url"`
	URL          string `json:"url"`
	PublishedAt  string `json:"published_at"`
}

// HeadHunter searches the public hh.ru vacancies API. It is registered only
// when enabled in config.
type HeadHunter struct {
	deps    Deps
	baseURL string
	areas   []int
}

func NewHeadHunter(deps Deps) *HeadHunter {
	base := deps.Config.HeadHunter.BaseURL
	if base == "" {
		base = headHunterBaseURL
	}
	return &HeadHunter{
		deps:    deps,
		baseURL: strings.TrimRight(base, "/"),
		areas:   deps.Config.HeadHunter.Areas,
	}
}

func (s *HeadHunter) Name() string { return headHunterName }

func (s *HeadHunter) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()

	pg := pager{name: headHunterName, deps: s.deps, perPage: headHunterPerPage}
	return pg.collect(ctx, opts, func(ctx context.Context, page int) ([]candidate, error) {
		headers := http.Header{}
		headers.Set("Accept", "application/json")
		headers.Set("HH-User-Agent", headHunterAgent)
		body, err := s.deps.fetch(ctx, headHunterName, proxyPolicy{}, transport.Request{
			URL:     s.searchURL(opts, page),
			Headers: headers,
		})
		if err != nil {
			return nil, err
		}
		return s.parse(body)
	})
}

func (s *HeadHunter) searchURL(opts jobs.ScrapeOptions, page int) string {
	q := url.Values{}
	text := opts.Query
	if opts.Location != "" && len(s.areas) == 0 {
		text += " " + opts.Location
	}
	q.Set("text", text)
	q.Set("per_page", strconv.Itoa(headHunterPerPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("order_by", "publication_time")
	for _, area := range s.areas {
		q.Add("area", strconv.Itoa(area))
	}
	if days := opts.PostedWithin.Days(); days > 0 {
		q.Set("period", strconv.Itoa(days))
	}
	if opts.RemoteOnly {
		q.Set("schedule", "remote")
	}
	for _, t := range opts.EmploymentTypes {
		if id, ok := headHunterEmployment[t]; ok {
			q.Add("employment", id)
		}
	}
	return fmt.Sprintf("%s/vacancies?%s", s.baseURL, q.Encode())
}

var headHunterEmployment = map[string]string{
	"full-time":  "full",
	"part-time":  "part",
	"contract":   "project",
	"internship": "probation",
}

func (s *HeadHunter) parse(body []byte) ([]candidate, error) {
	var resp headHunterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var items []headHunterVacancy
	if err := decodeItems(resp.Items, &items); err != nil {
		return nil, fmt.Errorf("decode vacancies: %w", err)
	}

	cands := make([]candidate, 0, len(items))
	for _, v := range items {
		c := candidate{
			sourceID:     v.ID,
			title:        v.Name,
			company:      v.Employer.Name,
			location:     v.Area.Name,
			remote:       v.Schedule.ID == "remote",
			description:  strings.TrimSpace(v.Snippet.Responsibility + " " + v.Snippet.Requirement),
			requirements: normalize.StripHTML(v.Snippet.Requirement),
			posted:       v.PublishedAt,
			applyURL:     v.AlternateURL,
			sourceURL:    v.URL,
		}
		switch v.Employment.ID {
		case "full":
			c.employmentType = "full-time"
		case "part":
			c.employmentType = "part-time"
		case "project":
			c.employmentType = "contract"
		}
		// Only USD figures share the hourly scale, other currencies stay textual.
		if v.Salary.From > 0 || v.Salary.To > 0 {
			if strings.EqualFold(v.Salary.Currency, "USD") {
				c.salaryMin, c.salaryMax = v.Salary.From*12, v.Salary.To*12
				c.salaryPeriod = jobs.SalaryAnnual
			} else {
				c.requirements = strings.TrimSpace(fmt.Sprintf("%s Salary: %s %s",
					c.requirements, salaryRange(v.Salary.From, v.Salary.To), v.Salary.Currency))
			}
		}
		if t, err := time.Parse(headHunterTimeLayout, v.PublishedAt); err == nil {
			c.postedAt = t.UTC()
		}
		cands = append(cands, c)
	}
	return cands, nil
}

func salaryRange(from, to float64) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("%.0f-%.0f", from, to)
	case from > 0:
		return fmt.Sprintf("from %.0f", from)
	default:
		return fmt.Sprintf("up to %.0f", to)
	}
}
