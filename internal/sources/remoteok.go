package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/transport"
)

const (
	remoteOKName    = "remoteok"
	remoteOKBaseURL = "https://remoteok.com"
)

type remoteOKJob struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Position    string   `json:"position"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Epoch       int64    `json:"epoch"`
	URL         string   `json:"url"`
	ApplyURL    string   `json:"apply_url"`
	SalaryMin   float64  `json:"salary_min"`
	SalaryMax   float64  `json:"salary_max"`
}

// RemoteOK serves its whole feed in one response, so the query is applied
// locally.
type RemoteOK struct {
	deps    Deps
	baseURL string
}

func NewRemoteOK(deps Deps) *RemoteOK {
	base := deps.Config.RemoteOK.BaseURL
	if base == "" {
		base = remoteOKBaseURL
	}
	return &RemoteOK{deps: deps, baseURL: strings.TrimRight(base, "/")}
}

func (s *RemoteOK) Name() string { return remoteOKName }

func (s *RemoteOK) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()

	pg := pager{name: remoteOKName, deps: s.deps, pages: 1}
	return pg.collect(ctx, opts, func(ctx context.Context, _ int) ([]candidate, error) {
		body, err := s.deps.fetch(ctx, remoteOKName, proxyPolicy{}, transport.Request{
			URL:     s.baseURL + "/api",
			Headers: http.Header{"Accept": []string{"application/json"}},
		})
		if err != nil {
			return nil, err
		}
		return s.parse(body, opts.Query)
	})
}

func (s *RemoteOK) parse(body []byte, query string) ([]candidate, error) {
	var feed []any
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	// The first element is the API terms notice.
	if len(feed) > 0 {
		if notice, ok := feed[0].(map[string]any); ok {
			if _, hasLegal := notice["legal"]; hasLegal {
				feed = feed[1:]
			}
		}
	}

	var items []remoteOKJob
	if err := decodeItems(feed, &items); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	terms := strings.Fields(strings.ToLower(query))
	cands := make([]candidate, 0, len(items))
	for _, j := range items {
		if !matchesTerms(terms, j.Position, j.Company, strings.Join(j.Tags, " ")) {
			continue
		}
		location := j.Location
		if strings.TrimSpace(location) == "" {
			location = "Remote"
		}
		apply := j.ApplyURL
		if apply == "" {
			apply = j.URL
		}
		c := candidate{
			sourceID:     j.ID,
			title:        j.Position,
			company:      j.Company,
			location:     location,
			remote:       true,
			salaryMin:    j.SalaryMin,
			salaryMax:    j.SalaryMax,
			salaryPeriod: jobs.SalaryAnnual,
			description:  j.Description,
			requirements: strings.Join(j.Tags, ", "),
			posted:       j.Date,
			applyURL:     apply,
			sourceURL:    j.URL,
		}
		if t, err := time.Parse(time.RFC3339, j.Date); err == nil {
			c.postedAt = t
		} else if j.Epoch > 0 {
			c.postedAt = time.Unix(j.Epoch, 0).UTC()
		}
		cands = append(cands, c)
	}
	return cands, nil
}

// matchesTerms reports whether every term occurs in at least one field.
func matchesTerms(terms []string, fields ...string) bool {
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
