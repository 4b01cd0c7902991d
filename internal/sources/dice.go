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

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/transport"
)

const (
	diceName    = "dice"
	diceBaseURL = "https://job-search-api.svc.dhigroupinc.com"
	dicePerPage = 20
	diceSearch  = "/v1/dice/jobs/search"
)

var dicePostedDate = map[jobs.PostedWithin]string{
	jobs.Within24h: "ONE",
	jobs.Within3d:  "THREE",
	jobs.Within7d:  "SEVEN",
}

var diceEmploymentTypes = map[string]string{
	"full-time": "FULLTIME",
	"part-time": "PARTTIME",
	"contract":  "CONTRACTS",
	"temporary": "THIRD_PARTY",
}

type diceResponse struct {
	Data []any `json:"data"`
	Meta struct {
		Page      int `json:"currentPage"`
		PageCount int `json:"pageCount"`
	} `json:"meta"`
}

type diceJob struct {
	ID             string `json:"id"`
	GUID           string `json:"guid"`
	Title          string `json:"title"`
	CompanyName    string `json:"companyName"`
	Summary        string `json:"summary"`
	Salary         string `json:"salary"`
	PostedDate     string `json:"postedDate"`
	DetailsPageURL string `json:"detailsPageUrl"`
	IsRemote       bool   `json:"isRemote"`
	EmploymentType string `json:"employmentType"`
	JobLocation    struct {
		DisplayName string `json:"displayName"`
	} `json:"jobLocation"`
}

// Dice queries the search API behind the public site. It needs an API key.
type Dice struct {
	deps    Deps
	baseURL string
	apiKey  string
}

func NewDice(deps Deps) *Dice {
	base := deps.Config.Dice.BaseURL
	if base == "" {
		base = diceBaseURL
	}
	return &Dice{
		deps:    deps,
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  deps.Config.Dice.APIKey,
	}
}

func (s *Dice) Name() string { return diceName }

func (s *Dice) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()
	if s.apiKey == "" {
		return configError(diceName, errors.New("api key is not set"))
	}

	pg := pager{name: diceName, deps: s.deps, perPage: dicePerPage}
	return pg.collect(ctx, opts, func(ctx context.Context, page int) ([]candidate, error) {
		body, err := s.deps.fetch(ctx, diceName, proxyPolicy{}, transport.Request{
			URL: s.searchURL(opts, page),
			Headers: http.Header{
				"Accept":    []string{"application/json"},
				"X-Api-Key": []string{s.apiKey},
			},
		})
		if err != nil {
			return nil, err
		}
		return s.parse(body)
	})
}

func (s *Dice) searchURL(opts jobs.ScrapeOptions, page int) string {
	q := url.Values{}
	q.Set("q", opts.Query)
	if opts.Location != "" {
		q.Set("location", opts.Location)
		q.Set("radius", "30")
		q.Set("radiusUnit", "mi")
	}
	q.Set("countryCode2", "US")
	q.Set("page", strconv.Itoa(page+1))
	q.Set("pageSize", strconv.Itoa(dicePerPage))
	q.Set("language", "en")
	if v, ok := dicePostedDate[opts.PostedWithin]; ok {
		q.Set("filters.postedDate", v)
	}
	if opts.RemoteOnly {
		q.Set("filters.isRemote", "true")
	}
	var types []string
	for _, t := range opts.EmploymentTypes {
		if v, ok := diceEmploymentTypes[t]; ok {
			types = append(types, v)
		}
	}
	if len(types) > 0 {
		q.Set("filters.employmentType", strings.Join(types, "|"))
	}
	return s.baseURL + diceSearch + "?" + q.Encode()
}

func (s *Dice) parse(body []byte) ([]candidate, error) {
	var resp diceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var items []diceJob
	if err := decodeItems(resp.Data, &items); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	cands := make([]candidate, 0, len(items))
	for _, j := range items {
		id := j.ID
		if id == "" {
			id = j.GUID
		}
		cands = append(cands, candidate{
			sourceID:       id,
			title:          j.Title,
			company:        j.CompanyName,
			location:       j.JobLocation.DisplayName,
			remote:         j.IsRemote,
			salaryText:     j.Salary,
			employmentType: j.EmploymentType,
			description:    j.Summary,
			posted:         j.PostedDate,
			applyURL:       j.DetailsPageURL,
		})
	}
	return cands, nil
}
