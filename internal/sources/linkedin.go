package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/transport"
)

const (
	linkedInName    = "linkedin"
	linkedInBaseURL = "https://www.linkedin.com"
	linkedInPerPage = 25
	linkedInSearch  = "/jobs-guest/jobs/api/seeMoreJobPostings/search"
)

var linkedInJobTypes = map[string]string{
	"full-time":  "F",
	"part-time":  "P",
	"contract":   "C",
	"temporary":  "T",
	"internship": "I",
}

// LinkedIn reads the public guest search fragments. It goes direct and
// falls back to a datacenter proxy when blocked.
type LinkedIn struct {
	deps    Deps
	baseURL string
	policy  proxyPolicy
}

func NewLinkedIn(deps Deps) *LinkedIn {
	base := deps.Config.LinkedIn.BaseURL
	if base == "" {
		base = linkedInBaseURL
	}
	return &LinkedIn{
		deps:    deps,
		baseURL: strings.TrimRight(base, "/"),
		policy:  proxyPolicy{mode: proxyFallback, kind: transport.Datacenter},
	}
}

func (s *LinkedIn) Name() string { return linkedInName }

func (s *LinkedIn) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()

	pg := pager{name: linkedInName, deps: s.deps, perPage: linkedInPerPage}
	return pg.collect(ctx, opts, func(ctx context.Context, page int) ([]candidate, error) {
		body, err := s.deps.fetch(ctx, linkedInName, s.policy, transport.Request{
			URL:     s.searchURL(opts, page),
			Headers: http.Header{"Accept": []string{"text/html"}},
		})
		if err != nil {
			return nil, err
		}
		cands, err := extract(body, jsonLDStrategy(), s.cardStrategy())
		if err != nil {
			return nil, err
		}
		if opts.RemoteOnly {
			for i := range cands {
				cands[i].remote = true
			}
		}
		return cands, nil
	})
}

func (s *LinkedIn) searchURL(opts jobs.ScrapeOptions, page int) string {
	q := url.Values{}
	q.Set("keywords", opts.Query)
	if opts.Location != "" {
		q.Set("location", opts.Location)
	}
	if d, ok := opts.PostedWithin.Duration(); ok {
		q.Set("f_TPR", "r"+strconv.Itoa(int(d/time.Second)))
	}
	if opts.RemoteOnly {
		q.Set("f_WT", "2")
	}
	var types []string
	for _, t := range opts.EmploymentTypes {
		if jt, ok := linkedInJobTypes[t]; ok {
			types = append(types, jt)
		}
	}
	if len(types) > 0 {
		q.Set("f_JT", strings.Join(types, ","))
	}
	q.Set("start", strconv.Itoa(page*linkedInPerPage))
	return s.baseURL + linkedInSearch + "?" + q.Encode()
}

func (s *LinkedIn) cardStrategy() strategy {
	return strategy{name: "markup", parse: func(body []byte) ([]candidate, error) {
		page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		cards := page.Find("div.base-search-card")
		if cards.Length() == 0 {
			return nil, errNoBlock
		}

		cands := make([]candidate, 0, cards.Length())
		cards.Each(func(_ int, card *goquery.Selection) {
			link := attr(card, "a.base-card__full-link", "href")
			if i := strings.IndexByte(link, '?'); i > 0 {
				link = link[:i]
			}
			c := candidate{
				sourceID:   strings.TrimPrefix(card.AttrOr("data-entity-urn", ""), "urn:li:jobPosting:"),
				title:      text(card, "h3.base-search-card__title"),
				company:    text(card, "h4.base-search-card__subtitle"),
				location:   text(card, "span.job-search-card__location"),
				salaryText: text(card, "span.job-search-card__salary-info"),
				posted:     text(card, "time"),
				applyURL:   absoluteURL(s.baseURL, link),
			}
			if dt := attr(card, "time", "datetime"); dt != "" && c.posted == "" {
				if t, err := time.Parse("2006-01-02", dt); err == nil {
					c.postedAt = t
				}
			}
			cands = append(cands, c)
		})
		return cands, nil
	}}
}
