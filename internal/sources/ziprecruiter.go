package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/transport"
)

const (
	zipName    = "ziprecruiter"
	zipBaseURL = "https://www.ziprecruiter.com"
	zipPerPage = 20
)

type ZipRecruiter struct {
	deps    Deps
	baseURL string
	policy  proxyPolicy
}

func NewZipRecruiter(deps Deps) *ZipRecruiter {
	base := deps.Config.ZipRecruiter.BaseURL
	if base == "" {
		base = zipBaseURL
	}
	return &ZipRecruiter{
		deps:    deps,
		baseURL: strings.TrimRight(base, "/"),
		policy:  proxyPolicy{mode: proxyRequired, kind: transport.Residential},
	}
}

func (s *ZipRecruiter) Name() string { return zipName }

func (s *ZipRecruiter) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()
	if err := s.deps.checkProxy(s.policy); err != nil {
		return configError(zipName, err)
	}

	pg := pager{name: zipName, deps: s.deps, perPage: zipPerPage}
	return pg.collect(ctx, opts, func(ctx context.Context, page int) ([]candidate, error) {
		body, err := s.deps.fetch(ctx, zipName, s.policy, transport.Request{
			URL:     s.searchURL(opts, page),
			Headers: http.Header{"Accept": []string{"text/html"}},
		})
		if err != nil {
			return nil, err
		}
		return extract(body, jsonLDStrategy(), s.markupStrategy())
	})
}

func (s *ZipRecruiter) searchURL(opts jobs.ScrapeOptions, page int) string {
	q := url.Values{}
	q.Set("search", opts.Query)
	if opts.Location != "" {
		q.Set("location", opts.Location)
	}
	if days := opts.PostedWithin.Days(); days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	if opts.RemoteOnly {
		q.Set("refine_by_location_type", "only_remote")
	}
	if len(opts.EmploymentTypes) > 0 {
		q.Set("refine_by_employment", "employment_type:"+strings.ReplaceAll(opts.EmploymentTypes[0], "-", "_"))
	}
	q.Set("page", strconv.Itoa(page+1))
	return s.baseURL + "/jobs-search?" + q.Encode()
}

func (s *ZipRecruiter) markupStrategy() strategy {
	return strategy{name: "markup", parse: func(body []byte) ([]candidate, error) {
		page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		cards := page.Find("article.job_result")
		if cards.Length() == 0 {
			return nil, errNoBlock
		}

		cands := make([]candidate, 0, cards.Length())
		cards.Each(func(_ int, card *goquery.Selection) {
			link := attr(card, "a.job_link", "href")
			if link == "" {
				link = attr(card, "h2 a", "href")
			}
			cands = append(cands, candidate{
				sourceID:    card.AttrOr("data-job-id", ""),
				title:       text(card, "h2.title", ".job_title"),
				company:     text(card, "a.company_name", ".hiring_company"),
				location:    text(card, ".location", ".company_location"),
				salaryText:  text(card, ".salary", ".perk_item.salary"),
				description: text(card, ".job_snippet", ".snippet"),
				posted:      text(card, ".posted_time", "time"),
				applyURL:    absoluteURL(s.baseURL, link),
			})
		})
		return cands, nil
	}}
}
