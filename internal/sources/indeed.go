package sources

import (
	"bytes"
	"context"
	"encoding/json"
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
	indeedName       = "indeed"
	indeedBaseURL    = "https://www.indeed.com"
	indeedPerPage    = 10
	indeedCardMarker = `window.mosaic.providerData["mosaic-provider-jobcards"]=`
)

var indeedJobTypes = map[string]string{
	"full-time":  "fulltime",
	"part-time":  "parttime",
	"contract":   "contract",
	"temporary":  "temporary",
	"internship": "internship",
}

// Indeed blocks direct traffic, so it only runs behind a residential proxy.
type Indeed struct {
	deps    Deps
	baseURL string
	policy  proxyPolicy
}

func NewIndeed(deps Deps) *Indeed {
	base := deps.Config.Indeed.BaseURL
	if base == "" {
		base = indeedBaseURL
	}
	return &Indeed{
		deps:    deps,
		baseURL: strings.TrimRight(base, "/"),
		policy:  proxyPolicy{mode: proxyRequired, kind: transport.Residential},
	}
}

func (s *Indeed) Name() string { return indeedName }

func (s *Indeed) Scrape(ctx context.Context, opts jobs.ScrapeOptions) *jobs.ScrapeResult {
	opts = opts.WithDefaults()
	if err := s.deps.checkProxy(s.policy); err != nil {
		return configError(indeedName, err)
	}

	pg := pager{name: indeedName, deps: s.deps, perPage: indeedPerPage}
	return pg.collect(ctx, opts, func(ctx context.Context, page int) ([]candidate, error) {
		body, err := s.deps.fetch(ctx, indeedName, s.policy, transport.Request{
			URL:     s.searchURL(opts, page),
			Headers: http.Header{"Accept": []string{"text/html"}},
		})
		if err != nil {
			return nil, err
		}
		return extract(body, s.mosaicStrategy(), s.markupStrategy())
	})
}

func (s *Indeed) searchURL(opts jobs.ScrapeOptions, page int) string {
	q := url.Values{}
	q.Set("q", opts.Query)
	if opts.Location != "" {
		q.Set("l", opts.Location)
	}
	if days := opts.PostedWithin.Days(); days > 0 {
		q.Set("fromage", strconv.Itoa(days))
	}
	if opts.RemoteOnly {
		q.Set("remotejob", "032b3046-06a3-4876-8dfd-474eb5e7ed11")
	}
	for _, t := range opts.EmploymentTypes {
		if jt, ok := indeedJobTypes[t]; ok {
			q.Set("jt", jt)
			break
		}
	}
	if page > 0 {
		q.Set("start", strconv.Itoa(page*indeedPerPage))
	}
	return s.baseURL + "/jobs?" + q.Encode()
}

func (s *Indeed) mosaicStrategy() strategy {
	return strategy{name: "mosaic", parse: func(body []byte) ([]candidate, error) {
		raw, err := embeddedObject(body, indeedCardMarker)
		if err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode job cards: %w", err)
		}

		results := doc(payload).list("metaData.mosaicProviderJobCardsModel.results")
		cands := make([]candidate, 0, len(results))
		for _, r := range results {
			jobKey := r.str("jobkey")
			c := candidate{
				sourceID:       jobKey,
				title:          r.str("displayTitle", "title"),
				company:        r.str("company", "truncatedCompany"),
				location:       r.str("formattedLocation", "jobLocationCity"),
				remote:         r.boolean("remoteLocation"),
				salaryText:     r.str("salarySnippet.text", "extractedSalary.text"),
				salaryMin:      r.num("extractedSalary.min"),
				salaryMax:      r.num("extractedSalary.max"),
				description:    r.str("snippet"),
				posted:         r.str("formattedRelativeTime"),
				sourceURL:      absoluteURL(s.baseURL, r.str("link")),
				employmentType: strings.Join(r.strs("jobTypes"), ", "),
			}
			switch strings.ToLower(r.str("extractedSalary.type")) {
			case "hourly":
				c.salaryPeriod = jobs.SalaryHourly
			case "yearly":
				c.salaryPeriod = jobs.SalaryAnnual
			}
			if ms := r.num("pubDate"); ms > 0 {
				c.postedAt = time.UnixMilli(int64(ms)).UTC()
			}
			if jobKey != "" {
				c.applyURL = s.baseURL + "/viewjob?jk=" + url.QueryEscape(jobKey)
			}
			cands = append(cands, c)
		}
		return cands, nil
	}}
}

func (s *Indeed) markupStrategy() strategy {
	return strategy{name: "markup", parse: func(body []byte) ([]candidate, error) {
		page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		cards := page.Find("div.job_seen_beacon")
		if cards.Length() == 0 {
			return nil, errNoBlock
		}

		cands := make([]candidate, 0, cards.Length())
		cards.Each(func(_ int, card *goquery.Selection) {
			jobKey := attr(card, "h2.jobTitle a", "data-jk")
			c := candidate{
				sourceID:    jobKey,
				title:       text(card, "h2.jobTitle span[title]", "h2.jobTitle"),
				company:     text(card, `[data-testid="company-name"]`, "span.companyName"),
				location:    text(card, `[data-testid="text-location"]`, "div.companyLocation"),
				salaryText:  text(card, "div.salary-snippet-container", `[data-testid="attribute_snippet_testid"]`),
				description: text(card, "div.job-snippet", `[data-testid="jobsnippet_footer"]`),
				posted:      text(card, "span.date", `[data-testid="myJobsStateDate"]`),
				sourceURL:   absoluteURL(s.baseURL, attr(card, "h2.jobTitle a", "href")),
			}
			if jobKey != "" {
				c.applyURL = s.baseURL + "/viewjob?jk=" + url.QueryEscape(jobKey)
			} else {
				c.applyURL = c.sourceURL
			}
			cands = append(cands, c)
		})
		return cands, nil
	}}
}
