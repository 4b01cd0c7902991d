package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/transport"
)

func TestDefaultRegistryRegistersEveryBoard(t *testing.T) {
	r := NewDefaultRegistry(Deps{})

	assert.Equal(t, []string{"adzuna", "dice", "indeed", "linkedin", "remoteok", "ziprecruiter"}, r.Names())

	s, ok := r.Get(" LinkedIn ")
	require.True(t, ok)
	assert.Equal(t, "linkedin", s.Name())

	_, ok = r.Get("monster")
	assert.False(t, ok)
}

func TestFetchThrottlesBeforeEveryCall(t *testing.T) {
	f := &stubFetcher{respond: func(transport.Request, int) ([]byte, error) { return []byte("ok"), nil }}
	limiter := &countingLimiter{}
	deps := Deps{Fetcher: f, Limiter: limiter}

	for i := 0; i < 3; i++ {
		_, err := deps.fetch(context.Background(), "dice", proxyPolicy{}, transport.Request{URL: "http://x"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, limiter.calls["dice"])
}

func TestFetchRequiredProxy(t *testing.T) {
	f := &stubFetcher{respond: func(transport.Request, int) ([]byte, error) { return []byte("ok"), nil }}
	policy := proxyPolicy{mode: proxyRequired, kind: transport.Residential}

	_, err := Deps{Fetcher: f}.fetch(context.Background(), "indeed", policy, transport.Request{URL: "http://x"})
	assert.True(t, errors.Is(err, transport.ErrNoProxy))
	assert.Empty(t, f.calls())

	deps := Deps{Fetcher: f, Proxies: transport.StaticProxies{Residential: "http://res"}}
	_, err = deps.fetch(context.Background(), "indeed", policy, transport.Request{URL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "http://res", f.calls()[0].ProxyURL)
}

func TestFetchFallbackProxy(t *testing.T) {
	f := &stubFetcher{respond: func(req transport.Request, _ int) ([]byte, error) {
		if req.ProxyURL == "" {
			return nil, &transport.StatusError{URL: req.URL, Code: http.StatusTooManyRequests}
		}
		return []byte("proxied"), nil
	}}
	deps := Deps{Fetcher: f, Proxies: transport.StaticProxies{Datacenter: "http://dc"}}
	policy := proxyPolicy{mode: proxyFallback, kind: transport.Datacenter}

	body, err := deps.fetch(context.Background(), "linkedin", policy, transport.Request{URL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "proxied", string(body))

	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].ProxyURL)
	assert.Equal(t, "http://dc", calls[1].ProxyURL)
}

func TestFetchFallbackWithoutProxyReturnsDirectError(t *testing.T) {
	f := &stubFetcher{respond: func(req transport.Request, _ int) ([]byte, error) {
		return nil, &transport.StatusError{URL: req.URL, Code: http.StatusForbidden}
	}}
	policy := proxyPolicy{mode: proxyFallback, kind: transport.Datacenter}

	_, err := Deps{Fetcher: f}.fetch(context.Background(), "linkedin", policy, transport.Request{URL: "http://x"})
	assert.True(t, transport.IsStatus(err, http.StatusForbidden))
	assert.Len(t, f.calls(), 1)
}

func validCandidate(i int) candidate {
	return candidate{
		sourceID: fmt.Sprint(i),
		title:    fmt.Sprintf("Go Developer %d", i),
		company:  "Acme",
		location: "Remote",
		applyURL: fmt.Sprintf("https://example.com/%d", i),
		posted:   "just posted",
	}
}

func TestCollectStopsAtMaxResults(t *testing.T) {
	pg := pager{name: "test", deps: testDeps(nil, nil), perPage: 5}
	fetched := 0

	result := pg.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 7}, func(_ context.Context, page int) ([]candidate, error) {
		fetched++
		var cands []candidate
		for i := 0; i < 5; i++ {
			cands = append(cands, validCandidate(page*5+i))
		}
		return cands, nil
	})

	assert.Equal(t, 2, fetched)
	assert.Len(t, result.Jobs, 7)
	assert.Equal(t, 7, result.TotalFound)
	assert.Empty(t, result.Errors)
}

func TestCollectStopsOnEmptyPageAndCap(t *testing.T) {
	pg := pager{name: "test", deps: testDeps(nil, nil)}
	fetched := 0

	pg.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 1000}, func(_ context.Context, page int) ([]candidate, error) {
		fetched++
		return []candidate{validCandidate(page)}, nil
	})
	assert.Equal(t, maxPages, fetched)

	fetched = 0
	pg.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 10}, func(_ context.Context, page int) ([]candidate, error) {
		fetched++
		if page == 1 {
			return nil, nil
		}
		return []candidate{validCandidate(page)}, nil
	})
	assert.Equal(t, 2, fetched)
}

func TestCollectShortPageStopsOnlyWithKnownPageSize(t *testing.T) {
	short := func(fetched *int) pageFunc {
		return func(_ context.Context, page int) ([]candidate, error) {
			*fetched++
			return []candidate{validCandidate(page*3), validCandidate(page*3 + 1), validCandidate(page*3 + 2)}, nil
		}
	}

	fetched := 0
	pager{name: "test", deps: testDeps(nil, nil), perPage: 5}.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 100}, short(&fetched))
	assert.Equal(t, 1, fetched)

	fetched = 0
	pager{name: "test", deps: testDeps(nil, nil)}.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 7}, short(&fetched))
	assert.Equal(t, 3, fetched)
}

func TestCollectRecordsPageError(t *testing.T) {
	pg := pager{name: "test", deps: testDeps(nil, nil)}

	result := pg.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 10}, func(_ context.Context, page int) ([]candidate, error) {
		if page == 1 {
			return nil, errors.New("boom")
		}
		return []candidate{validCandidate(page)}, nil
	})

	assert.Len(t, result.Jobs, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "page 2: boom")
}

func TestCollectDropsInvalidAndStaleButKeepsPaging(t *testing.T) {
	pg := pager{name: "test", deps: testDeps(nil, nil)}
	opts := jobs.ScrapeOptions{Query: "go", MaxResults: 10, PostedWithin: jobs.Within24h}

	result := pg.collect(context.Background(), opts, func(_ context.Context, page int) ([]candidate, error) {
		switch page {
		case 0:
			stale := validCandidate(1)
			stale.posted = "3 days ago"
			missing := validCandidate(2)
			missing.company = ""
			return []candidate{stale, missing}, nil
		case 1:
			return []candidate{validCandidate(3)}, nil
		}
		return nil, nil
	})

	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "3", result.Jobs[0].SourceID)
}

func TestCollectExtractsContactsOnce(t *testing.T) {
	pg := pager{name: "test", deps: testDeps(nil, nil)}

	result := pg.collect(context.Background(), jobs.ScrapeOptions{Query: "go", MaxResults: 10}, func(_ context.Context, page int) ([]candidate, error) {
		if page > 0 {
			return nil, nil
		}
		a := validCandidate(1)
		a.description = "Write to Jane.Doe@Acme.com."
		b := validCandidate(2)
		b.description = "Questions: jane.doe@acme.com"
		return []candidate{a, b}, nil
	})

	require.Len(t, result.Contacts, 1)
	assert.Equal(t, jobs.Contact{Contact: "jane.doe@acme.com", Company: "Acme", Source: "test"}, result.Contacts[0])
}

func TestCollectStopsWhenContextDone(t *testing.T) {
	pg := pager{name: "test", deps: testDeps(nil, nil)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := pg.collect(ctx, jobs.ScrapeOptions{Query: "go", MaxResults: 10}, func(context.Context, int) ([]candidate, error) {
		t.Fatalf("page must not be fetched after cancellation")
		return nil, nil
	})

	require.Len(t, result.Errors, 1)
	assert.True(t, strings.Contains(result.Errors[0], context.Canceled.Error()))
}

func TestFinalizeNormalizesCandidate(t *testing.T) {
	c := candidate{
		title:           "  Senior   Go Developer ",
		company:         "Acme",
		location:        "Austin, TX",
		salaryText:      "$140,000-$180,000/year",
		descriptionHTML: "<p>Work from home friendly</p>",
		posted:          "2 hours ago",
		applyURL:        "https://example.com/apply",
		employmentType:  "Full-Time",
	}

	p, ok := c.finalize("dice", testNow)
	require.True(t, ok)
	assert.Equal(t, "Senior Go Developer", p.Title)
	assert.Equal(t, "Work from home friendly", p.Description)
	assert.True(t, p.Remote)
	assert.Equal(t, jobs.SalaryAnnual, p.SalaryPeriod)
	assert.InDelta(t, 67.31, p.SalaryMin, 0.01)
	assert.Equal(t, testNow.Add(-2*time.Hour), p.PostedAt)
	assert.Equal(t, "https://example.com/apply", p.SourceURL)
	assert.Equal(t, "full-time", p.EmploymentType)
	assert.Len(t, p.Hash, 64)
	assert.Equal(t, testNow, p.ScrapedAt)
}

func TestFinalizeRejectsMissingMandatoryFields(t *testing.T) {
	for _, field := range []string{"title", "company", "location", "apply"} {
		c := validCandidate(1)
		switch field {
		case "title":
			c.title = " "
		case "company":
			c.company = ""
		case "location":
			c.location = ""
		case "apply":
			c.applyURL = ""
		}
		if _, ok := c.finalize("test", testNow); ok {
			t.Fatalf("expected candidate without %s to be rejected", field)
		}
	}
}

func TestStructuredSalaryPeriods(t *testing.T) {
	hourly := candidate{salaryMin: 40, salaryMax: 0}.salary()
	assert.Equal(t, jobs.SalaryHourly, hourly.Period)
	assert.Equal(t, 40.0, hourly.Max)

	annual := candidate{salaryMin: 104000, salaryMax: 124800}.salary()
	assert.Equal(t, jobs.SalaryAnnual, annual.Period)
	assert.Equal(t, 50.0, annual.Min)
	assert.Equal(t, 60.0, annual.Max)
}
