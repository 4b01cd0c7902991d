package sources

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-radar/internal/jobs"
)

const headHunterBody = `{"found":2,"pages":1,"page":0,"per_page":100,"items":[
 {"id":"101","name":"Go Developer","area":{"name":"Moscow"},
  "salary":{"from":5000,"to":6000,"currency":"USD","gross":true},
  "schedule":{"id":"remote"},"employment":{"id":"full"},"employer":{"name":"Acme"},
  "snippet":{"requirement":"Go, <highlighttext>PostgreSQL</highlighttext>","responsibility":"Build services"},
  "alternate_url":"https://hh.ru/vacancy/101","url":"https://api.hh.ru/vacancies/101",
  "published_at":"2024-05-09T10:00:00+0300"},
 {"id":"102","name":"Backend Engineer","area":{"name":"Saint Petersburg"},
  "salary":{"from":150000,"to":250000,"currency":"RUR"},
  "schedule":{"id":"fullDay"},"employment":{"id":"project"},"employer":{"name":"Hooli"},
  "snippet":{"requirement":"Kubernetes","responsibility":null},
  "alternate_url":"https://hh.ru/vacancy/102","published_at":"2024-05-08T09:30:00+0300"}
]}`

func TestHeadHunterBuildsQueryAndDecodes(t *testing.T) {
	f := &stubFetcher{respond: pages(headHunterBody)}
	deps := testDeps(f, nil)
	deps.Config.HeadHunter = HeadHunterConfig{Enabled: true, BaseURL: "https://hh.test/", Areas: []int{1, 2}}

	result := NewHeadHunter(deps).Scrape(context.Background(), jobs.ScrapeOptions{
		Query:           "golang",
		Location:        "Moscow",
		PostedWithin:    jobs.Within7d,
		RemoteOnly:      true,
		EmploymentTypes: []string{"full-time", "contract"},
	})

	require.Empty(t, result.Errors)
	require.Len(t, result.Jobs, 2)

	usd := result.Jobs[0]
	assert.Equal(t, "headhunter", usd.Platform)
	assert.Equal(t, "101", usd.SourceID)
	assert.True(t, usd.Remote)
	assert.Equal(t, "full-time", usd.EmploymentType)
	assert.Equal(t, jobs.SalaryAnnual, usd.SalaryPeriod)
	assert.InDelta(t, 28.85, usd.SalaryMin, 0.01)
	assert.InDelta(t, 34.62, usd.SalaryMax, 0.01)
	assert.Equal(t, "Build services Go, PostgreSQL", usd.Description)
	assert.Equal(t, "2024-05-09 07:00", usd.PostedAt.Format("2006-01-02 15:04"))
	assert.Equal(t, "https://api.hh.ru/vacancies/101", usd.SourceURL)

	rub := result.Jobs[1]
	assert.False(t, rub.HasSalary())
	assert.Equal(t, "contract", rub.EmploymentType)
	assert.Contains(t, rub.Requirements, "Salary: 150000-250000 RUR")
	assert.Equal(t, rub.ApplyURL, rub.SourceURL)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, headHunterAgent, calls[0].Headers.Get("HH-User-Agent"))
	assert.Equal(t, "application/json", calls[0].Headers.Get("Accept"))

	u, err := url.Parse(calls[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "hh.test", u.Host)
	assert.Equal(t, "/vacancies", u.Path)
	q := u.Query()
	assert.Equal(t, "golang", q.Get("text"))
	assert.Equal(t, []string{"1", "2"}, q["area"])
	assert.Equal(t, "7", q.Get("period"))
	assert.Equal(t, "remote", q.Get("schedule"))
	assert.Equal(t, []string{"full", "project"}, q["employment"])
	assert.Equal(t, "0", q.Get("page"))
}

func TestHeadHunterLocationWithoutAreas(t *testing.T) {
	s := NewHeadHunter(testDeps(&stubFetcher{}, nil))

	u, err := url.Parse(s.searchURL(jobs.ScrapeOptions{Query: "go", Location: "Berlin"}, 2))
	require.NoError(t, err)
	assert.Equal(t, "api.hh.ru", u.Host)
	assert.Equal(t, "go Berlin", u.Query().Get("text"))
	assert.Equal(t, "2", u.Query().Get("page"))
	assert.Empty(t, u.Query().Get("period"))
}

func TestHeadHunterIsOptIn(t *testing.T) {
	_, ok := NewDefaultRegistry(Deps{}).Get("headhunter")
	assert.False(t, ok)

	deps := Deps{}
	deps.Config.HeadHunter.Enabled = true
	s, ok := NewDefaultRegistry(deps).Get("headhunter")
	require.True(t, ok)
	assert.Equal(t, "headhunter", s.Name())
}
