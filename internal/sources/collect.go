package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/normalize"
)

// maxPages bounds every paginated source regardless of MaxResults.
const maxPages = 10

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// candidate is a posting as scraped, before validation and normalization.
type candidate struct {
	sourceID        string
	title           string
	company         string
	location        string
	remote          bool
	salaryText      string
	salaryMin       float64
	salaryMax       float64
	salaryPeriod    jobs.SalaryPeriod
	employmentType  string
	description     string
	descriptionHTML string
	requirements    string
	posted          string
	postedAt        time.Time
	applyURL        string
	sourceURL       string
}

// finalize validates c and normalizes it into a posting. ok is false when a
// mandatory field is missing.
func (c candidate) finalize(platform string, now time.Time) (*jobs.Posting, bool) {
	p := &jobs.Posting{
		Platform:        platform,
		SourceID:        strings.TrimSpace(c.sourceID),
		Title:           collapse(c.title),
		Company:         collapse(c.company),
		Location:        collapse(c.location),
		SalaryText:      collapse(c.salaryText),
		EmploymentType:  strings.ToLower(collapse(c.employmentType)),
		DescriptionHTML: strings.TrimSpace(c.descriptionHTML),
		Requirements:    collapse(c.requirements),
		PostedRaw:       strings.TrimSpace(c.posted),
		ApplyURL:        strings.TrimSpace(c.applyURL),
		SourceURL:       strings.TrimSpace(c.sourceURL),
		ScrapedAt:       now,
	}
	if len(p.Missing()) > 0 {
		return nil, false
	}

	switch {
	case c.description != "":
		p.Description = normalize.StripHTML(c.description)
		if p.DescriptionHTML == "" && strings.Contains(c.description, "<") {
			p.DescriptionHTML = strings.TrimSpace(c.description)
		}
	case p.DescriptionHTML != "":
		p.Description = normalize.StripHTML(p.DescriptionHTML)
	}

	if !c.postedAt.IsZero() {
		p.PostedAt = c.postedAt
	} else {
		p.PostedAt = normalize.ParseDate(c.posted, now)
	}

	c.salary().Apply(p)

	p.Remote = c.remote || normalize.IsRemote(p.Title, p.Location, p.Description)
	if p.SourceURL == "" {
		p.SourceURL = p.ApplyURL
	}
	p.Hash = normalize.Hash(p.Title, p.Company, p.Location)
	return p, true
}

func (c candidate) salary() normalize.Salary {
	if c.salaryMin > 0 || c.salaryMax > 0 {
		lo, hi := c.salaryMin, c.salaryMax
		if lo <= 0 {
			lo = hi
		}
		if hi <= 0 {
			hi = lo
		}
		period := c.salaryPeriod
		if period == "" {
			period = jobs.SalaryHourly
			if hi >= 500 {
				period = jobs.SalaryAnnual
			}
		}
		if period == jobs.SalaryAnnual {
			return normalize.FromAnnual(lo, hi)
		}
		return normalize.Salary{Min: lo, Max: hi, Period: jobs.SalaryHourly}
	}
	if s, ok := normalize.ParseSalary(c.salaryText); ok {
		return s
	}
	return normalize.Salary{}
}

// pageFunc fetches and parses one zero-based result page.
type pageFunc func(ctx context.Context, page int) ([]candidate, error)

type pager struct {
	name    string
	deps    Deps
	perPage int
	pages   int
}

// collect walks result pages in order until MaxResults postings are
// accumulated, a page has no candidates, a page is short, a page fails or
// the page cap is reached.
func (pg pager) collect(ctx context.Context, opts jobs.ScrapeOptions, fetchPage pageFunc) *jobs.ScrapeResult {
	log := pg.deps.logger(pg.name)
	result := &jobs.ScrapeResult{Jobs: []*jobs.Posting{}}
	seenContacts := make(map[string]struct{})

	pages := pg.pages
	if pages <= 0 || pages > maxPages {
		pages = maxPages
	}

	for page := 0; page < pages && len(result.Jobs) < opts.MaxResults; page++ {
		if err := ctx.Err(); err != nil {
			result.AddError(fmt.Errorf("%s: %w", pg.name, err))
			break
		}

		cands, err := fetchPage(ctx, page)
		if err != nil {
			result.AddError(fmt.Errorf("%s page %d: %w", pg.name, page+1, err))
			break
		}
		if len(cands) == 0 {
			log.Debug("empty page, stop paging", zap.Int("page", page+1))
			break
		}

		now := pg.deps.now()
		kept, stale, invalid := 0, 0, 0
		for _, cand := range cands {
			posting, ok := cand.finalize(pg.name, now)
			if !ok {
				invalid++
				continue
			}
			if !opts.Fresh(posting.PostedAt, now) {
				stale++
				continue
			}
			result.Contacts = append(result.Contacts, contactsFrom(posting, seenContacts)...)
			result.Jobs = append(result.Jobs, posting)
			kept++
			if len(result.Jobs) >= opts.MaxResults {
				break
			}
		}
		log.Debug("page parsed",
			zap.Int("page", page+1),
			zap.Int("candidates", len(cands)),
			zap.Int("kept", kept),
			zap.Int("stale", stale),
			zap.Int("invalid", invalid),
		)

		if pg.perPage > 0 && len(cands) < pg.perPage {
			break
		}
	}

	result.TotalFound = len(result.Jobs)
	return result
}

// configError reports a source that cannot run with the current setup.
func configError(name string, err error) *jobs.ScrapeResult {
	result := &jobs.ScrapeResult{Jobs: []*jobs.Posting{}}
	result.AddError(fmt.Errorf("%s: configuration: %w", name, err))
	return result
}

func contactsFrom(p *jobs.Posting, seen map[string]struct{}) []jobs.Contact {
	var out []jobs.Contact
	for _, email := range emailRe.FindAllString(p.Description, -1) {
		email = strings.ToLower(strings.TrimRight(email, "."))
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, jobs.Contact{Contact: email, Company: p.Company, Source: p.Platform})
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
