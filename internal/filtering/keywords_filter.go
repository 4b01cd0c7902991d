package filtering

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/matching"
)

type excludeKeywordsFilter struct {
	toggle
	matcher *matching.KeywordMatcher
	words   []string
}

// NewExcludeKeywords creates a filter that removes postings mentioning any
// exclude keyword of the configured profiles.
func NewExcludeKeywords() Filter {
	return &excludeKeywordsFilter{}
}

func (f *excludeKeywordsFilter) Name() string { return "exclude_keywords" }

func (f *excludeKeywordsFilter) Validate(cfg *Config) error {
	f.matcher = matching.NewKeywordMatcher(profiles(cfg))
	f.words = nil
	for _, p := range profiles(cfg) {
		if p != nil {
			f.words = append(f.words, p.ExcludeKeywords...)
		}
	}
	return nil
}

func (f *excludeKeywordsFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if len(f.words) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	excluded := p.Keep(func(posting *jobs.Posting) bool {
		kw, hit := f.matcher.Excluded(posting)
		if hit && deps.Logger != nil {
			deps.Logger.Debug("posting excluded by keyword",
				zap.String("title", posting.Title),
				zap.String("keyword", kw),
			)
		}
		return !hit
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding postings by keywords",
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

func (f *excludeKeywordsFilter) Status() Status {
	details := map[string]string{}
	if len(f.words) > 0 {
		details["keywords"] = strings.Join(f.words, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type titleKeywordsFilter struct {
	toggle
	matcher *matching.KeywordMatcher
}

// NewTitleKeywords creates a filter that keeps postings whose title satisfies
// at least one profile keyword group.
func NewTitleKeywords() Filter {
	return &titleKeywordsFilter{}
}

func (f *titleKeywordsFilter) Name() string { return "title_keywords" }

func (f *titleKeywordsFilter) Validate(cfg *Config) error {
	f.matcher = matching.NewKeywordMatcher(profiles(cfg))
	if len(f.matcher.Groups()) == 0 {
		f.Disable("no profile job titles configured")
	}
	return nil
}

func (f *titleKeywordsFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if !f.IsEnabled() {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	excluded := p.Keep(func(posting *jobs.Posting) bool {
		return len(f.matcher.Match(posting.Title)) > 0
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding postings without matching titles",
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

func (f *titleKeywordsFilter) Status() Status {
	details := map[string]string{}
	if f.matcher != nil {
		details["groups"] = strconv.Itoa(len(f.matcher.Groups()))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func profiles(cfg *Config) []*jobs.SearchProfile {
	if cfg == nil {
		return nil
	}
	return cfg.Profiles
}
