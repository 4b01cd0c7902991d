package filtering

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/matching"
)

type matchScoreFilter struct {
	toggle
	minimum     int
	annotations map[string]matching.Match
}

// NewMatchScore creates the résumé scoring step. Postings below the minimum
// score, or failing a hard requirement, are dropped.
func NewMatchScore() Filter {
	return &matchScoreFilter{}
}

func (f *matchScoreFilter) Name() string { return "match_score" }

func (f *matchScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg != nil {
		f.minimum = cfg.MinimumScore
	}
	if f.minimum < 0 || f.minimum > 100 {
		return fmt.Errorf("minimum score must be within 0-100, got %d", f.minimum)
	}
	return nil
}

func (f *matchScoreFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	f.annotations = make(map[string]matching.Match)
	if deps.Resume == nil {
		if deps.Logger != nil {
			deps.Logger.Info("resume is not configured; skipping match_score filter")
		}
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	scorer := deps.Scorer
	if scorer == nil {
		scorer = matching.NewScorer(nil)
	}

	scored := scorer.ScoreAll(deps.Resume, p.Items)
	ordered := make([]*jobs.Posting, 0, len(scored))
	for _, m := range scored {
		if m.Filtered || m.Score < f.minimum {
			if deps.Logger != nil {
				deps.Logger.Debug("posting rejected by score",
					zap.String("title", m.Posting.Title),
					zap.Int("score", m.Score),
					zap.Bool("filtered", m.Filtered),
				)
			}
			continue
		}
		ordered = append(ordered, m.Posting)
		f.annotations[m.Posting.Hash] = m
	}
	p.Items = ordered

	left := p.Len()
	if deps.Logger != nil && left != initial {
		deps.Logger.Info("scoring completed",
			zap.Int("initial_postings", initial),
			zap.Int("approved_postings", left),
		)
	}

	return p, Step{Initial: initial, Dropped: initial - left, Left: left}, nil
}

func (f *matchScoreFilter) Annotations() map[string]matching.Match {
	if f.annotations == nil {
		return map[string]matching.Match{}
	}
	return maps.Clone(f.annotations)
}

func (f *matchScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum_score": strconv.Itoa(f.minimum)},
	}
}
