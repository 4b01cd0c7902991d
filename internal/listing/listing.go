// Package listing serves stored postings to readers, optionally ranked against a résumé.
package listing

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/matching"
	"github.com/spigell/job-radar/internal/storage"
)

// SortByMatchScore orders results by résumé score. It needs a résumé.
const SortByMatchScore = "match_score"

var ErrResumeRequired = errors.New("sorting by match score requires a resume")

// Item is a posting with its optional résumé match.
type Item struct {
	*jobs.Posting
	Score       *int     `json:"matchScore,omitempty"`
	Reasons     []string `json:"matchReasons,omitempty"`
	Explanation string   `json:"matchExplanation,omitempty"`
}

type Result struct {
	Items    []Item `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type Service struct {
	store  storage.Store
	scorer *matching.Scorer
}

func New(store storage.Store, scorer *matching.Scorer) *Service {
	if scorer == nil {
		scorer = matching.NewScorer(nil)
	}
	return &Service{store: store, scorer: scorer}
}

// List returns one page of stored postings matching q. With a résumé every
// item is annotated; sorting by match score ranks the whole result set before
// paging.
func (s *Service) List(ctx context.Context, q storage.Query, resume *jobs.ParsedResume) (*Result, error) {
	if strings.EqualFold(strings.TrimSpace(q.SortBy), SortByMatchScore) {
		if resume == nil {
			return nil, ErrResumeRequired
		}
		return s.ranked(ctx, q, resume)
	}

	page, err := s.store.ListPostings(ctx, q)
	if err != nil {
		return nil, err
	}
	result := &Result{Items: make([]Item, 0, len(page.Items)), Total: page.Total, Page: page.Page, PageSize: page.PageSize}
	for _, p := range page.Items {
		item := Item{Posting: p}
		if resume != nil {
			annotate(&item, s.scorer.Score(resume, p))
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (s *Service) ranked(ctx context.Context, q storage.Query, resume *jobs.ParsedResume) (*Result, error) {
	q.SortBy = ""
	paged, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	var all []*jobs.Posting
	scan := paged
	scan.PageSize = storage.MaxPageSize
	for scan.Page = 1; ; scan.Page++ {
		page, err := s.store.ListPostings(ctx, scan)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if len(page.Items) < scan.PageSize || len(all) >= page.Total {
			break
		}
	}

	matches := s.scorer.ScoreAll(resume, all)
	if paged.Order == "asc" {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}

	result := &Result{Items: []Item{}, Total: len(matches), Page: paged.Page, PageSize: paged.PageSize}
	start := (paged.Page - 1) * paged.PageSize
	for i := start; i < len(matches) && i < start+paged.PageSize; i++ {
		item := Item{Posting: matches[i].Posting}
		annotate(&item, matches[i])
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func annotate(item *Item, m matching.Match) {
	score := m.Score
	item.Score = &score
	item.Reasons = m.Reasons
	item.Explanation = m.Explanation
}
