package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/matching"
	"github.com/spigell/job-radar/internal/normalize"
	"github.com/spigell/job-radar/internal/storage"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store storage.Store, postings ...*jobs.Posting) {
	t.Helper()
	for _, p := range postings {
		p.Hash = normalize.Hash(p.Title, p.Company, p.Location)
		p.ApplyURL = "https://jobs.example.test/" + p.Company
		_, err := store.InsertPosting(context.Background(), p)
		require.NoError(t, err)
	}
}

func TestListWithoutResume(t *testing.T) {
	store := storage.NewMemory()
	seed(t, store,
		&jobs.Posting{Title: "Go Developer", Company: "Acme", Location: "Remote", Remote: true, PostedAt: now.Add(-time.Hour)},
		&jobs.Posting{Title: "Java Developer", Company: "Beta", Location: "Austin, TX", PostedAt: now.Add(-2 * time.Hour)},
	)

	remote := true
	result, err := New(store, nil).List(context.Background(), storage.Query{Remote: &remote}, nil)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Go Developer", result.Items[0].Title)
	assert.Nil(t, result.Items[0].Score)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, storage.DefaultPageSize, result.PageSize)
}

func TestListAnnotatesWithResume(t *testing.T) {
	store := storage.NewMemory()
	seed(t, store,
		&jobs.Posting{Title: "Go Developer", Company: "Acme", Location: "Remote", Description: "Go and Kafka", PostedAt: now},
	)
	resume := &jobs.ParsedResume{TechnicalSkills: []string{"go", "kafka"}}

	result, err := New(store, matching.NewScorer(func() time.Time { return now })).List(context.Background(), storage.Query{}, resume)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.NotNil(t, result.Items[0].Score)
	assert.Greater(t, *result.Items[0].Score, 50)
	assert.NotEmpty(t, result.Items[0].Reasons)
	assert.NotEmpty(t, result.Items[0].Explanation)
}

func TestListSortsByMatchScoreAcrossPages(t *testing.T) {
	store := storage.NewMemory()
	for i := 0; i < 130; i++ {
		seed(t, store, &jobs.Posting{
			Title:    "Accountant",
			Company:  fmt.Sprintf("Filler %d", i),
			Location: "Denver, CO",
			PostedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	seed(t, store, &jobs.Posting{
		Title:       "Go Developer",
		Company:     "Acme",
		Location:    "Remote",
		Description: "Go and Kafka",
		PostedAt:    now.Add(-500 * time.Hour),
	})

	svc := New(store, matching.NewScorer(func() time.Time { return now }))
	resume := &jobs.ParsedResume{TechnicalSkills: []string{"go", "kafka"}}

	result, err := svc.List(context.Background(), storage.Query{SortBy: "match_score", PageSize: 5}, resume)
	require.NoError(t, err)
	assert.Equal(t, 131, result.Total)
	require.Len(t, result.Items, 5)
	assert.Equal(t, "Go Developer", result.Items[0].Title)

	last, err := svc.List(context.Background(), storage.Query{SortBy: "MATCH_SCORE", Page: 27, PageSize: 5}, resume)
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)

	_, err = svc.List(context.Background(), storage.Query{SortBy: "match_score"}, nil)
	assert.True(t, errors.Is(err, ErrResumeRequired))
}

func TestListPropagatesQueryErrors(t *testing.T) {
	_, err := New(storage.NewMemory(), nil).List(context.Background(), storage.Query{SortBy: "salary"}, nil)
	assert.Error(t, err)
}
