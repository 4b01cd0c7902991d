package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/storage"
)

type rankedPosting struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Platform    string   `json:"platform"`
	ApplyURL    string   `json:"applyUrl"`
	Score       int      `json:"score"`
	Explanation string   `json:"explanation"`
	Reasons     []string `json:"reasons,omitempty"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank stored postings against the configured resume and profiles",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signalContext()
		defer cancel()

		rt := setup(ctx)
		defer rt.Close()
		logger := rt.logger

		if rt.config.Resume == nil {
			logger.Fatal("matching needs a resume section in the config")
		}

		q, err := postingsQuery(cmd)
		if err != nil {
			logger.Fatal("parsing flags", zap.Error(err))
		}
		stored, err := loadAll(ctx, rt.store, q)
		if err != nil {
			logger.Fatal("loading postings", zap.Error(err))
		}

		steps, cfg := rt.filterSteps()
		for _, s := range filtering.Describe(steps) {
			logger.Debug("filter", zap.String("name", s.Name), zap.Bool("enabled", s.Enabled), zap.String("reason", s.Reason))
		}

		kept, annotations, err := filtering.Run(ctx, cfg, rt.filterDeps(), steps, jobs.NewPostings(stored))
		if err != nil {
			logger.Fatal("filtering failed", zap.Error(err))
		}

		top, _ := cmd.Flags().GetInt("top")
		ranked := make([]rankedPosting, 0, top)
		for _, p := range kept.Items {
			if len(ranked) == top {
				break
			}
			m := annotations[p.Hash]
			ranked = append(ranked, rankedPosting{
				Title:       p.Title,
				Company:     p.Company,
				Platform:    p.Platform,
				ApplyURL:    p.ApplyURL,
				Score:       m.Score,
				Explanation: m.Explanation,
				Reasons:     m.Reasons,
			})
		}
		logger.Info("matching finished", zap.Int("considered", len(stored)), zap.Int("kept", kept.Len()))
		printJSON(cmd, ranked)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	addQueryFlags(matchCmd)

	matchCmd.Flags().IntP("top", "t", 10, "number of postings to print")
}

// loadAll walks every page of q. Paging and sorting flags do not apply here.
func loadAll(ctx context.Context, store storage.Store, q storage.Query) ([]*jobs.Posting, error) {
	q.Page, q.PageSize, q.SortBy, q.Order = 1, storage.MaxPageSize, "", ""

	var all []*jobs.Posting
	for {
		page, err := store.ListPostings(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if len(page.Items) == 0 || len(all) >= page.Total {
			return all, nil
		}
		q.Page++
	}
}
