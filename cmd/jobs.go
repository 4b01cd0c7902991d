package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/storage"
)

const dateLayout = "2006-01-02"

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored postings",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signalContext()
		defer cancel()

		rt := setup(ctx)
		defer rt.Close()

		q, err := postingsQuery(cmd)
		if err != nil {
			rt.logger.Fatal("parsing flags", zap.Error(err))
		}

		var resume *jobs.ParsedResume
		if match, _ := cmd.Flags().GetBool("match"); match {
			resume = rt.config.Resume
		}

		result, err := rt.lister.List(ctx, q, resume)
		if err != nil {
			rt.logger.Fatal("listing postings", zap.Error(err))
		}
		printJSON(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	addQueryFlags(jobsCmd)

	flags := jobsCmd.Flags()
	flags.Int("page", 1, "page number")
	flags.Int("page-size", storage.DefaultPageSize, "postings per page")
	flags.String("sort", "", "sort field: posted_at, scraped_at, salary_min, salary_max, title, company or match_score")
	flags.String("order", "", "asc or desc")
	flags.BoolP("match", "m", false, "score postings against the configured resume")
}

// addQueryFlags registers the posting filters shared by jobs and match.
func addQueryFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("platform", "", "only postings from this platform")
	flags.Bool("remote", false, "filter on the remote flag")
	flags.Float64("salary-min", 0, "minimum hourly salary")
	flags.Float64("salary-max", 0, "maximum hourly salary")
	flags.String("employment-type", "", "only postings of this employment type")
	flags.StringP("search", "s", "", "text search over title, company and description")
	flags.String("posted-after", "", "only postings published after this date (YYYY-MM-DD)")
	flags.String("posted-before", "", "only postings published before this date (YYYY-MM-DD)")
}

func postingsQuery(cmd *cobra.Command) (storage.Query, error) {
	flags := cmd.Flags()
	q := storage.Query{}
	q.Platform, _ = flags.GetString("platform")
	q.SalaryMin, _ = flags.GetFloat64("salary-min")
	q.SalaryMax, _ = flags.GetFloat64("salary-max")
	q.EmploymentType, _ = flags.GetString("employment-type")
	q.Search, _ = flags.GetString("search")
	q.Page, _ = flags.GetInt("page")
	q.PageSize, _ = flags.GetInt("page-size")
	q.SortBy, _ = flags.GetString("sort")
	q.Order, _ = flags.GetString("order")

	if flags.Changed("remote") {
		remote, _ := flags.GetBool("remote")
		q.Remote = &remote
	}

	for flag, dst := range map[string]*time.Time{"posted-after": &q.PostedAfter, "posted-before": &q.PostedBefore} {
		value, _ := flags.GetString(flag)
		if value == "" {
			continue
		}
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return q, err
		}
		*dst = t
	}
	return q, nil
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
