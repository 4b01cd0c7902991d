package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/scrape"
)

const (
	PromptDone             = "Done"
	PromptAllPlatforms     = "All platforms"
	PromptReportByPlatform = "Report by platforms"
	PromptFilterPostings   = "Filter and rank postings"
	PromptPostingsToFile   = "Dump postings to file"
	PromptExit             = "Exit"

	triggerCLI = "cli"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReportByPlatform, PromptFilterPostings, PromptPostingsToFile, PromptExit},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the job boards once and store new postings",
	Run: func(cmd *cobra.Command, _ []string) {
		runScrape(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addScrapeFlags(scrapeCmd)
}

func addScrapeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("query", "q", "", "search query, e.g. \"go developer\"")
	flags.StringP("location", "l", "", "location to search in")
	flags.StringSliceP("platforms", "p", nil, "platforms to scrape (default is every registered platform)")
	flags.IntP("max-results", "n", 0, "maximum postings per platform")
	flags.String("posted-within", "", "freshness window: 24h, 3d, 7d, 14d or 30d")
	flags.Bool("remote", false, "ask the boards for remote positions only")
	flags.StringSlice("employment-type", nil, "employment types, e.g. full-time,contract")
	flags.BoolP("interactive", "i", false, "choose platforms and follow-up actions interactively")
	flags.Bool("filter", false, "run the filtering pipeline over the scraped postings")
	flags.Bool("report", false, "print the scraped postings grouped by platform")
	flags.Bool("dump", false, "dump the scraped postings to a temporary file")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runScrape(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	rt := setup(ctx)
	defer rt.Close()
	logger := rt.logger

	opts := scrapeOptions(cmd, rt.config.Scrape.Options)
	platforms := rt.config.Scrape.Platforms
	if cmd.Flags().Changed("platforms") {
		platforms, _ = cmd.Flags().GetStringSlice("platforms")
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive {
		selected, err := selectPlatforms(rt.registry.Names())
		if err != nil {
			logger.Fatal("selecting platforms", zap.Error(err))
		}
		platforms = selected
	}

	logger.Info("starting the search", zap.String("search", opts.Query), zap.Strings("platforms", platforms))

	summary, err := rt.orchestrator.ScrapeAll(ctx, scrape.Request{
		Options:   opts,
		Platforms: platforms,
		Requester: requester(),
		Trigger:   triggerCLI,
	})
	if err != nil {
		if summary != nil && len(summary.Errors) > 0 {
			logger.Error("scrape errors", zap.Strings("errors", summary.Errors))
		}
		logger.Fatal("scraping", zap.Error(err))
	}

	logger.Info("scrape finished",
		zap.String("run_id", summary.RunID),
		zap.String("status", string(summary.Status)),
		zap.Int("total_found", summary.TotalFound),
		zap.Int("new_jobs", summary.NewJobs),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("existing", summary.Existing),
		zap.Int("contacts", len(summary.Contacts)),
	)
	for _, msg := range summary.Errors {
		logger.Warn("source error", zap.String("error", msg))
	}

	postings := jobs.NewPostings(summary.Jobs)
	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	if filter, _ := cmd.Flags().GetBool("filter"); filter {
		if postings = filterPostings(ctx, rt, postings); postings.Len() == 0 {
			logger.Info("exiting", zap.String("reason", "no postings left after filters"))
			return
		}
	}
	if report, _ := cmd.Flags().GetBool("report"); report {
		if err := handleAction(ctx, rt, PromptReportByPlatform, postings); err != nil {
			logger.Fatal("reporting", zap.Error(err))
		}
	}
	if dump, _ := cmd.Flags().GetBool("dump"); dump {
		if err := handleAction(ctx, rt, PromptPostingsToFile, postings); err != nil {
			logger.Fatal("dumping", zap.Error(err))
		}
	}
	if !interactive {
		return
	}

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		logger.Info("current list of postings", zap.Int("count", postings.Len()))

		if err := handleAction(ctx, rt, action, postings); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, rt *runtime, action string, postings *jobs.Postings) error {
	switch action {
	case PromptReportByPlatform:
		pretty, _ := json.MarshalIndent(postings.ReportByPlatform(), "", "  ")
		rt.logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptFilterPostings:
		filtered := filterPostings(ctx, rt, postings)
		postings.Items = filtered.Items
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		rt.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		rt.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func filterPostings(ctx context.Context, rt *runtime, postings *jobs.Postings) *jobs.Postings {
	steps, cfg := rt.filterSteps()
	filtered, annotations, err := filtering.Run(ctx, cfg, rt.filterDeps(), steps, postings)
	if err != nil {
		rt.logger.Fatal("filtering failed", zap.Error(err))
	}
	for _, p := range filtered.Items {
		if m, ok := annotations[p.Hash]; ok {
			rt.logger.Info("ranked posting",
				zap.String("title", p.Title),
				zap.String("company", p.Company),
				zap.Int("score", m.Score),
				zap.String("explanation", m.Explanation),
			)
		}
	}
	return filtered
}

// selectPlatforms lets the user pick platforms one by one until Done.
func selectPlatforms(available []string) ([]string, error) {
	var selected []string
	for {
		remaining := []string{PromptAllPlatforms}
		for _, name := range available {
			if !contains(selected, name) {
				remaining = append(remaining, name)
			}
		}
		if len(selected) > 0 {
			remaining = append(remaining, PromptDone)
		}

		platformPrompt := promptui.Select{
			Label: fmt.Sprintf("Choose a platform and press ENTER (selected: %s)", strings.Join(selected, ", ")),
			Items: remaining,
		}
		_, choice, err := platformPrompt.Run()
		if err != nil {
			return nil, err
		}

		switch choice {
		case PromptAllPlatforms:
			return available, nil
		case PromptDone:
			return selected, nil
		default:
			selected = append(selected, choice)
			if len(selected) == len(available) {
				return selected, nil
			}
		}
	}
}

// scrapeOptions overlays the changed command flags on the configured defaults.
func scrapeOptions(cmd *cobra.Command, defaults jobs.ScrapeOptions) jobs.ScrapeOptions {
	opts := defaults
	flags := cmd.Flags()
	if flags.Changed("query") {
		opts.Query, _ = flags.GetString("query")
	}
	if flags.Changed("location") {
		opts.Location, _ = flags.GetString("location")
	}
	if flags.Changed("max-results") {
		opts.MaxResults, _ = flags.GetInt("max-results")
	}
	if flags.Changed("posted-within") {
		window, _ := flags.GetString("posted-within")
		opts.PostedWithin = jobs.PostedWithin(window)
	}
	if flags.Changed("remote") {
		opts.RemoteOnly, _ = flags.GetBool("remote")
	}
	if flags.Changed("employment-type") {
		opts.EmploymentTypes, _ = flags.GetStringSlice("employment-type")
	}
	return opts
}

func requester() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return triggerCLI
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
