package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/api"
	"github.com/spigell/job-radar/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled scrapes",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, cancel := signalContext()
		defer cancel()

		rt := setup(ctx)
		defer rt.Close()
		logger := rt.logger
		config := rt.config

		for _, p := range config.Profiles {
			if err := rt.store.SaveProfile(ctx, p); err != nil {
				logger.Fatal("saving search profile", zap.String("profile", p.Name), zap.Error(err))
			}
		}

		if config.Scheduler.Enabled {
			sched := scheduler.New(rt.orchestrator, rt.store, config.Scheduler.Config, logger.Named("scheduler"))
			if err := sched.Start(ctx); err != nil {
				logger.Fatal("starting the scheduler", zap.Error(err))
			}
			defer func() {
				<-sched.Stop().Done()
			}()
		}

		if !viper.GetBool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		server := api.New(api.Deps{
			Trigger: rt.orchestrator,
			Lister:  rt.lister,
			Runs:    rt.store,
			Resume:  config.Resume,
			Logger:  logger.Named("api"),
		})
		if err := server.Serve(ctx, config.HTTP.Addr); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
