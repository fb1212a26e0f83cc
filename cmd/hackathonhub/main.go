package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"hackathonhub.shikanime.studio/internal/config"
)

func main() {
	err := rootCmd.Execute()
	shutdownTelemetry()
	if err != nil {
		log.Fatal(err)
	}
}

var (
	cfg = config.New()

	rootCmd = &cobra.Command{
		Use:               "hackathonhub",
		Short:             "Hackathon aggregation server and utilities",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Run the API server",
		RunE:  runServer,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	}
	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Revert all applied migrations",
		RunE:  runMigrateDown,
	}
	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Fetch one provider URL and store the new hackathons",
		RunE:  runIngest,
	}
	scheduleCmd = &cobra.Command{
		Use:   "schedule",
		Short: "Periodically fetch every active source",
		RunE:  runSchedule,
	}
	embeddingsCmd = &cobra.Command{
		Use:   "embeddings",
		Short: "Hackathon embeddings",
	}
	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Embed hackathons whose embedding is missing or stale",
		RunE:  runEmbeddingsRefresh,
	}

	shutdownTelemetry = func() {}
)

func init() {
	rootCmd.PersistentFlags().String("dsn", "", "Database source name in the format driver://dataSourceName. Falls back to DSN environment variable")
	serverCmd.Flags().String("addr", "", "Address to run the server on (host:port). If empty, uses HOST and PORT environment variables")
	serverCmd.Flags().Bool("schedule", false, "Also fetch every active source on SCHEDULE_INTERVAL")
	ingestCmd.Flags().String("url", "", "Provider listing URL")
	ingestCmd.Flags().String("provider", "", "Provider name (topcoder, devpost, quira)")
	_ = ingestCmd.MarkFlagRequired("url")
	_ = ingestCmd.MarkFlagRequired("provider")
	scheduleCmd.Flags().String("every", "", "Interval between runs, e.g. 30m. Falls back to SCHEDULE_INTERVAL")

	migrateCmd.AddCommand(upCmd, downCmd)
	embeddingsCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(serverCmd, migrateCmd, ingestCmd, sourcesCmd, scheduleCmd, embeddingsCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	for key, name := range map[string]string{"DSN": "dsn", "ADDR": "addr", "SCHEDULE_INTERVAL": "every"} {
		if err := cfg.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	config.SetupLog(cfg)
	if err := cfg.Watch(); err != nil {
		return err
	}
	shutdown, err := config.SetupTelemetry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	shutdownTelemetry = shutdown
	if cfg.GetLogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
