package commands

import (
	"context"
	"log/slog"
	"os"

	"prescosync/lib/scrapers/presco"
	"prescosync/lib/serviceutil"
	"prescosync/lib/telemetry"
	"prescosync/lib/timezone"
	"prescosync/services/prescosync"
	"prescosync/services/sheetsync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var schedule *string

func init() {
	schedule = syncCmd.Flags().String("schedule", "", "keep running and sync on a cron schedule (JST) instead of once")
	rootCmd.AddCommand(syncCmd)
}

func buildService(ctx context.Context, config Config, secrets Secrets) (prescosync.Service, error) {
	retriever, err := presco.NewClient(config.prescoOptions())
	if err != nil {
		return prescosync.Service{}, err
	}

	sink, err := sheetsync.NewClient(ctx, secrets.GoogleCredentials, secrets.SpreadsheetId)
	if err != nil {
		return prescosync.Service{}, err
	}

	return prescosync.NewService(retriever, sink, prescosync.Options{
		Credentials: secrets.credentials(),
		Periods:     config.periods(),
		MaxAttempts: config.MaxAttempts,
		Mode:        prescosync.SyncMode(config.SyncMode),
	}), nil
}

var syncCmd = &cobra.Command{
	Use:   "sync [--schedule <cron spec>]",
	Short: "Downloads the partner report and synchronizes the conversion sheet.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		secrets, err := loadSecrets()
		if err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		err = telemetry.SetupFromEnv(ctx, "prescosync")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("setup telemetry", err)
		}
		if err == nil {
			defer telemetry.Shutdown(context.Background())
			telemetry.InstrumentPerfStats(ctx)
		}

		service, err := buildService(ctx, config, secrets)
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}

		if *schedule == "" {
			if err := service.RunOnce(ctx); err != nil {
				serviceutil.Fatal("sync failed", err)
			}
			return
		}

		cronner := cron.New(cron.WithLocation(timezone.Location))
		_, err = cronner.AddFunc(*schedule, func() {
			if err := service.RunOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "scheduled sync failed", "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("invalid cron schedule", err)
		}

		slog.InfoContext(ctx, "running on schedule", "spec", *schedule)
		cronner.Start()
		<-ctx.Done()
		cronner.Stop()
	},
}
