package commands

import (
	"context"
	"os"
	"time"

	"prescosync/lib/serviceutil"
	"prescosync/lib/telemetry"
	"prescosync/lib/timezone"
	"prescosync/services/conversionfeed"
	"prescosync/services/sheetsync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var extractCutoff *string
var extractPush *bool

func init() {
	extractCutoff = extractCmd.Flags().String("cutoff", "", `override the record cutoff ("2006/01/02 15:04:05", JST)`)
	extractPush = extractCmd.Flags().Bool("push", false, "also synchronize the extracted records to the sheet")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <export.csv> [<export.csv> ...]",
	Short: "Runs the extractor against already-downloaded exports and prints the result.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cutoff := conversionfeed.ResolveCutoff(timezone.Now())
		if *extractCutoff != "" {
			parsed, err := time.ParseInLocation("2006/01/02 15:04:05", *extractCutoff, timezone.Location)
			if err != nil {
				serviceutil.Fatal("invalid cutoff", err)
			}
			cutoff = parsed
		}

		extractor := conversionfeed.NewExtractor(cutoff)
		for _, path := range args {
			if err := extractor.ExtractFile(ctx, path); err != nil {
				serviceutil.Fatal("extraction failed", err)
			}
		}

		renderRecords(extractor.Records())

		if !*extractPush {
			return
		}
		secrets, err := loadSecrets()
		if err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}
		err = telemetry.SetupFromEnv(ctx, "prescosync-extract")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("setup telemetry", err)
		}
		if err == nil {
			defer telemetry.Shutdown(context.Background())
		}

		sink, err := sheetsync.NewClient(ctx, secrets.GoogleCredentials, secrets.SpreadsheetId)
		if err != nil {
			serviceutil.Fatal("failed to initialize sheets client", err)
		}
		err = sink.ReplaceAll(ctx, conversionfeed.Rows(extractor.Records()))
		if err != nil {
			serviceutil.Fatal("failed to synchronize sheet", err)
		}
	},
}

func renderRecords(records []conversionfeed.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Click ID", "Name", "Time", "Value", "Currency"})
	for _, r := range records {
		t.AppendRow(table.Row{r.ClickID, r.Name, r.Time, r.Value, r.Currency})
	}
	t.Render()
}
