package sheetsync

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var tracer = otel.Tracer("services/sheetsync")

// Worksheet is the destination tab, fixed by the downstream ad
// platform import that reads it.
const Worksheet = "成果情報_その他"

type Client struct {
	svc           *sheets.Service
	spreadsheetId string
	worksheet     string
}

// NewClient authenticates against the Sheets API with a service
// account key (the raw JSON bundle, not a file path).
func NewClient(ctx context.Context, credentialsJson []byte, spreadsheetId string) (*Client, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJson, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, err
	}

	return &Client{
		svc:           svc,
		spreadsheetId: spreadsheetId,
		worksheet:     Worksheet,
	}, nil
}

// ReplaceAll clears the worksheet and writes rows starting at A1.
// The sheet is fully owned by the run, there is no partial state: the
// write either lands whole or the run fails beforehand.
func (c *Client) ReplaceAll(ctx context.Context, rows [][]string) error {
	ctx, span := tracer.Start(ctx, "client:ReplaceAll")
	defer span.End()

	_, err := c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetId, quoteRange(c.worksheet, ""), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear worksheet")
		return fmt.Errorf("failed to clear worksheet: %w", err)
	}

	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetId, quoteRange(c.worksheet, "A1"), valueRange(rows)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write worksheet")
		return fmt.Errorf("failed to write worksheet: %w", err)
	}

	slog.InfoContext(ctx, "replaced worksheet contents",
		"worksheet", c.worksheet,
		"rows", len(rows),
	)
	return nil
}

// Append reads the identifiers already present in column A and adds
// only rows whose first cell is not among them.
func (c *Client) Append(ctx context.Context, rows [][]string) error {
	ctx, span := tracer.Start(ctx, "client:Append")
	defer span.End()

	existing, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetId, quoteRange(c.worksheet, "A:A")).
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read existing identifiers")
		return fmt.Errorf("failed to read existing identifiers: %w", err)
	}

	seen := map[string]bool{}
	for _, row := range existing.Values {
		if len(row) > 0 {
			seen[fmt.Sprint(row[0])] = true
		}
	}

	fresh := FilterNew(seen, rows)
	if len(fresh) == 0 {
		slog.InfoContext(ctx, "no new rows to append", "worksheet", c.worksheet)
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.
		Append(c.spreadsheetId, quoteRange(c.worksheet, "A1"), valueRange(fresh)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to append rows")
		return fmt.Errorf("failed to append rows: %w", err)
	}

	slog.InfoContext(ctx, "appended rows",
		"worksheet", c.worksheet,
		"rows", len(fresh),
		"skipped", len(rows)-len(fresh),
	)
	return nil
}

// FilterNew drops rows whose leading cell is already present in the
// sheet. Header rows never carry an identifier so they are dropped
// too once the sheet is seeded.
func FilterNew(existing map[string]bool, rows [][]string) [][]string {
	var out [][]string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if existing[row[0]] {
			continue
		}
		out = append(out, row)
	}
	return out
}

func valueRange(rows [][]string) *sheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return &sheets.ValueRange{Values: values}
}

func quoteRange(worksheet, cells string) string {
	if cells == "" {
		return fmt.Sprintf("'%s'", worksheet)
	}
	return fmt.Sprintf("'%s'!%s", worksheet, cells)
}
