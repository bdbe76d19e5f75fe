package conversionfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"prescosync/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/conversionfeed")
var meter = otel.Meter("services/conversionfeed")

var acceptedCounter, _ = meter.Int64Counter("records_accepted")
var droppedCounter, _ = meter.Int64Counter("records_dropped")

// export column positions (0-indexed)
const (
	columnActionTime  = 3
	columnSite        = 5
	columnTrackingURL = 12
	columnRewardPrice = 17
	minColumns        = 18
)

const actionTimeLayout = "2006/01/02 15:04:05"

var gclidRegex = regexp.MustCompile(`gclid=([^&]+)`)

// Stats counts what happened to every row of a pass. Purely
// observational, the record slice is the contract.
type Stats struct {
	RowsSeen       int
	MalformedRows  int
	ShortRows      int
	SiteMiss       int
	BadTimestamp   int
	BeforeCutoff   int
	MissingClickID int
	Duplicates     int
	Accepted       int
}

// Extractor turns raw exports into conversion records. Deduplication
// spans every Extract call on the same Extractor, so feeding it the
// yesterday and today exports of one run cannot double-count a click.
type Extractor struct {
	cutoff  time.Time
	seen    map[string]bool
	records []Record
	stats   Stats
}

func NewExtractor(cutoff time.Time) *Extractor {
	return &Extractor{
		cutoff: cutoff,
		seen:   map[string]bool{},
	}
}

func (e *Extractor) Records() []Record {
	return e.records
}

func (e *Extractor) Stats() Stats {
	return e.stats
}

func (e *Extractor) ExtractFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.Extract(ctx, f)
}

// Extract parses one export and appends every qualifying row, in
// source order, to the extractor's record set. Row-level anomalies
// are counted and skipped, only an undecodable file is an error.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) error {
	ctx, span := tracer.Start(ctx, "extractor:Extract")
	defer span.End()

	raw, err := io.ReadAll(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read export")
		return err
	}

	text, encodingName, err := decodeExport(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode export")
		return err
	}
	slog.DebugContext(ctx, "decoded export", "encoding", encodingName, "bytes", len(raw))

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	// the tracking URL and free-text columns occasionally carry stray
	// quotes, a bad row must never take the rest of the file with it
	reader.LazyQuotes = true

	before := e.stats.Accepted
	rows := 0
	header := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if header {
			// column-name row, dropped whatever shape it is in
			header = false
			continue
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to parse csv")
				return fmt.Errorf("failed to parse export csv: %w", err)
			}
			rows++
			e.stats.RowsSeen++
			e.stats.MalformedRows++
			slog.WarnContext(ctx, "skipping malformed csv row", "err", err)
			continue
		}
		rows++
		e.consumeRow(ctx, row)
	}

	acceptedCounter.Add(ctx, int64(e.stats.Accepted-before))
	droppedCounter.Add(ctx, int64(rows-(e.stats.Accepted-before)))

	slog.InfoContext(ctx, "extracted export",
		"rows", rows,
		"accepted", e.stats.Accepted-before,
		"total_accepted", e.stats.Accepted,
	)
	return nil
}

func (e *Extractor) consumeRow(ctx context.Context, row []string) {
	e.stats.RowsSeen++

	if len(row) < minColumns {
		e.stats.ShortRows++
		return
	}

	site := row[columnSite]
	name, ok := conversionNames[site]
	if !ok {
		e.stats.SiteMiss++
		return
	}

	actionTime, err := time.ParseInLocation(actionTimeLayout, row[columnActionTime], timezone.Location)
	if err != nil {
		e.stats.BadTimestamp++
		slog.WarnContext(ctx, "skipping row with unparsable action time",
			"value", row[columnActionTime], "err", err)
		return
	}
	if actionTime.Before(e.cutoff) {
		e.stats.BeforeCutoff++
		return
	}

	clickID := extractClickID(row[columnTrackingURL])
	if clickID == "" {
		e.stats.MissingClickID++
		return
	}
	if e.seen[clickID] {
		e.stats.Duplicates++
		return
	}
	e.seen[clickID] = true

	value := careSiteValue
	if site != SiteFastBaitoCare {
		value = deriveValue(row[columnRewardPrice])
	}

	e.stats.Accepted++
	e.records = append(e.records, Record{
		ClickID:  clickID,
		Name:     name,
		Time:     row[columnActionTime],
		Value:    value,
		Currency: Currency,
	})
}

// extractClickID pulls the gclid query value out of the tracking URL,
// up to the next & or the end of the string.
func extractClickID(trackingURL string) string {
	groups := gclidRegex.FindStringSubmatch(trackingURL)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

// deriveValue truncates the reward price to whole yen. A missing or
// malformed price is worth zero, not a failed row.
func deriveValue(rewardPrice string) string {
	price, err := strconv.ParseFloat(strings.TrimSpace(rewardPrice), 64)
	if err != nil {
		return "0"
	}
	return strconv.Itoa(int(price))
}
