package prescosync

import (
	"context"
	"fmt"
	"log/slog"

	"prescosync/lib/scrapers/presco"
	"prescosync/lib/timezone"
	"prescosync/services/conversionfeed"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/prescosync")

// SyncMode chooses how the record set lands in the destination sheet.
type SyncMode string

const (
	// clear the worksheet and rewrite it whole (the default, the
	// in-run dedupe is sufficient because nothing survives a run)
	ModeReplace SyncMode = "replace"
	// add only rows not already present, keyed by click id
	ModeAppend SyncMode = "append"
)

type Retriever interface {
	Retrieve(ctx context.Context, creds presco.Credentials, period presco.Period, maxAttempts int) (string, error)
}

type Sink interface {
	ReplaceAll(ctx context.Context, rows [][]string) error
	Append(ctx context.Context, rows [][]string) error
}

type Options struct {
	Credentials presco.Credentials
	Periods     []presco.Period
	MaxAttempts int
	Mode        SyncMode
}

type Service struct {
	retriever Retriever
	sink      Sink
	options   Options
}

func NewService(retriever Retriever, sink Sink, options Options) Service {
	if len(options.Periods) == 0 {
		options.Periods = []presco.Period{presco.PeriodYesterday, presco.PeriodToday}
	}
	if options.MaxAttempts == 0 {
		options.MaxAttempts = 3
	}
	if options.Mode == "" {
		options.Mode = ModeReplace
	}
	return Service{
		retriever: retriever,
		sink:      sink,
		options:   options,
	}
}

// RunOnce performs one full synchronization pass: download the
// configured report windows, extract the conversion feed, push it to
// the sheet.
func (s Service) RunOnce(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "service:RunOnce")
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync pass failed")
		return err
	}

	cutoff := conversionfeed.ResolveCutoff(timezone.Now())
	slog.InfoContext(ctx, "starting sync pass",
		"cutoff", cutoff.Format("2006/01/02 15:04:05"),
		"periods", s.options.Periods,
	)

	extractor := conversionfeed.NewExtractor(cutoff)
	for _, period := range s.options.Periods {
		path, err := s.retriever.Retrieve(ctx, s.options.Credentials, period, s.options.MaxAttempts)
		if err != nil {
			return fail(fmt.Errorf("failed to retrieve %s export: %w", period, err))
		}
		err = extractor.ExtractFile(ctx, path)
		if err != nil {
			return fail(fmt.Errorf("failed to extract %s export: %w", period, err))
		}
	}

	rows := conversionfeed.Rows(extractor.Records())

	var err error
	switch s.options.Mode {
	case ModeAppend:
		err = s.sink.Append(ctx, rows)
	default:
		err = s.sink.ReplaceAll(ctx, rows)
	}
	if err != nil {
		return fail(fmt.Errorf("failed to synchronize sheet: %w", err))
	}

	stats := extractor.Stats()
	slog.InfoContext(ctx, "sync pass complete",
		"records", stats.Accepted,
		"rows_seen", stats.RowsSeen,
		"duplicates", stats.Duplicates,
		"before_cutoff", stats.BeforeCutoff,
	)
	return nil
}
