package conversionfeed

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"prescosync/lib/telemetry"
	"prescosync/lib/timezone"
	testutil "prescosync/test/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testCutoff = time.Date(2026, time.February, 20, 0, 0, 0, 0, timezone.Location)

// exportRow builds one raw export row with the consumed columns
// placed at their real positions and filler everywhere else.
func exportRow(site, actionTime, trackingURL, rewardPrice string) []string {
	row := make([]string, 18)
	for i := range row {
		row[i] = fmt.Sprintf("col%d", i)
	}
	row[columnActionTime] = actionTime
	row[columnSite] = site
	row[columnTrackingURL] = trackingURL
	row[columnRewardPrice] = rewardPrice
	return row
}

func exportCSV(t *testing.T, rows ...[]string) string {
	header := make([]string, 18)
	for i := range header {
		header[i] = fmt.Sprintf("header%d", i)
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	require.NoError(t, w.Write(header))
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return b.String()
}

func extractAll(t *testing.T, csvText string) *Extractor {
	e := NewExtractor(testCutoff)
	err := e.Extract(context.Background(), strings.NewReader(csvText))
	require.NoError(t, err)
	return e
}

func TestExtractMapsQualifyingRow(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:services/conversionfeed")
	defer cleanup()

	e := extractAll(t, exportCSV(t,
		exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=ABC123&foo=1", "1500.0"),
	))

	records := e.Records()
	require.Len(t, records, 1)

	diff := cmp.Diff(
		[]string{"ABC123", "オフラインCV", "2026/02/21 10:00:00", "1500", "JPY"},
		records[0].Row(),
	)
	require.Empty(t, diff)
}

func TestExtractCareSiteUsesFlatValue(t *testing.T) {
	e := extractAll(t, exportCSV(t,
		exportRow("Fast Baito 介護特化", "2026/02/21 12:30:00", "https://example.com/lp?gclid=CARE1", "9999.0"),
	))

	records := e.Records()
	require.Len(t, records, 1)
	require.Equal(t, "介護オフラインCV", records[0].Name)
	require.Equal(t, "3000", records[0].Value)
}

func TestExtractValueDerivation(t *testing.T) {
	cases := []struct {
		price  string
		expect string
	}{
		{"1500.0", "1500"},
		{"1500.9", "1500"},
		{"0", "0"},
		{"", "0"},
		{"not-a-number", "0"},
	}

	for _, test := range cases {
		e := extractAll(t, exportCSV(t,
			exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=X1", test.price),
		))
		records := e.Records()
		require.Len(t, records, 1)
		require.Equal(t, test.expect, records[0].Value, "price %q", test.price)
	}
}

func TestExtractSkipsRows(t *testing.T) {
	short := exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=SHORT", "100")[:17]

	e := extractAll(t, exportCSV(t,
		short,
		exportRow("Some Other Site", "2026/02/21 10:00:00", "https://example.com/lp?gclid=OTHER", "100"),
		exportRow("Fast Baito", "2026/02/19 23:59:59", "https://example.com/lp?gclid=STALE", "100"),
		exportRow("Fast Baito", "not a timestamp", "https://example.com/lp?gclid=BADTIME", "100"),
		exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?foo=1", "100"),
		exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=&foo=1", "100"),
		exportRow("Fast Baito", "2026/02/21 11:00:00", "https://example.com/lp?gclid=KEPT", "100"),
	))

	records := e.Records()
	require.Len(t, records, 1)
	require.Equal(t, "KEPT", records[0].ClickID)

	stats := e.Stats()
	require.Equal(t, 7, stats.RowsSeen)
	require.Equal(t, 1, stats.ShortRows)
	require.Equal(t, 1, stats.SiteMiss)
	require.Equal(t, 1, stats.BeforeCutoff)
	require.Equal(t, 1, stats.BadTimestamp)
	require.Equal(t, 2, stats.MissingClickID)
	require.Equal(t, 1, stats.Accepted)
}

func TestExtractToleratesStrayQuoteRow(t *testing.T) {
	// assembled by hand, csv.Writer would escape the stray quote away
	header := make([]string, 18)
	for i := range header {
		header[i] = fmt.Sprintf("header%d", i)
	}
	stray := exportRow(`Fast" Baito`, "2026/02/21 09:00:00", "https://example.com/lp?gclid=STRAY", "500")
	good := exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=KEPT", "1500.0")

	text := strings.Join(header, ",") + "\n" +
		strings.Join(stray, ",") + "\n" +
		strings.Join(good, ",") + "\n"

	e := NewExtractor(testCutoff)
	err := e.Extract(context.Background(), strings.NewReader(text))
	require.NoError(t, err)

	records := e.Records()
	require.Len(t, records, 1)
	require.Equal(t, "KEPT", records[0].ClickID)

	stats := e.Stats()
	require.Equal(t, 2, stats.RowsSeen)
	require.Equal(t, 1, stats.SiteMiss)
	require.Equal(t, 1, stats.Accepted)
}

func TestExtractCutoffIsInclusive(t *testing.T) {
	e := extractAll(t, exportCSV(t,
		exportRow("Fast Baito", "2026/02/20 00:00:00", "https://example.com/lp?gclid=EDGE", "100"),
	))
	require.Len(t, e.Records(), 1)
}

func TestExtractDeduplicatesFirstWins(t *testing.T) {
	e := extractAll(t, exportCSV(t,
		exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=DUP", "100"),
		exportRow("Fast Baito 介護特化", "2026/02/21 11:00:00", "https://example.com/lp?gclid=DUP", "200"),
	))

	records := e.Records()
	require.Len(t, records, 1)
	require.Equal(t, "オフラインCV", records[0].Name)
	require.Equal(t, "2026/02/21 10:00:00", records[0].Time)
	require.Equal(t, 1, e.Stats().Duplicates)
}

func TestExtractDeduplicatesAcrossFiles(t *testing.T) {
	e := NewExtractor(testCutoff)

	yesterday := exportCSV(t,
		exportRow("Fast Baito", "2026/02/20 22:00:00", "https://example.com/lp?gclid=BOTH", "100"),
	)
	today := exportCSV(t,
		exportRow("Fast Baito", "2026/02/20 22:00:00", "https://example.com/lp?gclid=BOTH", "100"),
		exportRow("Fast Baito", "2026/02/21 08:00:00", "https://example.com/lp?gclid=NEW", "300"),
	)

	require.NoError(t, e.Extract(context.Background(), strings.NewReader(yesterday)))
	require.NoError(t, e.Extract(context.Background(), strings.NewReader(today)))

	records := e.Records()
	require.Len(t, records, 2)
	require.Equal(t, "BOTH", records[0].ClickID)
	require.Equal(t, "NEW", records[1].ClickID)
}

func TestExtractPreservesSourceOrder(t *testing.T) {
	rndm := rand.New(rand.NewSource(41))

	var rows [][]string
	var ids []string
	for i := 0; i < 50; i++ {
		id := testutil.RandomClickID(rndm, 24)
		ids = append(ids, id)
		// timestamps deliberately not sorted
		ts := fmt.Sprintf("2026/02/21 %02d:00:00", rndm.Intn(24))
		rows = append(rows, exportRow("Fast Baito", ts, "https://example.com/lp?gclid="+id, "100"))
	}

	e := extractAll(t, exportCSV(t, rows...))
	records := e.Records()
	require.Len(t, records, len(ids))
	for i, id := range ids {
		require.Equal(t, id, records[i].ClickID)
	}
}

func TestExtractShiftJISExport(t *testing.T) {
	text := exportCSV(t,
		exportRow("Fast Baito 介護特化", "2026/02/21 09:00:00", "https://example.com/lp?gclid=SJIS1", "500"),
	)
	raw := encodeShiftJIS(t, text)

	e := NewExtractor(testCutoff)
	err := e.Extract(context.Background(), strings.NewReader(string(raw)))
	require.NoError(t, err)

	records := e.Records()
	require.Len(t, records, 1)
	require.Equal(t, "介護オフラインCV", records[0].Name)
}

func TestRowsRoundTrip(t *testing.T) {
	e := extractAll(t, exportCSV(t,
		exportRow("Fast Baito", "2026/02/21 10:00:00", "https://example.com/lp?gclid=ABC123&foo=1", "1500.0"),
	))

	rows := Rows(e.Records())
	require.Equal(t, []string{"Parameters:TimeZone=Asia/Tokyo"}, rows[0])
	require.Equal(t, []string{
		"Google Click ID",
		"Conversion Name",
		"Conversion Time",
		"Conversion Value",
		"Conversion Currency",
	}, rows[1])

	parsed := Record{
		ClickID:  rows[2][0],
		Name:     rows[2][1],
		Time:     rows[2][2],
		Value:    rows[2][3],
		Currency: rows[2][4],
	}
	require.Equal(t, e.Records()[0], parsed)
}
