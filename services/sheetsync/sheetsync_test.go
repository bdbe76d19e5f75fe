package sheetsync

import (
	"testing"

	"prescosync/services/conversionfeed"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFilterNew(t *testing.T) {
	existing := map[string]bool{
		"Parameters:TimeZone=Asia/Tokyo": true,
		"Google Click ID":                true,
		"ABC123":                         true,
	}

	rows := conversionfeed.Rows([]conversionfeed.Record{
		{ClickID: "ABC123", Name: "オフラインCV", Time: "2026/02/21 10:00:00", Value: "1500", Currency: "JPY"},
		{ClickID: "XYZ789", Name: "オフラインCV", Time: "2026/02/21 11:00:00", Value: "800", Currency: "JPY"},
	})

	fresh := FilterNew(existing, rows)

	diff := cmp.Diff(
		[][]string{
			{"XYZ789", "オフラインCV", "2026/02/21 11:00:00", "800", "JPY"},
		},
		fresh,
	)
	require.Empty(t, diff)
}

func TestFilterNewSeedsEmptySheet(t *testing.T) {
	rows := conversionfeed.Rows(nil)
	fresh := FilterNew(map[string]bool{}, rows)
	// headers pass through on first synchronization
	require.Len(t, fresh, 2)
}

func TestValueRange(t *testing.T) {
	vr := valueRange([][]string{{"a", "b"}, {"c"}})
	require.Len(t, vr.Values, 2)
	require.Equal(t, "a", vr.Values[0][0])
	require.Equal(t, "c", vr.Values[1][0])
}

func TestQuoteRange(t *testing.T) {
	require.Equal(t, "'成果情報_その他'", quoteRange(Worksheet, ""))
	require.Equal(t, "'成果情報_その他'!A1", quoteRange(Worksheet, "A1"))
}
