package presco

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspectReportPage(t *testing.T) {
	html := `
	<html><body>
		<table>
			<thead><tr><th>成果ID</th></tr></thead>
			<tbody>
				<tr><td>1</td></tr>
				<tr><td>2</td></tr>
				<tr><td>3</td></tr>
			</tbody>
		</table>
		<a id="csv-link" href="#">CSVダウンロード</a>
	</body></html>`

	info, err := inspectReportPage(html)
	require.NoError(t, err)
	require.True(t, info.HasExportLink)
	require.Equal(t, 3, info.ResultRows)
}

func TestInspectReportPageEmptyResults(t *testing.T) {
	html := `<html><body><p>該当する成果はありません</p></body></html>`

	info, err := inspectReportPage(html)
	require.NoError(t, err)
	require.False(t, info.HasExportLink)
	require.Equal(t, 0, info.ResultRows)
}

func TestAuthBounced(t *testing.T) {
	require.True(t, authBounced("https://presco.ai/partner/login"))
	require.True(t, authBounced("https://presco.ai/partner/logout?expired=1"))
	require.False(t, authBounced("https://presco.ai/partner/actionLog/list"))
	require.False(t, authBounced("https://presco.ai/partner/dashboard"))
}
