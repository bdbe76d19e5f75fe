package presco

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type reportPageInfo struct {
	HasExportLink bool
	ResultRows    int
}

// inspectReportPage looks at the settled results page to confirm the
// listing actually rendered before the export link is clicked.
func inspectReportPage(html string) (reportPageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return reportPageInfo{}, err
	}

	return reportPageInfo{
		HasExportLink: doc.Find(exportLink).Length() > 0,
		ResultRows:    doc.Find("table tbody tr").Length(),
	}, nil
}
