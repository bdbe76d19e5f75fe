package conversionfeed

// Record is one offline conversion in the ad-platform import layout.
// Records are value types, never mutated after assembly.
type Record struct {
	ClickID  string
	Name     string
	Time     string
	Value    string
	Currency string
}

const Currency = "JPY"

// target partner sites and their conversion names
const (
	SiteFastBaito     = "Fast Baito"
	SiteFastBaitoCare = "Fast Baito 介護特化"
)

var conversionNames = map[string]string{
	SiteFastBaito:     "オフラインCV",
	SiteFastBaitoCare: "介護オフラインCV",
}

// the care-focused site pays a flat bounty instead of a per-action
// reward price
const careSiteValue = "3000"

// Row renders the record into the 5-column import order.
func (r Record) Row() []string {
	return []string{r.ClickID, r.Name, r.Time, r.Value, r.Currency}
}

// HeaderRows returns the two fixed leading rows of the import sheet.
func HeaderRows() [][]string {
	return [][]string{
		{"Parameters:TimeZone=Asia/Tokyo"},
		{
			"Google Click ID",
			"Conversion Name",
			"Conversion Time",
			"Conversion Value",
			"Conversion Currency",
		},
	}
}

// Rows renders records below the header rows, ready for the sink.
func Rows(records []Record) [][]string {
	out := HeaderRows()
	for _, r := range records {
		out = append(out, r.Row())
	}
	return out
}
