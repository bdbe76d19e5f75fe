package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
}

// force timezone to be JST because the runner may end up in any
// region, which will cause disturbances when manipulating dates
// based on <time.Time>.Year()/Month()/Day()/Hour()/...
func Now() time.Time {
	return time.Now().In(Location)
}

// Midnight truncates t to 00:00:00 JST of the same calendar day.
func Midnight(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}

// YesterdayMidnight returns 00:00:00 JST of the calendar day before t.
func YesterdayMidnight(t time.Time) time.Time {
	return Midnight(t.In(Location).AddDate(0, 0, -1))
}
