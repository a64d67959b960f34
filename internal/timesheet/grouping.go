package timesheet

import (
	"sort"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

// GroupByDay buckets a /trips response by date. Trips without distance are
// dropped, a date left with no trips is dropped entirely, and the buckets
// come back in ascending date order.
func GroupByDay(days map[string]model.DailyData) []model.DailyTripGroup {
	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var groups []model.DailyTripGroup
	for _, date := range dates {
		g := model.DailyTripGroup{Date: date}
		for _, t := range days[date].Trips {
			if !t.Eligible() {
				continue
			}
			g.Trips = append(g.Trips, t)
			g.TotalDistance += t.Distance
		}
		if len(g.Trips) == 0 {
			continue
		}
		g.Count = len(g.Trips)
		groups = append(groups, g)
	}
	return groups
}
