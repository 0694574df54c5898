package vault

import (
	"sort"
	"time"

	"historyvault/internal/domain/models"
)

// mergeCandles linearly merges two sequences sorted by OpenTime. When both
// sides carry a candle with the same OpenTime, the incoming one wins. The
// result is sorted with unique open times.
func mergeCandles(existing, incoming []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(existing)+len(incoming))
	i, j := 0, 0
	for i < len(existing) && j < len(incoming) {
		switch {
		case existing[i].OpenTime.Before(incoming[j].OpenTime):
			out = append(out, existing[i])
			i++
		case incoming[j].OpenTime.Before(existing[i].OpenTime):
			out = append(out, incoming[j])
			j++
		default:
			out = append(out, incoming[j])
			i++
			j++
		}
	}
	out = append(out, existing[i:]...)
	out = append(out, incoming[j:]...)
	return out
}

type monthKey struct {
	year  int
	month time.Month
}

// groupByMonth splits candles by the calendar month of their open time and
// sorts each group by OpenTime.
func groupByMonth(candles []models.Candle) map[monthKey][]models.Candle {
	groups := make(map[monthKey][]models.Candle)
	for _, c := range candles {
		t := c.OpenTime.UTC()
		k := monthKey{year: t.Year(), month: t.Month()}
		groups[k] = append(groups[k], c)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].OpenTime.Before(g[j].OpenTime) })
	}
	return groups
}

// sortedMonthKeys returns the group keys in chronological order so writes
// and cancellation checks happen deterministically.
func sortedMonthKeys(groups map[monthKey][]models.Candle) []monthKey {
	keys := make([]monthKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})
	return keys
}
