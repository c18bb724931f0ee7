package report

import "github.com/shuleapp/shule/core"

// competitionRanks returns the standard competition ranking ("1224") of values, highest first.
// Values are compared rounded to 2 decimals.
func competitionRanks(values []float64) []int {
	ranks := make([]int, len(values))
	for i, v := range values {
		rank := 1
		for _, other := range values {
			if core.Round2(other) > core.Round2(v) {
				rank++
			}
		}
		ranks[i] = rank
	}
	return ranks
}
