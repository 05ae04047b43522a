// Package consensus computes aggregate statistics over planning poker votes.
package consensus

import (
	"math"
	"sort"

	"github.com/abrezinsky/planningpoker/internal/models"
)

// ordinal is the fixed set of allowed vote values, ascending
var ordinal = [...]int{1, 2, 3, 5, 8, 13, 21}

// Values returns the allowed vote values in ascending order
func Values() []int {
	out := make([]int, len(ordinal))
	copy(out, ordinal[:])
	return out
}

// IsValidValue reports whether v is one of the allowed vote values
func IsValidValue(v int) bool {
	for _, o := range ordinal {
		if o == v {
			return true
		}
	}
	return false
}

// Calculate computes voting results for the given votes.
// An empty input yields the degenerate result rather than an error.
func Calculate(votes []int) *models.VotingResults {
	if len(votes) == 0 {
		return &models.VotingResults{
			Majority:     ordinal[0],
			Optimistic:   ordinal[0],
			Pessimistic:  ordinal[0],
			Distribution: map[int]int{},
		}
	}

	sorted := make([]int, len(votes))
	copy(sorted, votes)
	sort.Ints(sorted)

	mean := Mean(sorted)
	return &models.VotingResults{
		Majority:      Majority(sorted, mean),
		Optimistic:    floorOrdinal(Percentile(sorted, 25)),
		Pessimistic:   ceilOrdinal(Percentile(sorted, 75)),
		ActualAverage: mean,
		Distribution:  Distribution(sorted),
		MinVote:       sorted[0],
		MaxVote:       sorted[len(sorted)-1],
		TotalVotes:    len(sorted),
	}
}

// Mean returns the arithmetic mean, or 0 for no votes
func Mean(votes []int) float64 {
	if len(votes) == 0 {
		return 0
	}
	sum := 0
	for _, v := range votes {
		sum += v
	}
	return float64(sum) / float64(len(votes))
}

// Distribution counts votes per distinct value
func Distribution(votes []int) map[int]int {
	dist := make(map[int]int)
	for _, v := range votes {
		dist[v]++
	}
	return dist
}

// Majority returns the statistical mode of votes. Tied modes resolve to the
// value nearest to mean, then to the smaller value.
func Majority(votes []int, mean float64) int {
	if len(votes) == 0 {
		return ordinal[0]
	}
	dist := Distribution(votes)

	best := 0
	for _, c := range dist {
		if c > best {
			best = c
		}
	}

	modes := make([]int, 0, len(dist))
	for v, c := range dist {
		if c == best {
			modes = append(modes, v)
		}
	}
	sort.Ints(modes)

	pick := modes[0]
	for _, m := range modes[1:] {
		if math.Abs(float64(m)-mean) < math.Abs(float64(pick)-mean) {
			pick = m
		}
	}
	return pick
}

// Percentile returns the p-th percentile (0-100) of votes using linear
// interpolation between the neighbouring sorted values.
func Percentile(votes []int, p float64) float64 {
	if len(votes) == 0 {
		return 0
	}
	sorted := votes
	if !sort.IntsAreSorted(sorted) {
		sorted = make([]int, len(votes))
		copy(sorted, votes)
		sort.Ints(sorted)
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[hi]-sorted[lo])
}

// floorOrdinal returns the largest ordinal value <= x, or the smallest ordinal
func floorOrdinal(x float64) int {
	pick := ordinal[0]
	for _, o := range ordinal {
		if float64(o) <= x {
			pick = o
		}
	}
	return pick
}

// ceilOrdinal returns the smallest ordinal value >= x, or the largest ordinal
func ceilOrdinal(x float64) int {
	for _, o := range ordinal {
		if float64(o) >= x {
			return o
		}
	}
	return ordinal[len(ordinal)-1]
}
