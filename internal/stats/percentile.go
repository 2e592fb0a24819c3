package stats

import (
	"math"
	"sort"

	"campaignready/internal/domain"
)

// P95 returns the 95th percentile using index ceil(0.95n)-1 over the sorted
// values, clamped to the last element.
func P95(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := sortedCopy(values)
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx], true
}

// P95Ptr is P95 returning nil when there is nothing to rank.
func P95Ptr(values []float64) *float64 {
	v, ok := P95(values)
	if !ok {
		return nil
	}
	return &v
}

func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := sortedCopy(values)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

// Stability classifies a sample set. Any failed sample makes it unstable; with
// every sample ok, a timing above twice the median counts as a spike.
func Stability(ttfbs []float64, okCount, total int) domain.Stability {
	if total == 0 {
		return domain.StabilityUnknown
	}
	if okCount < total {
		return domain.StabilityUnstable
	}
	if len(ttfbs) < 2 {
		return domain.StabilityUnknown
	}
	m, ok := Median(ttfbs)
	if !ok {
		return domain.StabilityUnknown
	}
	for _, v := range ttfbs {
		if v > 2*m {
			return domain.StabilityUnstable
		}
	}
	return domain.StabilityStable
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
