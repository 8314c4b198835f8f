package trainer

import (
	"math"
	"sort"
)

// summarize reduces a sample distribution to scalars named prefix_min,
// prefix_p50, prefix_p90, prefix_max and prefix_mean. Quantiles use the
// nearest-rank method.
func summarize(prefix string, samples []float64) map[string]float64 {
	if len(samples) == 0 {
		return map[string]float64{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	rank := func(q float64) float64 {
		i := int(math.Ceil(q*float64(len(sorted)))) - 1
		return sorted[max(i, 0)]
	}
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return map[string]float64{
		prefix + "_min":  sorted[0],
		prefix + "_p50":  rank(0.5),
		prefix + "_p90":  rank(0.9),
		prefix + "_max":  sorted[len(sorted)-1],
		prefix + "_mean": sum / float64(len(sorted)),
	}
}
