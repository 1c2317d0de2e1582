package regime

import "math"

// LastSMA is the mean of the final p points, or NaN when there are fewer than p.
func LastSMA(x []float64, p int) float64 {
	if p <= 0 || len(x) < p {
		return math.NaN()
	}
	var sum float64
	for _, v := range x[len(x)-p:] {
		sum += v
	}
	return sum / float64(p)
}
