package floats

import (
	"math"
	"slices"
)

func midpoint(x, y float64) float64 {
	return x + (y-x)/2.0
}

func Median(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		panic("unexpected number of values")
	}
	cp := slices.Clone(fs)
	slices.Sort(cp)
	i := n / 2
	if n%2 != 0 {
		return cp[i]
	}
	return midpoint(cp[i-1], cp[i])
}

func FaultTolerantMidpoint(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		panic("unexpected number of values")
	}
	cp := slices.Clone(fs)
	slices.Sort(cp)
	f := (n - 1) / 3
	return midpoint(cp[f], cp[n-1-f])
}

func StdDev(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, f := range fs {
		mean += f
	}
	mean /= float64(n)
	var sumSq float64
	for _, f := range fs {
		d := f - mean
		sumSq += d * d
	}
	variance := sumSq / float64(n)
	return math.Sqrt(variance)
}
