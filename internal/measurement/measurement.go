// Package measurement provides the small statistical helpers the
// synchronization core uses to fold multiple timestamp samples into a single
// robust value.
package measurement

import (
	"cmp"
	"slices"
	"time"
)

type Sample struct {
	Timestamp time.Time
	Offset    time.Duration
	Error     error
}

func midpoint(x, y Sample) Sample {
	var m Sample
	m.Offset = x.Offset + (y.Offset-x.Offset)/2
	if !x.Timestamp.After(y.Timestamp) {
		m.Timestamp = x.Timestamp.Add(y.Timestamp.Sub(x.Timestamp) / 2)
	} else {
		m.Timestamp = y.Timestamp.Add(x.Timestamp.Sub(y.Timestamp) / 2)
	}
	return m
}

func Median(ms []Sample) Sample {
	n := len(ms)
	if n == 0 {
		panic("unexpected number of values")
	}
	cp := slices.Clone(ms)
	slices.SortFunc(cp, func(a, b Sample) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	i := n / 2
	if n%2 != 0 {
		return Sample{Timestamp: cp[i].Timestamp, Offset: cp[i].Offset}
	}
	return midpoint(cp[i-1], cp[i])
}

func FaultTolerantMidpoint(ms []Sample) Sample {
	n := len(ms)
	if n == 0 {
		panic("unexpected number of values")
	}
	cp := slices.Clone(ms)
	slices.SortFunc(cp, func(a, b Sample) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	f := (n - 1) / 3
	return midpoint(cp[f], cp[n-1-f])
}

// Min returns the sample with the smallest Offset, breaking ties by
// insertion order (earliest wins). Grounds the lucky-packet filter's
// "minimum over the window" rule.
func Min(ms []Sample) Sample {
	n := len(ms)
	if n == 0 {
		panic("unexpected number of values")
	}
	m := ms[0]
	for _, s := range ms[1:] {
		if s.Offset < m.Offset {
			m = s
		}
	}
	return m
}
