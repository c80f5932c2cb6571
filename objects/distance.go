package objects

import (
	"fmt"

	"github.com/viterin/vek/vek32"
)

// Metric selects the distance family objects are compared under. The set is
// closed; a bucket is configured with exactly one metric.
type Metric uint8

const (
	L2 Metric = iota
	L1
	Lmax
	Cosine
)

var metricNames = map[Metric]string{
	L2:     "l2",
	L1:     "l1",
	Lmax:   "lmax",
	Cosine: "cosine",
}

func (m Metric) String() string {
	if s, ok := metricNames[m]; ok {
		return s
	}
	return fmt.Sprintf("metric(%d)", uint8(m))
}

func ParseMetric(s string) (Metric, error) {
	for m, name := range metricNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q (supported: l1, l2, lmax, cosine)", s)
}

// Distance computes the metric distance between two objects. Vectors of
// different dimensions are an error, never silently truncated.
func (m Metric) Distance(a, b *Object) (float32, error) {
	if len(a.Data) != len(b.Data) {
		return 0, fmt.Errorf("cannot compute distance on different vector dimensions (%d, %d)", len(a.Data), len(b.Data))
	}
	switch m {
	case L2:
		return vek32.Distance(a.Data, b.Data), nil
	case L1:
		return vek32.ManhattanDistance(a.Data, b.Data), nil
	case Lmax:
		return lmaxDistance(a.Data, b.Data), nil
	case Cosine:
		return 1 - vek32.CosineSimilarity(a.Data, b.Data), nil
	default:
		return 0, fmt.Errorf("unknown metric %d", uint8(m))
	}
}

// lmaxDistance is the maximum absolute difference over all dimensions.
func lmaxDistance(a, b []float32) float32 {
	var max float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}
