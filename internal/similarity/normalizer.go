// Package similarity maps vector index distances onto a [0,1] similarity
// where higher means more relevant.
package similarity

import (
	"fmt"
	"math"
	"strings"
)

// Metric identifies the distance function the index ranks by
type Metric string

const (
	// Cosine distance, 1 - cos(a,b), bounded in [0,2].
	Cosine Metric = "cosine"
	// L2 is euclidean distance between unit vectors, bounded in [0,2].
	L2 Metric = "l2"
	// InnerProduct is the negated inner product of unit vectors, bounded in [-1,1].
	InnerProduct Metric = "inner_product"
)

// Normalizer converts a raw distance into a similarity rounded to 4 decimals.
// NaN distances stay NaN.
type Normalizer interface {
	Metric() Metric
	Normalize(distance float64) float64
}

// ParseMetric parses a metric name as used in configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case Cosine, "":
		return Cosine, nil
	case L2, "euclidean":
		return L2, nil
	case InnerProduct, "ip", "dot":
		return InnerProduct, nil
	default:
		return "", fmt.Errorf("unsupported distance metric %q", s)
	}
}

// For returns the normalizer matching the metric.
func For(metric Metric) (Normalizer, error) {
	switch metric {
	case Cosine:
		return cosine{}, nil
	case L2:
		return l2{}, nil
	case InnerProduct:
		return innerProduct{}, nil
	default:
		return nil, fmt.Errorf("unsupported distance metric %q", metric)
	}
}

type cosine struct{}

func (cosine) Metric() Metric { return Cosine }

// Normalize maps d in [0,2] to 1 - d/2.
func (cosine) Normalize(d float64) float64 {
	return Round(1.0 - d/2.0)
}

type l2 struct{}

func (l2) Metric() Metric { return L2 }

// Normalize maps d in [0,2] to 1 - d²/4. For unit vectors d² = 2(1 - cos),
// so this agrees with the cosine mapping.
func (l2) Normalize(d float64) float64 {
	return Round(1.0 - d*d/4.0)
}

type innerProduct struct{}

func (innerProduct) Metric() Metric { return InnerProduct }

// Normalize maps d = -<a,b> in [-1,1] to (1 - d)/2.
func (innerProduct) Normalize(d float64) float64 {
	return Round((1.0 - d) / 2.0)
}

// Round rounds to 4 decimal places.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*10000) / 10000
}
