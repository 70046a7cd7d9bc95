// Package detect implements the statistical anomaly detectors and the
// periodic engine that sweeps detection configs over stored metric windows.
package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/ArashiWander/Argus-sub001/internal/models"
)

// minWindowPoints is the minimum number of samples a window needs before any
// detector produces a result.
const minWindowPoints = 10

// seasonalPeriod is the assumed seasonality in samples.
const seasonalPeriod = 60

// Result describes a flagged latest point. Only the single most recent point
// in the window is evaluated per cycle.
type Result struct {
	Expected  float64
	Deviation float64
	Threshold float64
	Severity  models.Severity
}

// Evaluate runs the configured algorithm over the window and reports whether
// the latest point is anomalous. Windows with fewer than 10 points yield no
// result, never an error.
func Evaluate(cfg models.AnomalyDetectionConfig, points []models.MetricPoint) (Result, bool) {
	if len(points) < minWindowPoints {
		return Result{}, false
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	switch cfg.Algorithm {
	case models.AlgorithmZScore:
		return zScore(values, cfg.Sensitivity)
	case models.AlgorithmIQR:
		return iqr(values, cfg.Sensitivity)
	case models.AlgorithmMovingAverage:
		return movingAverage(values, cfg.Sensitivity)
	case models.AlgorithmSeasonal:
		return seasonal(values, cfg.Sensitivity)
	default:
		return Result{}, false
	}
}

// zScore flags the latest value when its z-score over the full window exceeds
// the sensitivity-scaled threshold.
func zScore(values []float64, sensitivity int) (Result, bool) {
	latest := values[len(values)-1]
	mean, stdDev := meanStdDev(values)
	if stdDev == 0 {
		return Result{}, false
	}

	threshold := 3.0 - float64(clampSensitivity(sensitivity)-1)*0.2
	score := math.Abs(latest-mean) / stdDev
	if score <= threshold {
		return Result{}, false
	}

	deviation := math.Abs(latest - mean)
	return Result{
		Expected:  mean,
		Deviation: deviation,
		Threshold: threshold,
		Severity:  severityFor(deviation / threshold),
	}, true
}

// iqr flags the latest value when it falls outside the sensitivity-scaled
// interquartile fence. Bounds are inclusive.
func iqr(values []float64, sensitivity int) (Result, bool) {
	latest := values[len(values)-1]

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	spread := q3 - q1
	if spread == 0 {
		return Result{}, false
	}

	multiplier := 1.5 + float64(clampSensitivity(sensitivity)-1)*0.1
	lower := q1 - multiplier*spread
	upper := q3 + multiplier*spread
	if latest >= lower && latest <= upper {
		return Result{}, false
	}

	var distance float64
	if latest < lower {
		distance = lower - latest
	} else {
		distance = latest - upper
	}
	deviation := distance / spread
	return Result{
		Expected:  (q1 + q3) / 2,
		Deviation: deviation,
		Threshold: multiplier,
		Severity:  severityFor(deviation / multiplier),
	}, true
}

// movingAverage compares the latest value against the average of the
// min(20, N/2) points preceding it.
func movingAverage(values []float64, sensitivity int) (Result, bool) {
	latest := values[len(values)-1]

	size := len(values) / 2
	if size > 20 {
		size = 20
	}
	recent := values[len(values)-1-size : len(values)-1]
	mean, stdDev := meanStdDev(recent)
	if stdDev == 0 {
		return Result{}, false
	}

	threshold := 2.0 + float64(clampSensitivity(sensitivity)-1)*0.1
	if math.Abs(latest-mean)/stdDev <= threshold {
		return Result{}, false
	}

	deviation := math.Abs(latest - mean)
	return Result{
		Expected:  mean,
		Deviation: deviation,
		Threshold: threshold,
		Severity:  severityFor(deviation / threshold),
	}, true
}

// seasonal compares the latest value against same-phase points one period
// apart, requiring at least 3 seasonal references.
func seasonal(values []float64, sensitivity int) (Result, bool) {
	latest := values[len(values)-1]

	var refs []float64
	for i := len(values) - 1 - seasonalPeriod; i >= 0; i -= seasonalPeriod {
		refs = append(refs, values[i])
	}
	if len(refs) < 3 {
		return Result{}, false
	}

	mean, stdDev := meanStdDev(refs)
	if stdDev == 0 {
		return Result{}, false
	}

	threshold := 2.5 - float64(clampSensitivity(sensitivity)-1)*0.1
	if math.Abs(latest-mean)/stdDev <= threshold {
		return Result{}, false
	}

	deviation := math.Abs(latest - mean)
	return Result{
		Expected:  mean,
		Deviation: deviation,
		Threshold: threshold,
		Severity:  severityFor(deviation / threshold),
	}, true
}

// severityFor maps a deviation/threshold ratio to a severity band.
func severityFor(ratio float64) models.Severity {
	switch {
	case ratio >= 3:
		return models.SeverityCritical
	case ratio >= 2:
		return models.SeverityHigh
	case ratio >= 1.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func clampSensitivity(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// percentile computes a linear-interpolated percentile over sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Describe renders the human-readable anomaly description.
func Describe(cfg models.AnomalyDetectionConfig, service string, res Result, actual float64) string {
	return fmt.Sprintf("%s for service %s is %.2f, expected %.2f (%s, deviation %.2f)",
		cfg.MetricName, service, actual, res.Expected, cfg.Algorithm, res.Deviation)
}
