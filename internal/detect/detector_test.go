package detect

import (
	"testing"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/models"
)

func windowFrom(values []float64) []models.MetricPoint {
	base := time.Now().Add(-time.Hour)
	points := make([]models.MetricPoint, len(values))
	for i, v := range values {
		points[i] = models.MetricPoint{Timestamp: base.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return points
}

func TestZScoreFlagsSpike(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{
		MetricName:  "cpu.usage",
		Algorithm:   models.AlgorithmZScore,
		Sensitivity: 5,
	}
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 100}

	res, flagged := Evaluate(cfg, windowFrom(values))
	if !flagged {
		t.Fatalf("expected spike to be flagged")
	}
	if res.Severity != models.SeverityHigh && res.Severity != models.SeverityCritical {
		t.Fatalf("expected severity high or above, got %s", res.Severity)
	}
	if res.Expected != 19 {
		t.Fatalf("expected mean 19, got %f", res.Expected)
	}
}

func TestZScoreConstantWindowNoAnomaly(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmZScore, Sensitivity: 10}
	values := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}

	if _, flagged := Evaluate(cfg, windowFrom(values)); flagged {
		t.Fatalf("zero stddev must not flag")
	}
}

func TestTooFewPointsNoResult(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmZScore, Sensitivity: 5}
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}

	if _, flagged := Evaluate(cfg, windowFrom(values)); flagged {
		t.Fatalf("nine points must yield no result")
	}
}

func TestIQRInsideBoundsInclusive(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmIQR, Sensitivity: 1}
	// Sorted: Q1=10, Q3=20, multiplier 1.5, bounds [-5, 35]. Latest 5 sits inside.
	values := []float64{10, 10, 10, 10, 15, 15, 20, 20, 20, 20, 5}

	if _, flagged := Evaluate(cfg, windowFrom(values)); flagged {
		t.Fatalf("value inside the fence must not flag")
	}
}

func TestIQRFlagsOutlier(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmIQR, Sensitivity: 1}
	values := []float64{10, 10, 10, 10, 15, 15, 20, 20, 20, 20, 100}

	res, flagged := Evaluate(cfg, windowFrom(values))
	if !flagged {
		t.Fatalf("value beyond the fence must flag")
	}
	// Expected value is the Q1/Q3 midpoint.
	if res.Expected != 15 {
		t.Fatalf("expected midpoint 15, got %f", res.Expected)
	}
}

func TestMovingAverageFlagsDeparture(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmMovingAverage, Sensitivity: 5}
	values := make([]float64, 0, 31)
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			values = append(values, 10)
		} else {
			values = append(values, 12)
		}
	}
	values = append(values, 100)

	if _, flagged := Evaluate(cfg, windowFrom(values)); !flagged {
		t.Fatalf("expected departure from the moving average to flag")
	}
}

func TestMovingAverageFlatBaselineNoAnomaly(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmMovingAverage, Sensitivity: 5}
	values := make([]float64, 30)
	for i := range values {
		values[i] = 10
	}
	values = append(values, 100)

	if _, flagged := Evaluate(cfg, windowFrom(values)); flagged {
		t.Fatalf("flat baseline has zero stddev and must not flag")
	}
}

func TestSeasonalFlagsOffPhaseValue(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmSeasonal, Sensitivity: 5}
	values := make([]float64, 181)
	for i := range values {
		values[i] = 10
	}
	values[0] = 10
	values[60] = 12
	values[120] = 14
	values[180] = 100

	if _, flagged := Evaluate(cfg, windowFrom(values)); !flagged {
		t.Fatalf("expected seasonal departure to flag")
	}
}

func TestSeasonalTooFewReferences(t *testing.T) {
	cfg := models.AnomalyDetectionConfig{Algorithm: models.AlgorithmSeasonal, Sensitivity: 5}
	// 121 points yields only two seasonal references.
	values := make([]float64, 121)
	for i := range values {
		values[i] = 10
	}
	values[120] = 100

	if _, flagged := Evaluate(cfg, windowFrom(values)); flagged {
		t.Fatalf("fewer than three references must yield no result")
	}
}

func TestSeverityBands(t *testing.T) {
	cases := []struct {
		ratio float64
		want  models.Severity
	}{
		{3.5, models.SeverityCritical},
		{2.1, models.SeverityHigh},
		{1.6, models.SeverityMedium},
		{1.1, models.SeverityLow},
	}
	for _, tc := range cases {
		if got := severityFor(tc.ratio); got != tc.want {
			t.Fatalf("ratio %.1f: expected %s, got %s", tc.ratio, tc.want, got)
		}
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	if got := percentile(sorted, 50); got != 25 {
		t.Fatalf("expected interpolated median 25, got %f", got)
	}
	if got := percentile(sorted, 100); got != 40 {
		t.Fatalf("expected max 40, got %f", got)
	}
}
