package security

import (
	"testing"

	"github.com/ArashiWander/Argus-sub001/internal/models"
)

func TestRiskScore(t *testing.T) {
	scorer := NewRiskScorer()
	cases := []struct {
		name  string
		event models.SecurityEvent
		want  float64
	}{
		{
			name:  "auth failure medium",
			event: models.SecurityEvent{EventType: "authentication", Severity: models.SeverityMedium, Outcome: "failure"},
			want:  60, // 20 * 2 * 1.5
		},
		{
			name:  "blocked intrusion low",
			event: models.SecurityEvent{EventType: "intrusion_attempt", Severity: models.SeverityLow, Outcome: "blocked"},
			want:  96, // 80 * 1.5 * 0.8
		},
		{
			name:  "malware critical clamps at 100",
			event: models.SecurityEvent{EventType: "malware_detection", Severity: models.SeverityCritical, Outcome: "failure"},
			want:  100,
		},
		{
			name:  "unknown type gets default base",
			event: models.SecurityEvent{EventType: "something_else", Severity: models.SeverityLow, Outcome: "success"},
			want:  45, // 30 * 1.5
		},
		{
			name:  "no severity no outcome",
			event: models.SecurityEvent{EventType: "data_access"},
			want:  40,
		},
	}
	for _, tc := range cases {
		if got := scorer.Score(tc.event); got != tc.want {
			t.Fatalf("%s: expected %.1f, got %.1f", tc.name, tc.want, got)
		}
	}
}

func TestSeverityScore(t *testing.T) {
	if got := severityScore(models.SeverityCritical); got != 90 {
		t.Fatalf("critical: expected 90, got %f", got)
	}
	if got := severityScore(models.Severity("bogus")); got != 10 {
		t.Fatalf("unknown: expected 10, got %f", got)
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(-5); got != 0 {
		t.Fatalf("expected floor 0, got %f", got)
	}
	if got := clampScore(250); got != 100 {
		t.Fatalf("expected ceiling 100, got %f", got)
	}
	if got := clampScore(55); got != 55 {
		t.Fatalf("expected passthrough 55, got %f", got)
	}
}
