package services

import (
	"testing"

	"github.com/briefmatch/backend/internal/models"
)

func TestCalculatePriceEstimate(t *testing.T) {
	tests := []struct {
		name          string
		deliverable   string
		deadlineHours float64
		priority      string
		want          int
		wantFast      int
	}{
		{"landing page relaxed", models.DeliverableLandingPage, 100, models.PriorityNormal, 150, 180},
		{"landing page 48h", models.DeliverableLandingPage, 48, models.PriorityNormal, 188, 225},
		{"landing page 24h", models.DeliverableLandingPage, 24, models.PriorityNormal, 225, 270},
		{"ad relaxed", models.DeliverableAdOneMin, 72, models.PriorityNormal, 200, 240},
		{"bug fix urgent", models.DeliverableBugFix, 12, models.PriorityNormal, 150, 180},
		{"design relaxed", models.DeliverableDesign, 96, models.PriorityNormal, 250, 300},
		{"unknown type prices as other", "hologram", 100, models.PriorityNormal, 150, 180},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			est := CalculatePriceEstimate(tc.deliverable, tc.deadlineHours, tc.priority)
			if est.EstimatedPrice != tc.want {
				t.Fatalf("EstimatedPrice = %d, want %d", est.EstimatedPrice, tc.want)
			}
			if est.FastPrice == nil {
				t.Fatal("FastPrice nil for normal priority")
			}
			if *est.FastPrice != tc.wantFast {
				t.Fatalf("FastPrice = %d, want %d", *est.FastPrice, tc.wantFast)
			}
		})
	}
}

func TestCalculatePriceEstimateFastPriority(t *testing.T) {
	est := CalculatePriceEstimate(models.DeliverableBugFix, 24, models.PriorityFast)
	// 100 * 1.5 * 1.2
	if est.EstimatedPrice != 180 {
		t.Fatalf("EstimatedPrice = %d, want 180", est.EstimatedPrice)
	}
	if est.PriorityMultiplier != fastPriorityMultiplier {
		t.Fatalf("PriorityMultiplier = %v, want %v", est.PriorityMultiplier, fastPriorityMultiplier)
	}
	if est.FastPrice != nil {
		t.Fatal("FastPrice should be nil when the job is already fast")
	}
}

func TestDeadlineLabel(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{6, "24 hours"},
		{24, "24 hours"},
		{36, "48 hours"},
		{60, "72 hours"},
		{96, "4 days"},
		{100, "5 days"},
	}
	for _, tc := range tests {
		if got := DeadlineLabel(tc.hours); got != tc.want {
			t.Fatalf("DeadlineLabel(%v) = %q, want %q", tc.hours, got, tc.want)
		}
	}
}
