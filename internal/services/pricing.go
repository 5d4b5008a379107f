package services

import (
	"fmt"
	"math"

	"github.com/briefmatch/backend/internal/models"
)

// Base prices by deliverable type, in whole currency units.
var basePrices = map[string]int{
	models.DeliverableLandingPage: 150,
	models.DeliverableAdOneMin:    200,
	models.DeliverableBugFix:      100,
	models.DeliverableDesign:      250,
	models.DeliverableOther:       150,
}

// Deadline urgency multipliers: tighter deadlines cost more. Anything past
// 72 hours prices at base.
const (
	deadlineMult24 = 1.5
	deadlineMult48 = 1.25
	deadlineMult72 = 1.0
)

// fastPriorityMultiplier is the surcharge for fast-priority jobs.
const fastPriorityMultiplier = 1.2

// PriceEstimate is the full pricing breakdown for a job request. FastPrice is
// populated for normal-priority requests so the UI can show the upgrade cost.
type PriceEstimate struct {
	BasePrice          int     `json:"base_price"`
	DeadlineMultiplier float64 `json:"deadline_multiplier"`
	PriorityMultiplier float64 `json:"priority_multiplier"`
	EstimatedPrice     int     `json:"estimated_price"`
	FastPrice          *int    `json:"fast_price,omitempty"`
}

// CalculatePriceEstimate prices a deliverable from its type, the hours until
// deadline, and the priority. Deterministic, no stored state.
func CalculatePriceEstimate(deliverableType string, deadlineHours float64, priority string) PriceEstimate {
	base, ok := basePrices[deliverableType]
	if !ok {
		base = basePrices[models.DeliverableOther]
	}

	deadlineMult := deadlineMult72
	switch {
	case deadlineHours <= 24:
		deadlineMult = deadlineMult24
	case deadlineHours <= 48:
		deadlineMult = deadlineMult48
	}

	priorityMult := 1.0
	if priority == models.PriorityFast {
		priorityMult = fastPriorityMultiplier
	}

	est := PriceEstimate{
		BasePrice:          base,
		DeadlineMultiplier: deadlineMult,
		PriorityMultiplier: priorityMult,
		EstimatedPrice:     int(math.Round(float64(base) * deadlineMult * priorityMult)),
	}
	if priority != models.PriorityFast {
		fast := int(math.Round(float64(base) * deadlineMult * fastPriorityMultiplier))
		est.FastPrice = &fast
	}
	return est
}

// DeadlineLabel renders a deadline window for display.
func DeadlineLabel(hours float64) string {
	switch {
	case hours <= 24:
		return "24 hours"
	case hours <= 48:
		return "48 hours"
	case hours <= 72:
		return "72 hours"
	default:
		return fmt.Sprintf("%d days", int(math.Ceil(hours/24)))
	}
}
