package services

import (
	"strings"

	"github.com/briefmatch/backend/internal/models"
)

// Scoring weights. The four signals always sum to at most 1.0.
const (
	weightSkills       = 0.4
	weightCompletion   = 0.3
	weightResponse     = 0.2
	// Availability contributes its weight directly: 0.1 when the freelancer
	// holds no other active match, half that otherwise. A soft penalty, so
	// busy top talent can still be offered.
	availabilityFree = 0.1
	availabilityBusy = 0.05
)

// Neutral priors for freelancers with no history, so newcomers are not
// starved of offers.
const (
	neutralSkillsScore      = 0.5
	newFreelancerCompletion = 0.8
	newFreelancerAvgHours   = 2.0
)

// requiredSkillsByDeliverable maps a deliverable type to the skill set the
// scoring function checks against. "other" deliberately maps to none.
var requiredSkillsByDeliverable = map[string][]string{
	models.DeliverableLandingPage: {"web development", "html", "css", "javascript", "react", "next.js"},
	models.DeliverableAdOneMin:    {"video editing", "animation", "motion graphics", "adobe premiere", "after effects"},
	models.DeliverableBugFix:      {"debugging", "programming", "code review", "testing"},
	models.DeliverableDesign:      {"ui design", "ux design", "figma", "adobe xd", "graphic design"},
	models.DeliverableOther:       {},
}

// RequiredSkills returns the skill set a deliverable type is scored against.
func RequiredSkills(deliverableType string) []string {
	return requiredSkillsByDeliverable[deliverableType]
}

// FreelancerSignals carries the historical aggregates the scoring function
// needs for one candidate. The aggregates are independent reads and may be
// loaded concurrently across candidates.
type FreelancerSignals struct {
	// CompletionRate is the fraction of the freelancer's reviewed jobs with
	// met_criteria = true. HasReviews is false when no history exists.
	CompletionRate float64
	HasReviews     bool

	// AvgResponseHours is the mean time from offer creation to acceptance.
	// HasAccepts is false when the freelancer has never accepted an offer.
	AvgResponseHours float64
	HasAccepts       bool

	// ActiveMatches counts the freelancer's current accepted/auto_assigned
	// matches on other jobs.
	ActiveMatches int
}

// Score computes the 0-1 match score for a (job, freelancer) pair. Pure and
// deterministic: identical inputs always produce the identical float.
func Score(job *models.Job, freelancer *models.User, sig FreelancerSignals) float64 {
	skills := skillsMatch(RequiredSkills(job.DeliverableType), freelancer.Skills)

	completion := newFreelancerCompletion
	if sig.HasReviews {
		completion = sig.CompletionRate
	}

	avgHours := newFreelancerAvgHours
	if sig.HasAccepts {
		avgHours = sig.AvgResponseHours
	}
	// Linear decay from a perfect score at 0h to zero at >= 24h.
	response := (24 - avgHours) / 24
	if response < 0 {
		response = 0
	}

	availability := availabilityBusy
	if sig.ActiveMatches == 0 {
		availability = availabilityFree
	}

	return skills*weightSkills + completion*weightCompletion + response*weightResponse + availability
}

// skillsMatch returns the fraction of required skills present in the
// freelancer's skill list, using case-insensitive substring containment in
// either direction. No required skills yields the neutral score; no
// freelancer skills yields zero.
func skillsMatch(required, offered []string) float64 {
	if len(offered) == 0 {
		return 0
	}
	if len(required) == 0 {
		return neutralSkillsScore
	}
	matched := 0
	for _, req := range required {
		r := strings.ToLower(req)
		for _, off := range offered {
			o := strings.ToLower(off)
			if strings.Contains(o, r) || strings.Contains(r, o) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(required))
}
