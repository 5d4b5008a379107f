package services

import "github.com/briefmatch/backend/internal/models"

// checklistTemplates holds the milestone items seeded when work starts on a
// job, per deliverable type. Items are observational and never gate
// transitions.
var checklistTemplates = map[string][]string{
	models.DeliverableLandingPage: {
		"Design mockup approved",
		"Development complete",
		"Testing and QA",
		"Deployment",
	},
	models.DeliverableAdOneMin: {
		"Script/storyboard approved",
		"Video production",
		"Editing and post-production",
		"Final review",
	},
	models.DeliverableBugFix: {
		"Issue identified",
		"Fix implemented",
		"Testing completed",
		"Code review",
	},
	models.DeliverableDesign: {
		"Initial concepts",
		"Client feedback incorporated",
		"Final design approved",
		"Assets delivered",
	},
	models.DeliverableOther: {
		"Requirements confirmed",
		"Work in progress",
		"Quality check",
		"Final delivery",
	},
}

// ChecklistTemplate returns the milestone items for a deliverable type,
// falling back to the generic template.
func ChecklistTemplate(deliverableType string) []string {
	if items, ok := checklistTemplates[deliverableType]; ok {
		return items
	}
	return checklistTemplates[models.DeliverableOther]
}
