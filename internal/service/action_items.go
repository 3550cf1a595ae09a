package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"readypath/internal/model"
)

// Fixed effort baselines per item origin. The analysis service produces no
// hour data, so these anchor the estimates recorded in item metadata.
const (
	hoursLearningHigh   = 20
	hoursLearningMedium = 12
	hoursImplementation = 16
	hoursLeadership     = 8
	hoursRecommendation = 10
	hoursNextStep       = 6
)

const (
	maxRecommendationItems = 3
	maxNextStepItems       = 5
)

// SynthesizeActionItems derives a prioritized task list from a normalized
// result and the session's accumulated dimension scores (5-point scale).
// Output is deterministic for a given input and deduplicated by
// (source, title), so re-running synthesis for a session is idempotent.
func SynthesizeActionItems(result *model.NormalizedResult, dimensionScores map[string]float64, source, userID, projectID string) []*model.ActionItem {
	var items []*model.ActionItem

	dims := make([]string, 0, len(dimensionScores))
	for dim := range dimensionScores {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	for _, dim := range dims {
		score := dimensionScores[dim]
		item := bandItem(dim, score)
		item.Metadata = map[string]interface{}{
			"origin":    "dimension",
			"dimension": dim,
			"score":     score,
		}
		items = append(items, item)
	}

	if result != nil {
		for i, rec := range result.Recommendations {
			if i >= maxRecommendationItems {
				break
			}
			priority := model.PriorityMedium
			if i == 0 {
				priority = model.PriorityHigh
			}
			items = append(items, &model.ActionItem{
				Title:          rec.Title,
				Description:    rec.Description,
				Category:       model.CategoryImplementation,
				Priority:       priority,
				EstimatedHours: hoursRecommendation,
				Metadata: map[string]interface{}{
					"origin": "recommendation",
					"index":  i,
				},
			})
		}

		for i, step := range result.NextSteps {
			if i >= maxNextStepItems {
				break
			}
			items = append(items, &model.ActionItem{
				Title:          step.Title,
				Description:    step.Description,
				Category:       model.CategoryProcess,
				Priority:       step.Priority,
				EstimatedHours: hoursNextStep,
				Metadata: map[string]interface{}{
					"origin": "next_step",
					"index":  i,
				},
			})
		}
	}

	now := time.Now()
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		key := source + "|" + item.Title
		if item.Title == "" || seen[key] {
			continue
		}
		seen[key] = true

		item.ID = uuid.New().String()
		item.UserID = userID
		item.ProjectID = projectID
		item.Source = source
		item.Status = model.StatusPending
		item.CreatedAt = now
		item.UpdatedAt = now
		out = append(out, item)
	}
	return out
}

// bandItem maps one scored dimension onto a task via score bands.
// Boundaries are inclusive on the lower edge: exactly 2.0 is "develop
// skills", exactly 4.0 is leadership.
func bandItem(dim string, score float64) *model.ActionItem {
	name := humanizeDimension(dim)
	switch {
	case score < 2.0:
		return &model.ActionItem{
			Title:          fmt.Sprintf("Build foundational knowledge in %s", name),
			Description:    fmt.Sprintf("Your %s score indicates a need for foundational learning before applying it in practice.", name),
			Category:       model.CategoryLearning,
			Priority:       model.PriorityHigh,
			EstimatedHours: hoursLearningHigh,
		}
	case score < 3.0:
		return &model.ActionItem{
			Title:          fmt.Sprintf("Develop skills in %s", name),
			Description:    fmt.Sprintf("Strengthen your working knowledge of %s through structured practice.", name),
			Category:       model.CategoryLearning,
			Priority:       model.PriorityMedium,
			EstimatedHours: hoursLearningMedium,
		}
	case score < 4.0:
		return &model.ActionItem{
			Title:          fmt.Sprintf("Apply %s in practice", name),
			Description:    fmt.Sprintf("Put your %s knowledge to work on a real initiative.", name),
			Category:       model.CategoryImplementation,
			Priority:       model.PriorityMedium,
			EstimatedHours: hoursImplementation,
		}
	default:
		return &model.ActionItem{
			Title:          fmt.Sprintf("Lead %s initiatives", name),
			Description:    fmt.Sprintf("Your %s score qualifies you to mentor others and lead adoption.", name),
			Category:       model.CategoryLeadership,
			Priority:       model.PriorityLow,
			EstimatedHours: hoursLeadership,
		}
	}
}

func humanizeDimension(dim string) string {
	return strings.ReplaceAll(strings.ReplaceAll(dim, "_", " "), "-", " ")
}
