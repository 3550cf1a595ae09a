package service

import (
	"fmt"
	"strconv"

	"readypath/internal/model"
)

// Normalize maps a raw analysis payload of unknown shape into the canonical
// NormalizedResult. It is a total, pure function: unknown or absent fields
// degrade to defaults, never errors. Every shape assumption about the
// analysis service's output lives here and nowhere else.
func Normalize(raw map[string]interface{}) *model.NormalizedResult {
	result := &model.NormalizedResult{
		ScoresByCategory: defaultCategoryScores(),
		Recommendations:  []model.Recommendation{},
		RoadmapPhases:    []model.RoadmapPhase{},
		NextSteps:        []model.NextStep{},
	}
	if raw == nil {
		return result
	}

	result.OverallScore = resolveOverallScore(raw)
	resolveCategoryScores(raw, result.ScoresByCategory)
	result.Recommendations = resolveRecommendations(raw)
	result.RoadmapPhases = resolveRoadmapPhases(raw)
	result.NextSteps = resolveNextSteps(raw)
	result.RawNarrative = resolveNarrative(raw)

	// Best-effort markdown extraction backfills only what the structured
	// pass left empty, so a regression there cannot break the primary path.
	if result.RawNarrative != "" && (len(result.Recommendations) == 0 || len(result.RoadmapPhases) == 0) {
		extracted := extractFromNarrative(result.RawNarrative)
		if len(result.Recommendations) == 0 {
			result.Recommendations = extracted.Recommendations
		}
		if len(result.RoadmapPhases) == 0 {
			result.RoadmapPhases = extracted.RoadmapPhases
		}
	}

	return result
}

// Field aliases observed across analysis service versions. New versions have
// renamed fields rather than changing structure, so resolution is
// first-alias-wins in a fixed order.
var (
	overallScoreKeys = []string{"overall_score", "overallScore", "overall_readiness_score", "readiness_score", "score"}
	breakdownKeys    = []string{"scoring_breakdown", "scoringBreakdown", "category_scores", "categoryScores", "scores"}

	recommendationKeys = []string{"recommendations", "business_recommendations", "businessRecommendations", "strategic_recommendations"}
	roadmapKeys        = []string{"roadmap", "roadmap_phases", "roadmapPhases", "implementation_roadmap", "portfolio_guidance", "learning_path"}
	flatRoadmapKeys    = []string{"risk_mitigation", "riskMitigation", "strategies", "risks"}
	nextStepKeys       = []string{"next_steps", "nextSteps", "action_items", "immediate_actions"}
	narrativeKeys      = []string{"narrative", "analysis", "detailed_analysis", "full_report", "raw_analysis", "markdown"}
)

// categoryAliases maps our fixed category set to the upstream field names
// that have carried each score
var categoryAliases = map[string][]string{
	"strategic":   {"leadership_readiness", "leadershipReadiness", "strategic_alignment", "strategic"},
	"technical":   {"technical_readiness", "technicalReadiness", "ai_knowledge", "technical"},
	"operational": {"operational_readiness", "operationalReadiness", "process_maturity", "operational"},
	"cultural":    {"cultural_readiness", "culturalReadiness", "change_readiness", "cultural"},
	"data":        {"data_readiness", "dataReadiness", "data_maturity", "data"},
}

func defaultCategoryScores() map[string]float64 {
	scores := make(map[string]float64, len(categoryAliases))
	for category := range categoryAliases {
		scores[category] = 0
	}
	return scores
}

// resolveOverallScore tries, in order: an explicit overall score field, the
// average of a scoring breakdown, and a visual-analytics readiness figure.
func resolveOverallScore(raw map[string]interface{}) float64 {
	for _, key := range overallScoreKeys {
		if v, ok := asFloat(raw[key]); ok {
			return scaleTo100(v)
		}
	}

	for _, key := range breakdownKeys {
		if breakdown, ok := raw[key].(map[string]interface{}); ok {
			var sum float64
			var count int
			for _, v := range breakdown {
				if f, ok := asFloat(v); ok {
					sum += f
					count++
				}
			}
			if count > 0 {
				return scaleTo100(sum / float64(count))
			}
		}
	}

	for _, key := range []string{"visual_analytics", "visualAnalytics"} {
		if va, ok := raw[key].(map[string]interface{}); ok {
			for _, scoreKey := range []string{"readiness_score", "readiness", "overall"} {
				if v, ok := asFloat(va[scoreKey]); ok {
					return scaleTo100(v)
				}
			}
		}
	}

	return 0
}

// scaleTo100 maps 5-point and 10-point scales onto 0-100. The upstream
// service has emitted all three over time.
func scaleTo100(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v <= 5:
		return v * 20
	case v <= 10:
		return v * 10
	case v > 100:
		return 100
	default:
		return v
	}
}

func resolveCategoryScores(raw map[string]interface{}, out map[string]float64) {
	// Aliases may appear at top level or inside any breakdown container
	sources := []map[string]interface{}{raw}
	for _, key := range breakdownKeys {
		if m, ok := raw[key].(map[string]interface{}); ok {
			sources = append(sources, m)
		}
	}

	for category, aliases := range categoryAliases {
		for _, src := range sources {
			found := false
			for _, alias := range aliases {
				if v, ok := asFloat(src[alias]); ok {
					out[category] = scaleTo100(v)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}
}

func resolveRecommendations(raw map[string]interface{}) []model.Recommendation {
	recs := []model.Recommendation{}
	for _, key := range recommendationKeys {
		items, ok := raw[key].([]interface{})
		if !ok || len(items) == 0 {
			continue
		}
		for i, item := range items {
			switch v := item.(type) {
			case map[string]interface{}:
				rec := model.Recommendation{
					Title:          firstString(v, "title", "name", "heading"),
					Description:    firstString(v, "description", "detail", "text", "body"),
					ExpectedImpact: firstString(v, "expected_impact", "expectedImpact", "impact"),
					TimelineText:   firstString(v, "timeline", "timeline_text", "timelineText", "timeframe"),
				}
				if rec.Title == "" {
					rec.Title = fmt.Sprintf("Strategic Recommendation %d", i+1)
				}
				if rec.ExpectedImpact == "" {
					rec.ExpectedImpact = defaultImpactText
				}
				if rec.TimelineText == "" {
					rec.TimelineText = defaultRecTimeline
				}
				recs = append(recs, rec)
			case string:
				// Flat string list: synthesize title and fixed defaults
				recs = append(recs, model.Recommendation{
					Title:          fmt.Sprintf("Strategic Recommendation %d", i+1),
					Description:    v,
					ExpectedImpact: defaultImpactText,
					TimelineText:   defaultRecTimeline,
				})
			}
		}
		if len(recs) > 0 {
			return recs
		}
	}
	return recs
}

const (
	defaultImpactText   = "Meaningful improvement expected"
	defaultRecTimeline  = "1-3 months"
	defaultStepTimeline = "2-4 weeks"
)

func resolveRoadmapPhases(raw map[string]interface{}) []model.RoadmapPhase {
	phases := []model.RoadmapPhase{}

	for _, key := range roadmapKeys {
		items, ok := raw[key].([]interface{})
		if !ok || len(items) == 0 {
			continue
		}
		for i, item := range items {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			phase := model.RoadmapPhase{
				Name:         firstString(entry, "name", "phase", "title"),
				Description:  firstString(entry, "description", "objective", "detail"),
				DurationText: firstString(entry, "duration", "duration_text", "durationText", "timeline"),
				Activities:   stringList(entry["activities"]),
			}
			if phase.Name == "" {
				phase.Name = fmt.Sprintf("Phase %d", i+1)
			}
			if phase.Activities == nil {
				phase.Activities = []string{}
			}
			phases = append(phases, phase)
		}
		if len(phases) > 0 {
			return phases
		}
	}

	// Only flat risk/strategy data: split into the fixed two-phase template
	for _, key := range flatRoadmapKeys {
		flat := stringList(raw[key])
		if len(flat) == 0 {
			continue
		}
		mid := (len(flat) + 1) / 2
		return []model.RoadmapPhase{
			{
				Name:         "Risk Mitigation",
				Description:  "Address the highest-risk gaps identified by the assessment",
				DurationText: "1-2 months",
				Activities:   flat[:mid],
			},
			{
				Name:         "Implementation",
				Description:  "Execute the remaining strategic initiatives",
				DurationText: "3-6 months",
				Activities:   flat[mid:],
			},
		}
	}

	return phases
}

func resolveNextSteps(raw map[string]interface{}) []model.NextStep {
	steps := []model.NextStep{}
	for _, key := range nextStepKeys {
		items, ok := raw[key].([]interface{})
		if !ok || len(items) == 0 {
			continue
		}
		for _, item := range items {
			step := model.NextStep{TimelineText: defaultStepTimeline}
			switch v := item.(type) {
			case map[string]interface{}:
				step.Title = firstString(v, "title", "name", "step")
				step.Description = firstString(v, "description", "detail", "text")
				if t := firstString(v, "timeline", "timeline_text", "timelineText"); t != "" {
					step.TimelineText = t
				}
			case string:
				step.Title = v
				step.Description = v
			default:
				continue
			}
			if step.Title == "" {
				continue
			}
			// The first two steps carry urgency; the rest are follow-ups
			if len(steps) < 2 {
				step.Priority = model.PriorityHigh
			} else {
				step.Priority = model.PriorityMedium
			}
			steps = append(steps, step)
		}
		if len(steps) > 0 {
			return steps
		}
	}
	return steps
}

func resolveNarrative(raw map[string]interface{}) string {
	for _, key := range narrativeKeys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		for _, key := range narrativeKeys {
			if s, ok := data[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// asFloat coerces the numeric shapes JSON decoding can produce
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
