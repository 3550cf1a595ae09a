package model

// Priority for recommendations, next steps and action items
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is one strategic recommendation from the analysis
type Recommendation struct {
	Title          string `json:"title" bson:"title"`
	Description    string `json:"description" bson:"description"`
	ExpectedImpact string `json:"expectedImpact,omitempty" bson:"expected_impact,omitempty"`
	TimelineText   string `json:"timelineText,omitempty" bson:"timeline_text,omitempty"`
}

// RoadmapPhase is one phase of the implementation roadmap
type RoadmapPhase struct {
	Name         string   `json:"name" bson:"name"`
	Description  string   `json:"description" bson:"description"`
	DurationText string   `json:"durationText" bson:"duration_text"`
	Activities   []string `json:"activities" bson:"activities"`
}

// NextStep is an immediate action suggested by the analysis
type NextStep struct {
	Title        string   `json:"title" bson:"title"`
	Description  string   `json:"description" bson:"description"`
	TimelineText string   `json:"timelineText" bson:"timeline_text"`
	Priority     Priority `json:"priority" bson:"priority"`
}

// NormalizedResult is the canonical result shape the rest of the system
// depends on. Every field has a deterministic default so consumers never
// branch on missing data.
type NormalizedResult struct {
	OverallScore     float64            `json:"overallScore" bson:"overall_score"`
	ScoresByCategory map[string]float64 `json:"scoresByCategory" bson:"scores_by_category"`
	Recommendations  []Recommendation   `json:"recommendations" bson:"recommendations"`
	RoadmapPhases    []RoadmapPhase     `json:"roadmapPhases" bson:"roadmap_phases"`
	NextSteps        []NextStep         `json:"nextSteps" bson:"next_steps"`
	RawNarrative     string             `json:"rawNarrative,omitempty" bson:"raw_narrative,omitempty"`
}
