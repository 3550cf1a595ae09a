package model

import "time"

// ActionItemCategory classifies what kind of work an item represents
type ActionItemCategory string

const (
	CategoryLearning       ActionItemCategory = "learning"
	CategoryImplementation ActionItemCategory = "implementation"
	CategoryLeadership     ActionItemCategory = "leadership"
	CategoryOrganizational ActionItemCategory = "organizational"
	CategoryProcess        ActionItemCategory = "process"
)

// ActionItemStatus tracks item lifecycle
type ActionItemStatus string

const (
	StatusPending    ActionItemStatus = "pending"
	StatusInProgress ActionItemStatus = "in_progress"
	StatusCompleted  ActionItemStatus = "completed"
	StatusBlocked    ActionItemStatus = "blocked"
)

// ValidStatus returns true for a known status value
func ValidStatus(s ActionItemStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// ActionItem is a task synthesized from a completed assessment. Items are
// owned by the user/project and outlive the session that produced them.
type ActionItem struct {
	ID             string                 `json:"id" bson:"_id"`
	UserID         string                 `json:"userId" bson:"user_id"`
	ProjectID      string                 `json:"projectId,omitempty" bson:"project_id,omitempty"`
	Title          string                 `json:"title" bson:"title"`
	Description    string                 `json:"description" bson:"description"`
	Category       ActionItemCategory     `json:"category" bson:"category"`
	Priority       Priority               `json:"priority" bson:"priority"`
	Status         ActionItemStatus       `json:"status" bson:"status"`
	Source         string                 `json:"source" bson:"source_assessment_id"`
	EstimatedHours int                    `json:"estimatedHours" bson:"estimated_hours"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time              `json:"updatedAt" bson:"updated_at"`
}
