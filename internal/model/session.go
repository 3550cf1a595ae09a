package model

import "time"

// AssessmentKind identifies an assessment type offered to users
type AssessmentKind string

const (
	KindKnowledgeNavigator AssessmentKind = "knowledge-navigator"
	KindChangeReadiness    AssessmentKind = "change-readiness"
)

// ValidKind returns true if the kind is one we serve
func ValidKind(k AssessmentKind) bool {
	return k == KindKnowledgeNavigator || k == KindChangeReadiness
}

// Step is the session state machine position
type Step string

const (
	StepIntro             Step = "intro"
	StepCollectingContext Step = "collecting-context"
	StepLoading           Step = "loading"
	StepInConversation    Step = "in-conversation"
	StepResults           Step = "results"
)

// TurnRole identifies who produced a turn
type TurnRole string

const (
	TurnAgent TurnRole = "agent"
	TurnUser  TurnRole = "user"
)

// Turn is one message in the assessment conversation. Insertion order is
// conversation order; turns are append-only.
type Turn struct {
	AskedBy    TurnRole  `json:"askedBy" bson:"asked_by"`
	Content    string    `json:"content" bson:"content"`
	QuestionID string    `json:"questionId,omitempty" bson:"question_id,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// AgentQuestion is the question payload the analysis service sends per turn
type AgentQuestion struct {
	QuestionID string `json:"questionId" bson:"question_id"`
	Question   string `json:"question" bson:"question"`
	Rationale  string `json:"rationale,omitempty" bson:"rationale,omitempty"`
	Section    string `json:"section,omitempty" bson:"section,omitempty"`
}

// AssessmentSession is one in-progress or completed assessment run. Only one
// session per (userId, kind) pair is live at a time.
type AssessmentSession struct {
	SessionID          string             `json:"sessionId" bson:"session_id"`
	UserID             string             `json:"userId" bson:"user_id"`
	Kind               AssessmentKind     `json:"assessmentKind" bson:"kind"`
	Step               Step               `json:"step" bson:"step"`
	Turns              []Turn             `json:"turns" bson:"turns"`
	ContextData        map[string]string  `json:"contextData" bson:"context_data"`
	PerDimensionScores map[string]float64 `json:"perDimensionScores" bson:"per_dimension_scores"`
	CurrentQuestion    *AgentQuestion     `json:"currentQuestion,omitempty" bson:"current_question,omitempty"`
	QuestionsAnswered  int                `json:"questionsAnswered" bson:"questions_answered"`
	IsComplete         bool               `json:"isComplete" bson:"is_complete"`
	Result             *NormalizedResult  `json:"normalizedResult,omitempty" bson:"normalized_result,omitempty"`
	StartedAt          time.Time          `json:"startedAt" bson:"started_at"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updated_at"`
}

// AppendTurn records a turn and bumps the update timestamp
func (s *AssessmentSession) AppendTurn(role TurnRole, content, questionID string) {
	s.Turns = append(s.Turns, Turn{
		AskedBy:    role,
		Content:    content,
		QuestionID: questionID,
		Timestamp:  time.Now(),
	})
	s.UpdatedAt = time.Now()
}

// MergeDimensionScores folds per-turn dimension scores into the session
func (s *AssessmentSession) MergeDimensionScores(scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	if s.PerDimensionScores == nil {
		s.PerDimensionScores = make(map[string]float64)
	}
	for dim, score := range scores {
		s.PerDimensionScores[dim] = score
	}
}
