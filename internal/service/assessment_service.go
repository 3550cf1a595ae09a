package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"readypath/internal/cache"
	"readypath/internal/model"
	"readypath/internal/repository"
)

// requiredContextFields must be non-empty before the conversation can start
var requiredContextFields = []string{"organization", "role"}

// AssessmentService owns the per-process session table and orchestrates the
// multi-turn assessment flow: state machine transitions, the single remote
// call in flight per session, snapshot persistence, and action item
// synthesis on completion.
type AssessmentService struct {
	client      AnalysisAPI
	repo        repository.AssessmentRepo
	itemRepo    repository.ActionItemRepo
	cache       cache.SessionCache
	broadcaster Broadcaster

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry serializes access to one (user, kind) session
type sessionEntry struct {
	mu       sync.Mutex
	inFlight bool
	session  *model.AssessmentSession
}

// NewAssessmentService creates the orchestrating service
func NewAssessmentService(client AnalysisAPI, repo repository.AssessmentRepo, itemRepo repository.ActionItemRepo, sessionCache cache.SessionCache) *AssessmentService {
	return &AssessmentService{
		client:   client,
		repo:     repo,
		itemRepo: itemRepo,
		cache:    sessionCache,
		sessions: make(map[string]*sessionEntry),
	}
}

// SetBroadcaster injects the live-event sink (the WebSocket hub)
func (s *AssessmentService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func sessionKey(userID string, kind model.AssessmentKind) string {
	return userID + "|" + string(kind)
}

func (s *AssessmentService) entryFor(userID string, kind model.AssessmentKind) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(userID, kind)
	entry, ok := s.sessions[key]
	if !ok {
		entry = &sessionEntry{}
		s.sessions[key] = entry
	}
	return entry
}

// StartSession begins or resumes an assessment for the (user, kind) pair.
//
// An incomplete persisted session resumes with its step and turns intact.
// Otherwise mandatory context fields are validated, the session enters
// loading, and the remote start call is made; only its result gates the
// transition to in-conversation. Decorative progress runs concurrently over
// the broadcaster and gates nothing.
func (s *AssessmentService) StartSession(ctx context.Context, userID string, kind model.AssessmentKind, contextData map[string]string) (*model.AssessmentSession, error) {
	if !model.ValidKind(kind) {
		return nil, fmt.Errorf("unknown assessment kind %q", kind)
	}

	entry := s.entryFor(userID, kind)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session != nil && !entry.session.IsComplete && entry.session.SessionID != "" {
		return entry.session, nil
	}

	if resumed := s.loadSnapshot(ctx, userID, kind); resumed != nil && !resumed.IsComplete && resumed.SessionID != "" {
		log.Printf("[Assessment] Resuming session for user=%s kind=%s at step=%s (%d turns)",
			userID, kind, resumed.Step, len(resumed.Turns))
		entry.session = resumed
		return resumed, nil
	}

	if missing := missingContextFields(contextData); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrContextIncomplete, strings.Join(missing, ", "))
	}

	session := &model.AssessmentSession{
		UserID:             userID,
		Kind:               kind,
		Step:               model.StepLoading,
		Turns:              []model.Turn{},
		ContextData:        contextData,
		PerDimensionScores: map[string]float64{},
		StartedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	// Simulated progress for the loading screen; dropped if nobody listens
	done := make(chan struct{})
	go s.emitLoadingProgress(userID, kind, done)

	start, err := s.client.StartAssessment(ctx, kind, userID)
	close(done)
	if err != nil {
		return nil, err
	}

	session.SessionID = start.SessionID
	session.CurrentQuestion = &model.AgentQuestion{
		QuestionID: start.QuestionID,
		Question:   start.Question,
		Rationale:  start.Rationale,
		Section:    start.Section,
	}
	session.AppendTurn(model.TurnAgent, start.Question, start.QuestionID)
	session.Step = model.StepInConversation

	entry.session = session
	s.snapshot(ctx, session)
	s.broadcastTurn(userID, kind, &session.Turns[len(session.Turns)-1])

	log.Printf("[Assessment] Session started for user=%s kind=%s sessionId=%s", userID, kind, session.SessionID)
	return session, nil
}

// SubmitAnswer sends one answer to the analysis service and advances the
// session. Exactly one submission may be in flight per session; a failed or
// timed-out call leaves the turn list untouched so the caller can retry the
// same question.
func (s *AssessmentService) SubmitAnswer(ctx context.Context, userID string, kind model.AssessmentKind, answer string) (*model.AssessmentSession, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("answer must not be empty")
	}

	entry := s.entryFor(userID, kind)

	entry.mu.Lock()
	if entry.session == nil {
		if resumed := s.loadSnapshot(ctx, userID, kind); resumed != nil {
			entry.session = resumed
		}
	}
	session := entry.session
	if session == nil || session.SessionID == "" {
		entry.mu.Unlock()
		return nil, ErrSessionLost
	}
	if session.IsComplete || session.Step == model.StepResults {
		entry.mu.Unlock()
		return nil, ErrAssessmentComplete
	}
	if session.Step != model.StepInConversation {
		entry.mu.Unlock()
		return nil, fmt.Errorf("cannot submit an answer at step %s", session.Step)
	}
	if entry.inFlight {
		entry.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	entry.inFlight = true

	req := &RespondRequest{
		UserID:    userID,
		SessionID: session.SessionID,
		Answer:    answer,
	}
	if session.CurrentQuestion != nil {
		req.QuestionID = session.CurrentQuestion.QuestionID
	}
	entry.mu.Unlock()

	defer func() {
		entry.mu.Lock()
		entry.inFlight = false
		entry.mu.Unlock()
	}()

	// No session state is touched until the call succeeds
	result, err := s.client.SubmitAnswer(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// A retake may have discarded the session while the call was out
	if entry.session != session {
		return nil, ErrSessionLost
	}

	session.AppendTurn(model.TurnUser, answer, req.QuestionID)
	session.QuestionsAnswered++
	session.MergeDimensionScores(result.DimensionScores)

	if result.Completed {
		s.complete(ctx, session, result.Results)
	} else {
		session.CurrentQuestion = result.Question
		session.AppendTurn(model.TurnAgent, result.Question.Question, result.Question.QuestionID)
		s.broadcastTurn(userID, kind, &session.Turns[len(session.Turns)-1])
	}

	s.snapshot(ctx, session)
	return session, nil
}

// complete transitions the session to results, normalizes the payload, and
// synthesizes + persists action items
func (s *AssessmentService) complete(ctx context.Context, session *model.AssessmentSession, rawResults map[string]interface{}) {
	session.Result = Normalize(rawResults)
	session.IsComplete = true
	session.CurrentQuestion = nil
	session.Step = model.StepResults

	items := SynthesizeActionItems(session.Result, session.PerDimensionScores, session.SessionID, session.UserID, session.ContextData["projectId"])
	if len(items) > 0 {
		inserted, err := s.itemRepo.InsertNew(ctx, items)
		if err != nil {
			log.Printf("[Assessment] Warning: failed to persist action items for session %s: %v", session.SessionID, err)
		} else {
			log.Printf("[Assessment] Synthesized %d action items (%d new) for session %s", len(items), inserted, session.SessionID)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastComplete(session.UserID, session.Kind, session.Result.OverallScore)
	}
	log.Printf("[Assessment] Session %s complete: overall score %.1f", session.SessionID, session.Result.OverallScore)
}

// GetSession returns the live session, resuming from cache or mongo if this
// process has none. Returns nil when nothing exists.
func (s *AssessmentService) GetSession(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error) {
	entry := s.entryFor(userID, kind)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session != nil {
		return entry.session, nil
	}
	if resumed := s.loadSnapshot(ctx, userID, kind); resumed != nil {
		entry.session = resumed
		return resumed, nil
	}
	return nil, nil
}

// GetNormalizedResult returns the result of a completed session
func (s *AssessmentService) GetNormalizedResult(ctx context.Context, userID string, kind model.AssessmentKind) (*model.NormalizedResult, error) {
	session, err := s.GetSession(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionLost
	}
	if !session.IsComplete || session.Result == nil {
		return nil, fmt.Errorf("assessment is not complete yet")
	}
	return session.Result, nil
}

// GetActionItems returns every action item owned by the user
func (s *AssessmentService) GetActionItems(ctx context.Context, userID string) ([]*model.ActionItem, error) {
	return s.itemRepo.ListByUser(ctx, userID)
}

// Retake discards the live session so the user starts over from intro. The
// persisted snapshot is merge-reset too; without that a reload would resume
// the run the user just abandoned.
func (s *AssessmentService) Retake(ctx context.Context, userID string, kind model.AssessmentKind) error {
	entry := s.entryFor(userID, kind)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session = nil
	if err := s.cache.Delete(ctx, userID, kind); err != nil {
		log.Printf("[Assessment] Warning: failed to clear session cache for user=%s kind=%s: %v", userID, kind, err)
	}

	reset := &model.AssessmentSession{
		UserID:             userID,
		Kind:               kind,
		Step:               model.StepIntro,
		Turns:              []model.Turn{},
		ContextData:        map[string]string{},
		PerDimensionScores: map[string]float64{},
		StartedAt:          time.Now(),
	}
	if err := s.repo.UpsertSnapshot(ctx, reset); err != nil {
		log.Printf("[Assessment] Warning: failed to reset snapshot for user=%s kind=%s: %v", userID, kind, err)
	}
	return nil
}

// loadSnapshot restores a session from cache, falling back to mongo.
// Failures are logged and treated as "nothing persisted".
func (s *AssessmentService) loadSnapshot(ctx context.Context, userID string, kind model.AssessmentKind) *model.AssessmentSession {
	session, err := s.cache.Get(ctx, userID, kind)
	if err != nil {
		log.Printf("[Assessment] Warning: session cache read failed for user=%s kind=%s: %v", userID, kind, err)
	}
	if session != nil {
		return session
	}

	session, err = s.repo.GetByUserKind(ctx, userID, kind)
	if err != nil {
		log.Printf("[Assessment] Warning: snapshot read failed for user=%s kind=%s: %v", userID, kind, err)
		return nil
	}
	return session
}

// snapshot merge-writes the full session state. Persistence is best-effort:
// a failed write is logged and swallowed so the in-memory session continues.
func (s *AssessmentService) snapshot(ctx context.Context, session *model.AssessmentSession) {
	if err := s.cache.Set(ctx, session); err != nil {
		log.Printf("[Assessment] Warning: session cache write failed for user=%s kind=%s: %v", session.UserID, session.Kind, err)
	}
	if err := s.repo.UpsertSnapshot(ctx, session); err != nil {
		log.Printf("[Assessment] Warning: snapshot write failed for user=%s kind=%s: %v", session.UserID, session.Kind, err)
	}
}

// emitLoadingProgress ticks a simulated percentage for the loading screen
// until the real start call finishes. Purely decorative.
func (s *AssessmentService) emitLoadingProgress(userID string, kind model.AssessmentKind, done <-chan struct{}) {
	if s.broadcaster == nil {
		return
	}
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	percent := 0
	for {
		select {
		case <-done:
			s.broadcaster.BroadcastLoadingProgress(userID, kind, 100)
			return
		case <-ticker.C:
			if percent < 90 {
				percent += 15
			}
			s.broadcaster.BroadcastLoadingProgress(userID, kind, percent)
		}
	}
}

func (s *AssessmentService) broadcastTurn(userID string, kind model.AssessmentKind, turn *model.Turn) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTurn(userID, kind, turn)
	}
}

func missingContextFields(contextData map[string]string) []string {
	var missing []string
	for _, field := range requiredContextFields {
		if strings.TrimSpace(contextData[field]) == "" {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}
