package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readypath/internal/model"
)

// fakeAnalysis lets each test script the remote service
type fakeAnalysis struct {
	startFn  func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error)
	submitFn func(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error)
}

func (f *fakeAnalysis) StartAssessment(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
	if f.startFn != nil {
		return f.startFn(ctx, kind, userID)
	}
	return &StartResponse{SessionID: "remote-1", QuestionID: "q-1", Question: "first question"}, nil
}

func (f *fakeAnalysis) SubmitAnswer(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, kind, req)
	}
	return &RespondResult{Question: &model.AgentQuestion{QuestionID: "q-next", Question: "next question"}}, nil
}

type fakeRepo struct {
	mu        sync.Mutex
	snapshots map[string]*model.AssessmentSession
	upsertErr error
	writes    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{snapshots: make(map[string]*model.AssessmentSession)}
}

func (r *fakeRepo) UpsertSnapshot(ctx context.Context, session *model.AssessmentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	clone := *session
	r.snapshots[session.UserID+"|"+string(session.Kind)] = &clone
	return nil
}

func (r *fakeRepo) GetByUserKind(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.snapshots[userID+"|"+string(kind)]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

type fakeItemRepo struct {
	mu       sync.Mutex
	items    []*model.ActionItem
	existing map[string]bool
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{existing: make(map[string]bool)}
}

func (r *fakeItemRepo) InsertNew(ctx context.Context, items []*model.ActionItem) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, item := range items {
		key := item.Source + "|" + item.Title
		if r.existing[key] {
			continue
		}
		r.existing[key] = true
		r.items = append(r.items, item)
		inserted++
	}
	return inserted, nil
}

func (r *fakeItemRepo) ListByUser(ctx context.Context, userID string) ([]*model.ActionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ActionItem
	for _, item := range r.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) ListByProject(ctx context.Context, projectID string) ([]*model.ActionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ActionItem
	for _, item := range r.items {
		if item.ProjectID == projectID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) UpdateStatus(ctx context.Context, id string, status model.ActionItemStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			item.Status = status
			return nil
		}
	}
	return errors.New("not found")
}

type fakeCache struct {
	mu       sync.Mutex
	sessions map[string]*model.AssessmentSession
	setErr   error
}

func newFakeCache() *fakeCache {
	return &fakeCache{sessions: make(map[string]*model.AssessmentSession)}
}

func (c *fakeCache) Set(ctx context.Context, session *model.AssessmentSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	clone := *session
	c.sessions[session.UserID+"|"+string(session.Kind)] = &clone
	return nil
}

func (c *fakeCache) Get(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[userID+"|"+string(kind)]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

func (c *fakeCache) Delete(ctx context.Context, userID string, kind model.AssessmentKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, userID+"|"+string(kind))
	return nil
}

func validContext() map[string]string {
	return map[string]string{"organization": "Acme", "role": "CTO"}
}

func newTestService(client AnalysisAPI) (*AssessmentService, *fakeRepo, *fakeItemRepo, *fakeCache) {
	repo := newFakeRepo()
	itemRepo := newFakeItemRepo()
	sessionCache := newFakeCache()
	svc := NewAssessmentService(client, repo, itemRepo, sessionCache)
	return svc, repo, itemRepo, sessionCache
}

func TestStartSessionTransitionsToConversation(t *testing.T) {
	svc, repo, _, _ := newTestService(&fakeAnalysis{})

	session, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)

	assert.Equal(t, model.StepInConversation, session.Step)
	assert.Equal(t, "remote-1", session.SessionID)
	require.NotNil(t, session.CurrentQuestion)
	assert.Equal(t, "q-1", session.CurrentQuestion.QuestionID)
	require.Len(t, session.Turns, 1)
	assert.Equal(t, model.TurnAgent, session.Turns[0].AskedBy)
	assert.Equal(t, "first question", session.Turns[0].Content)

	snap, err := repo.GetByUserKind(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "remote-1", snap.SessionID)
}

func TestStartSessionRejectsMissingContext(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{
		startFn: func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
			t.Fatal("remote start must not be called with incomplete context")
			return nil, nil
		},
	})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, map[string]string{"organization": "Acme"})
	require.ErrorIs(t, err, ErrContextIncomplete)
	assert.Contains(t, err.Error(), "role")

	_, err = svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, nil)
	require.ErrorIs(t, err, ErrContextIncomplete)
}

func TestStartSessionRejectsUnknownKind(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{})
	_, err := svc.StartSession(context.Background(), "u1", model.AssessmentKind("made-up"), validContext())
	assert.Error(t, err)
}

func TestStartSessionRemoteFailureLeavesNoSession(t *testing.T) {
	svc, repo, _, _ := newTestService(&fakeAnalysis{
		startFn: func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
			return nil, &RemoteServiceError{Status: 503, Body: "down"}
		},
	})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	var remoteErr *RemoteServiceError
	require.ErrorAs(t, err, &remoteErr)

	session, err := svc.GetSession(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, 0, repo.writes)
}

func TestStartSessionReturnsExistingLiveSession(t *testing.T) {
	calls := 0
	svc, _, _, _ := newTestService(&fakeAnalysis{
		startFn: func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
			calls++
			return &StartResponse{SessionID: "remote-1", QuestionID: "q-1", Question: "first question"}, nil
		},
	})

	first, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	second, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestStartSessionResumesFromSnapshot(t *testing.T) {
	svc, repo, _, _ := newTestService(&fakeAnalysis{
		startFn: func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
			t.Fatal("resume must not start a new remote session")
			return nil, nil
		},
	})

	persisted := &model.AssessmentSession{
		SessionID: "remote-old",
		UserID:    "u1",
		Kind:      model.KindChangeReadiness,
		Step:      model.StepInConversation,
		Turns: []model.Turn{
			{AskedBy: model.TurnAgent, Content: "q one", QuestionID: "q-1"},
			{AskedBy: model.TurnUser, Content: "a one", QuestionID: "q-1"},
		},
		CurrentQuestion:   &model.AgentQuestion{QuestionID: "q-2", Question: "q two"},
		QuestionsAnswered: 1,
	}
	require.NoError(t, repo.UpsertSnapshot(context.Background(), persisted))

	session, err := svc.StartSession(context.Background(), "u1", model.KindChangeReadiness, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote-old", session.SessionID)
	assert.Equal(t, model.StepInConversation, session.Step)
	assert.Len(t, session.Turns, 2)
	assert.Equal(t, 1, session.QuestionsAnswered)
}

func TestSubmitAnswerAdvancesConversation(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)

	session, err := svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "my answer")
	require.NoError(t, err)

	require.Len(t, session.Turns, 3)
	assert.Equal(t, model.TurnUser, session.Turns[1].AskedBy)
	assert.Equal(t, "my answer", session.Turns[1].Content)
	assert.Equal(t, model.TurnAgent, session.Turns[2].AskedBy)
	assert.Equal(t, "q-next", session.CurrentQuestion.QuestionID)
	assert.Equal(t, 1, session.QuestionsAnswered)
}

func TestSubmitAnswerFailureLeavesTurnsUntouched(t *testing.T) {
	fail := true
	svc, _, _, _ := newTestService(&fakeAnalysis{
		submitFn: func(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error) {
			if fail {
				return nil, &TimeoutError{Op: "/respond", Budget: time.Second}
			}
			return &RespondResult{Question: &model.AgentQuestion{QuestionID: "q-2", Question: "second"}}, nil
		},
	})

	started, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	questionBefore := started.CurrentQuestion.QuestionID

	_, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "answer")
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	session, err := svc.GetSession(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	assert.Len(t, session.Turns, 1)
	assert.Equal(t, questionBefore, session.CurrentQuestion.QuestionID)
	assert.Equal(t, 0, session.QuestionsAnswered)

	// The same question can be answered again after the failure
	fail = false
	session, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "answer")
	require.NoError(t, err)
	assert.Len(t, session.Turns, 3)
	assert.Equal(t, 1, session.QuestionsAnswered)
}

func TestSubmitAnswerInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var enteredOnce sync.Once
	svc, _, _, _ := newTestService(&fakeAnalysis{
		submitFn: func(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error) {
			enteredOnce.Do(func() { close(entered) })
			<-release
			return &RespondResult{Question: &model.AgentQuestion{QuestionID: "q-2", Question: "second"}}, nil
		},
	})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "slow answer")
		firstDone <- err
	}()

	<-entered
	_, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "second answer")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-firstDone)

	// Guard clears once the call finishes
	_, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "third answer")
	assert.NoError(t, err)
}

func TestSubmitAnswerWithoutSession(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{})
	_, err := svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "answer")
	assert.ErrorIs(t, err, ErrSessionLost)
}

func TestSubmitAnswerRejectsEmptyAnswer(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{})
	_, err := svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "   ")
	assert.Error(t, err)
}

func TestCompletionPopulatesResultAndActionItems(t *testing.T) {
	svc, repo, itemRepo, _ := newTestService(&fakeAnalysis{
		submitFn: func(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error) {
			return &RespondResult{
				Completed: true,
				Results: map[string]interface{}{
					"overall_score":   75.0,
					"recommendations": []interface{}{"Invest in training"},
				},
				DimensionScores: map[string]float64{"governance": 1.5},
			}, nil
		},
	})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)

	session, err := svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "final answer")
	require.NoError(t, err)

	assert.True(t, session.IsComplete)
	assert.Equal(t, model.StepResults, session.Step)
	assert.Nil(t, session.CurrentQuestion)
	require.NotNil(t, session.Result)
	assert.InDelta(t, 75.0, session.Result.OverallScore, 0.01)

	items, err := itemRepo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, items)

	result, err := svc.GetNormalizedResult(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, result.OverallScore, 0.01)

	snap, err := repo.GetByUserKind(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	assert.True(t, snap.IsComplete)

	// A completed session accepts no further answers
	_, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "extra")
	assert.ErrorIs(t, err, ErrAssessmentComplete)
}

func TestGetNormalizedResultBeforeCompletion(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{})

	_, err := svc.GetNormalizedResult(context.Background(), "u1", model.KindKnowledgeNavigator)
	assert.ErrorIs(t, err, ErrSessionLost)

	_, err = svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	_, err = svc.GetNormalizedResult(context.Background(), "u1", model.KindKnowledgeNavigator)
	assert.Error(t, err)
}

func TestRetakeResetsAllState(t *testing.T) {
	starts := 0
	svc, repo, _, sessionCache := newTestService(&fakeAnalysis{
		startFn: func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
			starts++
			return &StartResponse{SessionID: "remote-1", QuestionID: "q-1", Question: "hello"}, nil
		},
	})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)

	cached, err := sessionCache.Get(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	require.NotNil(t, cached)

	require.NoError(t, svc.Retake(context.Background(), "u1", model.KindKnowledgeNavigator))

	cached, err = sessionCache.Get(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	assert.Nil(t, cached)

	// The persisted snapshot is reset, not resumed
	snap, err := repo.GetByUserKind(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, model.StepIntro, snap.Step)
	assert.Empty(t, snap.SessionID)
	assert.Empty(t, snap.Turns)

	session, err := svc.GetSession(context.Background(), "u1", model.KindKnowledgeNavigator)
	require.NoError(t, err)
	assert.Equal(t, model.StepIntro, session.Step)

	// Starting again opens a brand-new remote session
	started, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	assert.Equal(t, model.StepInConversation, started.Step)
	assert.Equal(t, 2, starts)
}

func TestSnapshotFailuresAreSwallowed(t *testing.T) {
	svc, repo, _, sessionCache := newTestService(&fakeAnalysis{})
	repo.upsertErr = errors.New("mongo down")
	sessionCache.setErr = errors.New("redis down")

	session, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	assert.Equal(t, model.StepInConversation, session.Step)

	session, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "answer")
	require.NoError(t, err)
	assert.Len(t, session.Turns, 3)
}

func TestSessionsAreIndependentAcrossKinds(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAnalysis{
		startFn: func(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
			return &StartResponse{SessionID: "remote-" + string(kind), QuestionID: "q-1", Question: "hello"}, nil
		},
	})

	nav, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	change, err := svc.StartSession(context.Background(), "u1", model.KindChangeReadiness, validContext())
	require.NoError(t, err)

	assert.NotEqual(t, nav.SessionID, change.SessionID)

	_, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "answer")
	require.NoError(t, err)

	change, err = svc.GetSession(context.Background(), "u1", model.KindChangeReadiness)
	require.NoError(t, err)
	assert.Len(t, change.Turns, 1)
}

func TestDimensionScoresAccumulateAcrossTurns(t *testing.T) {
	turn := 0
	svc, _, _, _ := newTestService(&fakeAnalysis{
		submitFn: func(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error) {
			turn++
			if turn == 1 {
				return &RespondResult{
					Question:        &model.AgentQuestion{QuestionID: "q-2", Question: "second"},
					DimensionScores: map[string]float64{"governance": 2.0},
				}, nil
			}
			return &RespondResult{
				Question:        &model.AgentQuestion{QuestionID: "q-3", Question: "third"},
				DimensionScores: map[string]float64{"governance": 3.0, "tooling": 4.0},
			}, nil
		},
	})

	_, err := svc.StartSession(context.Background(), "u1", model.KindKnowledgeNavigator, validContext())
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "one")
	require.NoError(t, err)
	session, err := svc.SubmitAnswer(context.Background(), "u1", model.KindKnowledgeNavigator, "two")
	require.NoError(t, err)

	assert.InDelta(t, 3.0, session.PerDimensionScores["governance"], 0.01)
	assert.InDelta(t, 4.0, session.PerDimensionScores["tooling"], 0.01)
}
