package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readypath/internal/config"
	"readypath/internal/model"
)

func testClient(baseURL string, short, long time.Duration) *AnalysisClient {
	return NewAnalysisClient(&config.AnalysisConfig{
		BaseURL:      baseURL,
		ShortTimeout: short,
		LongTimeout:  long,
	})
}

func TestStartAssessment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assessments/knowledge-navigator/start", r.URL.Path)
		w.Write([]byte(`{"sessionId":"s-1","questionId":"q-1","question":"What is your role?","section":"context"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, time.Second)
	start, err := client.StartAssessment(context.Background(), model.KindKnowledgeNavigator, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", start.SessionID)
	assert.Equal(t, "q-1", start.QuestionID)
	assert.Equal(t, "What is your role?", start.Question)
}

func TestStartAssessmentMissingSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"question":"hello"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, time.Second)
	_, err := client.StartAssessment(context.Background(), model.KindKnowledgeNavigator, "u1")
	assert.Error(t, err)
}

func TestSubmitAnswerNextQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"questionId":"q-2","question":"Tell me more","rationale":"digging deeper"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, time.Second)
	result, err := client.SubmitAnswer(context.Background(), model.KindChangeReadiness, &RespondRequest{
		UserID: "u1", SessionID: "s-1", QuestionID: "q-1", Answer: "my answer",
	})
	require.NoError(t, err)
	assert.False(t, result.Completed)
	require.NotNil(t, result.Question)
	assert.Equal(t, "q-2", result.Question.QuestionID)
}

func TestSubmitAnswerCompletionFlagLocations(t *testing.T) {
	payloads := []string{
		`{"completed":true,"results":{"overall_score":70}}`,
		`{"is_complete":true,"results":{"overall_score":70}}`,
		`{"isComplete":true,"results":{"overall_score":70}}`,
		`{"data":{"completed":true,"results":{"overall_score":70}}}`,
		`{"data":{"is_complete":true,"overall_score":70}}`,
		`{"data":{"isComplete":true,"overall_score":70}}`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(payload))
			}))
			defer srv.Close()

			client := testClient(srv.URL, time.Second, time.Second)
			result, err := client.SubmitAnswer(context.Background(), model.KindChangeReadiness, &RespondRequest{
				UserID: "u1", SessionID: "s-1", Answer: "done",
			})
			require.NoError(t, err)
			assert.True(t, result.Completed)
			require.NotNil(t, result.Results)
			assert.InDelta(t, 70.0, Normalize(result.Results).OverallScore, 0.01)
		})
	}
}

func TestSubmitAnswerNeitherQuestionNorCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, time.Second)
	_, err := client.SubmitAnswer(context.Background(), model.KindChangeReadiness, &RespondRequest{
		UserID: "u1", SessionID: "s-1", Answer: "x",
	})
	assert.Error(t, err)
}

func TestLongCallTimeoutRaisesTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"questionId":"q","question":"late"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, 50*time.Millisecond)
	_, err := client.SubmitAnswer(context.Background(), model.KindChangeReadiness, &RespondRequest{
		UserID: "u1", SessionID: "s-1", Answer: "x",
	})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Budget)
}

func TestNon2xxRaisesRemoteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, time.Second)
	_, err := client.StartAssessment(context.Background(), model.KindKnowledgeNavigator, "u1")

	var remoteErr *RemoteServiceError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusServiceUnavailable, remoteErr.Status)
	assert.Contains(t, remoteErr.Body, "overloaded")

	// A remote error is not a timeout
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
}

func TestSubmitAnswerDimensionScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"questionId":"q-2","question":"next","dimension_scores":{"governance":2.5,"tooling":4}}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Second, time.Second)
	result, err := client.SubmitAnswer(context.Background(), model.KindChangeReadiness, &RespondRequest{
		UserID: "u1", SessionID: "s-1", Answer: "x",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, result.DimensionScores["governance"], 0.01)
	assert.InDelta(t, 4.0, result.DimensionScores["tooling"], 0.01)
}
