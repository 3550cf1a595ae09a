package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"readypath/internal/config"
	"readypath/internal/model"
)

// AnalysisAPI is the boundary with the remote analysis service
type AnalysisAPI interface {
	StartAssessment(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error)
	SubmitAnswer(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error)
}

// AnalysisClient makes timed HTTP calls to the analysis service.
//
// Short calls (start/administrative) and long calls (answer submission, which
// may trigger multi-step agent reasoning upstream) run under different
// budgets. The client never retries: replaying a stateful multi-turn call
// without idempotency keys risks duplicate turns.
type AnalysisClient struct {
	baseURL      string
	httpClient   *http.Client
	shortTimeout time.Duration
	longTimeout  time.Duration
}

// NewAnalysisClient creates a client for the analysis service
func NewAnalysisClient(cfg *config.AnalysisConfig) *AnalysisClient {
	return &AnalysisClient{
		baseURL: cfg.BaseURL,
		// Per-call budgets are enforced via context, not a client-wide timeout
		httpClient:   &http.Client{},
		shortTimeout: cfg.ShortTimeout,
		longTimeout:  cfg.LongTimeout,
	}
}

// StartRequest opens a new assessment session upstream
type StartRequest struct {
	UserID string `json:"userId"`
}

// StartResponse carries the issued session token and first question
type StartResponse struct {
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Rationale  string `json:"rationale"`
	Section    string `json:"section"`
}

// RespondRequest submits one answer within a session
type RespondRequest struct {
	UserID     string `json:"userId"`
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// RespondResult is the outcome of one answer submission: either the next
// question, or a completion signal with the raw results payload.
type RespondResult struct {
	Completed       bool
	Question        *model.AgentQuestion
	Results         map[string]interface{}
	DimensionScores map[string]float64
}

// StartAssessment opens a session (short budget)
func (c *AnalysisClient) StartAssessment(ctx context.Context, kind model.AssessmentKind, userID string) (*StartResponse, error) {
	path := fmt.Sprintf("/assessments/%s/start", kind)
	respBody, err := c.do(ctx, c.shortTimeout, path, &StartRequest{UserID: userID})
	if err != nil {
		return nil, err
	}

	var start StartResponse
	if err := json.Unmarshal(respBody, &start); err != nil {
		return nil, fmt.Errorf("failed to parse start response: %w", err)
	}
	if start.SessionID == "" {
		return nil, fmt.Errorf("analysis service returned no sessionId")
	}
	return &start, nil
}

// SubmitAnswer submits one answer (long budget)
func (c *AnalysisClient) SubmitAnswer(ctx context.Context, kind model.AssessmentKind, req *RespondRequest) (*RespondResult, error) {
	path := fmt.Sprintf("/assessments/%s/respond", kind)
	respBody, err := c.do(ctx, c.longTimeout, path, req)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse respond payload: %w", err)
	}

	result := &RespondResult{DimensionScores: dimensionScores(raw)}
	if completionFlag(raw) {
		result.Completed = true
		result.Results = resultsPayload(raw)
		return result, nil
	}

	var next model.AgentQuestion
	if err := json.Unmarshal(respBody, &next); err != nil || next.Question == "" {
		return nil, fmt.Errorf("respond payload has neither a question nor a completion flag")
	}
	result.Question = &next
	return result, nil
}

// do posts a JSON body under the given budget and returns the response body.
// Timeouts surface as *TimeoutError, non-2xx as *RemoteServiceError.
func (c *AnalysisClient) do(ctx context.Context, budget time.Duration, path string, body interface{}) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.baseURL + path
	log.Printf("[Analysis Client] POST %s", path)

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			log.Printf("[Analysis Client] TIMEOUT: %s exceeded %s", path, budget)
			return nil, &TimeoutError{Op: path, Budget: budget}
		}
		return nil, fmt.Errorf("analysis service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Op: path, Budget: budget}
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[Analysis Client] ERROR: %s returned %d", path, resp.StatusCode)
		return nil, &RemoteServiceError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// completionFlagKeys lists every place the upstream service has signaled
// completion across versions. The list is known to be non-exhaustive.
var completionFlagKeys = []string{"completed", "is_complete", "isComplete"}

func completionFlag(raw map[string]interface{}) bool {
	for _, key := range completionFlagKeys {
		if truthy(raw[key]) {
			return true
		}
	}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		for _, key := range completionFlagKeys {
			if truthy(data[key]) {
				return true
			}
		}
	}
	return false
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// resultsPayload locates the raw results blob within a completion response
func resultsPayload(raw map[string]interface{}) map[string]interface{} {
	if results, ok := raw["results"].(map[string]interface{}); ok {
		return results
	}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		if results, ok := data["results"].(map[string]interface{}); ok {
			return results
		}
		return data
	}
	return raw
}

// dimensionScores pulls per-turn dimension scores when the service sends them
func dimensionScores(raw map[string]interface{}) map[string]float64 {
	for _, key := range []string{"dimension_scores", "dimensionScores"} {
		if m, ok := raw[key].(map[string]interface{}); ok {
			scores := make(map[string]float64, len(m))
			for dim, v := range m {
				if f, ok := asFloat(v); ok {
					scores[dim] = f
				}
			}
			return scores
		}
	}
	return nil
}
