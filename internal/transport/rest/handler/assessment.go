package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"readypath/internal/model"
	"readypath/internal/service"
	"readypath/internal/transport/rest/middleware"
)

// AssessmentHandler handles the assessment session endpoints
type AssessmentHandler struct {
	assessSvc *service.AssessmentService
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(assessSvc *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessSvc: assessSvc}
}

// StartRequest is the request body for starting an assessment
type StartRequest struct {
	Context map[string]string `json:"context"`
}

// Start handles POST /v1/assessments/{kind}/start
func (h *AssessmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	kind := model.AssessmentKind(mux.Vars(r)["kind"])

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.assessSvc.StartSession(r.Context(), userID, kind, req.Context)
	if err != nil {
		writeAssessmentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// AnswerRequest is the request body for submitting an answer
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// Answer handles POST /v1/assessments/{kind}/answer
func (h *AssessmentHandler) Answer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	kind := model.AssessmentKind(mux.Vars(r)["kind"])

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.assessSvc.SubmitAnswer(r.Context(), userID, kind, req.Answer)
	if err != nil {
		writeAssessmentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Retake handles POST /v1/assessments/{kind}/retake
func (h *AssessmentHandler) Retake(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	kind := model.AssessmentKind(mux.Vars(r)["kind"])

	if err := h.assessSvc.Retake(r.Context(), userID, kind); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"step": string(model.StepIntro)})
}

// Get handles GET /v1/assessments/{kind}
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	kind := model.AssessmentKind(mux.Vars(r)["kind"])

	session, err := h.assessSvc.GetSession(r.Context(), userID, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]string{"step": string(model.StepIntro)})
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Result handles GET /v1/assessments/{kind}/result
func (h *AssessmentHandler) Result(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	kind := model.AssessmentKind(mux.Vars(r)["kind"])

	result, err := h.assessSvc.GetNormalizedResult(r.Context(), userID, kind)
	if err != nil {
		writeAssessmentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeAssessmentError maps the error taxonomy onto HTTP statuses. Timeouts
// and remote errors are retryable; a lost session forces a restart.
func writeAssessmentError(w http.ResponseWriter, err error) {
	var timeoutErr *service.TimeoutError
	var remoteErr *service.RemoteServiceError

	switch {
	case errors.As(err, &timeoutErr):
		writeJSON(w, http.StatusGatewayTimeout, map[string]interface{}{
			"error":     "the analysis is taking longer than expected",
			"retryable": true,
		})
	case errors.As(err, &remoteErr):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":     "the analysis service returned an error, please try again",
			"retryable": true,
		})
	case errors.Is(err, service.ErrSessionLost):
		writeJSON(w, http.StatusGone, map[string]interface{}{
			"error":     "assessment session lost, please restart",
			"retryable": false,
		})
	case errors.Is(err, service.ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAssessmentComplete), errors.Is(err, service.ErrContextIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
