package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"

	"readypath/internal/model"
	"readypath/internal/repository"
	"readypath/internal/service"
	"readypath/internal/transport/rest/middleware"
)

// ActionItemHandler handles action item endpoints
type ActionItemHandler struct {
	assessSvc *service.AssessmentService
	itemRepo  repository.ActionItemRepo
}

// NewActionItemHandler creates a new action item handler
func NewActionItemHandler(assessSvc *service.AssessmentService, itemRepo repository.ActionItemRepo) *ActionItemHandler {
	return &ActionItemHandler{assessSvc: assessSvc, itemRepo: itemRepo}
}

// List handles GET /v1/action-items?projectId=...
func (h *ActionItemHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if projectID := r.URL.Query().Get("projectId"); projectID != "" {
		items, err := h.itemRepo.ListByProject(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	items, err := h.assessSvc.GetActionItems(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// StatusRequest is the request body for a status transition
type StatusRequest struct {
	Status model.ActionItemStatus `json:"status"`
}

// UpdateStatus handles PATCH /v1/action-items/{itemId}/status
func (h *ActionItemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := h.itemRepo.UpdateStatus(r.Context(), itemID, req.Status); err != nil {
		if err == mongo.ErrNoDocuments {
			writeError(w, http.StatusNotFound, "action item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
