package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"readypath/internal/repository"
	"readypath/internal/service"
	"readypath/internal/transport/rest/handler"
	"readypath/internal/transport/rest/middleware"
	"readypath/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService       *service.AuthService
	AssessmentService *service.AssessmentService
	ActionItemRepo    repository.ActionItemRepo
	WSHub             *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(c.AuthService)
	assessHandler := handler.NewAssessmentHandler(c.AssessmentService)
	itemHandler := handler.NewActionItemHandler(c.AssessmentService, c.ActionItemRepo)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(corsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/assessments/{kind}", wsHandler.AssessmentWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// User routes (require auth)
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)

	userRoutes.HandleFunc("/assessments/{kind}/start", assessHandler.Start).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/assessments/{kind}/answer", assessHandler.Answer).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/assessments/{kind}/retake", assessHandler.Retake).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/assessments/{kind}/result", assessHandler.Result).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/assessments/{kind}", assessHandler.Get).Methods("GET", "OPTIONS")

	userRoutes.HandleFunc("/action-items", itemHandler.List).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/action-items/{itemId}/status", itemHandler.UpdateStatus).Methods("PATCH", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
