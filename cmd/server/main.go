package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"readypath/internal/cache"
	"readypath/internal/config"
	"readypath/internal/repository"
	"readypath/internal/service"
	"readypath/internal/transport/rest"
	"readypath/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()
	analysisCfg := config.DefaultAnalysisConfig()
	log.Printf("Analysis service: %s (short=%s, long=%s)",
		analysisCfg.BaseURL, analysisCfg.ShortTimeout, analysisCfg.LongTimeout)

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Repositories and caches
	assessmentRepo := repository.NewAssessmentRepo(db)
	actionItemRepo := repository.NewActionItemRepo(db)
	sessionCache := cache.NewSessionCache(rdb)

	// Services
	authSvc := service.NewAuthService(cfg.JWTSecret)
	analysisClient := service.NewAnalysisClient(analysisCfg)
	assessSvc := service.NewAssessmentService(analysisClient, assessmentRepo, actionItemRepo, sessionCache)
	assessSvc.SetBroadcaster(wsHub)

	container := &rest.Container{
		AuthService:       authSvc,
		AssessmentService: assessSvc,
		ActionItemRepo:    actionItemRepo,
		WSHub:             wsHub,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST /v1/assessments/{kind}/start")
		log.Println("  POST /v1/assessments/{kind}/answer")
		log.Println("  POST /v1/assessments/{kind}/retake")
		log.Println("  GET  /v1/assessments/{kind}")
		log.Println("  GET  /v1/assessments/{kind}/result")
		log.Println("  GET  /v1/action-items")
		log.Println("  PATCH /v1/action-items/{itemId}/status")
		log.Println("  WS   /v1/ws/assessments/{kind}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
