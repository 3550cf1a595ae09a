package repository

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"readypath/internal/model"
)

// AssessmentRepo persists session snapshots keyed by (userId, kind)
type AssessmentRepo interface {
	// UpsertSnapshot merge-writes the full session state. Merging rather
	// than replacing means a partial snapshot cannot destroy prior fields.
	UpsertSnapshot(ctx context.Context, session *model.AssessmentSession) error

	// GetByUserKind returns nil when no snapshot exists
	GetByUserKind(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error)
}

type assessmentRepo struct {
	sessions *mongo.Collection
}

// NewAssessmentRepo creates the repository and ensures indexes
func NewAssessmentRepo(db *mongo.Database) AssessmentRepo {
	repo := &assessmentRepo{
		sessions: db.Collection("assessment_sessions"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *assessmentRepo) ensureIndexes(ctx context.Context) {
	keys := bson.D{
		{Key: "user_id", Value: 1},
		{Key: "kind", Value: 1},
	}
	opts := options.Index().SetUnique(true)
	_, err := r.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	if err != nil {
		log.Printf("Warning: failed to create index on %s: %v", r.sessions.Name(), err)
	}
}

func (r *assessmentRepo) UpsertSnapshot(ctx context.Context, session *model.AssessmentSession) error {
	session.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"session_id":           session.SessionID,
			"step":                 session.Step,
			"turns":                session.Turns,
			"context_data":         session.ContextData,
			"per_dimension_scores": session.PerDimensionScores,
			"current_question":     session.CurrentQuestion,
			"questions_answered":   session.QuestionsAnswered,
			"is_complete":          session.IsComplete,
			"normalized_result":    session.Result,
			"updated_at":           session.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"user_id":    session.UserID,
			"kind":       session.Kind,
			"started_at": session.StartedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.sessions.UpdateOne(ctx,
		bson.M{"user_id": session.UserID, "kind": session.Kind},
		update,
		opts,
	)
	return err
}

func (r *assessmentRepo) GetByUserKind(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error) {
	var session model.AssessmentSession
	err := r.sessions.FindOne(ctx, bson.M{"user_id": userID, "kind": kind}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
