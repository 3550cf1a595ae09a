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

// ActionItemRepo persists synthesized action items
type ActionItemRepo interface {
	// InsertNew stores items whose (source, title) pair is not yet present
	// and returns how many were inserted. Re-running synthesis for an
	// already-processed session inserts nothing.
	InsertNew(ctx context.Context, items []*model.ActionItem) (int, error)

	ListByUser(ctx context.Context, userID string) ([]*model.ActionItem, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.ActionItem, error)
	UpdateStatus(ctx context.Context, id string, status model.ActionItemStatus) error
}

type actionItemRepo struct {
	items *mongo.Collection
}

// NewActionItemRepo creates the repository and ensures indexes
func NewActionItemRepo(db *mongo.Database) ActionItemRepo {
	repo := &actionItemRepo{
		items: db.Collection("action_items"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *actionItemRepo) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "source_assessment_id", Value: 1},
				{Key: "title", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "project_id", Value: 1}},
		},
	}
	_, err := r.items.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("Warning: failed to create indexes on %s: %v", r.items.Name(), err)
	}
}

func (r *actionItemRepo) InsertNew(ctx context.Context, items []*model.ActionItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	// Titles already stored for this source are skipped
	source := items[0].Source
	cursor, err := r.items.Find(ctx,
		bson.M{"source_assessment_id": source},
		options.Find().SetProjection(bson.M{"title": 1}),
	)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	existing := make(map[string]bool)
	for cursor.Next(ctx) {
		var doc struct {
			Title string `bson:"title"`
		}
		if err := cursor.Decode(&doc); err == nil {
			existing[doc.Title] = true
		}
	}

	var docs []interface{}
	inserted := 0
	for _, item := range items {
		if existing[item.Title] {
			continue
		}
		docs = append(docs, item)
		inserted++
	}
	if len(docs) == 0 {
		return 0, nil
	}

	_, err = r.items.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *actionItemRepo) ListByUser(ctx context.Context, userID string) ([]*model.ActionItem, error) {
	return r.list(ctx, bson.M{"user_id": userID})
}

func (r *actionItemRepo) ListByProject(ctx context.Context, projectID string) ([]*model.ActionItem, error) {
	return r.list(ctx, bson.M{"project_id": projectID})
}

func (r *actionItemRepo) list(ctx context.Context, filter bson.M) ([]*model.ActionItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.items.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []*model.ActionItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *actionItemRepo) UpdateStatus(ctx context.Context, id string, status model.ActionItemStatus) error {
	result, err := r.items.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
