package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"readypath/internal/model"
)

// SessionCache fronts the mongo snapshot store for fast session resume
type SessionCache interface {
	Set(ctx context.Context, session *model.AssessmentSession) error
	// Get returns nil when no cached session exists
	Get(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error)
	Delete(ctx context.Context, userID string, kind model.AssessmentKind) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a redis-backed session cache
func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    30 * time.Minute,
	}
}

func cacheKey(userID string, kind model.AssessmentKind) string {
	return "assessment:" + userID + ":" + string(kind)
}

func (c *sessionCache) Set(ctx context.Context, session *model.AssessmentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(session.UserID, session.Kind), data, c.ttl).Err()
}

func (c *sessionCache) Get(ctx context.Context, userID string, kind model.AssessmentKind) (*model.AssessmentSession, error) {
	data, err := c.client.Get(ctx, cacheKey(userID, kind)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.AssessmentSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *sessionCache) Delete(ctx context.Context, userID string, kind model.AssessmentKind) error {
	return c.client.Del(ctx, cacheKey(userID, kind)).Err()
}
