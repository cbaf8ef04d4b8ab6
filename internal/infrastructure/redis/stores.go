package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/KudosClassroom/internal/models"
)

// SessionStore registers the jti of every refresh token that is still
// allowed to be exchanged.
type SessionStore struct {
	client RedisClient
}

func NewSessionStore(client RedisClient) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(jti string) string {
	return "refresh:" + jti
}

func (s *SessionStore) Register(ctx context.Context, jti string, id models.Identity, ttl time.Duration) error {
	value := fmt.Sprintf("%s:%d", id.Role(), id.UserID())
	if err := s.client.Set(ctx, sessionKey(jti), value, ttl); err != nil {
		slog.Error("failed to register refresh session", "jti", jti, "error", err)
		return fmt.Errorf("failed to register refresh session: %w", err)
	}
	return nil
}

// Active reports whether jti is registered for id.
func (s *SessionStore) Active(ctx context.Context, jti string, id models.Identity) (bool, error) {
	value, err := s.client.Get(ctx, sessionKey(jti))
	if stderrors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read refresh session: %w", err)
	}
	return value == fmt.Sprintf("%s:%d", id.Role(), id.UserID()), nil
}

// Revoke removes jti and reports whether it was still registered. Of two
// concurrent revocations of the same jti only one sees true.
func (s *SessionStore) Revoke(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Del(ctx, sessionKey(jti))
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh session: %w", err)
	}
	return n > 0, nil
}

// PrizeCache holds the JSON prize catalogue of each class.
type PrizeCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewPrizeCache(client RedisClient, ttl time.Duration) *PrizeCache {
	return &PrizeCache{client: client, ttl: ttl}
}

func prizeKey(classID int32) string {
	return fmt.Sprintf("class:%d:prizes", classID)
}

// Get returns the cached catalogue; ok is false on a miss. Cache errors are
// reported as misses.
func (c *PrizeCache) Get(ctx context.Context, classID int32) ([]models.Prize, bool) {
	raw, err := c.client.Get(ctx, prizeKey(classID))
	if err != nil {
		if !stderrors.Is(err, ErrKeyNotFound) {
			slog.Warn("prize cache read failed", "class_id", classID, "error", err)
		}
		return nil, false
	}
	var prizes []models.Prize
	if err := json.Unmarshal([]byte(raw), &prizes); err != nil {
		slog.Warn("dropping corrupt prize cache entry", "class_id", classID, "error", err)
		_, _ = c.client.Del(ctx, prizeKey(classID))
		return nil, false
	}
	return prizes, true
}

func (c *PrizeCache) Set(ctx context.Context, classID int32, prizes []models.Prize) {
	raw, err := json.Marshal(prizes)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, prizeKey(classID), raw, c.ttl); err != nil {
		slog.Warn("prize cache write failed", "class_id", classID, "error", err)
	}
}

func (c *PrizeCache) Invalidate(ctx context.Context, classID int32) {
	if _, err := c.client.Del(ctx, prizeKey(classID)); err != nil {
		slog.Warn("prize cache invalidation failed", "class_id", classID, "error", err)
	}
}
