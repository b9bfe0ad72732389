package story

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/redis/go-redis/v9"
)

// Journal is the per-session saved list. It lives only as long as the
// session.
type Journal interface {
	Prepend(ctx context.Context, sessionID string, s types.SavedStory) error
	List(ctx context.Context, sessionID string) ([]types.SavedStory, error)
	Drop(ctx context.Context, sessionID string) error
}

// InmemJournal keeps saved stories in process memory.
type InmemJournal struct {
	mu      sync.RWMutex
	stories map[string][]types.SavedStory
}

func NewInmemJournal() *InmemJournal {
	return &InmemJournal{stories: map[string][]types.SavedStory{}}
}

func (j *InmemJournal) Prepend(_ context.Context, sessionID string, s types.SavedStory) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stories[sessionID] = append([]types.SavedStory{s}, j.stories[sessionID]...)
	return nil
}

func (j *InmemJournal) List(_ context.Context, sessionID string) ([]types.SavedStory, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]types.SavedStory{}, j.stories[sessionID]...), nil
}

func (j *InmemJournal) Drop(_ context.Context, sessionID string) error {
	j.mu.Lock()
	delete(j.stories, sessionID)
	j.mu.Unlock()
	return nil
}

// RedisJournal keeps each session's list under one key that expires with
// the session.
type RedisJournal struct {
	redis  *redis.Client
	ttl    time.Duration
	Logger *logx.Logger
}

func NewRedisJournal(client *redis.Client, ttl time.Duration) *RedisJournal {
	return &RedisJournal{redis: client, ttl: ttl, Logger: logx.GetLogger()}
}

func (j *RedisJournal) key(sessionID string) string {
	return "diary:saved:" + sessionID
}

func (j *RedisJournal) Prepend(ctx context.Context, sessionID string, s types.SavedStory) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	key := j.key(sessionID)
	pipe := j.redis.TxPipeline()
	pipe.LPush(ctx, key, b)
	if j.ttl > 0 {
		pipe.Expire(ctx, key, j.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save story: %w", err)
	}
	return nil
}

func (j *RedisJournal) List(ctx context.Context, sessionID string) ([]types.SavedStory, error) {
	vals, err := j.redis.LRange(ctx, j.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return decodeSaved(ctx, j.Logger, sessionID, vals), nil
}

// decodeSaved 跳过无法解析的条目，每条都记一次告警。
func decodeSaved(ctx context.Context, logger *logx.Logger, sessionID string, vals []string) []types.SavedStory {
	out := make([]types.SavedStory, 0, len(vals))
	for i, v := range vals {
		var s types.SavedStory
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			logger.Warn(ctx, "已保存故事解析失败，跳过",
				logx.KV("session_id", sessionID),
				logx.KV("index", i),
				logx.KV("error", err))
			continue
		}
		out = append(out, s)
	}
	return out
}

func (j *RedisJournal) Drop(ctx context.Context, sessionID string) error {
	return j.redis.Del(ctx, j.key(sessionID)).Err()
}
