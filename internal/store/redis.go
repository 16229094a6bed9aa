package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"swapit/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "swapit"

// RedisStore persists sessions as JSON strings:
//
//	<prefix>:session:<id>                 session record
//	<prefix>:session:<id>:player:<pid>    player round state
//	<prefix>:session:<id>:players         set of player ids
//	<prefix>:sessions                     set of session ids
//
// The client is owned by the caller.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps rdb. ttl <= 0 disables expiry.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) sessionKey(id string) string {
	return r.prefix + ":session:" + id
}

func (r *RedisStore) playerKey(id, playerID string) string {
	return r.sessionKey(id) + ":player:" + playerID
}

func (r *RedisStore) playersKey(id string) string {
	return r.sessionKey(id) + ":players"
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":sessions"
}

func (r *RedisStore) expiry() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	return r.ttl
}

func (r *RedisStore) GetSession(ctx context.Context, id string) (*domain.GameSession, error) {
	raw, err := r.rdb.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s domain.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) PutSession(ctx context.Context, s *domain.GameSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(s.ID), raw, r.expiry())
		pipe.SAdd(ctx, r.indexKey(), s.ID)
		return nil
	})
	return err
}

func (r *RedisStore) DeleteSession(ctx context.Context, id string) error {
	ids, err := r.rdb.SMembers(ctx, r.playersKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := []string{r.sessionKey(id), r.playersKey(id)}
	for _, pid := range ids {
		keys = append(keys, r.playerKey(id, pid))
	}

	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, r.indexKey(), id)
		return nil
	})
	return err
}

// ListSessions returns live sessions ordered by creation time. Ids whose
// record has expired are pruned from the index.
func (r *RedisStore) ListSessions(ctx context.Context) ([]*domain.GameSession, error) {
	ids, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var (
		out   []*domain.GameSession
		stale []interface{}
	)
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var s domain.GameSession
		if err := json.Unmarshal([]byte(str), &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if len(stale) > 0 {
		_ = r.rdb.SRem(ctx, r.indexKey(), stale...).Err()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RedisStore) GetMember(ctx context.Context, sessionID, playerID string) (*domain.PlayerRoundState, error) {
	raw, err := r.rdb.Get(ctx, r.playerKey(sessionID, playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st domain.PlayerRoundState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PutMember writes only the player's own key (plus the set membership,
// which is idempotent), so concurrent players never overwrite each other.
func (r *RedisStore) PutMember(ctx context.Context, sessionID string, st *domain.PlayerRoundState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.playerKey(sessionID, st.PlayerID), raw, r.expiry())
		pipe.SAdd(ctx, r.playersKey(sessionID), st.PlayerID)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.playersKey(sessionID), r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisStore) DeleteMember(ctx context.Context, sessionID, playerID string) error {
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.playerKey(sessionID, playerID))
		pipe.SRem(ctx, r.playersKey(sessionID), playerID)
		return nil
	})
	return err
}

func (r *RedisStore) ListMembers(ctx context.Context, sessionID string) ([]domain.PlayerRoundState, error) {
	ids, err := r.rdb.SMembers(ctx, r.playersKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, pid := range ids {
		keys[i] = r.playerKey(sessionID, pid)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.PlayerRoundState, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var st domain.PlayerRoundState
		if err := json.Unmarshal([]byte(str), &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
