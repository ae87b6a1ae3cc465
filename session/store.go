package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when the session key does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when the stored session blob is invalid.
var ErrSessionCorrupt = errors.New("session corrupt")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is the Redis-backed session registry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store with the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sg"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(tenantID, sessionID string) string {
	return s.prefix + ":" + normalizeTenantID(tenantID) + ":" + sessionID
}

func (s *Store) userKey(tenantID, userID string) string {
	return s.prefix + "u:" + normalizeTenantID(tenantID) + ":" + userID
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}

// Save persists the session and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.SessionID == "" {
		return ErrSessionCorrupt
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(sess.TenantID, sess.SessionID), data, ttl)
	pipe.SAdd(ctx, s.userKey(sess.TenantID, sess.UserID), sess.SessionID)
	if ttl > 0 {
		pipe.Expire(ctx, s.userKey(sess.TenantID, sess.UserID), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads one session.
func (s *Store) Get(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return &sess, nil
}

// Delete removes a session and its index entry. Idempotent.
func (s *Store) Delete(ctx context.Context, tenantID, userID, sessionID string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key(tenantID, sessionID))
	pipe.SRem(ctx, s.userKey(tenantID, userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session indexed for the user.
func (s *Store) DeleteAllForUser(ctx context.Context, tenantID, userID string) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(tenantID, userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	pipe := s.redis.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.key(tenantID, id))
	}
	pipe.Del(ctx, s.userKey(tenantID, userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionIDs returns the live session IDs for a user, pruning index
// entries whose session key has already expired.
func (s *Store) ActiveSessionIDs(ctx context.Context, tenantID, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(tenantID, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	live := make([]string, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		exists, err := s.redis.Exists(ctx, s.key(tenantID, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if exists == 1 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.userKey(tenantID, userID), stale...).Err()
	}

	return live, nil
}

// ActiveSessionCount returns the number of live sessions for a user.
func (s *Store) ActiveSessionCount(ctx context.Context, tenantID, userID string) (int, error) {
	ids, err := s.ActiveSessionIDs(ctx, tenantID, userID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Sessions loads every live session for a user.
func (s *Store) Sessions(ctx context.Context, tenantID, userID string) ([]*Session, error) {
	ids, err := s.ActiveSessionIDs(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, tenantID, id)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// TerminateOldest deletes the user's oldest sessions until at most keep
// remain, returning the terminated session IDs oldest-first.
func (s *Store) TerminateOldest(ctx context.Context, tenantID, userID string, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}

	sessions, err := s.Sessions(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) <= keep {
		return nil, nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt < sessions[j].CreatedAt
	})

	var terminated []string
	for _, sess := range sessions[:len(sessions)-keep] {
		if err := s.Delete(ctx, tenantID, userID, sess.SessionID); err != nil {
			return terminated, err
		}
		terminated = append(terminated, sess.SessionID)
	}
	return terminated, nil
}

// RecordReauth stamps the session's last successful re-authentication time,
// preserving the key's remaining TTL.
func (s *Store) RecordReauth(ctx context.Context, tenantID, sessionID string, at time.Time) error {
	sess, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}

	sess.LastReauthAt = at.Unix()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	if err := s.redis.Set(ctx, s.key(tenantID, sessionID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping verifies the backing Redis is reachable.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
