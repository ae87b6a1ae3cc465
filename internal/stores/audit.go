package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gloos/sessionguard/internal/audit"
)

var (
	ErrAuditNotFound    = errors.New("audit entry not found")
	ErrAuditUnavailable = errors.New("audit store unavailable")
)

// AuditStore persists audit entries in Redis: one JSON blob per entry plus a
// time-ordered zset index for range queries. Entries are append-only; the only
// permitted mutations are the review fields and the archived flag.
type AuditStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewAuditStore creates the store. Retention of zero keeps entries forever.
func NewAuditStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *AuditStore {
	if prefix == "" {
		prefix = "sga"
	}
	return &AuditStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *AuditStore) entryKey(id string) string {
	return s.prefix + ":e:" + id
}

func (s *AuditStore) indexKey() string {
	return s.prefix + ":t"
}

// Insert appends one entry. Fails loudly so the caller can engage its
// fallback sink; the entry is never silently lost here.
func (s *AuditStore) Insert(ctx context.Context, entry audit.Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: empty entry id", ErrAuditUnavailable)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.entryKey(entry.ID), data, s.retention)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(entry.Timestamp.UnixNano()),
		Member: entry.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	return nil
}

// Get loads one entry by ID.
func (s *AuditStore) Get(ctx context.Context, id string) (audit.Entry, error) {
	var entry audit.Entry

	data, err := s.redis.Get(ctx, s.entryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entry, ErrAuditNotFound
		}
		return entry, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	return entry, nil
}

// Query returns entries matching the filter in ascending timestamp order,
// applying offset/limit after field filtering. Index members whose entry has
// aged out are pruned as a side effect.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	min, max := "-inf", "+inf"
	if !filter.From.IsZero() {
		min = strconv.FormatInt(filter.From.UnixNano(), 10)
	}
	if !filter.To.IsZero() {
		max = strconv.FormatInt(filter.To.UnixNano(), 10)
	}

	ids, err := s.redis.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	var out []audit.Entry
	skipped := 0
	for _, id := range ids {
		entry, err := s.Get(ctx, id)
		if errors.Is(err, ErrAuditNotFound) {
			_ = s.redis.ZRem(ctx, s.indexKey(), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		if !matches(entry, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// UpdateReview sets the review fields and clears requires_review. Last write
// wins; the core fields stay untouched.
func (s *AuditStore) UpdateReview(ctx context.Context, id, reviewedBy, notes string, at time.Time) (audit.Entry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return entry, err
	}

	entry.ReviewedBy = reviewedBy
	entry.ReviewedAt = at.UTC()
	entry.ReviewNotes = notes
	entry.RequiresReview = false

	if err := s.save(ctx, entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// ArchiveBefore marks entries older than the cutoff as archived. Nothing is
// deleted; expiry is left to the retention TTL.
func (s *AuditStore) ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := strconv.FormatInt(cutoff.UnixNano(), 10)
	ids, err := s.redis.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	archived := 0
	for _, id := range ids {
		entry, err := s.Get(ctx, id)
		if errors.Is(err, ErrAuditNotFound) {
			_ = s.redis.ZRem(ctx, s.indexKey(), id).Err()
			continue
		}
		if err != nil {
			return archived, err
		}
		if entry.Archived {
			continue
		}
		entry.Archived = true
		if err := s.save(ctx, entry); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (s *AuditStore) save(ctx context.Context, entry audit.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	if err := s.redis.Set(ctx, s.entryKey(entry.ID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	return nil
}

func matches(e audit.Entry, f audit.Filter) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if f.RiskLevel != audit.RiskUnspecified && e.RiskLevel != f.RiskLevel {
		return false
	}
	if f.RequiresReview != nil && e.RequiresReview != *f.RequiresReview {
		return false
	}
	if !f.IncludeArchived && e.Archived {
		return false
	}
	return true
}
