// Package session tracks the active tokens of each principal in Redis so
// forced logout and multi-login accounting can find them later. Keys are
// `{prefix}:{principal-id}:{token}` with the token lifetime as TTL; the
// value carries no payload beyond existence.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records and invalidates active tokens per principal.
type Store struct {
	client *redis.Client
}

// NewStore constructs a Store on the shared Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Record inserts the token under the principal's namespace. Idempotent.
func (s *Store) Record(ctx context.Context, prefix string, principalID int64, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(prefix, principalID, token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("session: record: %w", err)
	}
	return nil
}

// Exists reports whether the token is still active for the principal.
func (s *Store) Exists(ctx context.Context, prefix string, principalID int64, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(prefix, principalID, token)).Result()
	if err != nil {
		return false, fmt.Errorf("session: exists: %w", err)
	}
	return n > 0, nil
}

// Delete removes a single token. Deleting an absent token is not an error.
func (s *Store) Delete(ctx context.Context, prefix string, principalID int64, token string) error {
	if err := s.client.Del(ctx, s.key(prefix, principalID, token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// CountActive returns the number of live tokens under the namespace.
func (s *Store) CountActive(ctx context.Context, prefix string, principalID int64) (int, error) {
	keys, err := s.scan(ctx, s.namespace(prefix, principalID))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// InvalidateAll deletes every token recorded for the principal, optionally
// keeping one (the caller's current token during "log out everywhere else").
// Best-effort with respect to concurrent Record calls: a token recorded
// after the scan begins may survive.
func (s *Store) InvalidateAll(ctx context.Context, prefix string, principalID int64, exceptToken string) (int, error) {
	keys, err := s.scan(ctx, s.namespace(prefix, principalID))
	if err != nil {
		return 0, err
	}
	keep := ""
	if exceptToken != "" {
		keep = s.key(prefix, principalID, exceptToken)
	}
	deleted := 0
	for _, key := range keys {
		if key == keep {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return deleted, fmt.Errorf("session: invalidate: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (s *Store) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session: scan: %w", err)
	}
	return keys, nil
}

func (s *Store) namespace(prefix string, principalID int64) string {
	return prefix + ":" + strconv.FormatInt(principalID, 10) + ":*"
}

func (s *Store) key(prefix string, principalID int64, token string) string {
	return prefix + ":" + strconv.FormatInt(principalID, 10) + ":" + token
}
