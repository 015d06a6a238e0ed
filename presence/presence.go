// Package presence tracks which users are currently in a call room, shared
// across all relay instances. The set is a hint with bounded staleness (TTL
// plus explicit remove-on-close), not a strict oracle: it only answers the
// existing-participants snapshot at join time.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

func roomKey(roomID string) string {
	return fmt.Sprintf("room:%s:participants", roomID)
}

// setStore is the slice of the redis client the store needs.
type setStore interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Store is the TTL'd per-room membership set. All writes are idempotent
// set operations, so concurrent writers across processes need no
// coordination.
type Store struct {
	client setStore
	ttl    time.Duration
}

func NewStore(client setStore, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Add records userID as present in roomID and refreshes the room's TTL.
func (s *Store) Add(ctx context.Context, roomID, userID string) error {
	key := roomKey(roomID)
	if err := s.client.SAdd(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("failed to add presence for %s: %w", userID, err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// Remove drops userID from roomID's set. Removing an absent member is a
// no-op, which keeps every removal path idempotent.
func (s *Store) Remove(ctx context.Context, roomID, userID string) error {
	return s.client.SRem(ctx, roomKey(roomID), userID).Err()
}

// Members returns the current membership snapshot for roomID.
func (s *Store) Members(ctx context.Context, roomID string) ([]string, error) {
	return s.client.SMembers(ctx, roomKey(roomID)).Result()
}
