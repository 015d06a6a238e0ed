package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

var (
	// ErrUnauthorized means the identity is valid but not permitted in the
	// room (or the room has no cache entry at all — fail closed).
	ErrUnauthorized = errors.New("unauthorized access")

	// ErrStoreUnavailable wraps cache connectivity failures. Callers must
	// treat it exactly like ErrUnauthorized toward the client.
	ErrStoreUnavailable = errors.New("authorization store unavailable")
)

func callKey(roomID string) string {
	return fmt.Sprintf("call:%s", roomID)
}

// cacheEntry accepts both historical payload shapes written by the booking
// workflow: the current explicit authorizedUsers list, and the legacy
// {userId, lawyerId} pair. Supporting both is intentional compatibility.
type cacheEntry struct {
	AppointmentID   string   `json:"appointmentId"`
	AuthorizedUsers []string `json:"authorizedUsers"`
	UserID          string   `json:"userId"`
	LawyerID        string   `json:"lawyerId"`
}

func (e *cacheEntry) permits(userID string) bool {
	for _, id := range e.AuthorizedUsers {
		if id == userID {
			return true
		}
	}
	if len(e.AuthorizedUsers) == 0 {
		return userID != "" && (userID == e.UserID || userID == e.LawyerID)
	}
	return false
}

// stringGetter is the slice of the redis client the authorizer needs.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Authorizer answers whether a verified user may join a call room, from the
// shared cache seeded by the booking workflow. The cache is read-only here.
type Authorizer struct {
	store stringGetter
}

func NewAuthorizer(store stringGetter) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize returns nil when userID may join roomID, ErrUnauthorized when it
// may not, and ErrStoreUnavailable on cache connectivity failure.
func (a *Authorizer) Authorize(ctx context.Context, roomID, userID string) error {
	data, err := a.store.Get(ctx, callKey(roomID)).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return fmt.Errorf("%w: corrupt cache entry for %s: %v", ErrStoreUnavailable, roomID, err)
	}

	if !entry.permits(userID) {
		return ErrUnauthorized
	}
	return nil
}
