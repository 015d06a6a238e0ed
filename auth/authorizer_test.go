package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

// fakeStore answers Get from a canned map; unknown keys report redis.Nil.
type fakeStore struct {
	entries map[string]string
	err     error
}

func (f *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	if data, ok := f.entries[key]; ok {
		return redis.NewStringResult(data, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		entries map[string]string
		roomID  string
		userID  string
		wantErr error
	}{
		{
			name: "authorized users list - member",
			entries: map[string]string{
				"call:room-1": `{"appointmentId":"apt-1","authorizedUsers":["client-1","lawyer-1"]}`,
			},
			roomID: "room-1",
			userID: "client-1",
		},
		{
			name: "authorized users list - non-member",
			entries: map[string]string{
				"call:room-1": `{"appointmentId":"apt-1","authorizedUsers":["client-1","lawyer-1"]}`,
			},
			roomID:  "room-1",
			userID:  "intruder",
			wantErr: ErrUnauthorized,
		},
		{
			name: "legacy pair - client side",
			entries: map[string]string{
				"call:room-2": `{"userId":"client-2","lawyerId":"lawyer-2"}`,
			},
			roomID: "room-2",
			userID: "client-2",
		},
		{
			name: "legacy pair - lawyer side",
			entries: map[string]string{
				"call:room-2": `{"userId":"client-2","lawyerId":"lawyer-2"}`,
			},
			roomID: "room-2",
			userID: "lawyer-2",
		},
		{
			name: "legacy pair - non-member",
			entries: map[string]string{
				"call:room-2": `{"userId":"client-2","lawyerId":"lawyer-2"}`,
			},
			roomID:  "room-2",
			userID:  "intruder",
			wantErr: ErrUnauthorized,
		},
		{
			name:    "missing entry denies",
			entries: map[string]string{},
			roomID:  "room-9",
			userID:  "client-1",
			wantErr: ErrUnauthorized,
		},
		{
			name: "corrupt entry denies",
			entries: map[string]string{
				"call:room-3": `{not json`,
			},
			roomID:  "room-3",
			userID:  "client-1",
			wantErr: ErrStoreUnavailable,
		},
		{
			name: "empty user never matches empty legacy fields",
			entries: map[string]string{
				"call:room-4": `{"appointmentId":"apt-4"}`,
			},
			roomID:  "room-4",
			userID:  "",
			wantErr: ErrUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAuthorizer(&fakeStore{entries: tc.entries})
			err := a.Authorize(ctx, tc.roomID, tc.userID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizer_StoreFailureDenies(t *testing.T) {
	a := NewAuthorizer(&fakeStore{err: errors.New("connection refused")})
	err := a.Authorize(context.Background(), "room-1", "client-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
