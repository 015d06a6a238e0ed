package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims CallClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifier_ValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	tokenString := signToken(t, testSecret, CallClaims{
		UserID:        "client-1",
		AppointmentID: "apt-42",
		CallRoomID:    "room-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Verify(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.UserID)
	assert.Equal(t, "apt-42", claims.AppointmentID)
	assert.Equal(t, "room-42", claims.CallRoomID)
}

func TestVerifier_Failures(t *testing.T) {
	v := NewVerifier(testSecret)

	validClaims := CallClaims{
		UserID:     "client-1",
		CallRoomID: "room-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		token string
	}{
		{
			name:  "garbage string",
			token: "not-a-token",
		},
		{
			name:  "wrong secret",
			token: signToken(t, "other-secret", validClaims),
		},
		{
			name: "expired",
			token: signToken(t, testSecret, CallClaims{
				UserID:     "client-1",
				CallRoomID: "room-42",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				},
			}),
		},
		{
			name:  "none signing method",
			token: noneToken,
		},
		{
			name: "missing room claim",
			token: signToken(t, testSecret, CallClaims{
				UserID: "client-1",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}),
		},
		{
			name: "missing user claim",
			token: signToken(t, testSecret, CallClaims{
				CallRoomID: "room-42",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := v.Verify(tc.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
