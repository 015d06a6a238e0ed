package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature, bad
// signing method, expiry, malformed claims. Callers must treat it as
// deny-and-close.
var ErrInvalidToken = errors.New("invalid token")

// CallClaims is the payload of a call access token issued by the booking
// workflow when an appointment's video session is created.
type CallClaims struct {
	UserID        string `json:"userId"`
	AppointmentID string `json:"appointmentId"`
	CallRoomID    string `json:"callRoomId"`
	jwt.RegisteredClaims
}

// Verifier validates signed call tokens. Stateless given the shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string, returning the call claims.
// Any failure is reported as ErrInvalidToken (wrapped with the cause).
func (v *Verifier) Verify(tokenString string) (*CallClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CallClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CallClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.CallRoomID == "" {
		return nil, fmt.Errorf("%w: missing userId or callRoomId claim", ErrInvalidToken)
	}
	return claims, nil
}
