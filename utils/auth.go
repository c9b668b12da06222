package utils

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims is the payload of the session cookie. It only references the
// server-side session; the user id and name are carried for display.
type SessionClaims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	Name      string `json:"name"`
	jwt.StandardClaims
}

// TokenSigner signs and verifies session tokens with an HMAC key.
type TokenSigner struct {
	key []byte
}

// NewTokenSigner returns a signer using secret as the HS256 key.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{key: []byte(secret)}
}

// Sign generates a session token that expires at expiresAt.
func (s *TokenSigner) Sign(sessionID, userID, name string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &SessionClaims{
		SessionID: sessionID,
		UserID:    userID,
		Name:      name,
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Parse verifies token and returns its claims.
func (s *TokenSigner) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.key, nil
	})
	if err != nil || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
