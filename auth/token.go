package auth

import (
	"fmt"
	"time"

	"chat-gateway/domain/chat"
	"chat-gateway/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
// Subject carries the durable user id; UserID the login name shown in logs.
type CustomClaims struct {
	UserID   string `json:"id"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens against a shared HMAC secret.
// Signature comparison is constant-time inside the jwt library.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: secret, issuer: issuer}
}

// GenerateToken creates a signed JWT for a specific user.
func (v *TokenVerifier) GenerateToken(subjectID, userID, nickname string,
	tokenDuration time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID:   userID,
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates the signature and expiration of a JWT string
// and derives the session identity from its claims. Any failure collapses
// into ErrUnauthenticated so callers never branch on parser internals.
func (v *TokenVerifier) Verify(tokenString string) (chat.Identity, error) {
	if tokenString == "" {
		return chat.Identity{}, errors.ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %s", errors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return chat.Identity{}, errors.ErrUnauthenticated
	}

	return chat.Identity{
		SubjectID: claims.Subject,
		UserID:    claims.UserID,
		Nickname:  claims.Nickname,
	}, nil
}
