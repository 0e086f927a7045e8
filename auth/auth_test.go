package auth

import (
	"strings"
	"testing"
	"time"

	"chat-gateway/errors"

	"github.com/stretchr/testify/require"
)

const testIssuer = "chat-gateway"

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "S3cretRoomKey!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_Corrupt_Hash(t *testing.T) {
	req := require.New(t)

	// Wrong section count
	_, err := ComparePassword("anything", "not-a-hash")
	req.Error(err)

	// Six sections but an unreadable parameter block
	_, err = ComparePassword("anything", "$argon2id$v=19$corrupt$c2FsdA$aGFzaA")
	req.Error(err)
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier([]byte("unit-test-secret"), testIssuer)

	token, err := verifier.GenerateToken("sub-1", "alice01", "Alice", time.Hour)
	req.NoError(err)

	identity, err := verifier.Verify(token)
	req.NoError(err)
	req.Equal("sub-1", identity.SubjectID)
	req.Equal("alice01", identity.UserID)
	req.Equal("Alice", identity.Nickname)
}

func TestTokenVerifier_Failures(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier([]byte("unit-test-secret"), testIssuer)
	other := NewTokenVerifier([]byte("another-secret"), testIssuer)

	// Given an expired token
	expired, err := verifier.GenerateToken("sub-1", "alice01", "Alice", -time.Minute)
	req.NoError(err)

	// Given a token signed with a different secret
	foreign, err := other.GenerateToken("sub-2", "bob02", "Bob", time.Hour)
	req.NoError(err)

	tests := []struct {
		name  string
		token string
	}{
		{"Missing token", ""},
		{"Malformed token", "not.a.jwt"},
		{"Expired token", expired},
		{"Wrong signature", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			req.ErrorIs(err, errors.ErrUnauthenticated)
		})
	}
}
