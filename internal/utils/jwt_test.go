// internal/utils/jwt_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	userID := uuid.New()
	token, err := GenerateJWT(userID, "seller7", "member", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "seller7", claims.Username)
	assert.Equal(t, "member", claims.UserType)
	assert.Equal(t, "closetloop", claims.Issuer)
}

func TestJWTRejectsTampering(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateJWT(uuid.New(), "seller7", "member", 1)
	require.NoError(t, err)

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	payload[0] ^= 1
	parts[1] = string(payload)

	_, err = ValidateJWT(strings.Join(parts, "."))
	assert.Error(t, err)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	SetJWTSecret("secret-a")
	token, err := GenerateJWT(uuid.New(), "seller7", "member", 1)
	require.NoError(t, err)

	SetJWTSecret("secret-b")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	userID := uuid.New()
	token, err := GenerateRefreshToken(userID, 24)
	require.NoError(t, err)

	subject, err := ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), subject)
}

func TestGenerateReferenceNumber(t *testing.T) {
	ref, err := GenerateReferenceNumber("PAY")
	require.NoError(t, err)

	parts := strings.Split(ref, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "PAY", parts[0])
	assert.Len(t, parts[1], 8)
	assert.Len(t, parts[2], 8)

	other, err := GenerateReferenceNumber("PAY")
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}
