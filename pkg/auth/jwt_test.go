package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken("dealer-desk", 3600)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dealer-desk", claims.Operator)
	assert.Equal(t, "listingpilot", claims.Issuer)
}

func TestParseToken_Rejections(t *testing.T) {
	InitJWT("test-secret")

	expired, err := GenerateToken("dealer-desk", -60)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	InitJWT("other-secret")
	signed, err := GenerateToken("dealer-desk", 60)
	require.NoError(t, err)
	InitJWT("test-secret")
	_, err = ParseToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = ParseToken("not-a-token")
	assert.Error(t, err)
}
