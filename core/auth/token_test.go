package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("0xabc123", "DJ Chow")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "0xabc123", claims.UserID)
	assert.Equal(t, "DJ Chow", claims.DisplayName)
	assert.Equal(t, "chowlive", claims.Issuer)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not-a-jwt")
	assert.Error(t, err)

	_, err = ParseToken("")
	assert.Error(t, err)
}

func TestParseTokenRejectsTamperedToken(t *testing.T) {
	token, err := GenerateToken("0xabc123", "DJ Chow")
	assert.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = ParseToken(tampered)
	assert.Error(t, err)
}
