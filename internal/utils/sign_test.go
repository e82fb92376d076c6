package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestSignRoundtrip(t *testing.T) {
	key := testKey(t)

	now := time.Now()
	token, err := GenerateSign(&Claims{
		Sub:      "user-1",
		Username: "alice",
		Iat:      now.Unix(),
		Exp:      now.Add(time.Hour).Unix(),
	}, key)
	require.NoError(t, err)

	claims, err := ParseAndVerifySign(token, &key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	key := testKey(t)

	token, err := GenerateSign(&Claims{
		Sub: "user-1",
		Iat: time.Now().Add(-2 * time.Hour).Unix(),
		Exp: time.Now().Add(-time.Hour).Unix(),
	}, key)
	require.NoError(t, err)

	_, err = ParseAndVerifySign(token, &key.PublicKey)
	assert.Error(t, err)
}

func TestParseRejectsWrongKey(t *testing.T) {
	signer := testKey(t)
	other := testKey(t)

	token, err := GenerateSign(&Claims{
		Sub: "user-1",
		Exp: time.Now().Add(time.Hour).Unix(),
	}, signer)
	require.NoError(t, err)

	_, err = ParseAndVerifySign(token, &other.PublicKey)
	assert.Error(t, err)
}
