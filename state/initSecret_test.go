package state

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khadka27/assignmentghar-chat/config"
)

func writeTestKeyPair(t *testing.T, dir string) (privPath, pubPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPath = filepath.Join(dir, "private.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPath = filepath.Join(dir, "public.pem")
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	return privPath, pubPath
}

func withJWTConfig(t *testing.T, privPath, pubPath string) {
	t.Helper()
	prev := config.Conf
	config.Conf = &config.AppConfig{}
	config.Conf.JWT.PrivateKeyPath = privPath
	config.Conf.JWT.PublicKeyPath = pubPath
	t.Cleanup(func() { config.Conf = prev })
}

func TestInitSecretLoadsKeyPair(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t, t.TempDir())
	withJWTConfig(t, privPath, pubPath)

	secret, err := InitSecret()
	require.NoError(t, err)
	require.NotNil(t, secret.Private)
	require.NotNil(t, secret.Public)
	assert.Equal(t, secret.Private.PublicKey.N, secret.Public.N)
}

func TestInitSecretMissingFiles(t *testing.T) {
	dir := t.TempDir()
	withJWTConfig(t, filepath.Join(dir, "nope.pem"), filepath.Join(dir, "nope-pub.pem"))

	secret, err := InitSecret()
	require.Error(t, err)
	assert.Nil(t, secret)
}

func TestInitSecretRejectsGarbagePEM(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(privPath, []byte("not a key"), 0o600))
	require.NoError(t, os.WriteFile(pubPath, []byte("not a key"), 0o600))
	withJWTConfig(t, privPath, pubPath)

	secret, err := InitSecret()
	require.Error(t, err)
	assert.Nil(t, secret)
}
