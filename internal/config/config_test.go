package config_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArunaStorage/aos-server/internal/config"
)

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aruna.toml")
	writeFile(t, path, `
path = "/var/lib/arunastore"
workers = 16

[log]
level = "debug"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/arunastore", cfg.Path)
	require.Equal(t, 16, cfg.Workers)
	require.Equal(t, "debug", cfg.Log.Level)
	// Untouched by the file, so it keeps Default()'s fallback.
	require.Equal(t, "json", cfg.Log.Format)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestLoadReturnsErrorForMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aruna.toml")
	writeFile(t, path, `this is not valid toml === [[[`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestDecodeSigningKeyRoundTripsGeneratedKeyPair(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	privPKCS8, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pubPKIX, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	cfg := config.SigningKeyConfig{
		Serial:        1,
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privPKCS8})),
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubPKIX})),
	}

	gotPriv, gotPub, err := config.DecodeSigningKey(cfg)
	require.NoError(t, err)
	require.Equal(t, priv, gotPriv)
	require.Equal(t, pub, gotPub)
}

func TestDecodeSigningKeyRejectsMissingPEMBlock(t *testing.T) {
	_, _, err := config.DecodeSigningKey(config.SigningKeyConfig{PrivateKeyPEM: "not pem"})
	require.Error(t, err)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}
