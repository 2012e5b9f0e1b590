// Package config loads the storage engine's TOML configuration file:
// the mmap environment path, the server's own signing key, the list
// of recognized issuers, and the ambient logging/metrics settings.
package config

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// SigningKeyConfig holds the server issuer's Ed25519 key pair, PEM
// encoded, plus the serial used as the JWT "kid" for tokens it signs.
type SigningKeyConfig struct {
	Serial         uint32 `toml:"serial"`
	PrivateKeyPEM  string `toml:"private_key_pem"`
	PublicKeyPEM   string `toml:"public_key_pem"`
}

// IssuerConfig describes one issuer recognized at startup: the
// server's own (Type == "server") or an external OIDC provider.
type IssuerConfig struct {
	Name      string   `toml:"name"`
	Type      string   `toml:"type"` // "server" | "oidc"
	Audiences []string `toml:"audiences"`
	Endpoint  string   `toml:"endpoint,omitempty"`
}

// MetricsConfig configures the Prometheus exporter, erigon-style.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `toml:"level"`  // debug|info|warn|error
	Format string `toml:"format"` // json|console
}

// Config is the top-level shape of the TOML config file.
type Config struct {
	Path       string           `toml:"path"`
	Workers    int              `toml:"workers"`
	SigningKey SigningKeyConfig `toml:"signing_key"`
	Issuers    []IssuerConfig   `toml:"issuers"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Log        LogConfig        `toml:"log"`
}

// Default returns a Config with the same fallbacks cmd/arunacored
// applies when a setting is left zero in the file.
func Default() Config {
	return Config{
		Path:    "./data/arunastore",
		Workers: 8,
		Metrics: MetricsConfig{Enabled: true, ListenAddr: ":9100"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads and parses the TOML file at path, layering it over
// Default() so a partial file is still valid.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeSigningKey parses the configured PEM pair into an Ed25519 key
// pair usable by internal/token.
func DecodeSigningKey(c SigningKeyConfig) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(c.PrivateKeyPEM))
	if block == nil {
		return nil, nil, fmt.Errorf("signing_key.private_key_pem: no PEM block found")
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("signing_key.private_key_pem: %w", err)
	}
	edPriv, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("signing_key.private_key_pem: not an Ed25519 key")
	}

	pubBlock, _ := pem.Decode([]byte(c.PublicKeyPEM))
	if pubBlock == nil {
		return nil, nil, fmt.Errorf("signing_key.public_key_pem: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("signing_key.public_key_pem: %w", err)
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("signing_key.public_key_pem: not an Ed25519 key")
	}
	return edPriv, edPub, nil
}
