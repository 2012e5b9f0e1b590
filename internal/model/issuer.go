package model

import "crypto"

// IssuerType distinguishes the server's own token issuer, external
// OIDC issuers (whose key sets are refreshed from a JWKS endpoint
// rather than signed locally), and registered data-proxy endpoints
// (whose key authenticates GlobalProxy requests, see internal/token).
type IssuerType uint8

const (
	IssuerServer IssuerType = iota
	IssuerOIDC
	IssuerEndpoint
)

// IssuerKey is one verification key entry for an issuer.
type IssuerKey struct {
	KeyID          string
	IssuerName     string
	IssuerEndpoint string
	IssuerType     IssuerType
	DecodingKey    crypto.PublicKey
	X25519Pubkey   [32]byte
	Audiences      []string
}

// Issuer is the persisted record for one issuer name: its type,
// endpoint (OIDC only) and registered audiences. Individual keys are
// cached in the in-process registry (package issuer), not persisted
// per-key, since JWKS keys are refreshable and the server's own
// signing key is derived from the startup config.
type Issuer struct {
	Name      string
	Type      IssuerType
	Endpoint  string
	Audiences []string
}
