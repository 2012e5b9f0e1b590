package issuer

import (
	"crypto"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// Persisted is the on-disk shape of an issuer record in the issuers
// table: name, type, endpoint, audiences and, for the server's own
// issuer, the Ed25519 public key used to verify locally-minted tokens.
type Persisted struct {
	Info      model.Issuer
	ServerKey ed25519.PublicKey // nil unless Info.Type == IssuerServer
	X25519Pub [32]byte
}

// LoadAll walks the issuers table and installs every persisted issuer
// into the registry. Called once at startup before the server accepts
// requests.
func LoadAll(rtxn *kv.ROTxn, reg *Registry) error {
	return rtxn.ForEach(kv.TableIssuers, func(k, v []byte) (bool, error) {
		p, err := DecodePersisted(v)
		if err != nil {
			return false, errors.Wrap(err, "decoding issuer record")
		}
		keys := map[string]crypto.PublicKey{}
		if p.ServerKey != nil {
			keys[string(k)] = p.ServerKey
		}
		reg.Install(p.Info, keys)
		return true, nil
	})
}

// EncodePersisted and DecodePersisted use a flat length-prefixed
// layout (name, type byte, endpoint, audience count + strings,
// server key length + bytes, 32-byte x25519 key). Issuer records are
// small and written rarely, so this trades compactness for a layout
// that is trivial to read back in startup.go and the init command.
func EncodePersisted(p Persisted) []byte {
	buf := make([]byte, 0, 128)
	buf = appendString(buf, p.Info.Name)
	buf = append(buf, byte(p.Info.Type))
	buf = appendString(buf, p.Info.Endpoint)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(p.Info.Audiences)))
	buf = append(buf, n[:]...)
	for _, aud := range p.Info.Audiences {
		buf = appendString(buf, aud)
	}
	binary.LittleEndian.PutUint32(n[:], uint32(len(p.ServerKey)))
	buf = append(buf, n[:]...)
	buf = append(buf, p.ServerKey...)
	buf = append(buf, p.X25519Pub[:]...)
	return buf
}

func DecodePersisted(v []byte) (Persisted, error) {
	var p Persisted
	var ok bool
	p.Info.Name, v, ok = readString(v)
	if !ok {
		return p, errors.New("issuer record: truncated name")
	}
	if len(v) < 1 {
		return p, errors.New("issuer record: truncated type")
	}
	p.Info.Type = model.IssuerType(v[0])
	v = v[1:]
	p.Info.Endpoint, v, ok = readString(v)
	if !ok {
		return p, errors.New("issuer record: truncated endpoint")
	}
	if len(v) < 4 {
		return p, errors.New("issuer record: truncated audience count")
	}
	count := binary.LittleEndian.Uint32(v[:4])
	v = v[4:]
	p.Info.Audiences = make([]string, count)
	for i := range p.Info.Audiences {
		p.Info.Audiences[i], v, ok = readString(v)
		if !ok {
			return p, errors.New("issuer record: truncated audience")
		}
	}
	if len(v) < 4 {
		return p, errors.New("issuer record: truncated key length")
	}
	keyLen := binary.LittleEndian.Uint32(v[:4])
	v = v[4:]
	if uint32(len(v)) < keyLen+32 {
		return p, errors.New("issuer record: truncated key material")
	}
	if keyLen > 0 {
		p.ServerKey = ed25519.PublicKey(append([]byte(nil), v[:keyLen]...))
	}
	v = v[keyLen:]
	copy(p.X25519Pub[:], v[:32])
	return p, nil
}

func appendString(buf []byte, s string) []byte {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}

func readString(v []byte) (string, []byte, bool) {
	if len(v) < 4 {
		return "", v, false
	}
	n := binary.LittleEndian.Uint32(v[:4])
	v = v[4:]
	if uint32(len(v)) < n {
		return "", v, false
	}
	return string(v[:n]), v[n:], true
}
