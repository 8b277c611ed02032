package notary

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
)

// Ed25519 notarizes documents by signing sha256(content) with an Ed25519
// private key.
//
// Credentials are the base64 encoding of the callerID bytes immediately
// followed by a 64-byte Ed25519 signature of the callerID (no separator),
// verified against a caller registry; a self-contained deployment that never
// delegates to an external notary service can wire this up directly.
type Ed25519 struct {
	PrivateKey ed25519.PrivateKey
	// Callers maps a callerID to the public key that must verify its
	// credential signatures. A nil map rejects every Authenticate call.
	Callers map[string]ed25519.PublicKey
}

// NewEd25519 generates a fresh keypair and returns a Notary using it.
func NewEd25519() (*Ed25519, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("notary: generate ed25519 key: %w", err)
	}
	return &Ed25519{PrivateKey: priv}, pub, nil
}

// NewEd25519FromHexSeed derives a deterministic keypair from a hex-encoded
// 32-byte seed. Intended for reproducible CLI invocations and tests, never
// for production signing keys.
func NewEd25519FromHexSeed(hexSeed string) (*Ed25519, ed25519.PublicKey, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("notary: decode hex seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("notary: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519{PrivateKey: priv}, pub, nil
}

func (n *Ed25519) Notarize(_ context.Context, tag string, version model.Version, content []byte) (model.Citation, string, error) {
	d, err := digest.Of(content)
	if err != nil {
		return model.Citation{}, "", fmt.Errorf("notary: digest content: %w", err)
	}
	sum := sha256.Sum256(content)
	sig := ed25519.Sign(n.PrivateKey, sum[:])
	return model.Citation{
		Tag:     tag,
		Version: version,
		Digest:  d,
	}, base64.StdEncoding.EncodeToString(sig), nil
}

func (n *Ed25519) Authenticate(_ context.Context, credentials string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return "", fmt.Errorf("notary: decode credentials: %w", err)
	}
	callerID, sig, ok := splitCredential(raw)
	if !ok {
		return "", fmt.Errorf("notary: malformed credentials")
	}
	pub, ok := n.Callers[callerID]
	if !ok {
		return "", fmt.Errorf("notary: unknown caller %q", callerID)
	}
	if !ed25519.Verify(pub, []byte(callerID), sig) {
		return "", fmt.Errorf("notary: signature verification failed for %q", callerID)
	}
	return callerID, nil
}

func splitCredential(raw []byte) (callerID string, sig []byte, ok bool) {
	if len(raw) <= ed25519.SignatureSize {
		return "", nil, false
	}
	split := len(raw) - ed25519.SignatureSize
	return string(raw[:split]), raw[split:], true
}
