package notary

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
)

// Dilithium3 notarizes documents with a post-quantum Dilithium3 signature
// over sha3-256(content) — pairing the post-quantum signature scheme with
// a hash outside the SHA-2 family rather than sha256, following the same
// selectable-digest convention as the Ed25519 path's callers. It does not
// implement Authenticate credential verification; deployments that need
// that pair Dilithium3 with a separate caller registry rather than
// overloading this type.
type Dilithium3 struct {
	PrivateKey *mode3.PrivateKey
}

// NewDilithium3 generates a fresh Dilithium3 keypair.
func NewDilithium3() (*Dilithium3, *mode3.PublicKey, error) {
	pub, priv, err := mode3.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("notary: generate dilithium3 key: %w", err)
	}
	return &Dilithium3{PrivateKey: priv}, pub, nil
}

func (n *Dilithium3) Notarize(_ context.Context, tag string, version model.Version, content []byte) (model.Citation, string, error) {
	d, err := digest.Of(content)
	if err != nil {
		return model.Citation{}, "", fmt.Errorf("notary: digest content: %w", err)
	}
	sum := sha3.Sum256(content)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(n.PrivateKey, sum[:], sig)
	return model.Citation{
		Tag:     tag,
		Version: version,
		Digest:  d,
	}, base64.StdEncoding.EncodeToString(sig), nil
}

func (n *Dilithium3) Authenticate(_ context.Context, _ string) (string, error) {
	return "", fmt.Errorf("notary: Dilithium3 does not authenticate callers")
}
