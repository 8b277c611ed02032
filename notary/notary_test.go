package notary

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/depot/model"
)

func TestEd25519_NotarizeProducesStableDigest(t *testing.T) {
	n, _, err := NewEd25519()
	if err != nil {
		t.Fatalf("NewEd25519: %v", err)
	}
	content := []byte("hello depot")

	cit1, sig1, err := n.Notarize(context.Background(), "greeting", model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	cit2, sig2, err := n.Notarize(context.Background(), "greeting", model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}

	if !cit1.Digest.Equal(cit2.Digest) {
		t.Fatalf("digest not stable across calls: %v vs %v", cit1.Digest, cit2.Digest)
	}
	if sig1 != sig2 {
		t.Fatalf("ed25519 signature should be deterministic for identical input")
	}
}

func TestEd25519_AuthenticateRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	n := &Ed25519{
		PrivateKey: priv,
		Callers:    map[string]ed25519.PublicKey{"alice": pub},
	}

	sig := ed25519.Sign(priv, []byte("alice"))
	creds := encodeCredential("alice", sig)

	callerID, err := n.Authenticate(context.Background(), creds)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if callerID != "alice" {
		t.Fatalf("callerID: got %q want %q", callerID, "alice")
	}
}

func TestEd25519_AuthenticateRejectsUnknownCaller(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	n := &Ed25519{PrivateKey: priv, Callers: map[string]ed25519.PublicKey{}}

	sig := ed25519.Sign(priv, []byte("mallory"))
	creds := encodeCredential("mallory", sig)

	if _, err := n.Authenticate(context.Background(), creds); err == nil {
		t.Fatalf("expected an error for an unregistered caller")
	}
}

func encodeCredential(callerID string, sig []byte) string {
	raw := append([]byte(callerID), sig...)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestEd25519FromHexSeed_IsDeterministic(t *testing.T) {
	seed := "0102030405060708090a0b0c0d0e0f100102030405060708090a0b0c0d0e0f10"

	n1, pub1, err := NewEd25519FromHexSeed(seed)
	if err != nil {
		t.Fatalf("NewEd25519FromHexSeed: %v", err)
	}
	n2, pub2, err := NewEd25519FromHexSeed(seed)
	if err != nil {
		t.Fatalf("NewEd25519FromHexSeed: %v", err)
	}
	if !pub1.Equal(pub2) {
		t.Fatalf("same seed produced different public keys")
	}

	content := []byte("reproducible signing key")
	cit1, sig1, err := n1.Notarize(context.Background(), "doc", model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	cit2, sig2, err := n2.Notarize(context.Background(), "doc", model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	if sig1 != sig2 || !cit1.Digest.Equal(cit2.Digest) {
		t.Fatalf("seeded notaries diverged on identical input")
	}
}

func TestEd25519FromHexSeed_RejectsWrongLength(t *testing.T) {
	if _, _, err := NewEd25519FromHexSeed("abcd"); err == nil {
		t.Fatal("expected an error for a too-short seed")
	}
}

func TestDilithium3_NotarizeProducesVerifiableSignature(t *testing.T) {
	n, pub, err := NewDilithium3()
	if err != nil {
		t.Fatalf("NewDilithium3: %v", err)
	}
	content := []byte("post-quantum content")

	citation, sigB64, err := n.Notarize(context.Background(), "doc", model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	sum := sha3.Sum256(content)
	if !mode3.Verify(pub, sum[:], sig) {
		t.Fatal("dilithium3 signature failed to verify against the hashed content")
	}
	if citation.Digest.IsZero() {
		t.Fatal("citation digest should not be zero")
	}
}

func TestDilithium3_AuthenticateIsUnsupported(t *testing.T) {
	n, _, err := NewDilithium3()
	if err != nil {
		t.Fatalf("NewDilithium3: %v", err)
	}
	if _, err := n.Authenticate(context.Background(), "anything"); err == nil {
		t.Fatal("expected Dilithium3.Authenticate to always fail")
	}
}
