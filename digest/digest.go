// Package digest derives stable, filesystem-safe storage keys from domain
// identifiers (names, citations, bag/message addresses) and computes the
// content digest used to address documents.
//
// This is a pure function module: no I/O, no backend knowledge. Every driver
// package keys its namespaces through these functions so that the same
// logical object lands at the same key regardless of backend.
package digest

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Digest is the cryptographic hash of a document's canonical encoding.
//
// It is a CIDv1 with the "raw" multicodec and a sha2-256 multihash, reused
// as-is rather than reinventing a hex-sha256 string.
type Digest struct {
	id cid.Cid
}

// Of computes the Digest of data.
func Of(data []byte) (Digest, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return Digest{}, err
	}
	return Digest{id: cid.NewCidV1(cid.Raw, sum)}, nil
}

// Parse decodes a digest from its string form.
func Parse(s string) (Digest, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return Digest{}, err
	}
	return Digest{id: id}, nil
}

// String returns the canonical CID string form.
func (d Digest) String() string {
	if !d.id.Defined() {
		return ""
	}
	return d.id.String()
}

// IsZero reports whether d was never assigned.
func (d Digest) IsZero() bool { return !d.id.Defined() }

// Equal reports whether two digests denote the same content hash.
func (d Digest) Equal(other Digest) bool { return d.id.Equals(other.id) }

// Hex returns the bare hex-encoded hash portion, suitable for the
// "nebula-digest" integrity header in the HTTP driver.
func (d Digest) Hex() string {
	if !d.id.Defined() {
		return ""
	}
	dec, err := multihash.Decode(d.id.Hash())
	if err != nil {
		return ""
	}
	return toHex(dec.Digest)
}

func toHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

// StripSigil removes a single leading "/" or "#" sigil, so that keys stay
// directly interchangeable across drivers regardless of how the caller
// wrote the identifier.
func StripSigil(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '/', '#':
		return s[1:]
	default:
		return s
	}
}

// NameKey returns the canonical path form of a hierarchical name: sigil
// stripped, hierarchy preserved.
func NameKey(name string) string {
	return StripSigil(name)
}

// DocKey returns "<tag-without-sigil>/<version>" for a (tag, version) pair —
// shared by drafts, documents, contracts, and (via MessageKey) messages.
func DocKey(tag, version string) string {
	return StripSigil(tag) + "/" + version
}

// BagPrefix returns "<bag-tag>/<bag-version>/<state>".
func BagPrefix(bagTag, bagVersion, state string) string {
	return DocKey(bagTag, bagVersion) + "/" + state
}

// MessageKey returns "bagPrefix(bag,state) + "/" + docKey(msgTag,msgVersion)".
func MessageKey(bagTag, bagVersion, state, msgTag, msgVersion string) string {
	return BagPrefix(bagTag, bagVersion, state) + "/" + DocKey(msgTag, msgVersion)
}

// SplitMessageKey recovers the (msgTag, msgVersion) suffix of a key listed
// under a bag/state prefix. It expects the listed key to be relative to the
// prefix, i.e.
// "<msg-tag>/<msg-version>".
func SplitMessageKey(relKey string) (tag, version string, ok bool) {
	idx := strings.LastIndex(relKey, "/")
	if idx < 0 {
		return "", "", false
	}
	return relKey[:idx], relKey[idx+1:], true
}
