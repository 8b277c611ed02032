// Package notary defines the boundary the core module notarizes documents
// and authenticates callers through: credential/signature validation is an
// external collaborator, injected rather than reached for as a process
// global, used only to derive document digests and to authenticate
// callers.
//
// The facade and repository packages depend only on the Notary interface.
// This package also carries two concrete implementations, Ed25519 and
// Dilithium3, so the module is runnable without an external notary
// service wired in.
package notary

import (
	"context"

	"xdao.co/depot/model"
)

// Notary signs document content into a Citation and authenticates caller
// credentials. It is a pure compute boundary: no storage, no process
// globals.
type Notary interface {
	// Notarize derives the Citation for content under (tag, version) and
	// returns an opaque, base64 signature over it.
	Notarize(ctx context.Context, tag string, version model.Version, content []byte) (model.Citation, string, error)

	// Authenticate validates an opaque credential blob (the
	// "nebula-credentials" header) and returns the caller identity it
	// asserts.
	Authenticate(ctx context.Context, credentials string) (callerID string, err error)
}
