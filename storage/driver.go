// Package storage defines the backend-agnostic capability set every storage
// driver implements, plus the shared error vocabulary backends funnel
// their failures into.
//
// The facade package depends only on this interface, never on a concrete
// driver type, so any backend can be swapped in without touching the
// object protocol above it.
package storage

import "context"

// Namespace is one of the five object classes a driver stores.
type Namespace string

const (
	NamespaceNames     Namespace = "names"
	NamespaceDrafts    Namespace = "drafts"
	NamespaceDocuments Namespace = "documents"
	NamespaceContracts Namespace = "contracts"
	NamespaceMessages  Namespace = "messages"
)

// Driver is the low-level primitive object I/O contract every backend
// (local filesystem, remote HTTP, S3-like object store) implements
// identically.
type Driver interface {
	// Exists reports whether key is present in namespace.
	Exists(ctx context.Context, namespace Namespace, key string) (bool, error)

	// Read returns the bytes stored at key, or found=false if absent.
	// Absence is not an error.
	Read(ctx context.Context, namespace Namespace, key string) (data []byte, found bool, err error)

	// Write stores data at key. If allowOverwrite is false and key already
	// exists, Write fails with a *model.Error of Kind model.KindConflict
	// without touching storage.
	Write(ctx context.Context, namespace Namespace, key string, data []byte, allowOverwrite bool) error

	// Delete removes key. existed reports whether the key was actually
	// present and removed by this call — the atomic delete-returning-existed
	// primitive the borrow loop's tie-break depends on.
	Delete(ctx context.Context, namespace Namespace, key string) (existed bool, err error)

	// List returns keys under namespace whose names begin with prefix,
	// relative to prefix, in backend-defined order (no ordering guarantee
	// is made or required). At most maxKeys are returned; 0 means no
	// limit.
	List(ctx context.Context, namespace Namespace, prefix string, maxKeys int) ([]string, error)
}
