// Package localfs is a local filesystem storage.Driver: one file per
// object, path "<root>/<namespace>/<key>.bali".
//
// Writes are atomic via tempfile+rename, so a crash mid-write never leaves
// a partial object behind. This package never uses the network and never
// reads wall-clock time.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/depot/storage"
)

// Driver is a filesystem-backed storage.Driver rooted at a single directory.
type Driver struct {
	root string
}

// New constructs a filesystem driver rooted at root. The directory is
// created if needed.
func New(root string) (*Driver, error) {
	if root == "" {
		return nil, fmt.Errorf("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &Driver{root: root}, nil
}

// immutablePerm reports whether namespace is written read-only (0o400):
// names, documents, and contracts. Drafts and messages get 0o600.
func immutablePerm(namespace storage.Namespace) bool {
	switch namespace {
	case storage.NamespaceNames, storage.NamespaceDocuments, storage.NamespaceContracts:
		return true
	default:
		return false
	}
}

func (d *Driver) pathFor(namespace storage.Namespace, key string) string {
	return filepath.Join(d.root, string(namespace), filepath.FromSlash(key)+".bali")
}

func (d *Driver) Exists(_ context.Context, namespace storage.Namespace, key string) (bool, error) {
	_, err := os.Stat(d.pathFor(namespace, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storage.NewIOError("exists", namespace, key, err)
}

func (d *Driver) Read(_ context.Context, namespace storage.Namespace, key string) ([]byte, bool, error) {
	b, err := os.ReadFile(d.pathFor(namespace, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, storage.NewIOError("read", namespace, key, err)
	}
	return strip(b), true, nil
}

func (d *Driver) Write(_ context.Context, namespace storage.Namespace, key string, data []byte, allowOverwrite bool) error {
	path := d.pathFor(namespace, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}

	if !allowOverwrite {
		if _, err := os.Stat(path); err == nil {
			return storage.NewConflictError("write", namespace, key)
		} else if !os.IsNotExist(err) {
			return storage.NewIOError("write", namespace, key, err)
		}
	}

	perm := os.FileMode(0o600)
	if immutablePerm(namespace) {
		perm = 0o400
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(withTrailingNewline(data)); err != nil {
		_ = tmp.Close()
		return storage.NewIOError("write", namespace, key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return storage.NewIOError("write", namespace, key, err)
	}
	if err := tmp.Close(); err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}

	// When allowOverwrite is false, os.Rename would otherwise silently
	// replace an existing file on POSIX systems; re-check right before the
	// rename to narrow (not eliminate) the race against the earlier stat.
	if !allowOverwrite {
		if _, err := os.Stat(path); err == nil {
			return storage.NewConflictError("write", namespace, key)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}
	cleanup = false
	return nil
}

func (d *Driver) Delete(_ context.Context, namespace storage.Namespace, key string) (bool, error) {
	err := os.Remove(d.pathFor(namespace, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storage.NewIOError("delete", namespace, key, err)
}

func (d *Driver) List(_ context.Context, namespace storage.Namespace, prefix string, maxKeys int) ([]string, error) {
	base := filepath.Join(d.root, string(namespace), filepath.FromSlash(prefix))
	var out []string
	err := filepath.WalkDir(base, func(path string, dirEntry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return filepath.SkipDir
			}
			return walkErr
		}
		if dirEntry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".bali") {
			return nil
		}
		rel, rerr := filepath.Rel(base, path)
		if rerr != nil {
			return rerr
		}
		rel = strings.TrimSuffix(filepath.ToSlash(rel), ".bali")
		out = append(out, rel)
		if maxKeys > 0 && len(out) >= maxKeys {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, storage.NewIOError("list", namespace, prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

func withTrailingNewline(data []byte) []byte {
	out := make([]byte, len(data)+1)
	copy(out, data)
	out[len(data)] = '\n'
	return out
}

func strip(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		return b[:len(b)-1]
	}
	return b
}
