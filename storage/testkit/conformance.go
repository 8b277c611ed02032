// Package testkit holds the shared conformance suite every storage.Driver
// backend runs against itself: the five-primitive capability set plus
// allowOverwrite/conflict semantics.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"xdao.co/depot/storage"
)

// NewDriver constructs a fresh, empty Driver instance for a test. The
// returned Driver MUST be isolated from other tests.
type NewDriver func(t *testing.T) storage.Driver

// RunDriverConformance exercises the Driver capability set any backend must
// satisfy for the facade to build correctly atop it.
func RunDriverConformance(t *testing.T, newDriver NewDriver) {
	t.Helper()
	ctx := context.Background()

	t.Run("WriteReadRoundTrip", func(t *testing.T) {
		d := newDriver(t)
		want := []byte("hello, depot storage")

		if err := d.Write(ctx, storage.NamespaceDocuments, "a/v1", want, true); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		got, found, err := d.Read(ctx, storage.NamespaceDocuments, "a/v1")
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !found {
			t.Fatalf("Read: not found after Write")
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Read bytes mismatch: got %q want %q", got, want)
		}
	})

	t.Run("ExistsAndNotFound", func(t *testing.T) {
		d := newDriver(t)
		ok, err := d.Exists(ctx, storage.NamespaceDocuments, "missing/v1")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if ok {
			t.Fatalf("Exists returned true for missing key")
		}
		_, found, err := d.Read(ctx, storage.NamespaceDocuments, "missing/v1")
		if err != nil {
			t.Fatalf("Read on missing key returned error: %v", err)
		}
		if found {
			t.Fatalf("Read found=true for missing key")
		}

		if err := d.Write(ctx, storage.NamespaceDocuments, "missing/v1", []byte("x"), true); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		ok, err = d.Exists(ctx, storage.NamespaceDocuments, "missing/v1")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !ok {
			t.Fatalf("Exists returned false after Write")
		}
	})

	t.Run("DisallowOverwriteConflicts", func(t *testing.T) {
		d := newDriver(t)
		if err := d.Write(ctx, storage.NamespaceNames, "n/v1", []byte("first"), false); err != nil {
			t.Fatalf("first Write failed: %v", err)
		}
		err := d.Write(ctx, storage.NamespaceNames, "n/v1", []byte("second"), false)
		if !storage.IsConflict(err) {
			t.Fatalf("second Write: got err=%v want conflict", err)
		}
		got, _, rerr := d.Read(ctx, storage.NamespaceNames, "n/v1")
		if rerr != nil {
			t.Fatalf("Read failed: %v", rerr)
		}
		if !bytes.Equal(got, []byte("first")) {
			t.Fatalf("conflicting write must not have touched storage: got %q", got)
		}
	})

	t.Run("AllowOverwriteReplaces", func(t *testing.T) {
		d := newDriver(t)
		if err := d.Write(ctx, storage.NamespaceDrafts, "d/v1", []byte("a"), true); err != nil {
			t.Fatalf("Write(1) failed: %v", err)
		}
		if err := d.Write(ctx, storage.NamespaceDrafts, "d/v1", []byte("b"), true); err != nil {
			t.Fatalf("Write(2) failed: %v", err)
		}
		got, _, err := d.Read(ctx, storage.NamespaceDrafts, "d/v1")
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !bytes.Equal(got, []byte("b")) {
			t.Fatalf("overwrite did not take effect: got %q", got)
		}
	})

	t.Run("DeleteReportsExisted", func(t *testing.T) {
		d := newDriver(t)
		existed, err := d.Delete(ctx, storage.NamespaceDrafts, "never/v1")
		if err != nil {
			t.Fatalf("Delete on missing key failed: %v", err)
		}
		if existed {
			t.Fatalf("Delete existed=true for a key never written")
		}

		if err := d.Write(ctx, storage.NamespaceDrafts, "gone/v1", []byte("x"), true); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		existed, err = d.Delete(ctx, storage.NamespaceDrafts, "gone/v1")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if !existed {
			t.Fatalf("Delete existed=false for a key that was present")
		}
		existed, err = d.Delete(ctx, storage.NamespaceDrafts, "gone/v1")
		if err != nil {
			t.Fatalf("second Delete failed: %v", err)
		}
		if existed {
			t.Fatalf("second Delete existed=true: delete is not idempotent")
		}
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		d := newDriver(t)
		keys := []string{
			"bag1/v1/available/m1/v1",
			"bag1/v1/available/m2/v1",
			"bag1/v1/processing/m3/v1",
		}
		for _, k := range keys {
			if err := d.Write(ctx, storage.NamespaceMessages, k, []byte(k), true); err != nil {
				t.Fatalf("Write(%s) failed: %v", k, err)
			}
		}
		got, err := d.List(ctx, storage.NamespaceMessages, "bag1/v1/available", 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("List: got %d keys, want 2: %v", len(got), got)
		}
	})
}
