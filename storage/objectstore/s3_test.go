package objectstore

import (
	"testing"

	"xdao.co/depot/storage"
)

func TestSingleBucket_CoversAllNamespaces(t *testing.T) {
	m := SingleBucket("repo-bucket")
	for _, ns := range []storage.Namespace{
		storage.NamespaceNames,
		storage.NamespaceDrafts,
		storage.NamespaceDocuments,
		storage.NamespaceContracts,
		storage.NamespaceMessages,
	} {
		if m[ns] != "repo-bucket" {
			t.Fatalf("SingleBucket: namespace %s not routed to the bucket", ns)
		}
	}
}

func TestDriver_ObjectKeyAppendsBaliSuffix(t *testing.T) {
	d := &Driver{prefix: "p/"}
	if got, want := d.objectKey("tag/v1"), "p/tag/v1.bali"; got != want {
		t.Fatalf("objectKey: got %q want %q", got, want)
	}
}

func TestDriver_BucketLookupFailsForUnconfiguredNamespace(t *testing.T) {
	d := &Driver{buckets: BucketMap{storage.NamespaceDocuments: "b"}}
	if _, err := d.bucket(storage.NamespaceNames); err == nil {
		t.Fatalf("expected an error for an unconfigured namespace")
	}
}
