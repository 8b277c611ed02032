package facade

import (
	"context"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
	"xdao.co/depot/storage"
)

// DraftExists reports whether a draft exists at (tag, version). Drafts are
// never cached.
func (f *Facade) DraftExists(ctx context.Context, tag string, version model.Version) (bool, error) {
	ok, err := f.driver.Exists(ctx, storage.NamespaceDrafts, digest.DocKey(tag, version.String()))
	if err != nil {
		return false, wrapIO("draftExists", err)
	}
	return ok, nil
}

// ReadDraft returns the raw bytes stored at (tag, version), if any.
func (f *Facade) ReadDraft(ctx context.Context, tag string, version model.Version) ([]byte, bool, error) {
	data, found, err := f.driver.Read(ctx, storage.NamespaceDrafts, digest.DocKey(tag, version.String()))
	if err != nil {
		return nil, false, wrapIO("readDraft", err)
	}
	return data, found, nil
}

// WriteDraft stores content at (tag, version), overwriting any prior draft
// at the same key.
func (f *Facade) WriteDraft(ctx context.Context, tag string, version model.Version, content []byte) error {
	if err := f.driver.Write(ctx, storage.NamespaceDrafts, digest.DocKey(tag, version.String()), content, true); err != nil {
		return wrapIO("writeDraft", err)
	}
	return nil
}

// DeleteDraft removes the draft at (tag, version), reporting whether it
// existed. A second delete of the same key is a no-op.
func (f *Facade) DeleteDraft(ctx context.Context, tag string, version model.Version) (bool, error) {
	existed, err := f.driver.Delete(ctx, storage.NamespaceDrafts, digest.DocKey(tag, version.String()))
	if err != nil {
		return false, wrapIO("deleteDraft", err)
	}
	return existed, nil
}
