package facade

import (
	"context"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
	"xdao.co/depot/storage"
)

// DocumentExists reports whether a document exists at (tag, version),
// checking the cache before the driver.
func (f *Facade) DocumentExists(ctx context.Context, tag string, version model.Version) (bool, error) {
	key := digest.DocKey(tag, version.String())
	if _, ok := f.documents.Get(key); ok {
		return true, nil
	}
	ok, err := f.driver.Exists(ctx, storage.NamespaceDocuments, key)
	if err != nil {
		return false, wrapIO("documentExists", err)
	}
	return ok, nil
}

// ReadDocument returns the Document at citation, cache-then-driver,
// populating the cache on a backend hit.
func (f *Facade) ReadDocument(ctx context.Context, citation model.Citation) (model.Document, bool, error) {
	key := citation.Key()
	if d, ok := f.documents.Get(key); ok {
		return d, true, nil
	}
	data, found, err := f.driver.Read(ctx, storage.NamespaceDocuments, key)
	if err != nil {
		return model.Document{}, false, wrapIO("readDocument", err)
	}
	if !found {
		return model.Document{}, false, nil
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return model.Document{}, false, model.Wrap("readDocument", model.KindIO, "corrupt document record", err)
	}
	f.documents.Set(key, doc)
	return doc, true, nil
}

// WriteDocument notarizes content under (tag, version) and stores it as a
// staging document. A citation already promoted to a contract under the
// same key rejects the write with model.KindConflict. Documents are a
// staging slot — re-uploading the same bytes under the same key is
// accepted (allowOverwrite=true); callers are responsible for not
// rewriting a key with different content.
//
// A draft at the same (tag, version) is retired on promotion: a draft
// cannot coexist with a document sharing its key. The draft delete is
// best-effort — it tolerates a draft that was never created or was
// already discarded.
func (f *Facade) WriteDocument(ctx context.Context, tag string, version model.Version, content []byte) (model.Citation, error) {
	citation, _, err := f.notary.Notarize(ctx, tag, version, content)
	if err != nil {
		return model.Citation{}, model.Wrap("writeDocument", model.KindInvalidCredentials, "notarize document", err)
	}
	key := citation.Key()

	exists, err := f.driver.Exists(ctx, storage.NamespaceContracts, key)
	if err != nil {
		return model.Citation{}, wrapIO("writeDocument", err)
	}
	if exists {
		return model.Citation{}, model.New("writeDocument", model.KindConflict, "citation already promoted to a contract")
	}

	data, err := encodeNotarized(citation, content)
	if err != nil {
		return model.Citation{}, model.Wrap("writeDocument", model.KindMalformedRequest, "encode document", err)
	}
	if err := f.driver.Write(ctx, storage.NamespaceDocuments, key, data, true); err != nil {
		return model.Citation{}, wrapIO("writeDocument", err)
	}
	f.documents.Set(key, model.Document{Citation: citation, Content: content})

	if _, err := f.driver.Delete(ctx, storage.NamespaceDrafts, key); err != nil {
		return model.Citation{}, wrapIO("writeDocument", err)
	}
	return citation, nil
}
