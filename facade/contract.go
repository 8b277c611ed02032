package facade

import (
	"context"

	"xdao.co/depot/model"
	"xdao.co/depot/storage"
)

// ContractExists reports whether a contract exists at citation,
// cache-then-driver.
func (f *Facade) ContractExists(ctx context.Context, citation model.Citation) (bool, error) {
	key := citation.Key()
	if _, ok := f.contracts.Get(key); ok {
		return true, nil
	}
	ok, err := f.driver.Exists(ctx, storage.NamespaceContracts, key)
	if err != nil {
		return false, wrapIO("contractExists", err)
	}
	return ok, nil
}

// ReadContract returns the Contract at citation, cache-then-driver.
func (f *Facade) ReadContract(ctx context.Context, citation model.Citation) (model.Contract, bool, error) {
	key := citation.Key()
	if c, ok := f.contracts.Get(key); ok {
		return c, true, nil
	}
	data, found, err := f.driver.Read(ctx, storage.NamespaceContracts, key)
	if err != nil {
		return model.Contract{}, false, wrapIO("readContract", err)
	}
	if !found {
		return model.Contract{}, false, nil
	}
	c, err := decodeContract(data)
	if err != nil {
		return model.Contract{}, false, model.Wrap("readContract", model.KindIO, "corrupt contract record", err)
	}
	f.contracts.Set(key, c)
	return c, true, nil
}

// WriteContract promotes doc to a contract under its own citation — the
// document is already notarized, so no re-notarization happens here.
//
// This is the promotion step: on success, the staging document at the same
// key is deleted. The two writes are sequenced, not transactional; a crash
// between them leaves a harmless document shadow that a later WriteContract
// retry rejects with conflict — manual cleanup resolves it.
func (f *Facade) WriteContract(ctx context.Context, doc model.Document) error {
	key := doc.Citation.Key()

	exists, err := f.driver.Exists(ctx, storage.NamespaceContracts, key)
	if err != nil {
		return wrapIO("writeContract", err)
	}
	if exists {
		return model.New("writeContract", model.KindConflict, "contract already exists")
	}

	data, err := encodeNotarized(doc.Citation, doc.Content)
	if err != nil {
		return model.Wrap("writeContract", model.KindMalformedRequest, "encode contract", err)
	}
	if err := f.driver.Write(ctx, storage.NamespaceContracts, key, data, false); err != nil {
		if storage.IsConflict(err) {
			return model.New("writeContract", model.KindConflict, "contract already exists")
		}
		return wrapIO("writeContract", err)
	}
	f.contracts.Set(key, model.Contract{Citation: doc.Citation, Content: doc.Content})

	if _, err := f.driver.Delete(ctx, storage.NamespaceDocuments, key); err != nil {
		return wrapIO("writeContract", err)
	}
	f.documents.Delete(key)
	return nil
}
