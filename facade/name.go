package facade

import (
	"context"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
	"xdao.co/depot/storage"
)

// NameExists reports whether path is bound to a citation, checking the
// cache before the driver.
func (f *Facade) NameExists(ctx context.Context, path string) (bool, error) {
	key := digest.NameKey(path)
	if _, ok := f.names.Get(key); ok {
		return true, nil
	}
	ok, err := f.driver.Exists(ctx, storage.NamespaceNames, key)
	if err != nil {
		return false, wrapIO("nameExists", err)
	}
	return ok, nil
}

// ReadName resolves path to its bound Citation, populating the cache on a
// backend hit.
func (f *Facade) ReadName(ctx context.Context, path string) (model.Citation, bool, error) {
	key := digest.NameKey(path)
	if c, ok := f.names.Get(key); ok {
		return c, true, nil
	}
	data, found, err := f.driver.Read(ctx, storage.NamespaceNames, key)
	if err != nil {
		return model.Citation{}, false, wrapIO("readName", err)
	}
	if !found {
		return model.Citation{}, false, nil
	}
	c, err := decodeCitation(data)
	if err != nil {
		return model.Citation{}, false, model.Wrap("readName", model.KindIO, "corrupt name record", err)
	}
	f.names.Set(key, c)
	return c, true, nil
}

// WriteName binds path to citation once. A second binding of the same path
// fails with model.KindConflict.
func (f *Facade) WriteName(ctx context.Context, path string, citation model.Citation) error {
	key := digest.NameKey(path)
	data, err := encodeCitation(citation)
	if err != nil {
		return model.Wrap("writeName", model.KindMalformedRequest, "encode citation", err)
	}
	if err := f.driver.Write(ctx, storage.NamespaceNames, key, data, false); err != nil {
		if storage.IsConflict(err) {
			return model.New("writeName", model.KindConflict, "name already bound")
		}
		return wrapIO("writeName", err)
	}
	f.names.Set(key, citation)
	return nil
}
