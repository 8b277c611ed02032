// Package repository is the public contract composed for callers: it
// delegates to the Storage Facade, whose injected Notary produces the
// citations. Nothing points back up — the Repository owns the
// Facade, the Facade owns the Driver and the Cache, with no cyclic
// ownership between layers.
//
// All operations wrap facade errors once more with argument context, as a
// "repository: op(argument)" prefix added with fmt.Errorf and %w. This
// layer never builds a second *model.Error around one it receives, so the
// original Kind stays visible to model.IsKind; it builds a *model.Error
// only for errors it originates itself (e.g. unknownType).
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"xdao.co/depot/facade"
	"xdao.co/depot/model"
)

// Repository composes a Facade into the operations callers invoke.
type Repository struct {
	facade *facade.Facade
}

// New constructs a Repository atop facade f.
func New(f *facade.Facade) *Repository {
	return &Repository{facade: f}
}

// Draft is the un-notarized working structure createDocument hands back,
// built from a type's default content or the caller's template.
type Draft struct {
	Tag       string
	Version   model.Version
	TypeTag   string
	Content   []byte
}

// CreateDocument fetches typeCitation's document (must exist — else
// model.KindUnknownType), and returns an un-notarized Draft whose Content
// is the caller's template when it is non-empty and the type document's
// content otherwise; the two are not merged attribute by attribute.
// permissions is accepted for parity with the operation's public
// signature; this core treats it as opaque caller metadata folded into
// the template by the caller, not interpreted here.
func (r *Repository) CreateDocument(ctx context.Context, typeName string, permissions []byte, template []byte) (Draft, error) {
	typeCitation, found, err := r.facade.ReadName(ctx, typeName)
	if err != nil {
		return Draft{}, fmt.Errorf("repository: createDocument(%q): %w", typeName, err)
	}
	if !found {
		return Draft{}, fmt.Errorf("repository: createDocument(%q): %w", typeName, model.New("createDocument", model.KindUnknownType, "type name is not bound"))
	}

	typeDoc, found, err := r.facade.ReadDocument(ctx, typeCitation)
	if err != nil {
		return Draft{}, fmt.Errorf("repository: createDocument(%q): %w", typeName, err)
	}
	if !found {
		return Draft{}, fmt.Errorf("repository: createDocument(%q): %w", typeName, model.New("createDocument", model.KindUnknownType, "type document is absent"))
	}

	content := mergeTemplate(typeDoc.Content, template)
	return Draft{
		Tag:     uuid.NewString(),
		Version: model.MustVersion("0.1.0"),
		TypeTag: typeCitation.Tag,
		Content: content,
	}, nil
}

// mergeTemplate returns template when it is non-empty and typeDefaults
// otherwise. It does not combine the two: the document grammar is an
// external collaborator this core never parses.
func mergeTemplate(typeDefaults, template []byte) []byte {
	if len(template) > 0 {
		return template
	}
	return typeDefaults
}

// SaveDocument stores content as a draft at (tag, version), overwriting
// any prior draft there. It does not notarize the content: no citation or
// signature is derived here, and none is persisted until commitDocument
// writes the document.
func (r *Repository) SaveDocument(ctx context.Context, tag string, version model.Version, content []byte) error {
	if err := r.facade.WriteDraft(ctx, tag, version, content); err != nil {
		return fmt.Errorf("repository: saveDocument(%s): %w", tag, err)
	}
	return nil
}

// RetrieveDocument returns the draft content at citation.
func (r *Repository) RetrieveDocument(ctx context.Context, citation model.Citation) ([]byte, bool, error) {
	content, found, err := r.facade.ReadDraft(ctx, citation.Tag, citation.Version)
	if err != nil {
		return nil, false, fmt.Errorf("repository: retrieveDocument(%s): %w", citation.Tag, err)
	}
	return content, found, nil
}

// DiscardDocument deletes the draft at citation, reporting whether it
// existed.
func (r *Repository) DiscardDocument(ctx context.Context, citation model.Citation) (bool, error) {
	existed, err := r.facade.DeleteDraft(ctx, citation.Tag, citation.Version)
	if err != nil {
		return false, fmt.Errorf("repository: discardDocument(%s): %w", citation.Tag, err)
	}
	return existed, nil
}

// CommitDocument notarizes content, writes it as a document, binds name to
// the resulting citation, and returns that citation.
func (r *Repository) CommitDocument(ctx context.Context, name string, tag string, version model.Version, content []byte) (model.Citation, error) {
	if exists, err := r.facade.NameExists(ctx, name); err != nil {
		return model.Citation{}, fmt.Errorf("repository: commitDocument(%s): %w", name, err)
	} else if exists {
		return model.Citation{}, fmt.Errorf("repository: commitDocument(%s): %w", name, model.New("commitDocument", model.KindConflict, "name already bound"))
	}

	citation, err := r.facade.WriteDocument(ctx, tag, version, content)
	if err != nil {
		return model.Citation{}, fmt.Errorf("repository: commitDocument(%s): %w", name, err)
	}

	if err := r.facade.WriteName(ctx, name, citation); err != nil {
		return model.Citation{}, fmt.Errorf("repository: commitDocument(%s): %w", name, err)
	}
	return citation, nil
}

// RetrieveName resolves name to a citation and returns the content bound
// there, reading through to a contract if the document has been promoted.
func (r *Repository) RetrieveName(ctx context.Context, name string) ([]byte, bool, error) {
	citation, found, err := r.facade.ReadName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("repository: retrieveName(%s): %w", name, err)
	}
	if !found {
		return nil, false, nil
	}

	doc, found, err := r.facade.ReadDocument(ctx, citation)
	if err != nil {
		return nil, false, fmt.Errorf("repository: retrieveName(%s): %w", name, err)
	}
	if !found {
		// Promoted to a contract; fall back there (readDocument reports
		// not-found for a key that has already been promoted).
		contract, found, err := r.facade.ReadContract(ctx, citation)
		if err != nil {
			return nil, false, fmt.Errorf("repository: retrieveName(%s): %w", name, err)
		}
		if !found {
			return nil, false, nil
		}
		return contract.Content, true, nil
	}
	return doc.Content, true, nil
}

// MessageAvailable reports whether a message with the given tag and
// version is currently available to borrow from bag.
func (r *Repository) MessageAvailable(ctx context.Context, bag model.Citation, msgTag string, msgVersion model.Version) (bool, error) {
	ok, err := r.facade.MessageAvailable(ctx, bag, msgTag, msgVersion)
	if err != nil {
		return false, fmt.Errorf("repository: messageAvailable(%s): %w", bag.Tag, err)
	}
	return ok, nil
}

// MessageCount estimates the number of available messages in bag.
func (r *Repository) MessageCount(ctx context.Context, bag model.Citation) (int, error) {
	n, err := r.facade.MessageCount(ctx, bag)
	if err != nil {
		return 0, fmt.Errorf("repository: messageCount(%s): %w", bag.Tag, err)
	}
	return n, nil
}

// AddMessage enqueues content as a new available message in bag.
func (r *Repository) AddMessage(ctx context.Context, bag model.Citation, msgTag string, version model.Version, content []byte) (model.Message, error) {
	msg, err := r.facade.AddMessage(ctx, bag, msgTag, version, content)
	if err != nil {
		return model.Message{}, fmt.Errorf("repository: addMessage(%s): %w", bag.Tag, err)
	}
	return msg, nil
}

// BorrowMessage borrows the next available message from bag.
func (r *Repository) BorrowMessage(ctx context.Context, bag model.Citation) (model.Message, bool, error) {
	msg, found, err := r.facade.BorrowMessage(ctx, bag)
	if err != nil {
		return model.Message{}, false, fmt.Errorf("repository: borrowMessage(%s): %w", bag.Tag, err)
	}
	return msg, found, nil
}

// ReturnMessage releases a borrowed message back to its bag.
func (r *Repository) ReturnMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	released, err := r.facade.ReturnMessage(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("repository: returnMessage(%s): %w", msg.BagTag, err)
	}
	return released, nil
}

// DeleteMessage acknowledges a borrowed message, removing it permanently.
func (r *Repository) DeleteMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	consumed, err := r.facade.DeleteMessage(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("repository: deleteMessage(%s): %w", msg.BagTag, err)
	}
	return consumed, nil
}

// ListMessages returns every message currently in bag's given state.
func (r *Repository) ListMessages(ctx context.Context, bag model.Citation, state model.MessageState) ([]model.Message, error) {
	msgs, err := r.facade.ListMessages(ctx, bag, state)
	if err != nil {
		return nil, fmt.Errorf("repository: listMessages(%s): %w", bag.Tag, err)
	}
	return msgs, nil
}
