package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"xdao.co/depot/facade"
	"xdao.co/depot/model"
	"xdao.co/depot/notary"
	"xdao.co/depot/storage/localfs"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	driver, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	n, _, err := notary.NewEd25519()
	if err != nil {
		t.Fatalf("notary.NewEd25519: %v", err)
	}
	return New(facade.New(driver, n, facade.Config{}))
}

func TestCreateDocument_UnknownTypeNameFails(t *testing.T) {
	r := newTestRepository(t)
	if _, err := r.CreateDocument(context.Background(), "/types/does-not-exist", nil, nil); err == nil {
		t.Fatal("expected an error for an unbound type name")
	} else if !model.IsKind(err, model.KindUnknownType) {
		t.Fatalf("expected KindUnknownType, got %v", err)
	}
}

func TestCreateDocument_MergesTemplateOverDefaults(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)

	typeCitation, err := r.CommitDocument(ctx, "/types/memo", "memo-type", model.MustVersion("1.0.0"), []byte(`{"subject":""}`))
	if err != nil {
		t.Fatalf("CommitDocument (type): %v", err)
	}
	_ = typeCitation

	draft, err := r.CreateDocument(ctx, "/types/memo", nil, []byte(`{"subject":"hello"}`))
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if string(draft.Content) != `{"subject":"hello"}` {
		t.Fatalf("draft content = %s, want the caller's template", draft.Content)
	}
	if draft.TypeTag != "memo-type" {
		t.Fatalf("draft.TypeTag = %q, want memo-type", draft.TypeTag)
	}
	if _, err := uuid.Parse(draft.Tag); err != nil {
		t.Fatalf("draft.Tag = %q, want a generated uuid: %v", draft.Tag, err)
	}
}

func TestSaveRetrieveDiscardDocument_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	tag, version := "draft-1", model.MustVersion("1.0.0")

	if err := r.SaveDocument(ctx, tag, version, []byte("draft body")); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	citation := model.Citation{Tag: tag, Version: version}
	content, found, err := r.RetrieveDocument(ctx, citation)
	if err != nil || !found {
		t.Fatalf("RetrieveDocument: found=%v err=%v", found, err)
	}
	if string(content) != "draft body" {
		t.Fatalf("content = %q, want %q", content, "draft body")
	}

	existed, err := r.DiscardDocument(ctx, citation)
	if err != nil {
		t.Fatalf("DiscardDocument: %v", err)
	}
	if !existed {
		t.Fatal("DiscardDocument reported existed=false for a draft that was just saved")
	}

	if _, found, err := r.RetrieveDocument(ctx, citation); err != nil || found {
		t.Fatalf("RetrieveDocument after discard: found=%v err=%v", found, err)
	}
}

func TestCommitDocument_NameAlreadyBoundConflicts(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)

	if _, err := r.CommitDocument(ctx, "/docs/report", "report", model.MustVersion("1.0.0"), []byte("v1")); err != nil {
		t.Fatalf("first CommitDocument: %v", err)
	}
	if _, err := r.CommitDocument(ctx, "/docs/report", "report-2", model.MustVersion("1.0.0"), []byte("v2")); err == nil {
		t.Fatal("expected a conflict on the second commit under the same name")
	} else if !model.IsKind(err, model.KindConflict) {
		t.Fatalf("expected KindConflict, got %v", err)
	}
}

func TestRetrieveName_ResolvesThroughToDocumentContent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)

	if _, err := r.CommitDocument(ctx, "/docs/report", "report", model.MustVersion("1.0.0"), []byte("contents")); err != nil {
		t.Fatalf("CommitDocument: %v", err)
	}

	content, found, err := r.RetrieveName(ctx, "/docs/report")
	if err != nil || !found {
		t.Fatalf("RetrieveName: found=%v err=%v", found, err)
	}
	if string(content) != "contents" {
		t.Fatalf("content = %q, want %q", content, "contents")
	}
}

func TestRetrieveName_UnboundNameReportsNotFound(t *testing.T) {
	r := newTestRepository(t)
	_, found, err := r.RetrieveName(context.Background(), "/docs/missing")
	if err != nil {
		t.Fatalf("RetrieveName: %v", err)
	}
	if found {
		t.Fatal("expected found=false for an unbound name")
	}
}

func mustRepositoryBag(t *testing.T, ctx context.Context, r *Repository, tag string, capacity int) model.Citation {
	t.Helper()
	content := []byte(fmt.Sprintf(`{"capacity":%d}`, capacity))
	citation, err := r.CommitDocument(ctx, "/bags/"+tag, tag, model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("CommitDocument (bag): %v", err)
	}
	doc, found, err := r.facade.ReadDocument(ctx, citation)
	if err != nil || !found {
		t.Fatalf("ReadDocument (bag): found=%v err=%v", found, err)
	}
	if err := r.facade.WriteContract(ctx, doc); err != nil {
		t.Fatalf("WriteContract (bag): %v", err)
	}
	return citation
}

func TestRepository_MessageLifecycleDelegatesToFacade(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	bag := mustRepositoryBag(t, ctx, r, "bag-1", 5)

	if count, err := r.MessageCount(ctx, bag); err != nil || count != 0 {
		t.Fatalf("MessageCount before add: count=%d err=%v", count, err)
	}

	added, err := r.AddMessage(ctx, bag, "msg-1", model.MustVersion("1.0.0"), []byte("payload"))
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	if ok, err := r.MessageAvailable(ctx, bag, added.Citation.Tag, added.Citation.Version); err != nil || !ok {
		t.Fatalf("MessageAvailable: ok=%v err=%v", ok, err)
	}
	if count, err := r.MessageCount(ctx, bag); err != nil || count != 1 {
		t.Fatalf("MessageCount after add: count=%d err=%v", count, err)
	}

	borrowed, found, err := r.BorrowMessage(ctx, bag)
	if err != nil || !found {
		t.Fatalf("BorrowMessage: found=%v err=%v", found, err)
	}
	if string(borrowed.Content) != "payload" {
		t.Fatalf("borrowed content = %q, want %q", borrowed.Content, "payload")
	}

	processing, err := r.ListMessages(ctx, bag, model.StateProcessing)
	if err != nil || len(processing) != 1 {
		t.Fatalf("ListMessages(processing): len=%d err=%v", len(processing), err)
	}

	returned, err := r.ReturnMessage(ctx, borrowed)
	if err != nil {
		t.Fatalf("ReturnMessage: %v", err)
	}

	reborrowed, found, err := r.BorrowMessage(ctx, bag)
	if err != nil || !found {
		t.Fatalf("BorrowMessage (2nd): found=%v err=%v", found, err)
	}
	if reborrowed.Citation.Tag != returned.Citation.Tag {
		t.Fatalf("reborrowed tag = %q, want %q", reborrowed.Citation.Tag, returned.Citation.Tag)
	}

	consumed, err := r.DeleteMessage(ctx, reborrowed)
	if err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if string(consumed.Content) != "payload" {
		t.Fatalf("consumed content = %q, want %q", consumed.Content, "payload")
	}
}

func TestCommitDocument_RetiresDraftAtSameKey(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	tag, version := "doc-1", model.MustVersion("1.0.0")

	if err := r.SaveDocument(ctx, tag, version, []byte("draft body")); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if _, err := r.CommitDocument(ctx, "/docs/promoted", tag, version, []byte("final body")); err != nil {
		t.Fatalf("CommitDocument: %v", err)
	}

	if _, found, err := r.RetrieveDocument(ctx, model.Citation{Tag: tag, Version: version}); err != nil || found {
		t.Fatalf("RetrieveDocument after commit: found=%v err=%v, want the draft retired", found, err)
	}
}
