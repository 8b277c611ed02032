package facade

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"xdao.co/depot/model"
	"xdao.co/depot/notary"
	"xdao.co/depot/ratelimit"
	"xdao.co/depot/storage/localfs"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	driver, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	n, _, err := notary.NewEd25519()
	if err != nil {
		t.Fatalf("notary.NewEd25519: %v", err)
	}
	return New(driver, n, Config{})
}

func mustBagContract(t *testing.T, f *Facade, tag string, capacity int) model.Citation {
	t.Helper()
	content, err := json.Marshal(struct {
		Capacity int `json:"capacity"`
	}{Capacity: capacity})
	if err != nil {
		t.Fatalf("marshal bag declaration: %v", err)
	}
	citation, err := f.WriteDocument(context.Background(), tag, model.MustVersion("1.0.0"), content)
	if err != nil {
		t.Fatalf("WriteDocument (bag): %v", err)
	}
	doc, found, err := f.ReadDocument(context.Background(), citation)
	if err != nil || !found {
		t.Fatalf("ReadDocument (bag): found=%v err=%v", found, err)
	}
	if err := f.WriteContract(context.Background(), doc); err != nil {
		t.Fatalf("WriteContract (bag): %v", err)
	}
	return citation
}

func TestName_WriteThenWriteAgainConflicts(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	citation := model.Citation{Tag: "doc-1", Version: model.MustVersion("1.0.0")}

	if ok, err := f.NameExists(ctx, "/examples/name"); err != nil || ok {
		t.Fatalf("NameExists before write: ok=%v err=%v", ok, err)
	}
	if err := f.WriteName(ctx, "/examples/name", citation); err != nil {
		t.Fatalf("WriteName: %v", err)
	}
	if ok, err := f.NameExists(ctx, "/examples/name"); err != nil || !ok {
		t.Fatalf("NameExists after write: ok=%v err=%v", ok, err)
	}
	got, found, err := f.ReadName(ctx, "/examples/name")
	if err != nil || !found || got.Tag != citation.Tag {
		t.Fatalf("ReadName: got=%+v found=%v err=%v", got, found, err)
	}

	other := model.Citation{Tag: "doc-2", Version: model.MustVersion("1.0.0")}
	err = f.WriteName(ctx, "/examples/name", other)
	if !model.IsKind(err, model.KindConflict) {
		t.Fatalf("expected a conflict on second WriteName, got %v", err)
	}

	got, found, err = f.ReadName(ctx, "/examples/name")
	if err != nil || !found || got.Tag != citation.Tag {
		t.Fatalf("ReadName after rejected rewrite must still return the original: got=%+v found=%v err=%v", got, found, err)
	}
}

func TestDraft_OverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	tag, version := "draft-1", model.MustVersion("1.0.0")

	if err := f.WriteDraft(ctx, tag, version, []byte("a")); err != nil {
		t.Fatalf("WriteDraft a: %v", err)
	}
	if err := f.WriteDraft(ctx, tag, version, []byte("b")); err != nil {
		t.Fatalf("WriteDraft b: %v", err)
	}
	data, found, err := f.ReadDraft(ctx, tag, version)
	if err != nil || !found || string(data) != "b" {
		t.Fatalf("ReadDraft: got=%q found=%v err=%v", data, found, err)
	}

	existed, err := f.DeleteDraft(ctx, tag, version)
	if err != nil || !existed {
		t.Fatalf("DeleteDraft: existed=%v err=%v", existed, err)
	}
	if _, found, err := f.ReadDraft(ctx, tag, version); err != nil || found {
		t.Fatalf("ReadDraft after delete: found=%v err=%v", found, err)
	}
	existed, err = f.DeleteDraft(ctx, tag, version)
	if err != nil || existed {
		t.Fatalf("second DeleteDraft must be a no-op: existed=%v err=%v", existed, err)
	}
}

func TestDocumentContract_PromotionHidesStagingDocument(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	tag, version := "doc-1", model.MustVersion("1.0.0")

	citation, err := f.WriteDocument(ctx, tag, version, []byte("payload"))
	if err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	doc, found, err := f.ReadDocument(ctx, citation)
	if err != nil || !found {
		t.Fatalf("ReadDocument: found=%v err=%v", found, err)
	}

	if err := f.WriteContract(ctx, doc); err != nil {
		t.Fatalf("WriteContract: %v", err)
	}

	if _, found, err := f.ReadDocument(ctx, citation); err != nil || found {
		t.Fatalf("ReadDocument after promotion must report not found: found=%v err=%v", found, err)
	}
	contract, found, err := f.ReadContract(ctx, citation)
	if err != nil || !found || string(contract.Content) != "payload" {
		t.Fatalf("ReadContract: contract=%+v found=%v err=%v", contract, found, err)
	}
}

func TestAddMessage_RejectsPastCapacity(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-1", 2)

	if _, err := f.AddMessage(ctx, bag, "msg-1", model.MustVersion("1.0.0"), []byte("first")); err != nil {
		t.Fatalf("AddMessage 1: %v", err)
	}
	if _, err := f.AddMessage(ctx, bag, "msg-2", model.MustVersion("1.0.0"), []byte("second")); err != nil {
		t.Fatalf("AddMessage 2: %v", err)
	}
	_, err := f.AddMessage(ctx, bag, "msg-3", model.MustVersion("1.0.0"), []byte("third"))
	if !model.IsKind(err, model.KindBagFull) {
		t.Fatalf("expected bagFull on the third add, got %v", err)
	}
}

func TestBorrowMessage_EachPayloadDeliveredExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-2", 3)

	payloads := []string{"first", "second", "third"}
	for i, p := range payloads {
		if _, err := f.AddMessage(ctx, bag, "msg-"+p, model.MustVersion("1.0.0"), []byte(p)); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < len(payloads); i++ {
		msg, found, err := f.BorrowMessage(ctx, bag)
		if err != nil || !found {
			t.Fatalf("BorrowMessage %d: found=%v err=%v", i, found, err)
		}
		if seen[string(msg.Content)] {
			t.Fatalf("payload %q delivered twice", msg.Content)
		}
		seen[string(msg.Content)] = true
	}

	if _, found, err := f.BorrowMessage(ctx, bag); err != nil || found {
		t.Fatalf("fourth borrow must return none: found=%v err=%v", found, err)
	}
	for _, p := range payloads {
		if !seen[p] {
			t.Fatalf("payload %q was never delivered", p)
		}
	}
}

func TestBorrowReturn_RevisionsAndRedelivers(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-3", 1)

	if _, err := f.AddMessage(ctx, bag, "msg", model.MustVersion("1.0.0"), []byte("payload")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	borrowed, found, err := f.BorrowMessage(ctx, bag)
	if err != nil || !found {
		t.Fatalf("BorrowMessage: found=%v err=%v", found, err)
	}

	returned, err := f.ReturnMessage(ctx, borrowed)
	if err != nil {
		t.Fatalf("ReturnMessage: %v", err)
	}
	if returned.Citation.Version.Equal(borrowed.Citation.Version) {
		t.Fatalf("ReturnMessage must bump the version")
	}

	redelivered, found, err := f.BorrowMessage(ctx, bag)
	if err != nil || !found {
		t.Fatalf("second BorrowMessage: found=%v err=%v", found, err)
	}
	if !redelivered.Citation.Version.Equal(returned.Citation.Version) {
		t.Fatalf("redelivered message should carry the bumped version")
	}

	if _, err := f.ReturnMessage(ctx, borrowed); !model.IsKind(err, model.KindLeaseExpired) {
		t.Fatalf("returning the stale lease must fail leaseExpired, got %v", err)
	}
}

func TestDeleteMessage_AcknowledgesAndRejectsExpiredLease(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-4", 1)

	if _, err := f.AddMessage(ctx, bag, "msg", model.MustVersion("1.0.0"), []byte("payload")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	borrowed, found, err := f.BorrowMessage(ctx, bag)
	if err != nil || !found {
		t.Fatalf("BorrowMessage: found=%v err=%v", found, err)
	}

	consumed, err := f.DeleteMessage(ctx, borrowed)
	if err != nil || string(consumed.Content) != "payload" {
		t.Fatalf("DeleteMessage: consumed=%+v err=%v", consumed, err)
	}

	if _, err := f.DeleteMessage(ctx, borrowed); !model.IsKind(err, model.KindLeaseExpired) {
		t.Fatalf("second DeleteMessage must fail leaseExpired, got %v", err)
	}
}

// TestBorrowMessage_ConcurrentBorrowersDeliverEachPayloadOnce verifies the
// bag protocol's at-most-once delivery property: N concurrent borrowers
// racing on a bag of M messages (N > M) each receive a distinct original
// payload, with no duplicates and no payload lost.
func TestBorrowMessage_ConcurrentBorrowersDeliverEachPayloadOnce(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	const messageCount = 8
	bag := mustBagContract(t, f, "bag-race", messageCount)

	want := map[string]bool{}
	for i := 0; i < messageCount; i++ {
		payload := []byte{byte('a' + i)}
		if _, err := f.AddMessage(ctx, bag, "msg", model.MustVersion("1.0.0"), payload); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
		want[string(payload)] = true
	}

	const borrowers = 32
	results := make(chan model.Message, borrowers)
	var wg sync.WaitGroup
	for i := 0; i < borrowers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, found, err := f.BorrowMessage(ctx, bag)
			if err != nil {
				t.Errorf("BorrowMessage: %v", err)
				return
			}
			if found {
				results <- msg
			}
		}()
	}
	wg.Wait()
	close(results)

	got := map[string]int{}
	for msg := range results {
		got[string(msg.Content)]++
	}
	if len(got) != messageCount {
		t.Fatalf("delivered %d distinct payloads, want %d: %v", len(got), messageCount, got)
	}
	for payload, count := range got {
		if count != 1 {
			t.Fatalf("payload %q delivered %d times, want exactly 1", payload, count)
		}
		if !want[payload] {
			t.Fatalf("delivered unexpected payload %q", payload)
		}
	}
}

func TestMessageCount_TracksAvailableMessages(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-5", 5)

	if count, err := f.MessageCount(ctx, bag); err != nil || count != 0 {
		t.Fatalf("MessageCount before adds: count=%d err=%v", count, err)
	}
	if _, err := f.AddMessage(ctx, bag, "msg-1", model.MustVersion("1.0.0"), []byte("x")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if count, err := f.MessageCount(ctx, bag); err != nil || count != 1 {
		t.Fatalf("MessageCount after one add: count=%d err=%v", count, err)
	}
}

func TestAddMessage_FailsWithoutBagContract(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := model.Citation{Tag: "no-such-bag", Version: model.MustVersion("1.0.0")}

	_, err := f.AddMessage(ctx, bag, "msg", model.MustVersion("1.0.0"), []byte("x"))
	if !model.IsKind(err, model.KindNoBag) {
		t.Fatalf("expected noBag, got %v", err)
	}
}

func TestWriteDocument_RetiresDraftAtSameKey(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	tag, version := "doc-1", model.MustVersion("1.0.0")

	if err := f.WriteDraft(ctx, tag, version, []byte("draft body")); err != nil {
		t.Fatalf("WriteDraft: %v", err)
	}
	if _, err := f.WriteDocument(ctx, tag, version, []byte("promoted body")); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if _, found, err := f.ReadDraft(ctx, tag, version); err != nil || found {
		t.Fatalf("ReadDraft after promotion: found=%v err=%v, want the draft retired", found, err)
	}
}

func TestWriteDocument_ToleratesNoPriorDraft(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	if _, err := f.WriteDocument(ctx, "doc-2", model.MustVersion("1.0.0"), []byte("body")); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
}

func TestMessageAvailable_ReflectsBorrowState(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-6", 5)

	msg, err := f.AddMessage(ctx, bag, "msg-1", model.MustVersion("1.0.0"), []byte("x"))
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if ok, err := f.MessageAvailable(ctx, bag, msg.Citation.Tag, msg.Citation.Version); err != nil || !ok {
		t.Fatalf("MessageAvailable before borrow: ok=%v err=%v", ok, err)
	}

	if _, found, err := f.BorrowMessage(ctx, bag); err != nil || !found {
		t.Fatalf("BorrowMessage: found=%v err=%v", found, err)
	}
	if ok, err := f.MessageAvailable(ctx, bag, msg.Citation.Tag, msg.Citation.Version); err != nil || ok {
		t.Fatalf("MessageAvailable after borrow: ok=%v err=%v, want false", ok, err)
	}
}

func TestListMessages_FiltersByState(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	bag := mustBagContract(t, f, "bag-7", 5)

	if _, err := f.AddMessage(ctx, bag, "msg-1", model.MustVersion("1.0.0"), []byte("x")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	available, err := f.ListMessages(ctx, bag, model.StateAvailable)
	if err != nil || len(available) != 1 {
		t.Fatalf("ListMessages(available): len=%d err=%v", len(available), err)
	}
	processing, err := f.ListMessages(ctx, bag, model.StateProcessing)
	if err != nil || len(processing) != 0 {
		t.Fatalf("ListMessages(processing) before borrow: len=%d err=%v", len(processing), err)
	}

	if _, found, err := f.BorrowMessage(ctx, bag); err != nil || !found {
		t.Fatalf("BorrowMessage: found=%v err=%v", found, err)
	}
	processing, err = f.ListMessages(ctx, bag, model.StateProcessing)
	if err != nil || len(processing) != 1 {
		t.Fatalf("ListMessages(processing) after borrow: len=%d err=%v", len(processing), err)
	}
}

func TestAddMessage_LimiterRejectsOverBurst(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("skipping limiter integration test: redis not available")
	}
	defer client.Close()

	driver, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	n, _, err := notary.NewEd25519()
	if err != nil {
		t.Fatalf("notary.NewEd25519: %v", err)
	}
	f := New(driver, n, Config{
		Limiter:       ratelimit.New(client),
		LimiterPolicy: ratelimit.Policy{RatePerSecond: 1, Burst: 1},
	})
	bag := mustBagContract(t, f, "bag-limited", 100)

	if _, err := f.AddMessage(ctx, bag, "msg-1", model.MustVersion("1.0.0"), []byte("x")); err != nil {
		t.Fatalf("first AddMessage: %v", err)
	}
	_, err = f.AddMessage(ctx, bag, "msg-2", model.MustVersion("1.0.0"), []byte("x"))
	if !model.IsKind(err, model.KindBagFull) {
		t.Fatalf("expected bagFull from the limiter, got %v", err)
	}
}
