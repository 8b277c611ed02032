package facade

import (
	"context"
	"math/rand"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
	"xdao.co/depot/storage"
)

// bagCapacity reads bag's contract and extracts its declared capacity.
// The bag's contract must already exist; its absence is reported as
// model.KindNoBag, distinct from a generic notFound.
func (f *Facade) bagCapacity(ctx context.Context, bag model.Citation) (int, error) {
	contract, found, err := f.ReadContract(ctx, bag)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, model.New("messageCount", model.KindNoBag, "bag contract does not exist")
	}
	decl, err := decodeBagDeclaration(contract.Content)
	if err != nil {
		return 0, model.Wrap("messageCount", model.KindIO, "corrupt bag declaration", err)
	}
	return decl.Capacity, nil
}

// MessageCount estimates the number of available messages in bag. The
// count is only an estimate under contention: concurrent borrowers can
// change it between this call returning and a caller acting on it.
func (f *Facade) MessageCount(ctx context.Context, bag model.Citation) (int, error) {
	prefix := digest.BagPrefix(bag.Tag, bag.Version.String(), string(model.StateAvailable))
	keys, err := f.driver.List(ctx, storage.NamespaceMessages, prefix, 0)
	if err != nil {
		return 0, wrapIO("messageCount", err)
	}
	return len(keys), nil
}

// AddMessage enqueues content as a new available message in bag, subject
// to the bag's declared capacity. If a Limiter is configured, admission
// is first checked against it — a best-effort pre-check layered above,
// not instead of, the capacity check below.
func (f *Facade) AddMessage(ctx context.Context, bag model.Citation, msgTag string, version model.Version, content []byte) (model.Message, error) {
	if f.limiter != nil {
		allowed, err := f.limiter.Allow(ctx, bag.Tag, f.limiterPolicy, 1)
		if err != nil {
			return model.Message{}, wrapIO("addMessage", err)
		}
		if !allowed {
			return model.Message{}, model.New("addMessage", model.KindBagFull, "rate limit exceeded")
		}
	}

	capacity, err := f.bagCapacity(ctx, bag)
	if err != nil {
		return model.Message{}, err
	}

	count, err := f.MessageCount(ctx, bag)
	if err != nil {
		return model.Message{}, err
	}
	if count >= capacity {
		return model.Message{}, model.New("addMessage", model.KindBagFull, "bag is at capacity")
	}

	citation, _, err := f.notary.Notarize(ctx, msgTag, version, content)
	if err != nil {
		return model.Message{}, model.Wrap("addMessage", model.KindInvalidCredentials, "notarize message", err)
	}

	availKey := digest.MessageKey(bag.Tag, bag.Version.String(), string(model.StateAvailable), citation.Tag, citation.Version.String())
	procKey := digest.MessageKey(bag.Tag, bag.Version.String(), string(model.StateProcessing), citation.Tag, citation.Version.String())

	availExists, err := f.driver.Exists(ctx, storage.NamespaceMessages, availKey)
	if err != nil {
		return model.Message{}, wrapIO("addMessage", err)
	}
	procExists, err := f.driver.Exists(ctx, storage.NamespaceMessages, procKey)
	if err != nil {
		return model.Message{}, wrapIO("addMessage", err)
	}
	if availExists || procExists {
		return model.Message{}, model.New("addMessage", model.KindConflict, "message already exists")
	}

	data, err := encodeNotarized(citation, content)
	if err != nil {
		return model.Message{}, model.Wrap("addMessage", model.KindMalformedRequest, "encode message", err)
	}
	if err := f.driver.Write(ctx, storage.NamespaceMessages, availKey, data, true); err != nil {
		return model.Message{}, wrapIO("addMessage", err)
	}

	return model.Message{
		BagTag:     bag.Tag,
		BagVersion: bag.Version,
		State:      model.StateAvailable,
		Citation:   citation,
		Content:    content,
	}, nil
}

// BorrowMessage is the core concurrency primitive: at-most-once delivery
// under concurrent borrowers via random selection and a delete-returning-
// existed tie-break.
//
// found is false once the available list is exhausted; callers self-
// backpressure by retrying only until then, never on I/O failure.
func (f *Facade) BorrowMessage(ctx context.Context, bag model.Citation) (model.Message, bool, error) {
	availPrefix := digest.BagPrefix(bag.Tag, bag.Version.String(), string(model.StateAvailable))
	procPrefix := digest.BagPrefix(bag.Tag, bag.Version.String(), string(model.StateProcessing))

	for {
		if err := ctx.Err(); err != nil {
			return model.Message{}, false, err
		}

		candidates, err := f.driver.List(ctx, storage.NamespaceMessages, availPrefix, 0)
		if err != nil {
			return model.Message{}, false, wrapIO("borrowMessage", err)
		}
		if len(candidates) == 0 {
			return model.Message{}, false, nil
		}

		pick := candidates[rand.Intn(len(candidates))]
		availKey := availPrefix + "/" + pick
		procKey := procPrefix + "/" + pick

		data, found, err := f.driver.Read(ctx, storage.NamespaceMessages, availKey)
		if err != nil {
			return model.Message{}, false, wrapIO("borrowMessage", err)
		}
		if !found {
			continue // lost race, another borrower took it
		}

		existed, err := f.driver.Delete(ctx, storage.NamespaceMessages, availKey)
		if err != nil {
			return model.Message{}, false, wrapIO("borrowMessage", err)
		}
		if !existed {
			continue // lost race on delete
		}

		msg, err := decodeMessage(bag.Tag, bag.Version, model.StateProcessing, data)
		if err != nil {
			return model.Message{}, false, model.Wrap("borrowMessage", model.KindIO, "corrupt message record", err)
		}
		msg.LeasedAt = f.clock.Now().UTC()

		leased, err := encodeLeased(msg.Citation, msg.Content, msg.LeasedAt)
		if err != nil {
			return model.Message{}, false, model.Wrap("borrowMessage", model.KindMalformedRequest, "encode leased message", err)
		}
		if err := f.driver.Write(ctx, storage.NamespaceMessages, procKey, leased, true); err != nil {
			return model.Message{}, false, wrapIO("borrowMessage", err)
		}
		return msg, true, nil
	}
}

// ReturnMessage releases msg back to available under a bumped version. It
// fails model.KindLeaseExpired if msg's processing entry has already been
// reclaimed — by an acking borrower or a lease sweeper.
func (f *Facade) ReturnMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	procKey := digest.MessageKey(msg.BagTag, msg.BagVersion.String(), string(model.StateProcessing), msg.Citation.Tag, msg.Citation.Version.String())

	existed, err := f.driver.Delete(ctx, storage.NamespaceMessages, procKey)
	if err != nil {
		return model.Message{}, wrapIO("returnMessage", err)
	}
	if !existed {
		return model.Message{}, model.New("returnMessage", model.KindLeaseExpired, "message is no longer in processing")
	}

	nextVersion := msg.Citation.Version.Next()
	citation, _, err := f.notary.Notarize(ctx, msg.Citation.Tag, nextVersion, msg.Content)
	if err != nil {
		return model.Message{}, model.Wrap("returnMessage", model.KindInvalidCredentials, "re-notarize returned message", err)
	}

	availKey := digest.MessageKey(msg.BagTag, msg.BagVersion.String(), string(model.StateAvailable), citation.Tag, citation.Version.String())
	data, err := encodeNotarized(citation, msg.Content)
	if err != nil {
		return model.Message{}, model.Wrap("returnMessage", model.KindMalformedRequest, "encode returned message", err)
	}
	if err := f.driver.Write(ctx, storage.NamespaceMessages, availKey, data, true); err != nil {
		return model.Message{}, wrapIO("returnMessage", err)
	}

	return model.Message{
		BagTag:     msg.BagTag,
		BagVersion: msg.BagVersion,
		State:      model.StateAvailable,
		Citation:   citation,
		Content:    msg.Content,
		Attempts:   msg.Attempts + 1,
	}, nil
}

// DeleteMessage acknowledges msg, removing it permanently from processing
// and returning the consumed payload. It fails model.KindLeaseExpired if
// the processing entry has already been reclaimed.
func (f *Facade) DeleteMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	procKey := digest.MessageKey(msg.BagTag, msg.BagVersion.String(), string(model.StateProcessing), msg.Citation.Tag, msg.Citation.Version.String())

	data, found, err := f.driver.Read(ctx, storage.NamespaceMessages, procKey)
	if err != nil {
		return model.Message{}, wrapIO("deleteMessage", err)
	}
	if !found {
		return model.Message{}, model.New("deleteMessage", model.KindLeaseExpired, "message is no longer in processing")
	}

	if _, err := f.driver.Delete(ctx, storage.NamespaceMessages, procKey); err != nil {
		return model.Message{}, wrapIO("deleteMessage", err)
	}

	consumed, err := decodeMessage(msg.BagTag, msg.BagVersion, model.StateProcessing, data)
	if err != nil {
		return model.Message{}, model.Wrap("deleteMessage", model.KindIO, "corrupt message record", err)
	}
	return consumed, nil
}

// ListProcessing returns every message currently in bag's processing
// state, LeasedAt populated. It exists for the lease sweeper, which needs
// to find stale leases without borrowing them — ordinary callers never
// need this.
func (f *Facade) ListProcessing(ctx context.Context, bag model.Citation) ([]model.Message, error) {
	return f.ListMessages(ctx, bag, model.StateProcessing)
}

// ListMessages returns every message currently in bag's given state.
func (f *Facade) ListMessages(ctx context.Context, bag model.Citation, state model.MessageState) ([]model.Message, error) {
	prefix := digest.BagPrefix(bag.Tag, bag.Version.String(), string(state))
	keys, err := f.driver.List(ctx, storage.NamespaceMessages, prefix, 0)
	if err != nil {
		return nil, wrapIO("listMessages", err)
	}

	out := make([]model.Message, 0, len(keys))
	for _, key := range keys {
		data, found, err := f.driver.Read(ctx, storage.NamespaceMessages, prefix+"/"+key)
		if err != nil {
			return nil, wrapIO("listMessages", err)
		}
		if !found {
			continue // reclaimed between List and Read
		}
		msg, err := decodeMessage(bag.Tag, bag.Version, state, data)
		if err != nil {
			return nil, model.Wrap("listMessages", model.KindIO, "corrupt message record", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// MessageAvailable reports whether a message with the given citation is
// currently sitting in bag's available state.
func (f *Facade) MessageAvailable(ctx context.Context, bag model.Citation, msgTag string, msgVersion model.Version) (bool, error) {
	key := digest.MessageKey(bag.Tag, bag.Version.String(), string(model.StateAvailable), msgTag, msgVersion.String())
	ok, err := f.driver.Exists(ctx, storage.NamespaceMessages, key)
	if err != nil {
		return false, wrapIO("messageAvailable", err)
	}
	return ok, nil
}
