package facade

import (
	"encoding/json"
	"fmt"
	"time"

	"xdao.co/depot/digest"
	"xdao.co/depot/model"
)

// The textual document encoding/parser is an external collaborator; the
// facade only needs a storage envelope stable enough to round-trip a
// Citation and its content bytes, not the domain document grammar. JSON
// is the serialization convention this envelope follows.
type envelope struct {
	Tag      string `json:"tag"`
	Version  string `json:"version"`
	Digest   string `json:"digest"`
	Content  []byte `json:"content"`
	LeasedAt int64  `json:"leasedAt,omitempty"`
}

func encodeCitation(c model.Citation) ([]byte, error) {
	return json.Marshal(envelope{Tag: c.Tag, Version: c.Version.String(), Digest: c.Digest.String()})
}

func decodeCitation(data []byte) (model.Citation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Citation{}, fmt.Errorf("facade: decode citation: %w", err)
	}
	return citationFromEnvelope(env)
}

func citationFromEnvelope(env envelope) (model.Citation, error) {
	v, err := model.ParseVersion(env.Version)
	if err != nil {
		return model.Citation{}, fmt.Errorf("facade: decode citation version: %w", err)
	}
	d, err := digest.Parse(env.Digest)
	if err != nil {
		return model.Citation{}, fmt.Errorf("facade: decode citation digest: %w", err)
	}
	return model.Citation{Tag: env.Tag, Version: v, Digest: d}, nil
}

func encodeNotarized(c model.Citation, content []byte) ([]byte, error) {
	return json.Marshal(envelope{Tag: c.Tag, Version: c.Version.String(), Digest: c.Digest.String(), Content: content})
}

// encodeLeased is encodeNotarized plus a lease timestamp, used only when
// writing a message into the Processing state.
func encodeLeased(c model.Citation, content []byte, leasedAt time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Tag: c.Tag, Version: c.Version.String(), Digest: c.Digest.String(),
		Content: content, LeasedAt: leasedAt.Unix(),
	})
}

func decodeDocument(data []byte) (model.Document, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Document{}, fmt.Errorf("facade: decode document: %w", err)
	}
	c, err := citationFromEnvelope(env)
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{Citation: c, Content: env.Content}, nil
}

func decodeContract(data []byte) (model.Contract, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Contract{}, fmt.Errorf("facade: decode contract: %w", err)
	}
	c, err := citationFromEnvelope(env)
	if err != nil {
		return model.Contract{}, err
	}
	return model.Contract{Citation: c, Content: env.Content}, nil
}

type bagDeclarationEnvelope struct {
	Capacity int `json:"capacity"`
}

// decodeBagDeclaration extracts a bag's declared capacity from its
// contract content.
func decodeBagDeclaration(content []byte) (model.BagDeclaration, error) {
	var env bagDeclarationEnvelope
	if err := json.Unmarshal(content, &env); err != nil {
		return model.BagDeclaration{}, fmt.Errorf("facade: decode bag declaration: %w", err)
	}
	return model.BagDeclaration{Capacity: env.Capacity}, nil
}

func decodeMessage(bagTag string, bagVersion model.Version, state model.MessageState, data []byte) (model.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Message{}, fmt.Errorf("facade: decode message: %w", err)
	}
	c, err := citationFromEnvelope(env)
	if err != nil {
		return model.Message{}, err
	}
	msg := model.Message{
		BagTag:     bagTag,
		BagVersion: bagVersion,
		State:      state,
		Citation:   c,
		Content:    env.Content,
	}
	if env.LeasedAt != 0 {
		msg.LeasedAt = time.Unix(env.LeasedAt, 0).UTC()
	}
	return msg, nil
}
