package model

import (
	"time"

	"xdao.co/depot/digest"
)

// MessageState is the lifecycle state of a Message within a bag.
type MessageState string

const (
	StateAvailable  MessageState = "available"
	StateProcessing MessageState = "processing"
)

// Citation is an immutable record that uniquely names a document.
type Citation struct {
	Tag     string
	Version Version
	Digest  digest.Digest
}

// Key returns the storage key this citation addresses: "<tag>/<version>".
func (c Citation) Key() string {
	return digest.DocKey(c.Tag, c.Version.String())
}

// Name is a hierarchical, path-like label bound once to a Citation.
type Name struct {
	Path     string
	Citation Citation
}

// Key returns the storage key for this name.
func (n Name) Key() string { return digest.NameKey(n.Path) }

// Draft is a mutable, unsigned document keyed by (tag, version).
type Draft struct {
	Tag     string
	Version Version
	Content []byte
}

// Key returns the storage key for this draft.
func (d Draft) Key() string { return digest.DocKey(d.Tag, d.Version.String()) }

// Document is an immutable notarized payload addressed by its Citation.
type Document struct {
	Citation Citation
	Content  []byte
}

// Contract is a Document that has been committed (promoted).
type Contract struct {
	Citation Citation
	Content  []byte
}

// BagDeclaration is the narrow typed view the facade decodes out of a
// bag's contract content, instead of parsing the full document payload
// wherever capacity is needed.
type BagDeclaration struct {
	Capacity int
}

// Message is a notarized document inside a bag, in state Available or
// Processing.
//
// Attempts is not stored with the message: BorrowMessage, ListMessages and
// DeleteMessage return it as zero, and ReturnMessage returns the Attempts of
// the message it was given plus one. It does not gate delivery and never
// influences which message a borrower receives.
type Message struct {
	BagTag     string
	BagVersion Version
	State      MessageState
	Citation   Citation
	Content    []byte
	Attempts   int

	// LeasedAt is when this message entered the Processing state. It is
	// zero for Available messages; the lease sweeper uses it to decide
	// whether a Processing entry has outlived its TTL.
	LeasedAt time.Time
}

// Key returns the full storage key for this message under its current state.
func (m Message) Key() string {
	return digest.MessageKey(m.BagTag, m.BagVersion.String(), string(m.State), m.Citation.Tag, m.Citation.Version.String())
}
