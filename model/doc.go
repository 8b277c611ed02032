// Package model defines the domain types shared by the storage facade and
// the repository API: names, citations, drafts, documents, contracts,
// messages, and the structured error type every layer wraps its failures in.
//
// These are plain data types. They carry no I/O and no backend knowledge;
// the storage driver and facade packages are the only things that turn them
// into bytes on a wire or on disk.
package model
