// Package driverregistry is a build-time plugin registry for storage.Driver
// backends: backends self-register via init() and a binary opts in by
// blank-importing the backend package it wants to link.
package driverregistry

// Usage restricts which programs should accept a given backend.
type Usage uint8

const (
	// UsageCLI indicates the backend should be available in CLI programs.
	UsageCLI Usage = 1 << iota
	// UsageDaemon indicates the backend should be available in long-running
	// server processes.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
