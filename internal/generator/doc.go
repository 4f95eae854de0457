// Package generator defines the interface that document generators implement,
// the types exchanged with the engine and a registry that selects a generator
// by service type.
package generator
