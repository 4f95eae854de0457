// Package engine provides the asynchronous document generation engine.
// It runs each submitted request on its own goroutine, resolves a generator
// by service type, enforces the generation deadline and records the outcome
// in the store. Every terminal transition wakes the request's waiting poller
// through the pending registry and is published to event subscribers.
package engine
