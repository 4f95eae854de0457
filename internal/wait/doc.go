// Package wait defines the timing policies used while polling for the result
// of a document request: how long to sleep before the next check and whether
// polling may continue at all.
package wait
