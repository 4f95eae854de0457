// Package coordinator implements the wait-for-result polling loop for document
// requests. A caller blocks in WaitForResult while the request is generated
// elsewhere; the loop re-checks the request's terminal state on the schedule
// chosen by a wait.Strategy and can be woken early through the shared
// pending.Registry when a result lands.
package coordinator
