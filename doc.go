// Package escrow implements the order lifecycle of a two party escrow
// marketplace: a seller opens an escrow, a buyer joins it with a code, an
// admin confirms the payment and releases or refunds it.
//
// Escrow lifecycle:
//   - Escrows carry an EscrowStatus persisted via Bun. TransitionGraph holds
//     the allowed edges; completed, refunded and closed are terminal.
//   - EscrowStateMachine is the only writer of status. Every call validates
//     the edge, checks the actor role, and commits with a conditional update
//     so concurrent writers lose with ErrConcurrentModification.
//   - ForceComplete lets an admin move any non terminal escrow to completed.
//
// Side effects:
//   - After a commit the state machine appends a StatusLog row, calls the
//     Notifier, and records an ActivityEvent. These run best-effort: failures
//     are logged and reported in TransitionResult but never revert the
//     status change.
//
// Identity:
//   - Requests carry JWT bearer tokens. ProtectedRoute and AdminRoute wrap
//     the jwtware middleware and turn claims into an Actor.
package escrow
