// Package dispatch implements the agent-task assignment and execution core.
//
// # Overview
//
// One Dispatch call processes one request against one agent:
//
//	caller -> Controller -> Engine (reserve) -> Executor (bounded call)
//	       -> Controller (commit + release) -> caller
//
// # State Machine
//
// Each attempt moves through:
//
//	Received -> Reserved -> Invoking -> Committed(success)
//	                                 -> Committed(failure)
//	         -> Aborted (reservation failed, nothing mutated)
//
// Entity states follow the attempt:
//
//   - Agent: idle -> processing at reservation, back to idle at commit,
//     on every path, including timeout and executor failure.
//   - Request: pending -> processing -> completed | failed. Terminal
//     states are final; replays are rejected with RequestClosed.
//
// # Reservation Atomicity
//
// The reservation is a conditional status update in the store
// (idle -> processing, guarded on the current status). Two concurrent
// attempts can never both claim the same agent: one wins the update, the
// other observes a conflict and retries against a fresh idle-agent
// lookup, bounded by the retry budget. Specific-agent reservations are
// never retried.
//
// The request is claimed the same way: a conditional pending -> processing
// transition after the agent reservation. Two attempts dispatching the
// same request id produce exactly one winner; the loser releases its agent
// and reports RequestClosed. A request is consumed at most once and its
// terminal state is never overwritten.
//
// # Deadline Policy
//
// The executor call is raced against a per-attempt timeout (default
// 60s). The timeout is fail-safe: the losing branch only unwinds
// bookkeeping state, it does not cancel the remote call. Callers that
// need resource reclamation at the executor layer must arrange it there.
//
// # Error Taxonomy
//
// Failed attempts return *Error with a machine-checkable Reason:
//
//	RequestNotFound   no such request; nothing mutated
//	RequestClosed     request already consumed; nothing mutated
//	NoAgentAvailable  capacity exhausted; nothing mutated; retryable
//	ExecutionTimeout  deadline elapsed; request failed, agent released
//	ExecutionFailure  executor error or empty response; same rollback
//
// Reservation conflicts never surface: they are absorbed by the retry
// loop and reported as NoAgentAvailable when the budget runs out.
//
// # Key Files
//
//   - engine.go: agent selection and atomic reservation
//   - controller.go: the attempt state machine and rollback logic
//   - result.go: Result payload and error taxonomy
//   - prompt.go: instruction templating for executor calls
package dispatch
