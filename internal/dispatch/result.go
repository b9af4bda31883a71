// ABOUTME: Caller-facing outcome types for dispatch attempts
// ABOUTME: Defines the Result payload and the machine-checkable error taxonomy

package dispatch

import "fmt"

// Reason is a short machine-checkable failure class.
type Reason string

const (
	// ReasonRequestNotFound: the request id does not exist. Client error,
	// no state was touched.
	ReasonRequestNotFound Reason = "RequestNotFound"

	// ReasonRequestClosed: the request already reached processing or a
	// terminal state. Replays must mint a new request, not reopen this one.
	ReasonRequestClosed Reason = "RequestClosed"

	// ReasonNoAgentAvailable: no idle agent matched the selection criteria.
	// Retryable capacity signal, no state was touched.
	ReasonNoAgentAvailable Reason = "NoAgentAvailable"

	// ReasonExecutionTimeout: the executor did not respond within the
	// deadline. The request is failed and the agent released.
	ReasonExecutionTimeout Reason = "ExecutionTimeout"

	// ReasonExecutionFailure: the executor returned an error or an empty
	// response. Same rollback as a timeout.
	ReasonExecutionFailure Reason = "ExecutionFailure"
)

// Retryable reports whether a caller may reasonably retry after this
// failure without changing the request.
func (r Reason) Retryable() bool {
	return r == ReasonNoAgentAvailable || r == ReasonExecutionTimeout
}

// Result is the terminal outcome of a successful dispatch attempt.
type Result struct {
	Success   bool
	RequestID string
	AgentID   string
	AgentName string
	Output    string
}

// Error is the terminal outcome of a failed dispatch attempt: a short
// machine-checkable reason plus a human-readable detail.
type Error struct {
	Reason    Reason
	RequestID string
	Detail    string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("dispatch %s: %s", e.RequestID, e.Reason)
	}
	return fmt.Sprintf("dispatch %s: %s: %s", e.RequestID, e.Reason, e.Detail)
}

func newError(reason Reason, requestID, detail string) *Error {
	return &Error{Reason: reason, RequestID: requestID, Detail: detail}
}
