// ABOUTME: Executor interface for the remote model call made once per dispatch attempt
// ABOUTME: Implementations own their transport; the dispatch controller adds the outer deadline

package executor

import "context"

// Executor performs one remote inference call. Latency is unbounded from
// the caller's point of view; the dispatch controller races every Invoke
// against its own deadline.
type Executor interface {
	// Invoke sends the system and user instructions and returns the
	// response text. Implementations may have their own internal
	// timeout/retry behavior; that is opaque to callers.
	Invoke(ctx context.Context, systemInstruction, userInstruction string) (string, error)
}
