// Package errors provides standardized error handling patterns for gqlbridge.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the subscription bridge: Transient (temporary, retryable), Invalid (bad
// input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// Classification is what lets the reconnection controller decide whether a
// failed connection attempt is worth retrying without string matching at the
// call site. A dial timeout is Transient and feeds the backoff loop; a server
// rejecting credentials is Fatal and ends the loop; a base URL that cannot be
// parsed is Invalid and is surfaced to the caller immediately.
//
// # Error Classification
//
//   - Transient: dial failures, read timeouts, dropped connections (retry)
//   - Invalid: malformed protocol frames, bad endpoint URLs, unknown
//     subscription names (do not retry)
//   - Fatal: rejected authentication, missing endpoint configuration,
//     exhausted retry budgets (stop processing)
//
// The system integrates with Go's standard error handling, supporting
// errors.Is(), errors.As(), and wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if cfg.URL == "" {
//	    return errors.ErrMissingEndpoint
//	}
//
// Wrap errors with context for debugging:
//
//	if err := conn.WriteJSON(msg); err != nil {
//	    return errors.WrapTransient(err, "session", "subscribe", "send subscribe frame")
//	}
//
// Check classification for retry logic:
//
//	if err := attempt(ctx); err != nil {
//	    if errors.IsFatal(err) {
//	        return err // terminal, no further attempts
//	    }
//	    // transient or protocol fault: sleep and retry
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping
// (WrapTransient, WrapInvalid, WrapFatal); the generic Wrap() adds context
// without changing classification. Classification is preserved through
// wrapping chains, so a WrapTransient deep inside the session still reads as
// transient at the controller.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
