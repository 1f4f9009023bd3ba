package domain

import "fmt"

// TierErrorKind classifies analyzer failures so callers can decide whether to
// retry, requeue, or escalate without string matching.
type TierErrorKind string

const (
	TierErrorSetup      TierErrorKind = "setup"      // fatal, blocks startup
	TierErrorDependency TierErrorKind = "dependency" // per-job, skip this cycle
	TierErrorTransient  TierErrorKind = "transient"  // retried once, then requeued
	TierErrorContent    TierErrorKind = "content"    // never retried
	TierErrorSecurity   TierErrorKind = "security"   // never retried, always audited
)

// TierError wraps a sentinel error with its taxonomy kind and the tier it
// occurred in. It is the error half of every analyzer result.
type TierError struct {
	Kind TierErrorKind
	Tier int
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("tier %d: %s: %v", e.Tier, e.Kind, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }

func NewTierError(kind TierErrorKind, tier int, err error) *TierError {
	return &TierError{Kind: kind, Tier: tier, Err: err}
}

// Retryable reports whether a single retry is permitted for this failure.
// Only transient failures qualify; content and security failures indicate a
// prompt, model, or tamper problem that a retry cannot fix.
func (e *TierError) Retryable() bool { return e.Kind == TierErrorTransient }
