package transactions

// TransactionHooks provides a number of internal hooks used for testing.
// Internal: This should never be used and is not supported.
type TransactionHooks interface {
	BeforeAttempt(attemptID string) error
	AfterReadRound(attemptID string, round int) error
	BeforeCommit(attemptID string) error
	AfterConflict(attemptID string) error
}

// DefaultHooks is the default set of noop hooks used within the library.
// Internal: This should never be used and is not supported.
type DefaultHooks struct {
}

// BeforeAttempt is called before every attempt, before any key is watched.
func (dh *DefaultHooks) BeforeAttempt(attemptID string) error {
	return nil
}

// AfterReadRound is called after each round trip of a Transaction's
// unprotected channel.
func (dh *DefaultHooks) AfterReadRound(attemptID string, round int) error {
	return nil
}

// BeforeCommit is called after the watches are in place and right before
// the atomic block is submitted.
func (dh *DefaultHooks) BeforeCommit(attemptID string) error {
	return nil
}

// AfterConflict is called once an attempt has been discarded because of a conflict.
func (dh *DefaultHooks) AfterConflict(attemptID string) error {
	return nil
}
