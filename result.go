package transactions

// Attempt represents a singular attempt at executing a transaction.  A
// transaction may require multiple attempts before being successful.
type Attempt struct {
	ID    string
	State AttemptState

	// Rounds is the number of round trips performed on the unprotected
	// channel.  Schedulers execute reads immediately and report zero.
	Rounds int
}

// Result represents the result of a transaction which was executed.
type Result struct {
	// TransactionID represents the UUID assigned to this transaction
	TransactionID string

	// Attempts records all attempts that were performed when executing
	// this transaction.
	Attempts []Attempt
}

// Conflicts returns the number of attempts which were discarded because of
// a conflict.
func (r *Result) Conflicts() int {
	conflicts := 0
	for _, attempt := range r.Attempts {
		if attempt.State == AttemptStateConflicted {
			conflicts++
		}
	}
	return conflicts
}
