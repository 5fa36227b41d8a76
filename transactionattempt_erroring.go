package transactions

import (
	"context"
	"errors"
)

func classifyError(err error) ErrorClass {
	ec := ErrorClassFailOther
	if errors.Is(err, ErrConflictExhausted) {
		ec = ErrorClassFailConflictExhausted
	} else if isConflict(err) {
		ec = ErrorClassFailConflict
	} else if errors.Is(err, ErrProtocolMisuse) {
		ec = ErrorClassFailProtocolMisuse
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		ec = ErrorClassFailCanceled
	} else if err != nil {
		ec = ErrorClassFailStore
	}

	return ec
}

func (t *transactionAttempt) conflictsExhausted(cause error) *TransactionFailedError {
	return &TransactionFailedError{
		transactionID: t.transactionID,
		conflicts:     t.conflicts,
		errorCause:    cause,
		errorClass:    ErrorClassFailConflictExhausted,
	}
}
