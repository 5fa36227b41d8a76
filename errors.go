package transactions

import (
	"encoding/json"
	"errors"
)

var (
	// ErrConflict indicates that a watched key was modified between WATCH and
	// the submission of the atomic block.  It is retried internally and only
	// surfaces wrapped in ErrConflictExhausted.
	ErrConflict = errors.New("watched key modified")

	// ErrConflictExhausted indicates that an execution hit more conflicts than
	// its configured ceiling allows.
	ErrConflictExhausted = errors.New("too many conflicts")

	// ErrProtocolMisuse indicates that a registration or execution method was
	// called outside of the phase in which it is legal.
	ErrProtocolMisuse = errors.New("protocol misuse")

	// ErrInvalidConfig indicates that the provided configuration is unusable.
	ErrInvalidConfig = errors.New("invalid config")
)

// TransactionFailedError is returned when a Transaction or Scheduler gives up
// after exhausting its conflict ceiling.
type TransactionFailedError struct {
	transactionID string
	conflicts     int
	errorCause    error
	errorClass    ErrorClass
}

func (tfe TransactionFailedError) MarshalJSON() ([]byte, error) {
	var causeData json.RawMessage
	if tfe.errorCause != nil {
		if marshaler, ok := tfe.errorCause.(json.Marshaler); ok {
			if data, err := marshaler.MarshalJSON(); err == nil {
				causeData = data
			}
		} else {
			if data, err := json.Marshal(tfe.errorCause.Error()); err == nil {
				causeData = data
			}
		}
	}

	return json.Marshal(struct {
		TransactionID string          `json:"txn"`
		Conflicts     int             `json:"conflicts"`
		Class         string          `json:"class"`
		Cause         json.RawMessage `json:"cause,omitempty"`
	}{
		TransactionID: tfe.transactionID,
		Conflicts:     tfe.conflicts,
		Class:         errorClassToString(tfe.errorClass),
		Cause:         causeData,
	})
}

func (tfe TransactionFailedError) Error() string {
	errStr := "transaction failed"
	errStr += " | " +
		"txn:" + tfe.transactionID + ", " +
		"class:" + errorClassToString(tfe.errorClass)
	if tfe.errorCause != nil {
		errStr += " | " + tfe.errorCause.Error()
	}
	return errStr
}

// Unwrap returns the underlying cause for this error.
func (tfe TransactionFailedError) Unwrap() error {
	return tfe.errorCause
}

// TransactionID returns the id of the transaction that failed.
func (tfe TransactionFailedError) TransactionID() string {
	return tfe.transactionID
}

// Conflicts returns the number of conflicts observed before giving up.
func (tfe TransactionFailedError) Conflicts() int {
	return tfe.conflicts
}

// ErrorClass returns the class of error which caused this error.
func (tfe TransactionFailedError) ErrorClass() ErrorClass {
	return tfe.errorClass
}
