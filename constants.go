// Copyright 2021 Couchbase
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transactions

import "fmt"

// Phase represents the current phase of a Scheduler.
type Phase int

const (
	// PhaseIdle indicates that no attempt is in progress.  Watches are issued
	// when leaving this phase.
	PhaseIdle = Phase(0)

	// PhaseReading indicates that reading callbacks are being drained.
	PhaseReading = Phase(1)

	// PhaseWriting indicates that the atomic block has been opened and writing
	// callbacks are being drained into it.
	PhaseWriting = Phase(2)

	// PhaseDone indicates that the atomic block was committed and ending
	// callbacks are running.
	PhaseDone = Phase(3)
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReading:
		return "reading"
	case PhaseWriting:
		return "writing"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("unknown:%d", int(p))
	}
}

// AttemptState represents the outcome of a single attempt.
type AttemptState int

const (
	// AttemptStateRunning indicates the attempt has not finished yet.
	AttemptStateRunning = AttemptState(1)

	// AttemptStateCommitted indicates the atomic block was applied.
	AttemptStateCommitted = AttemptState(2)

	// AttemptStateConflicted indicates a watched key changed and the atomic
	// block was discarded by the store.
	AttemptStateConflicted = AttemptState(3)

	// AttemptStateFailed indicates the attempt was aborted by an error that
	// is not retried.
	AttemptStateFailed = AttemptState(4)
)

func (s AttemptState) String() string {
	return attemptStateToString(s)
}

func attemptStateToString(state AttemptState) string {
	switch state {
	case AttemptStateRunning:
		return "running"
	case AttemptStateCommitted:
		return "committed"
	case AttemptStateConflicted:
		return "conflicted"
	case AttemptStateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown:%d", state)
	}
}

// ErrorClass describes the reason that an execution error occurred.
// Internal: This should never be used and is not supported.
type ErrorClass uint8

const (
	// ErrorClassFailOther indicates an error occurred because it did not fit into any other reason.
	ErrorClassFailOther ErrorClass = iota

	// ErrorClassFailConflict indicates a watched key was modified before the atomic block ran.
	ErrorClassFailConflict

	// ErrorClassFailConflictExhausted indicates the conflict ceiling was exceeded.
	ErrorClassFailConflictExhausted

	// ErrorClassFailProtocolMisuse indicates a phase precondition was violated.
	ErrorClassFailProtocolMisuse

	// ErrorClassFailCanceled indicates the context was canceled or timed out.
	ErrorClassFailCanceled

	// ErrorClassFailStore indicates the store reported an error of its own.
	ErrorClassFailStore
)

func errorClassToString(class ErrorClass) string {
	switch class {
	case ErrorClassFailOther:
		return "other"
	case ErrorClassFailConflict:
		return "conflict"
	case ErrorClassFailConflictExhausted:
		return "conflict_exhausted"
	case ErrorClassFailProtocolMisuse:
		return "protocol_misuse"
	case ErrorClassFailCanceled:
		return "canceled"
	case ErrorClassFailStore:
		return "store"
	default:
		return fmt.Sprintf("unknown:%d", class)
	}
}

const (
	kindBatch       = "batch"
	kindTransaction = "transaction"
	kindScheduler   = "scheduler"
)

const (
	outcomeCommitted = "committed"
)
