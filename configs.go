package transactions

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config specifies various tunable options related to transactions.
type Config struct {
	// MaxConflicts is the number of conflicts an execution tolerates before
	// failing with ErrConflictExhausted.  There is no default, it must be
	// at least one.
	MaxConflicts int

	// RetryBackoff builds the policy used to wait between a conflict and the
	// next attempt.  A fresh policy is built per execution.  When nil, the
	// next attempt starts immediately.
	RetryBackoff func() backoff.BackOff

	// Logger receives attempt and conflict diagnostics.  Defaults to a no-op logger.
	Logger *zap.Logger

	// Tracer is used to create one span per execution.  Defaults to a no-op tracer.
	Tracer trace.Tracer

	// Registerer is where the execution metrics are registered.  When nil the
	// metrics are still maintained but never exposed.
	Registerer prometheus.Registerer

	// Internal specifies a set of options for internal use.
	// Internal: This should never be used and is not supported.
	Internal struct {
		Hooks TransactionHooks
	}
}

// PerTransactionConfig specifies options which can be overridden on a per transaction basis.
type PerTransactionConfig struct {
	// MaxConflicts overrides the conflict ceiling for this transaction.
	MaxConflicts int

	// Hooks overrides the hooks for this transaction.
	// Internal: This should never be used and is not supported.
	Hooks TransactionHooks
}
