package transactions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// TxAction is registered with a Transaction.  reads is flushed at every
// round trip and its replies are visible immediately, but it is not part of
// the atomic block.  writes is only submitted, as one MULTI/EXEC block, once
// every task of the attempt has completed.  When no action queues a write
// nothing is submitted, so a modification of a watched key is not reported
// as a conflict.
type TxAction func(ctx context.Context, reads redis.Pipeliner, writes redis.Pipeliner) (Task, error)

// Transaction represents a set of actions executed under optimistic
// concurrency control.  Each attempt re-invokes every action, so actions
// must not carry state over from a previous invocation.
//
// A Transaction without watched keys skips WATCH altogether and runs its
// pipelines on the client, which keeps it usable on a redis.ClusterClient.
type Transaction struct {
	parent    *Manager
	perConfig *PerTransactionConfig
	attempt   *transactionAttempt

	watches  []string
	actions  []TxAction
	executed bool
}

// ID returns the transaction ID of this transaction.
func (t *Transaction) ID() string {
	return t.attempt.transactionID
}

// Watch adds keys whose modification before the atomic block is submitted
// causes the attempt to be retried.  It must be called before Execute.
func (t *Transaction) Watch(keys ...string) error {
	if t.executed {
		return errors.Wrap(ErrProtocolMisuse, "cannot watch keys once the transaction has executed")
	}

	t.watches, _ = appendKeys(t.watches, keys...)
	return nil
}

// Watches returns the keys currently being watched.
func (t *Transaction) Watches() []string {
	return append([]string(nil), t.watches...)
}

// Do registers an action.
func (t *Transaction) Do(action TxAction) *Transaction {
	t.actions = append(t.actions, action)
	return t
}

// Fresh returns an equivalent Transaction, bound to the same client and
// per transaction config, with no watches or actions registered.
func (t *Transaction) Fresh() *Transaction {
	return t.parent.BeginTransaction(t.perConfig)
}

// Execute runs the actions until the atomic block commits without conflict,
// retrying on conflict up to the configured ceiling.  A Transaction can only
// be executed once.
func (t *Transaction) Execute(ctx context.Context) (*Result, error) {
	if t.executed {
		return nil, errors.Wrap(ErrProtocolMisuse, "transaction already executed")
	}
	t.executed = true

	return t.attempt.run(ctx, t.runAttempt, nil)
}

func (t *Transaction) runAttempt(ctx context.Context, attempt *Attempt) error {
	if len(t.watches) == 0 {
		return t.runPipelines(ctx, attempt, t.parent.client.Pipeline(), t.parent.client.TxPipeline())
	}

	return t.parent.client.Watch(ctx, func(tx *redis.Tx) error {
		return t.runPipelines(ctx, attempt, tx.Pipeline(), tx.TxPipeline())
	}, t.watches...)
}

func (t *Transaction) runPipelines(ctx context.Context, attempt *Attempt, reads, writes redis.Pipeliner) error {
	actions := make([]Action, len(t.actions))
	for actionIdx, action := range t.actions {
		action := action
		actions[actionIdx] = func(ctx context.Context, pipe redis.Pipeliner) (Task, error) {
			return action(ctx, pipe, writes)
		}
	}

	_, rounds, err := flushRounds(ctx, reads, actions, func(round int) error {
		t.parent.metrics.roundTrip(kindTransaction)
		return t.attempt.hooks.AfterReadRound(attempt.ID, round)
	})
	attempt.Rounds = rounds
	if err != nil {
		writes.Discard()
		return err
	}

	if err := t.attempt.hooks.BeforeCommit(attempt.ID); err != nil {
		writes.Discard()
		return err
	}

	cmds, err := writes.Exec(ctx)
	return storeError(cmds, err)
}
