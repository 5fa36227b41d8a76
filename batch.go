package transactions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Batch queues actions and flushes their commands to the store in as few
// round trips as the deepest chain of dependent commands requires.
type Batch struct {
	client  redis.UniversalClient
	metrics *metrics
	tracer  trace.Tracer

	actions  []Action
	rounds   int
	executed bool
}

// Do registers an action.  Actions run in registration order and the
// commands they issue keep that order within every round trip.
func (b *Batch) Do(action Action) *Batch {
	b.actions = append(b.actions, action)
	return b
}

// Fresh returns an equivalent Batch, bound to the same client, with no
// actions registered.
func (b *Batch) Fresh() *Batch {
	return &Batch{
		client:  b.client,
		metrics: b.metrics,
		tracer:  b.tracer,
	}
}

// Rounds returns the number of round trips performed by Execute.
func (b *Batch) Rounds() int {
	return b.rounds
}

// Execute runs every registered action to completion.  It returns every
// command that was flushed, in flush order.  A Batch can only be executed once.
func (b *Batch) Execute(ctx context.Context) ([]redis.Cmder, error) {
	if b.executed {
		return nil, errors.Wrap(ErrProtocolMisuse, "batch already executed")
	}
	b.executed = true

	ctx, span := b.tracer.Start(ctx, "redistxn."+kindBatch, trace.WithAttributes(
		attribute.Int("batch.actions", len(b.actions)),
	))
	defer span.End()

	flushed, rounds, err := flushRounds(ctx, b.client.Pipeline(), b.actions, func(round int) error {
		b.metrics.roundTrip(kindBatch)
		return nil
	})
	b.rounds = rounds
	b.metrics.finished(kindBatch, err)

	span.SetAttributes(attribute.Int("batch.rounds", rounds))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorClassToString(classifyError(err)))
		return nil, err
	}

	return flushed, nil
}

// flushRounds drives actions and their tasks over pipe.  Each round flushes
// the commands queued since the previous round and resumes every live task
// with the slice of replies matching the commands it issued.  It stops after
// the first round in which no task remains live.
func flushRounds(
	ctx context.Context,
	pipe redis.Pipeliner,
	actions []Action,
	afterRound func(round int) error,
) ([]redis.Cmder, int, error) {
	var flushed []redis.Cmder
	var pending []pendingTask
	rounds := 0

	for _, action := range actions {
		start := pipe.Len()
		task, err := action(ctx, pipe)
		if err != nil {
			pipe.Discard()
			return nil, rounds, err
		}
		if task == nil {
			continue
		}

		pending = append(pending, pendingTask{
			task:  task,
			start: start,
			stop:  pipe.Len(),
		})
	}

	for {
		cmds, err := pipe.Exec(ctx)
		rounds++
		if err := storeError(cmds, err); err != nil {
			return nil, rounds, err
		}
		flushed = append(flushed, cmds...)

		if afterRound != nil {
			if err := afterRound(rounds); err != nil {
				return nil, rounds, err
			}
		}

		if len(pending) == 0 {
			return flushed, rounds, nil
		}

		live := make([]pendingTask, 0, len(pending))
		for _, p := range pending {
			start := pipe.Len()
			done, err := p.task.Resume(ctx, cmds[p.start:p.stop])
			if err != nil {
				pipe.Discard()
				return nil, rounds, err
			}
			if done {
				continue
			}

			live = append(live, pendingTask{
				task:  p.task,
				start: start,
				stop:  pipe.Len(),
			})
		}
		pending = live
	}
}
