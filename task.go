package transactions

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Task is a unit of work which issues commands, suspends until the round
// trip carrying them completes, and then resumes with their replies.
//
// The commands issued while a task's Action runs are delivered to the first
// Resume call.  Every later Resume call receives exactly the commands the
// task issued during its previous Resume.  A task may issue no commands at
// all during a step, in which case it is resumed with an empty slice after
// the next round trip.
type Task interface {
	Resume(ctx context.Context, results []redis.Cmder) (done bool, err error)
}

// Action is registered with a Batch.  It issues commands on pipe and either
// returns nil, when it needs nothing back, or a Task which will be resumed
// once those commands have been flushed.
type Action func(ctx context.Context, pipe redis.Pipeliner) (Task, error)

// Continuation is one stage of a multi-round task.  It receives the replies
// of the commands issued by the previous stage and returns the next stage,
// or nil once the task is complete.
type Continuation func(ctx context.Context, results []redis.Cmder) (Continuation, error)

type continuationTask struct {
	next Continuation
}

// Await wraps a chain of continuations into a Task.  A nil continuation
// yields a task which completes on its first resumption.
func Await(next Continuation) Task {
	return &continuationTask{next: next}
}

func (t *continuationTask) Resume(ctx context.Context, results []redis.Cmder) (bool, error) {
	if t.next == nil {
		return true, nil
	}

	next, err := t.next(ctx, results)
	if err != nil {
		t.next = nil
		return true, err
	}

	t.next = next
	return next == nil, nil
}

// pendingTask is a suspended task together with the command range it issued
// in the current round.
type pendingTask struct {
	task  Task
	start int
	stop  int
}
