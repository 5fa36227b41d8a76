package transactions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// IncrBy returns a TxAction adding delta to the integer stored at key, a
// missing key counting as zero.  The key is read on the unprotected channel
// and the new value is written in the atomic block, so key should be watched
// by the Transaction the action is registered with.
func IncrBy(key string, delta int64) TxAction {
	return func(ctx context.Context, reads redis.Pipeliner, writes redis.Pipeliner) (Task, error) {
		reads.Get(ctx, key)

		return Await(func(ctx context.Context, results []redis.Cmder) (Continuation, error) {
			if len(results) != 1 {
				return nil, errors.Errorf("expected 1 reply for %s, got %d", key, len(results))
			}

			current, err := intOrZero(results[0])
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", key)
			}

			writes.Set(ctx, key, current+delta, 0)
			return nil, nil
		}), nil
	}
}

// ScheduleIncrBy registers on s the callbacks adding delta to the integer
// stored at key, a missing key counting as zero.  It watches key, reads it
// during the reading phase and schedules the dependent write from there.
func ScheduleIncrBy(ctx context.Context, s *Scheduler, key string, delta int64) error {
	if err := s.Watch(ctx, key); err != nil {
		return err
	}

	return s.Reading(func(ctx context.Context, tx redis.Cmdable) error {
		current, err := intOrZero(tx.Get(ctx, key))
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", key)
		}

		return s.Writing(func(ctx context.Context, pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, current+delta, 0)
			return nil
		})
	})
}

func intOrZero(cmd redis.Cmder) (int64, error) {
	strCmd, ok := cmd.(*redis.StringCmd)
	if !ok {
		return 0, errors.Errorf("unexpected reply type %T", cmd)
	}

	value, err := strCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return value, err
}
