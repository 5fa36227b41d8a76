package transactions

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// storeError extracts the error that should abort an execution from the
// outcome of a pipeline flush.  Missing keys are reported per command as
// redis.Nil and are left for the callers to interpret.
func storeError(cmds []redis.Cmder, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	for _, cmd := range cmds {
		if cmdErr := cmd.Err(); cmdErr != nil && !errors.Is(cmdErr, redis.Nil) {
			return cmdErr
		}
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, redis.TxFailedErr) || errors.Is(err, ErrConflict)
}

func waitBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// appendKeys adds keys to a watch set, preserving insertion order and
// skipping keys which are already present.
func appendKeys(watches []string, keys ...string) ([]string, []string) {
	var added []string
	for _, key := range keys {
		found := false
		for _, existing := range watches {
			if existing == key {
				found = true
				break
			}
		}
		if found {
			continue
		}
		watches = append(watches, key)
		added = append(added, key)
	}
	return watches, added
}
