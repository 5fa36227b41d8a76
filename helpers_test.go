package transactions

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testNewManager(t *testing.T, config *Config) (*Manager, *miniredis.Miniredis, *redis.Client) {
	srv := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	if config == nil {
		config = &Config{MaxConflicts: 10}
	}

	mgr, err := Init(client, config)
	require.NoError(t, err, "init failed")
	t.Cleanup(func() {
		_ = mgr.Close()
	})

	return mgr, srv, client
}

// testHooks lets tests interleave external activity with an attempt.
type testHooks struct {
	beforeAttempt  func(attemptID string) error
	afterReadRound func(attemptID string, round int) error
	beforeCommit   func(attemptID string) error
	afterConflict  func(attemptID string) error
}

func (h *testHooks) BeforeAttempt(attemptID string) error {
	if h.beforeAttempt != nil {
		return h.beforeAttempt(attemptID)
	}
	return nil
}

func (h *testHooks) AfterReadRound(attemptID string, round int) error {
	if h.afterReadRound != nil {
		return h.afterReadRound(attemptID, round)
	}
	return nil
}

func (h *testHooks) BeforeCommit(attemptID string) error {
	if h.beforeCommit != nil {
		return h.beforeCommit(attemptID)
	}
	return nil
}

func (h *testHooks) AfterConflict(attemptID string) error {
	if h.afterConflict != nil {
		return h.afterConflict(attemptID)
	}
	return nil
}

// testChainedIncr returns an action which reads key, then sets key+1 to the
// value it read plus one, then reads key+1 back, taking three rounds.
func testChainedIncr(key string, observed *string) Action {
	return func(ctx context.Context, pipe redis.Pipeliner) (Task, error) {
		pipe.Get(ctx, key)

		return Await(func(ctx context.Context, results []redis.Cmder) (Continuation, error) {
			value, err := intOrZero(results[0])
			if err != nil {
				return nil, err
			}
			pipe.Set(ctx, key+"+1", value+1, 0)

			return func(ctx context.Context, results []redis.Cmder) (Continuation, error) {
				if err := results[0].Err(); err != nil {
					return nil, err
				}
				get := pipe.Get(ctx, key+"+1")

				return func(ctx context.Context, results []redis.Cmder) (Continuation, error) {
					*observed = get.Val()
					return nil, nil
				}, nil
			}, nil
		}), nil
	}
}

func testGetString(t *testing.T, srv *miniredis.Miniredis, key string) string {
	value, err := srv.Get(key)
	require.NoError(t, err, "get of %s failed", key)
	return value
}
