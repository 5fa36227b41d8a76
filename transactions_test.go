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

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redistools/redis-transactions/extension"
)

func TestInitValidatesConfig(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	_, err := Init(nil, &Config{MaxConflicts: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Init(client, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Init(client, &Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Init(client, &Config{MaxConflicts: -2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInitAppliesDefaults(t *testing.T) {
	mgr, _, client := testNewManager(t, &Config{MaxConflicts: 4})

	config := mgr.Config()
	assert.Equal(t, 4, config.MaxConflicts)
	assert.NotNil(t, config.Logger)
	assert.NotNil(t, config.Tracer)
	assert.NotNil(t, config.RetryBackoff)
	assert.IsType(t, &DefaultHooks{}, config.Internal.Hooks)
	assert.Equal(t, client, mgr.Client())
	assert.Zero(t, config.RetryBackoff().NextBackOff())
}

func TestPerTransactionConfigOverrides(t *testing.T) {
	hooks := &testHooks{}
	mgr, _, _ := testNewManager(t, &Config{MaxConflicts: 4})

	txn := mgr.BeginTransaction(&PerTransactionConfig{MaxConflicts: 9, Hooks: hooks})
	assert.Equal(t, 9, txn.attempt.maxConflicts)
	assert.Same(t, hooks, txn.attempt.hooks)

	txn = mgr.BeginTransaction(&PerTransactionConfig{})
	assert.Equal(t, 4, txn.attempt.maxConflicts)
	assert.IsType(t, &DefaultHooks{}, txn.attempt.hooks)

	sched := mgr.BeginScheduler(nil)
	assert.Equal(t, 4, sched.attempt.maxConflicts)
	assert.NotEqual(t, txn.ID(), sched.ID())
}

func TestManagerCloseReleasesResources(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	registry := prometheus.NewRegistry()
	mgr, err := Init(client, &Config{MaxConflicts: 1, Registerer: registry})
	require.NoError(t, err)

	// A second manager cannot share the registry while the first is open.
	_, err = Init(client, &Config{MaxConflicts: 1, Registerer: registry})
	assert.Error(t, err)

	_, err = mgr.Namespaces().Register("users")
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Namespaces().Len())

	require.NoError(t, mgr.Close())
	assert.Equal(t, 0, mgr.Namespaces().Len())

	other, err := Init(client, &Config{MaxConflicts: 1, Registerer: registry})
	require.NoError(t, err)
	require.NoError(t, other.Close())

	// The client stays usable.
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestManagerInstallExtension(t *testing.T) {
	mgr, srv, client := testNewManager(t, nil)
	ctx := context.Background()

	installed, err := extension.Installed(ctx, client)
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, mgr.InstallExtension(ctx))

	installed, err = extension.Installed(ctx, client)
	require.NoError(t, err)
	assert.True(t, installed)

	srv.HSet("h", "f", "old")
	txn := mgr.BeginTransaction(nil)
	require.NoError(t, txn.Watch("h"))
	txn.Do(func(ctx context.Context, reads, writes redis.Pipeliner) (Task, error) {
		extension.HSetXX(ctx, writes, "h", "f", "new")
		extension.HSetXX(ctx, writes, "h", "missing", "new")
		return nil, nil
	})
	_, err = txn.Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, "new", srv.HGet("h", "f"))
	assert.Empty(t, srv.HGet("h", "missing"))
}
