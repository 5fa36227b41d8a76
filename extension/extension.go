// Package extension provides conditional hash updates implemented as Lua
// scripts.  The scripts are loaded once per store with Install, or queued
// with Load, and are afterwards invoked by their SHA1 only.  Invoking them on
// a store where they were never loaded fails with a NOSCRIPT error.
package extension

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Install loads every extension script, returning the first failure.
func Install(ctx context.Context, c redis.Scripter) error {
	for _, script := range scripts() {
		if err := script.Load(ctx, c).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Load queues a SCRIPT LOAD for every extension script on c.  It is meant
// for pipelines, the returned commands carry the hashes once flushed.
func Load(ctx context.Context, c redis.Scripter) []*redis.StringCmd {
	cmds := make([]*redis.StringCmd, 0, len(scripts()))
	for _, script := range scripts() {
		cmds = append(cmds, script.Load(ctx, c))
	}
	return cmds
}

// Installed reports whether every extension script is known to the store.
func Installed(ctx context.Context, c redis.Scripter) (bool, error) {
	hashes := make([]string, 0, len(scripts()))
	for _, script := range scripts() {
		hashes = append(hashes, script.Hash())
	}

	exists, err := c.ScriptExists(ctx, hashes...).Result()
	if err != nil {
		return false, err
	}
	for _, ok := range exists {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// HSetXX sets field of the hash at key to value, only if field already
// exists.  The reply is 1 when the field was set and 0 otherwise.
func HSetXX(ctx context.Context, c redis.Scripter, key, field string, value interface{}) *redis.Cmd {
	return HSetXXScript.EvalSha(ctx, c, []string{key}, field, value)
}

// HPatch sets every field of mapping on the hash at key, only if the hash
// already exists.  The reply is 1 when the hash was patched and 0 otherwise.
func HPatch(ctx context.Context, c redis.Scripter, key string, mapping map[string]interface{}) *redis.Cmd {
	fields := make([]string, 0, len(mapping))
	for field := range mapping {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	args := make([]interface{}, 0, 2*len(fields))
	for _, field := range fields {
		args = append(args, field, mapping[field])
	}

	return HPatchScript.EvalSha(ctx, c, []string{key}, args...)
}
