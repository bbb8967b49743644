// Package testutil holds helpers shared by package tests: an in-memory Redis
// and the behaviour suite every store.Repository must pass.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// SetupRedis starts a miniredis server and a client connected to it. Both are
// closed when the test ends.
func SetupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// RedisURL returns the redis:// URL of mr.
func RedisURL(mr *miniredis.Miniredis) string {
	return "redis://" + mr.Addr()
}
