package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRedisEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"REDIS_URL", "REDIS_ADDR", "REDIS_HOST", "REDIS_PORT",
		"REDIS_PASSWORD", "REDIS_DB", "REDIS_TLS", "REDIS_PING_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestRedisOptionsDefaults(t *testing.T) {
	clearRedisEnv(t)
	opts, err := redisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Empty(t, opts.Password)
	assert.Equal(t, 0, opts.DB)
	assert.Nil(t, opts.TLSConfig)
}

func TestRedisOptionsHostPortOverrideAddr(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_ADDR", "ignored:1111")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TLS", "true")

	opts, err := redisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.NotNil(t, opts.TLSConfig)
}

func TestRedisOptionsURLWins(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_URL", "redis://:secret@redis.internal:6390/2")
	t.Setenv("REDIS_HOST", "ignored")
	t.Setenv("REDIS_PORT", "1111")

	opts, err := redisOptions()
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6390", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestRedisPingTimeout(t *testing.T) {
	clearRedisEnv(t)
	assert.Equal(t, 2*time.Second, redisPingTimeout())

	t.Setenv("REDIS_PING_TIMEOUT", "500ms")
	assert.Equal(t, 500*time.Millisecond, redisPingTimeout())

	t.Setenv("REDIS_PING_TIMEOUT", "garbage")
	assert.Equal(t, 2*time.Second, redisPingTimeout())
}
