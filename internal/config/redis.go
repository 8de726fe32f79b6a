package config

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs three things: refresh-token sessions, the
// featured-products cache and the auth rate-limit counters. Sessions
// cannot work without it, so the serve command treats a nil client as
// fatal; the cache and the limiter degrade to pass-through instead.

// redisOptions assembles client options from the environment.
// REDIS_URL (a redis:// URL) wins when set; otherwise REDIS_ADDR or
// the REDIS_HOST/REDIS_PORT pair is used, with REDIS_PASSWORD,
// REDIS_DB and REDIS_TLS layered on top.
func redisOptions() (*redis.Options, error) {
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		return redis.ParseURL(raw)
	}

	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if s := os.Getenv("REDIS_DB"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			opts.DB = n
		}
	}
	if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opts, nil
}

// redisPingTimeout reads REDIS_PING_TIMEOUT (a Go duration) with a
// two-second default, keeping startup fast when Redis is down.
func redisPingTimeout() time.Duration {
	if v := os.Getenv("REDIS_PING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 2 * time.Second
}

// NewRedisClient builds a Redis client from the environment and
// verifies it with a bounded ping. It returns nil when the options
// are malformed or the server does not answer; the caller decides
// whether that is fatal.
func NewRedisClient() *redis.Client {
	opts, err := redisOptions()
	if err != nil {
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
