package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks the single active refresh token per user in
// Redis. The entry's TTL matches the refresh token's validity, so
// sessions expire server-side without a sweeper. Logging in again
// overwrites the entry, which invalidates the previous session.
type SessionStore struct{ RDB *redis.Client }

func NewSessionStore(rdb *redis.Client) *SessionStore { return &SessionStore{RDB: rdb} }

func sessionKey(userID uint64) string {
	return "refresh_token:" + strconv.FormatUint(userID, 10)
}

// Save stores the signed refresh token for a user with the given TTL.
func (s *SessionStore) Save(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	return s.RDB.Set(ctx, sessionKey(userID), token, ttl).Err()
}

// Validate checks that the presented token equals the one on record.
// A missing entry or a different value both mean the session is
// stale or the token was reused, reported as ErrTokenMismatch.
func (s *SessionStore) Validate(ctx context.Context, userID uint64, token string) error {
	stored, err := s.RDB.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return ErrTokenMismatch
	}
	if err != nil {
		return err
	}
	if stored != token {
		return ErrTokenMismatch
	}
	return nil
}

// Delete removes the user's session entry (logout).
func (s *SessionStore) Delete(ctx context.Context, userID uint64) error {
	return s.RDB.Del(ctx, sessionKey(userID)).Err()
}
