package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("secret not found")
	ErrExists      = errors.New("secret id already in use")
	ErrUnavailable = errors.New("store unavailable")
)

// Store is a string key-value store with per-key expiry.
//
// Take must be atomic: of any number of concurrent Takes for one id,
// at most one returns the value. Expired, consumed and unknown ids all
// yield ErrNotFound.
type Store interface {
	// Put stores value under id for ttl unless id is already live, in
	// which case it returns ErrExists and leaves the old value alone.
	Put(ctx context.Context, id, value string, ttl time.Duration) error
	Take(ctx context.Context, id string) (string, error)
	Close() error
}

func secretKey(id string) string {
	return "secret:" + id
}

// ttlSeconds rounds up so a sub-second ttl never becomes "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}
