/*
Package kv is the flat key-value collaborator behind user modes and the inquiry log.

It exposes the handful of Redis-shaped operations the bot needs (GET, SET, SETNX,
RPUSH, LRANGE) behind one interface with three interchangeable backends: Redis,
PostgreSQL and an in-process map for development and tests. Each operation is atomic
on its own; no multi-key transactions are offered.
*/
package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is a flat key-value mapping plus append-only lists.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key, overwriting any previous value. No expiry.
	Set(ctx context.Context, key, value string) error

	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string) (bool, error)

	// RPush appends value to the list at key and returns the new length.
	RPush(ctx context.Context, key, value string) (int64, error)

	// LRange returns list elements between start and stop inclusive.
	// Negative indexes count from the end, as in Redis (0, -1 is the whole list).
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Open returns the Store selected by the URL scheme:
// redis:// and rediss:// (Redis), postgres:// and postgresql:// (PostgreSQL),
// memory:// (process-local map).
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		return OpenRedis(ctx, rawURL)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, rawURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// rangeBounds converts Redis-style inclusive indexes for a list of length n
// into a half-open slice range. ok is false when the range is empty.
func rangeBounds(n, start, stop int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
