// Package guard – Redis-backed write deduplication
//
// When several instances serve the same office, the single-slot in-process
// window cannot see a duplicate submitted to a sibling. This variant claims
// a SetNX key derived from the canonical payload hash, with the dedup
// window as TTL. On any Redis failure it falls back to the local
// single-slot writer, so a broken Redis degrades protection rather than
// availability.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 800 * time.Millisecond

// RedisDeduplicatingWriter deduplicates create calls across instances.
type RedisDeduplicatingWriter struct {
	client    *redis.Client
	keyPrefix string
	window    time.Duration
	next      Writer
	fallback  *DeduplicatingWriter
}

// NewRedisDeduplicatingWriter wraps next with a Redis-backed dedup window.
// A nil clock defaults to time.Now (used only by the local fallback).
func NewRedisDeduplicatingWriter(client *redis.Client, keyPrefix string, next Writer, window time.Duration, clock func() time.Time) *RedisDeduplicatingWriter {
	return &RedisDeduplicatingWriter{
		client:    client,
		keyPrefix: keyPrefix,
		window:    window,
		next:      next,
		fallback:  NewDeduplicatingWriter(next, window, clock),
	}
}

// Write claims the payload's dedup key and forwards on success. A claim
// that is already held returns ErrDuplicateCreation without invoking the
// wrapped writer. Redis errors defer to the in-memory fallback.
func (w *RedisDeduplicatingWriter) Write(ctx context.Context, payload any) (string, error) {
	if w.client == nil {
		return w.fallback.Write(ctx, payload)
	}

	ser, err := CanonicalJSON(payload)
	if err != nil {
		return w.next.Write(ctx, payload)
	}
	sum := sha256.Sum256([]byte(ser))
	fullKey := fmt.Sprintf("%s:dedupe:%s", w.keyPrefix, hex.EncodeToString(sum[:]))

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	ok, err := w.client.SetNX(opCtx, fullKey, "1", w.window).Result()
	if err != nil {
		return w.fallback.Write(ctx, payload)
	}
	if !ok {
		return "", ErrDuplicateCreation
	}
	return w.next.Write(ctx, payload)
}
