// Package embedcache memoizes embeddings in Redis so repeated questions do
// not cost another call to the embedding backend.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/metrics"
)

// Store is the subset of a key/value cache the embedder needs. Get returns
// found=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// RedisStore implements Store with go-redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, addr, password string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Embedder wraps an EmbeddingProvider with a read-through cache. Cache
// failures are logged and bypassed; they never fail an Embed call.
type Embedder struct {
	next    core.EmbeddingProvider
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(next core.EmbeddingProvider, store Store, ttl time.Duration, m *metrics.Metrics) *Embedder {
	return &Embedder{
		next:    next,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("embedcache"),
	}
}

func (e *Embedder) ModelName() string { return e.next.ModelName() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.next.ModelName(), text)

	raw, found, err := e.store.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("cache read failed", "error", err)
	case found:
		if v, derr := decode(raw); derr == nil {
			e.metrics.ObserveCache(true)
			return v, nil
		}
		e.logger.Warn("discarding corrupt cache entry", "key", key)
	}
	e.metrics.ObserveCache(false)

	v, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.store.Set(ctx, key, encode(v), e.ttl); err != nil {
		e.logger.Warn("cache write failed", "error", err)
	}
	return v, nil
}

// Key is emb:<model>:<sha256 of text>.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decode(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("bad cached vector length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

var _ core.EmbeddingProvider = (*Embedder)(nil)
