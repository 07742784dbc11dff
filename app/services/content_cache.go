package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a CacheStore when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// CacheStore is the byte cache the content source reads through
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisCacheStore struct {
	rc     *redis.Client
	prefix string
}

// NewRedisCacheStore creates a CacheStore backed by redis. Keys are prefixed.
func NewRedisCacheStore(rc *redis.Client, prefix string) CacheStore {
	return &redisCacheStore{rc: rc, prefix: prefix}
}

func (s *redisCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	bs, err := s.rc.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return bs, err
}

func (s *redisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rc.Set(ctx, s.prefix+key, value, ttl).Err()
}

// CachedContentSource reads through a cache in front of another ContentSource.
// Cache failures are logged and the origin is used instead.
type CachedContentSource struct {
	origin    ContentSource
	store     CacheStore
	listTTL   time.Duration
	postTTL   time.Duration
	poolPages int
	randIntN  func(int) int
	logger    *zap.Logger
}

// NewCachedContentSource wraps origin with the given cache
func NewCachedContentSource(origin ContentSource, store CacheStore, listTTL, postTTL time.Duration, poolPages int, logger *zap.Logger) *CachedContentSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedContentSource{
		origin:    origin,
		store:     store,
		listTTL:   listTTL,
		postTTL:   postTTL,
		poolPages: max(poolPages, 1),
		randIntN:  rand.IntN,
		logger:    logger,
	}
}

func (s *CachedContentSource) GetBlogMetadata(ctx context.Context) (*models.BlogInfo, error) {
	return readThrough(ctx, s, utils.ContentCacheKeyPrefix+"blog", s.listTTL, s.origin.GetBlogMetadata)
}

func (s *CachedContentSource) ListPosts(ctx context.Context, pageToken, label string) (*models.PostList, error) {
	return readThrough(ctx, s, postsCacheKey(label, pageToken), s.listTTL, func(ctx context.Context) (*models.PostList, error) {
		return s.origin.ListPosts(ctx, pageToken, label)
	})
}

func (s *CachedContentSource) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return readThrough(ctx, s, utils.ContentCacheKeyPrefix+"post:"+id, s.postTTL, func(ctx context.Context) (*models.Post, error) {
		return s.origin.GetPost(ctx, id)
	})
}

// PickRandomPostID samples from the cached listing so repeated gate hops stay cheap
func (s *CachedContentSource) PickRandomPostID(ctx context.Context) (string, error) {
	return pickRandomPostID(ctx, s, s.poolPages, s.randIntN)
}

// postsCacheKey escapes both parts so a ':' inside a label cannot shift the separator
func postsCacheKey(label, pageToken string) string {
	return utils.ContentCacheKeyPrefix + "posts:" + url.QueryEscape(label) + ":" + url.QueryEscape(pageToken)
}

func readThrough[T any](ctx context.Context, s *CachedContentSource, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	bs, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var out T
		if jerr := json.Unmarshal(bs, &out); jerr == nil {
			return &out, nil
		}
		s.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("content cache read failed, using origin", zap.String("key", key), zap.Error(err))
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if bs, err := json.Marshal(out); err == nil {
		if err := s.store.Set(ctx, key, bs, ttl); err != nil {
			s.logger.Warn("content cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}
