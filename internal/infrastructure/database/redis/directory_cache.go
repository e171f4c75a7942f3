package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// nullMarker is stored for lookups the directory answered with "no match".
const nullMarker = "__null__"

const (
	defaultKeyPrefix   = "lorekit:"
	defaultTTL         = 10 * time.Minute
	defaultNegativeTTL = time.Minute
	scanBatch          = 256
)

// DirectoryCache is a read-through annotation.Directory.  Positive answers
// are cached for the TTL and misses for the negative TTL.  Redis failures
// degrade to calling the wrapped directory; they are never returned.
type DirectoryCache struct {
	next        annotation.Directory
	client      *Client
	logger      logging.Logger
	prefix      string
	ttl         time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
}

var _ annotation.Directory = (*DirectoryCache)(nil)

type DirectoryCacheOption func(*DirectoryCache)

func WithKeyPrefix(prefix string) DirectoryCacheOption {
	return func(c *DirectoryCache) { c.prefix = prefix }
}

func WithTTL(ttl time.Duration) DirectoryCacheOption {
	return func(c *DirectoryCache) { c.ttl = ttl }
}

func WithNegativeTTL(ttl time.Duration) DirectoryCacheOption {
	return func(c *DirectoryCache) { c.negativeTTL = ttl }
}

// NewDirectoryCache wraps next with a Redis cache.
func NewDirectoryCache(next annotation.Directory, client *Client, log logging.Logger, opts ...DirectoryCacheOption) *DirectoryCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &DirectoryCache{
		next:        next,
		client:      client,
		logger:      log.Named("directory_cache"),
		prefix:      defaultKeyPrefix,
		ttl:         defaultTTL,
		negativeTTL: defaultNegativeTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DirectoryCache) FindByKind(ctx context.Context, kind lore_parser.Kind, text string) (*lore_parser.Link, error) {
	return c.lookup(ctx, c.key("kind", kind.String(), text), func() (*lore_parser.Link, error) {
		return c.next.FindByKind(ctx, kind, text)
	})
}

func (c *DirectoryCache) FindBySlug(ctx context.Context, slug string) (*lore_parser.Link, error) {
	return c.lookup(ctx, c.key("slug", slug), func() (*lore_parser.Link, error) {
		return c.next.FindBySlug(ctx, slug)
	})
}

func (c *DirectoryCache) FindByName(ctx context.Context, kind lore_parser.Kind, name string) (*lore_parser.Link, error) {
	return c.lookup(ctx, c.key("name", kind.String(), name), func() (*lore_parser.Link, error) {
		return c.next.FindByName(ctx, kind, name)
	})
}

// Purge deletes every cached directory entry and returns how many keys were
// removed.
func (c *DirectoryCache) Purge(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	pattern := c.prefix + "dir:*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "directory cache scan failed")
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "directory cache delete failed")
			}
			deleted += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.logger.Info("directory cache purged", logging.Int64("keys", deleted))
	return deleted, nil
}

func (c *DirectoryCache) key(parts ...string) string {
	return c.prefix + "dir:" + strings.Join(parts, ":")
}

func (c *DirectoryCache) lookup(ctx context.Context, key string, load func() (*lore_parser.Link, error)) (*lore_parser.Link, error) {
	if link, ok := c.get(ctx, key); ok {
		return link, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		link, err := load()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, link)
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*lore_parser.Link), nil
}

// get returns (link, true) on a cache hit; a cached miss is (nil, true).
func (c *DirectoryCache) get(ctx context.Context, key string) (*lore_parser.Link, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("directory cache read failed", logging.String("key", key), logging.Err(err))
		return nil, false
	}
	if string(data) == nullMarker {
		return nil, true
	}
	var link lore_parser.Link
	if err := json.Unmarshal(data, &link); err != nil {
		c.logger.Warn("directory cache entry corrupt", logging.String("key", key), logging.Err(err))
		return nil, false
	}
	return &link, true
}

func (c *DirectoryCache) set(ctx context.Context, key string, link *lore_parser.Link) {
	var (
		value interface{} = nullMarker
		ttl               = c.negativeTTL
	)
	if link != nil {
		data, err := json.Marshal(link)
		if err != nil {
			c.logger.Warn("directory cache encode failed", logging.String("key", key), logging.Err(err))
			return
		}
		value, ttl = data, c.ttl
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("directory cache write failed", logging.String("key", key), logging.Err(err))
	}
}
