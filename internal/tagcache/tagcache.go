// Package tagcache serves the icon tag dictionary from memory, refreshing it from the store.
package tagcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v2"

	"github.com/arawak/tagsmith/internal/metrics"
	"github.com/arawak/tagsmith/internal/store"
	"github.com/arawak/tagsmith/internal/tag"
)

const iconTagsKey = "icon_tags"

// DefaultStaleRetry is how long a stale entry is served before the store is tried again.
const DefaultStaleRetry = 5 * time.Second

// Source lists icon tags, most referenced first.
type Source interface {
	ListIconTags(ctx context.Context) ([]store.Tag, error)
}

// Cache implements tag.Dictionary. An expired entry that cannot be refreshed
// keeps being served until the store answers again.
type Cache struct {
	source Source
	cache  *ccache.Cache
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger

	// serializes refreshes so a burst of misses hits the store once
	mu sync.Mutex
}

func New(source Source, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source: source,
		cache:  ccache.New(ccache.Configure().MaxSize(16).ItemsToPrune(1)),
		ttl:    ttl,
		retry:  DefaultStaleRetry,
		logger: logger,
	}
}

func (c *Cache) FetchTopTags(ctx context.Context, limit int) ([]tag.IconTag, error) {
	item := c.cache.Get(iconTagsKey)
	if item != nil && !item.Expired() {
		metrics.DictionaryFetch.WithLabelValues(metrics.SourceCache).Inc()
		return head(item.Value().([]tag.IconTag), limit), nil
	}

	tags, err := c.refresh(ctx)
	if err != nil {
		if item != nil {
			metrics.DictionaryFetch.WithLabelValues(metrics.SourceStale).Inc()
			c.logger.Warn("icon tag refresh failed, serving stale entries", "error", err, "retryIn", c.retry.String())
			// the store is not queried again until the retry window passes
			item.Extend(c.retry)
			return head(item.Value().([]tag.IconTag), limit), nil
		}
		metrics.DictionaryFetch.WithLabelValues(metrics.SourceError).Inc()
		return nil, fmt.Errorf("%w: %w", tag.ErrDictionaryUnavailable, err)
	}
	return head(tags, limit), nil
}

// Invalidate drops the cached dictionary so the next fetch reads the store.
func (c *Cache) Invalidate() {
	c.cache.Delete(iconTagsKey)
}

func (c *Cache) Stop() {
	c.cache.Stop()
}

func (c *Cache) refresh(ctx context.Context) ([]tag.IconTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item := c.cache.Get(iconTagsKey); item != nil && !item.Expired() {
		metrics.DictionaryFetch.WithLabelValues(metrics.SourceCache).Inc()
		return item.Value().([]tag.IconTag), nil
	}

	rows, err := c.source.ListIconTags(ctx)
	if err != nil {
		return nil, err
	}
	tags := make([]tag.IconTag, 0, len(rows))
	for i := range rows {
		if !rows[i].IsIconTag() {
			continue
		}
		tags = append(tags, tag.IconTag{Title: rows[i].Title, TitleLowerCase: rows[i].TitleLowerCase})
	}
	c.cache.Set(iconTagsKey, tags, c.ttl)
	metrics.DictionaryFetch.WithLabelValues(metrics.SourceStore).Inc()
	c.logger.Debug("icon tags refreshed", "count", len(tags))
	return tags, nil
}

func head(tags []tag.IconTag, limit int) []tag.IconTag {
	if limit < 0 {
		limit = 0
	}
	if limit > len(tags) {
		limit = len(tags)
	}
	return append([]tag.IconTag(nil), tags[:limit]...)
}
