package history

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedSource wraps a Source with a TTL cache so the context builder and
// the evolution detector, which both read the same channel during one
// document, hit the service once.
type CachedSource struct {
	inner Source
	cache *gocache.Cache
}

// NewCachedSource wraps src with the given TTL.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{
		inner: src,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// ChannelKnowledge returns cached knowledge when fresh, fetching otherwise.
func (c *CachedSource) ChannelKnowledge(ctx context.Context, channelID string) (*ChannelKnowledge, error) {
	if cached, found := c.cache.Get(channelID); found {
		return cached.(*ChannelKnowledge), nil
	}
	knowledge, err := c.inner.ChannelKnowledge(ctx, channelID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(channelID, knowledge)
	return knowledge, nil
}

// IncrementMention passes through without invalidating the cache: mention
// counts are advisory and refresh on TTL expiry.
func (c *CachedSource) IncrementMention(ctx context.Context, claimID string) error {
	return c.inner.IncrementMention(ctx, claimID)
}
