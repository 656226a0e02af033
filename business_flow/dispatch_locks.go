package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// dispatchLeaseTTL bounds how long a crashed dispatch can hold the
// lease before another operator may retry.
const dispatchLeaseTTL = 60 * time.Second

// campaignLocker grants single-flight dispatch per campaign. With Redis
// available the lease is shared across instances; without it a keyed
// in-process mutex still protects a single instance.
type campaignLocker struct {
	cache *redis.Client
	mu    sync.Mutex
	held  map[uint]bool
}

func newCampaignLocker(cache *redis.Client) *campaignLocker {
	return &campaignLocker{
		cache: cache,
		held:  make(map[uint]bool),
	}
}

// Acquire takes the dispatch lease for a campaign. It returns
// ErrCampaignDispatchInFlight when another dispatch holds it.
func (l *campaignLocker) Acquire(ctx context.Context, campaignID uint) (func(), error) {
	if l.cache != nil {
		key := fmt.Sprintf("campaign:dispatch:%d", campaignID)
		ok, err := l.cache.SetNX(ctx, key, "1", dispatchLeaseTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire dispatch lease: %w", err)
		}
		if !ok {
			return nil, ErrCampaignDispatchInFlight
		}
		return func() {
			l.cache.Del(context.Background(), key)
		}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[campaignID] {
		return nil, ErrCampaignDispatchInFlight
	}
	l.held[campaignID] = true
	return func() {
		l.mu.Lock()
		delete(l.held, campaignID)
		l.mu.Unlock()
	}, nil
}
