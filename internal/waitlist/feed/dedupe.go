package feed

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupeTTL is how long an event id is remembered.
const DefaultDedupeTTL = 24 * time.Hour

// Deduper records event ids. MarkSeen reports true the first time an id is
// seen within the TTL and false for repeats. Forget releases an id so a
// redelivery is processed again.
type Deduper interface {
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// RedisDeduper shares dedupe state across replicas.
type RedisDeduper struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, prefix: "event:", ttl: ttl}
}

func (d *RedisDeduper) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
}

func (d *RedisDeduper) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.prefix+eventID).Err()
}

// MemoryDeduper is used when Redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (d *MemoryDeduper) MarkSeen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expires, ok := d.seen[eventID]; ok && now.Before(expires) {
		return false, nil
	}
	d.seen[eventID] = now.Add(d.ttl)

	// sweep expired ids so the map does not grow without bound
	if len(d.seen)%1024 == 0 {
		for id, expires := range d.seen {
			if !now.Before(expires) {
				delete(d.seen, id)
			}
		}
	}
	return true, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
