package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const nursesCacheKey = "directory:nurses"

// CachedDirectory is a read-through Redis cache in front of another Directory.
// Redis failures fall back to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
}

func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func (c *CachedDirectory) ListNurses(ctx context.Context) ([]Nurse, error) {
	raw, err := c.client.Get(ctx, nursesCacheKey).Bytes()
	switch {
	case err == nil:
		var nurses []Nurse
		if jsonErr := json.Unmarshal(raw, &nurses); jsonErr == nil {
			return nurses, nil
		}
		log.Printf("discarding undecodable nurse cache entry")
	case !errors.Is(err, redis.Nil):
		log.Printf("nurse cache read failed: %v", err)
	}

	nurses, err := c.next.ListNurses(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(nurses); err == nil {
		if err := c.client.Set(ctx, nursesCacheKey, data, c.ttl).Err(); err != nil {
			log.Printf("nurse cache write failed: %v", err)
		}
	}

	return nurses, nil
}

func (c *CachedDirectory) GetNurse(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	nurses, err := c.ListNurses(ctx)
	if err == nil {
		for i := range nurses {
			if nurses[i].ID == id {
				n := nurses[i]
				return &n, nil
			}
		}
	}
	// a nurse added since the cache was filled is still found
	return c.next.GetNurse(ctx, id)
}

// Invalidate drops the cached nurse list.
func (c *CachedDirectory) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, nursesCacheKey).Err()
}
