package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"readquest-service/internal/domain"
)

// CatalogLoader fetches athlete content from a backing store (e.g., Postgres).
type CatalogLoader interface {
	LoadAthlete(ctx context.Context, athleteID int) (domain.Athlete, error)
	LoadAll(ctx context.Context) ([]domain.Athlete, error)
}

// Catalog caches athlete records as JSON in Redis and falls back to a loader
// on cache miss:
//
//	SET athlete:{id}       {record JSON}   EX ttl
//	SET athletes:index     {summary JSON}  EX ttl
type Catalog struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalog(client *redis.Client, loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Catalog) GetAthlete(ctx context.Context, athleteID int) (domain.Athlete, error) {
	key := c.athleteKey(athleteID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var athlete domain.Athlete
		if err := json.Unmarshal(raw, &athlete); err == nil {
			return athlete, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var athlete domain.Athlete
			if err := json.Unmarshal(raw, &athlete); err == nil {
				return athlete, nil
			}
		}

		athlete, err := c.loader.LoadAthlete(ctx, athleteID)
		if err != nil {
			return domain.Athlete{}, err
		}

		if c.ttl > 0 {
			if raw, err := json.Marshal(athlete); err == nil {
				_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
			}
		}
		return athlete, nil
	})
	if err != nil {
		return domain.Athlete{}, err
	}
	return result.(domain.Athlete), nil
}

func (c *Catalog) ListAthletes(ctx context.Context) ([]domain.AthleteSummary, error) {
	key := "athletes:index"

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var index []domain.AthleteSummary
		if err := json.Unmarshal(raw, &index); err == nil {
			return index, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		athletes, err := c.loader.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		index := make([]domain.AthleteSummary, 0, len(athletes))
		for _, a := range athletes {
			index = append(index, a.Summary())
		}
		sort.Slice(index, func(i, j int) bool { return index[i].ID < index[j].ID })

		if c.ttl > 0 {
			if raw, err := json.Marshal(index); err == nil {
				_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
			}
		}
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.AthleteSummary), nil
}

func (c *Catalog) athleteKey(athleteID int) string {
	return "athlete:" + strconv.Itoa(athleteID)
}

// ttlWithJitter spreads expirations by up to 10%. A non-positive TTL disables
// caching entirely (every read goes to the loader), same as the in-memory catalog.
func (c *Catalog) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
