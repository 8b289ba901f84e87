package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"readquest-service/internal/domain"
)

// CatalogLoader fetches athlete content from a backing store (e.g., Postgres).
type CatalogLoader interface {
	LoadAthlete(ctx context.Context, athleteID int) (domain.Athlete, error)
	LoadAll(ctx context.Context) ([]domain.Athlete, error)
}

// Catalog caches athlete records with TTL to avoid repeated store hits. The
// catalog is read-only at runtime, so entries only ever expire, never invalidate.
type Catalog struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	cache   map[int]cachedAthlete
	index   []domain.AthleteSummary
	indexAt time.Time
}

type cachedAthlete struct {
	athlete   domain.Athlete
	expiresAt time.Time
}

func NewCatalog(loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int]cachedAthlete),
	}
}

func (c *Catalog) GetAthlete(ctx context.Context, athleteID int) (domain.Athlete, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[athleteID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.athlete, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("athlete:"+strconv.Itoa(athleteID), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[athleteID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.athlete, nil
		}
		c.mu.RUnlock()

		athlete, err := c.loader.LoadAthlete(ctx, athleteID)
		if err != nil {
			return domain.Athlete{}, err
		}

		c.mu.Lock()
		c.cache[athleteID] = cachedAthlete{
			athlete:   athlete,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return athlete, nil
	})
	if err != nil {
		return domain.Athlete{}, err
	}
	return result.(domain.Athlete), nil
}

func (c *Catalog) ListAthletes(ctx context.Context) ([]domain.AthleteSummary, error) {
	now := c.clock()

	c.mu.RLock()
	if c.index != nil && c.indexAt.After(now) {
		index := c.index
		c.mu.RUnlock()
		return index, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("index", func() (interface{}, error) {
		athletes, err := c.loader.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		index := make([]domain.AthleteSummary, 0, len(athletes))
		for _, a := range athletes {
			index = append(index, a.Summary())
		}
		sort.Slice(index, func(i, j int) bool { return index[i].ID < index[j].ID })

		c.mu.Lock()
		c.index = index
		c.indexAt = c.clock().Add(c.ttlWithJitter())
		c.mu.Unlock()
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.AthleteSummary), nil
}

// ttlWithJitter spreads expirations by up to 10%. A non-positive TTL disables
// caching entirely (entries expire on write), same as the Redis-backed catalog.
func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves athletes from an in-memory map (tests/demos).
type StaticCatalogLoader struct {
	athletes map[int]domain.Athlete
}

func NewStaticCatalogLoader(athletes map[int]domain.Athlete) *StaticCatalogLoader {
	return &StaticCatalogLoader{athletes: athletes}
}

func (l *StaticCatalogLoader) LoadAthlete(_ context.Context, athleteID int) (domain.Athlete, error) {
	if athlete, ok := l.athletes[athleteID]; ok {
		return athlete, nil
	}
	return domain.Athlete{}, domain.ErrAthleteNotFound
}

func (l *StaticCatalogLoader) LoadAll(_ context.Context) ([]domain.Athlete, error) {
	out := make([]domain.Athlete, 0, len(l.athletes))
	for _, athlete := range l.athletes {
		out = append(out, athlete)
	}
	return out, nil
}
