package ml

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedModel memoises Run results. It is only correct for models that do not
// change, which holds for every *Model returned by Train.
type CachedModel struct {
	model  Scorer
	cache  *lru.Cache[Features, Scores]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedModel(model Scorer, size int) (*CachedModel, error) {
	cache, err := lru.New[Features, Scores](size)
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	return &CachedModel{model: model, cache: cache}, nil
}

func (c *CachedModel) Run(features Features) Scores {
	// NaN never equals itself, so such keys could only ever miss.
	if !features.Finite() {
		c.misses.Add(1)
		return c.model.Run(features)
	}
	if scores, ok := c.cache.Get(features); ok {
		c.hits.Add(1)
		return scores
	}
	c.misses.Add(1)
	scores := c.model.Run(features)
	c.cache.Add(features, scores)
	return scores
}

type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

func (c *CachedModel) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.cache.Len()}
}
