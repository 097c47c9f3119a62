package provider

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 100

// Cached remembers the last successful searches of
// the wrapped provider, evicting the least recent ones
type Cached struct {
	lock     sync.Mutex
	upstream SearchProvider
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key     string
	results []Result
}

func NewCached(upstream SearchProvider, capacity int) *Cached {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cached{
		upstream: upstream,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (cached *Cached) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	key := fmt.Sprintf("%s|%d", query, limit)
	if results, ok := cached.get(key); ok {
		log.Debug().Str("query", query).Msg("search cache hit")
		return results, nil
	}

	results, err := cached.upstream.Search(ctx, query, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, wrap(query, err)
	}
	cached.put(key, results)
	return clone(results), nil
}

func (cached *Cached) Len() int {
	cached.lock.Lock()
	defer cached.lock.Unlock()
	return cached.order.Len()
}

func (cached *Cached) get(key string) ([]Result, bool) {
	cached.lock.Lock()
	defer cached.lock.Unlock()
	element, ok := cached.entries[key]
	if !ok {
		return nil, false
	}
	cached.order.MoveToFront(element)
	return clone(element.Value.(*cacheEntry).results), true
}

func (cached *Cached) put(key string, results []Result) {
	cached.lock.Lock()
	defer cached.lock.Unlock()
	if element, ok := cached.entries[key]; ok {
		element.Value.(*cacheEntry).results = clone(results)
		cached.order.MoveToFront(element)
		return
	}
	cached.entries[key] = cached.order.PushFront(&cacheEntry{key, clone(results)})
	for cached.order.Len() > cached.capacity {
		oldest := cached.order.Back()
		cached.order.Remove(oldest)
		delete(cached.entries, oldest.Value.(*cacheEntry).key)
	}
}

func clone(results []Result) []Result {
	return append([]Result(nil), results...)
}
