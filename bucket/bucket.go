// Package bucket implements the local storage engine: a mutex-guarded set of
// similarity objects with CRUD by id or locator and linear-scan range/kNN
// search under one configured metric.
package bucket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/encodeous/sift/objects"
)

var (
	ErrNotFound  = errors.New("object not found")
	ErrCapacity  = errors.New("bucket capacity exceeded")
	ErrDuplicate = errors.New("object already stored")
)

const searchCacheSize = 256

// Bucket stores objects in memory. Capacity zero means unbounded. Search
// results are memoized in a small LRU keyed by query signature and purged on
// every mutation.
type Bucket struct {
	log      *slog.Logger
	metric   objects.Metric
	capacity int

	mu       sync.RWMutex
	byID     map[uuid.UUID]*objects.Object
	locators map[string]uuid.UUID

	searchCache *lru.Cache[string, []objects.RankedObject]
}

func New(metric objects.Metric, capacity int, log *slog.Logger) *Bucket {
	if log == nil {
		log = slog.Default()
	}
	cache, _ := lru.New[string, []objects.RankedObject](searchCacheSize)
	return &Bucket{
		log:         log,
		metric:      metric,
		capacity:    capacity,
		byID:        make(map[uuid.UUID]*objects.Object),
		locators:    make(map[string]uuid.UUID),
		searchCache: cache,
	}
}

func (b *Bucket) Metric() objects.Metric {
	return b.metric
}

func (b *Bucket) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

func (b *Bucket) AddObject(o *objects.Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(o)
}

// AddObjects stores all objects or none.
func (b *Bucket) AddObjects(objs []*objects.Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity > 0 && len(b.byID)+len(objs) > b.capacity {
		return fmt.Errorf("%w: %d objects over limit %d", ErrCapacity, len(b.byID)+len(objs), b.capacity)
	}
	for _, o := range objs {
		if _, ok := b.byID[o.ID]; ok {
			return fmt.Errorf("%w: id %s", ErrDuplicate, o.ID)
		}
		if o.Locator != "" {
			if _, ok := b.locators[o.Locator]; ok {
				return fmt.Errorf("%w: locator %q", ErrDuplicate, o.Locator)
			}
		}
	}
	for _, o := range objs {
		if err := b.addLocked(o); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bucket) addLocked(o *objects.Object) error {
	if b.capacity > 0 && len(b.byID) >= b.capacity {
		return fmt.Errorf("%w: limit %d", ErrCapacity, b.capacity)
	}
	if _, ok := b.byID[o.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrDuplicate, o.ID)
	}
	if o.Locator != "" {
		if _, ok := b.locators[o.Locator]; ok {
			return fmt.Errorf("%w: locator %q", ErrDuplicate, o.Locator)
		}
		b.locators[o.Locator] = o.ID
	}
	b.byID[o.ID] = o
	b.searchCache.Purge()
	return nil
}

func (b *Bucket) GetObject(id uuid.UUID) (*objects.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return o, nil
}

func (b *Bucket) GetObjectByLocator(locator string) (*objects.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.locators[locator]
	if !ok {
		return nil, fmt.Errorf("%w: locator %q", ErrNotFound, locator)
	}
	return b.byID[id], nil
}

func (b *Bucket) DeleteObject(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	delete(b.byID, id)
	if o.Locator != "" {
		delete(b.locators, o.Locator)
	}
	b.searchCache.Purge()
	return nil
}

func (b *Bucket) DeleteObjectByLocator(locator string) error {
	b.mu.Lock()
	id, ok := b.locators[locator]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: locator %q", ErrNotFound, locator)
	}
	return b.DeleteObject(id)
}

// Objects returns a snapshot of the stored objects in unspecified order.
func (b *Bucket) Objects() []*objects.Object {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*objects.Object, 0, len(b.byID))
	for _, o := range b.byID {
		out = append(out, o)
	}
	return out
}

// RangeSearch returns all objects within radius of the query, nearest first.
func (b *Bucket) RangeSearch(query *objects.Object, radius float32) ([]objects.RankedObject, error) {
	key := fmt.Sprintf("range|%s|%g|%v", b.metric, radius, query.Data)
	if cached, ok := b.searchCache.Get(key); ok {
		return cached, nil
	}
	results := objects.NewRankedList(0)
	err := b.scan(query, func(ro objects.RankedObject) {
		if ro.Distance <= radius {
			results.Insert(ro)
		}
	})
	if err != nil {
		return nil, err
	}
	items := results.Items()
	b.searchCache.Add(key, items)
	return items, nil
}

// KNNSearch returns the k objects nearest to the query.
func (b *Bucket) KNNSearch(query *objects.Object, k int) ([]objects.RankedObject, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	key := fmt.Sprintf("knn|%s|%d|%v", b.metric, k, query.Data)
	if cached, ok := b.searchCache.Get(key); ok {
		return cached, nil
	}
	results := objects.NewRankedList(k)
	err := b.scan(query, func(ro objects.RankedObject) {
		if t, full := results.Threshold(); !full || ro.Distance < t {
			results.Insert(ro)
		}
	})
	if err != nil {
		return nil, err
	}
	items := results.Items()
	b.searchCache.Add(key, items)
	return items, nil
}

func (b *Bucket) scan(query *objects.Object, visit func(objects.RankedObject)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.byID {
		d, err := b.metric.Distance(query, o)
		if err != nil {
			return err
		}
		visit(objects.RankedObject{Object: o, Distance: d})
	}
	return nil
}
