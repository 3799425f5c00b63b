package cache

import (
	"sync"
	"time"

	"RateSync/internal/domain/models"
	"RateSync/internal/domain/repository"
)

// Class tags a cache key with its capacity domain. Each class has its own
// bounded store; eviction in one class never affects another.
type Class string

const (
	ClassSnapshot Class = "snapshot"
	ClassHistory  Class = "history"
	ClassTrend    Class = "trend"
	ClassChart    Class = "chart"
)

// Key addresses one value collection inside the cache.
type Key struct {
	Class Class
	ID    string
}

func SnapshotKey() Key { return Key{Class: ClassSnapshot, ID: "current"} }

func HistoryKey(currency string) Key { return Key{Class: ClassHistory, ID: currency} }

func TrendKey() Key { return Key{Class: ClassTrend, ID: "weekly"} }

func ChartKey(base, target string, rng models.DateRange) Key {
	return Key{Class: ClassChart, ID: base + "/" + target + "/" + rng.String()}
}

// Capacities bounds each class independently.
type Capacities struct {
	Snapshot int
	History  int
	Trend    int
	Chart    int
}

// DefaultCapacities mirror the access pattern: singleton snapshot and trend
// classes, a handful of per-currency series, more chart variants.
func DefaultCapacities() Capacities {
	return Capacities{Snapshot: 1, History: 8, Trend: 1, Chart: 32}
}

type entry struct {
	value  interface{}
	access time.Time
}

type classStore struct {
	items map[string]*entry
	cap   int
}

// TierCache is the in-process tier: bounded per-class stores with LRU
// eviction. Values are whole collections; an empty collection reads as
// absent, so callers re-derive emptiness from the durable tier when that
// distinction matters.
type TierCache struct {
	mu      sync.Mutex
	stores  map[Class]*classStore
	metrics repository.Metrics
}

func NewTierCache(caps Capacities, metrics repository.Metrics) *TierCache {
	if caps.Snapshot <= 0 {
		caps.Snapshot = 1
	}
	if caps.History <= 0 {
		caps.History = 8
	}
	if caps.Trend <= 0 {
		caps.Trend = 1
	}
	if caps.Chart <= 0 {
		caps.Chart = 32
	}
	return &TierCache{
		stores: map[Class]*classStore{
			ClassSnapshot: {items: make(map[string]*entry), cap: caps.Snapshot},
			ClassHistory:  {items: make(map[string]*entry), cap: caps.History},
			ClassTrend:    {items: make(map[string]*entry), cap: caps.Trend},
			ClassChart:    {items: make(map[string]*entry), cap: caps.Chart},
		},
		metrics: metrics,
	}
}

// Get returns the collection under key, or (nil, false) on a miss.
func (tc *TierCache) Get(key Key) (interface{}, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	store, ok := tc.stores[key.Class]
	if !ok {
		return nil, false
	}
	e, ok := store.items[key.ID]
	if !ok || isEmptyCollection(e.value) {
		tc.recordMiss(key.Class)
		return nil, false
	}
	e.access = time.Now()
	tc.recordHit(key.Class)
	return e.value, true
}

// Put stores a collection, evicting the least-recently-used entry of the
// same class when full. Storing an empty collection removes the key.
func (tc *TierCache) Put(key Key, value interface{}) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	store, ok := tc.stores[key.Class]
	if !ok {
		return
	}
	if isEmptyCollection(value) {
		delete(store.items, key.ID)
		return
	}
	if _, exists := store.items[key.ID]; !exists && len(store.items) >= store.cap {
		evictLRU(store)
	}
	store.items[key.ID] = &entry{value: value, access: time.Now()}
}

// Delete removes one key.
func (tc *TierCache) Delete(key Key) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if store, ok := tc.stores[key.Class]; ok {
		delete(store.items, key.ID)
	}
}

// ClearClass empties one class.
func (tc *TierCache) ClearClass(class Class) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if store, ok := tc.stores[class]; ok {
		store.items = make(map[string]*entry)
	}
}

// Clear empties every class.
func (tc *TierCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for _, store := range tc.stores {
		store.items = make(map[string]*entry)
	}
}

// Len reports the entry count of one class.
func (tc *TierCache) Len(class Class) int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if store, ok := tc.stores[class]; ok {
		return len(store.items)
	}
	return 0
}

func (tc *TierCache) recordHit(class Class) {
	if tc.metrics != nil {
		tc.metrics.RecordCacheHit(string(class))
	}
}

func (tc *TierCache) recordMiss(class Class) {
	if tc.metrics != nil {
		tc.metrics.RecordCacheMiss(string(class))
	}
}

func evictLRU(store *classStore) {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range store.items {
		if first || e.access.Before(oldest) {
			oldest = e.access
			oldestKey = key
			first = false
		}
	}
	if oldestKey != "" {
		delete(store.items, oldestKey)
	}
}

func isEmptyCollection(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case models.Series:
		return len(x) == 0
	case []models.TrendRecord:
		return len(x) == 0
	case []models.RatePoint:
		return len(x) == 0
	case []models.ChartPoint:
		return len(x) == 0
	}
	return false
}
