package starmap

import (
	"context"
	"log"
	"sync"
	"time"
)

// sweepInterval throttles the visibility sweep to roughly twice per
// second; the render loop calls Sweep every frame.
const sweepInterval = 500 * time.Millisecond

// DetailCache is the persistent read-through cache for resolved star
// details, keyed by star id. Implemented by utils.DetailCache.
type DetailCache interface {
	Get(id int64) ([]byte, bool)
	Put(id int64, val []byte) error
	Delete(id int64) error
}

// DetailFetcher lazily resolves message/author for stars that are
// visible, deduplicating so each id has at most one request in flight.
type DetailFetcher struct {
	api   *Client
	store *Store
	cache DetailCache // may be nil

	mu        sync.Mutex
	inFlight  map[int64]struct{}
	lastSweep time.Time
}

func NewDetailFetcher(api *Client, store *Store, cache DetailCache) *DetailFetcher {
	return &DetailFetcher{
		api:      api,
		store:    store,
		cache:    cache,
		inFlight: make(map[int64]struct{}),
	}
}

// Fetch resolves one star's detail in the background. Redundant calls
// for an id already in flight are dropped. A star removed between
// request and response is detected by the id-keyed writeback in the
// store and the result is discarded.
func (f *DetailFetcher) Fetch(id int64) {
	f.mu.Lock()
	if _, busy := f.inFlight[id]; busy {
		f.mu.Unlock()
		return
	}
	f.inFlight[id] = struct{}{}
	f.mu.Unlock()

	go f.fetch(id)
}

func (f *DetailFetcher) fetch(id int64) {
	defer func() {
		f.mu.Lock()
		delete(f.inFlight, id)
		f.mu.Unlock()
	}()

	if f.cache != nil {
		if raw, ok := f.cache.Get(id); ok {
			var d Detail
			if err := json.Unmarshal(raw, &d); err == nil {
				f.store.ResolveDetailByID(id, d.Message, d.AuthorName)
				return
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	star, err := f.api.FetchDetail(ctx, id)
	if err != nil {
		// Left unresolved; a later visibility sweep retries.
		log.Printf("[fetch] star %d detail: %v", id, err)
		return
	}
	if !f.store.ResolveDetailByID(id, star.Message, star.Username) {
		return // removed while the request was in flight
	}
	if f.cache != nil {
		raw, err := json.Marshal(Detail{Message: star.Message, AuthorName: star.Username})
		if err == nil {
			if err := f.cache.Put(id, raw); err != nil {
				log.Printf("[fetch] caching star %d detail: %v", id, err)
			}
		}
	}
}

// Forget evicts a removed star's persisted detail so a stale record
// cannot outlive the star across sessions.
func (f *DetailFetcher) Forget(id int64) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(id); err != nil {
		log.Printf("[fetch] evicting star %d detail: %v", id, err)
	}
}

// Sweep scans for unresolved stars inside the viewport and fetches
// each exactly once. Driven from the render loop, self-throttled.
func (f *DetailFetcher) Sweep(now time.Time, view Rect) {
	f.mu.Lock()
	if now.Sub(f.lastSweep) < sweepInterval {
		f.mu.Unlock()
		return
	}
	f.lastSweep = now
	f.mu.Unlock()

	for _, id := range f.store.UnresolvedIn(view) {
		f.Fetch(id)
	}
}

// InFlight reports whether a request for id is outstanding. Test hook.
func (f *DetailFetcher) InFlight(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.inFlight[id]
	return busy
}
