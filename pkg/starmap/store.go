package starmap

import (
	"log"
	"sort"
	"sync"
)

// MaxStars is the shader's uniform array capacity. The store rejects
// additions beyond it rather than evicting, so indices stay stable for
// in-flight detail fetches.
const MaxStars = 1000

// EpochBase (2025-01-01 UTC) rebases like timestamps before the
// float32 mirror conversion; raw unix seconds exceed float32's integer
// precision and the shader would see every star at the same age.
const EpochBase = 1735689600.0

// Vec2 is a point in world/map space (pixel units on the fixed map).
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned world-space rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Detail is the lazily-resolved portion of a star.
type Detail struct {
	Message    string `json:"message"`
	AuthorName string `json:"username"`
}

// Store holds the authoritative client-side star set as index-aligned
// parallel columns, plus flat GPU mirror buffers regenerated from them.
// The stream goroutine mutates it while the render loop reads it, so
// every operation takes the mutex.
type Store struct {
	mu sync.Mutex

	ids         []int64
	positions   []Vec2
	messages    []string
	resolved    []bool
	authorIDs   []int64
	authorNames []string
	likeTimes   []float64
	createdAt   []float64

	posBuf    []float32
	likeBuf   []float32
	authorBuf []float32
	dirty     bool
}

func NewStore() *Store {
	return &Store{}
}

// LoadSnapshot atomically replaces all columns with the given stars,
// re-sorted by creation date ascending (ties broken by id) so visual
// layering is stable across reloads. An empty snapshot is a no-op when
// the store already holds stars: a transient backend failure must not
// flash the map empty.
func (s *Store) LoadSnapshot(stars []Star) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(stars) == 0 && len(s.ids) > 0 {
		log.Printf("[store] ignoring empty snapshot, keeping %d stars", len(s.ids))
		return
	}
	if len(stars) > MaxStars {
		log.Printf("[store] snapshot has %d stars, truncating to %d", len(stars), MaxStars)
		stars = stars[:MaxStars]
	}

	sorted := make([]Star, len(stars))
	copy(sorted, stars)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreationDate != sorted[j].CreationDate {
			return sorted[i].CreationDate < sorted[j].CreationDate
		}
		return sorted[i].ID < sorted[j].ID
	})

	n := len(sorted)
	s.ids = make([]int64, n)
	s.positions = make([]Vec2, n)
	s.messages = make([]string, n)
	s.resolved = make([]bool, n)
	s.authorIDs = make([]int64, n)
	s.authorNames = make([]string, n)
	s.likeTimes = make([]float64, n)
	s.createdAt = make([]float64, n)
	for i, st := range sorted {
		s.ids[i] = st.ID
		s.positions[i] = Vec2{X: st.X, Y: st.Y}
		s.messages[i] = st.Message
		s.resolved[i] = true
		s.authorIDs[i] = st.UserID
		s.authorNames[i] = st.Username
		s.likeTimes[i] = st.LastLiked
		s.createdAt[i] = st.CreationDate
	}
	s.rebuildMirrorsLocked()
}

// AddMinimal appends a star known only by its stream `create` payload:
// message and author name stay unresolved until the detail fetch lands.
// Returns the index the star was placed at; the index is a cache hint
// only and must not be used as a handle across removals.
func (s *Store) AddMinimal(id int64, pos Vec2, likeTime float64, authorID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfLocked(id) >= 0 {
		log.Printf("[store] duplicate star id %d ignored", id)
		return -1, false
	}
	if len(s.ids) >= MaxStars {
		log.Printf("[store] star limit %d reached, rejecting id %d", MaxStars, id)
		return -1, false
	}

	s.ids = append(s.ids, id)
	s.positions = append(s.positions, pos)
	s.messages = append(s.messages, "")
	s.resolved = append(s.resolved, false)
	s.authorIDs = append(s.authorIDs, authorID)
	s.authorNames = append(s.authorNames, "")
	s.likeTimes = append(s.likeTimes, likeTime)
	s.createdAt = append(s.createdAt, likeTime)
	s.dirty = true
	return len(s.ids) - 1, true
}

// ResolveDetailByID fills in the lazily-fetched fields. The star is
// re-located by id, never by a remembered index, so a removal that
// happened while the fetch was in flight turns this into a no-op
// instead of corrupting whichever star now occupies the old slot.
func (s *Store) ResolveDetailByID(id int64, message, authorName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(id)
	if i < 0 {
		return false
	}
	s.messages[i] = message
	s.authorNames[i] = authorName
	s.resolved[i] = true
	return true
}

// UpdateLikeTime records a like event, refreshing the star's decay
// clock. Unknown ids are logged and dropped.
func (s *Store) UpdateLikeTime(id int64, ts float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(id)
	if i < 0 {
		log.Printf("[store] like for unknown star id %d", id)
		return false
	}
	s.likeTimes[i] = ts
	s.dirty = true
	return true
}

// Remove deletes the star and its entry in every parallel column,
// shifting later indices down. Returns false when the id is unknown so
// the caller can fall back to a full resync.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(id)
	if i < 0 {
		return false
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	s.positions = append(s.positions[:i], s.positions[i+1:]...)
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.resolved = append(s.resolved[:i], s.resolved[i+1:]...)
	s.authorIDs = append(s.authorIDs[:i], s.authorIDs[i+1:]...)
	s.authorNames = append(s.authorNames[:i], s.authorNames[i+1:]...)
	s.likeTimes = append(s.likeTimes[:i], s.likeTimes[i+1:]...)
	s.createdAt = append(s.createdAt[:i], s.createdAt[i+1:]...)
	s.dirty = true
	return true
}

// RebuildGPUMirrors regenerates the flat upload buffers from the
// canonical columns if any mutation happened since the last rebuild.
// Called once per frame before upload, not once per mutation.
func (s *Store) RebuildGPUMirrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.rebuildMirrorsLocked()
	}
}

// CopyMirrorsInto rebuilds the mirrors if needed and copies them into
// the caller's fixed-capacity upload slices, returning the star count.
// The copies let the render loop release the lock before uploading.
func (s *Store) CopyMirrorsInto(pos, like, author []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.rebuildMirrorsLocked()
	}
	copy(pos, s.posBuf)
	copy(like, s.likeBuf)
	copy(author, s.authorBuf)
	return len(s.ids)
}

// Count returns the number of stars currently held.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Position looks a star's world position up by id.
func (s *Store) Position(id int64) (Vec2, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(id)
	if i < 0 {
		return Vec2{}, false
	}
	return s.positions[i], true
}

// Detail returns the star's resolved fields; ok is false while the
// detail fetch is still outstanding.
func (s *Store) Detail(id int64) (Detail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(id)
	if i < 0 || !s.resolved[i] {
		return Detail{}, false
	}
	return Detail{Message: s.messages[i], AuthorName: s.authorNames[i]}, true
}

// AuthorOf returns the author id of a star.
func (s *Store) AuthorOf(id int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(id)
	if i < 0 {
		return 0, false
	}
	return s.authorIDs[i], true
}

// HitTest returns the id of the star nearest to the given world point
// within maxDistSq. Linear scan; the store never exceeds MaxStars.
func (s *Store) HitTest(world Vec2, maxDistSq float64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := int64(0)
	bestD := maxDistSq
	found := false
	for i, p := range s.positions {
		dx := world.X - p.X
		dy := world.Y - p.Y
		d := dx*dx + dy*dy
		if d <= bestD {
			best = s.ids[i]
			bestD = d
			found = true
		}
	}
	return best, found
}

// UnresolvedIn lists ids of stars with unresolved detail inside the
// given world rect; the visibility sweep fetches each of them.
func (s *Store) UnresolvedIn(view Rect) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []int64
	for i, p := range s.positions {
		if !s.resolved[i] && view.Contains(p) {
			out = append(out, s.ids[i])
		}
	}
	return out
}

// ConstellationOf collects the world positions of every star by the
// given author, in creation order, for the connecting-line overlay.
func (s *Store) ConstellationOf(authorID int64) []Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Vec2
	for i, a := range s.authorIDs {
		if a == authorID {
			out = append(out, s.positions[i])
		}
	}
	return out
}

func (s *Store) indexOfLocked(id int64) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}

func (s *Store) rebuildMirrorsLocked() {
	n := len(s.ids)
	if cap(s.posBuf) < 2*n {
		s.posBuf = make([]float32, 0, 2*MaxStars)
		s.likeBuf = make([]float32, 0, MaxStars)
		s.authorBuf = make([]float32, 0, MaxStars)
	}
	s.posBuf = s.posBuf[:0]
	s.likeBuf = s.likeBuf[:0]
	s.authorBuf = s.authorBuf[:0]
	for i := 0; i < n; i++ {
		s.posBuf = append(s.posBuf, float32(s.positions[i].X), float32(s.positions[i].Y))
		s.likeBuf = append(s.likeBuf, float32(s.likeTimes[i]-EpochBase))
		s.authorBuf = append(s.authorBuf, float32(s.authorIDs[i]))
	}
	s.dirty = false
}

// MirrorLens reports the current mirror buffer lengths. Test hook for
// the index-alignment invariant.
func (s *Store) MirrorLens() (pos, like, author int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posBuf), len(s.likeBuf), len(s.authorBuf)
}
