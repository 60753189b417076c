package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/pkg/metrics"
)

// Treap-based in-memory ranking index.
//
// Ordering: level DESC, experience DESC, then character id ASC. In-order
// traversal yields the ranking from best to worst. Ranks are competition
// ranks: characters with equal level and experience share a rank and the
// next distinct entry skips accordingly (1, 2, 2, 4).

// RankEntry is one ranking row.
type RankEntry struct {
	Rank        int
	CharacterID int64
	Nickname    string
	Level       int
	Experience  int
	Image       string
}

type key struct {
	level int
	exp   int
	id    int64
}

// less reports whether a ranks before b.
func less(a, b key) bool {
	if a.level != b.level {
		return a.level > b.level
	}
	if a.exp != b.exp {
		return a.exp > b.exp
	}
	return a.id < b.id
}

// ahead reports whether a ranks strictly before b, ignoring ids.
func ahead(a, b key) bool {
	if a.level != b.level {
		return a.level > b.level
	}
	return a.exp > b.exp
}

type node struct {
	k     key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k key, prio uint64) *node {
	if n == nil {
		return &node{k: k, prio: prio, size: 1}
	}
	if less(k, n.k) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.k:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.k):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// countAhead returns the number of keys strictly ahead of k. Those keys form
// a prefix of the in-order traversal.
func countAhead(n *node, k key) int {
	count := 0
	for n != nil {
		if ahead(n.k, k) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTop appends up to limit keys in rank order.
func collectTop(n *node, limit int, out *[]key) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.k)
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

type profile struct {
	nickname  string
	image     string
	updatedAt time.Time
}

// RankIndex orders characters by level and experience.
type RankIndex struct {
	mu       sync.RWMutex
	root     *node
	keys     map[int64]key
	profiles map[int64]profile

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewRankIndex constructs an empty index and starts its metrics updater.
func NewRankIndex(ctx context.Context, opts ...Option) *RankIndex {
	r := &RankIndex{
		keys:                  make(map[int64]key),
		profiles:              make(map[int64]profile),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startMetricsUpdater(ctx)
	return r
}

// Load replaces the index content with cs.
func (r *RankIndex) Load(_ context.Context, cs []model.Character) {
	r.mu.Lock()
	r.root = nil
	r.keys = make(map[int64]key, len(cs))
	r.profiles = make(map[int64]profile, len(cs))
	for _, c := range cs {
		r.upsertLocked(c)
	}
	n := len(r.keys)
	r.mu.Unlock()

	metrics.UpdateRankedCharacters(n)
}

// Upsert inserts c or moves it to its new position, replacing its progress
// and profile unconditionally. O(log n) expected.
func (r *RankIndex) Upsert(_ context.Context, c model.Character) {
	r.mu.Lock()
	r.upsertLocked(c)
	r.mu.Unlock()
}

// Advance moves c forward to its level and experience. Progress that ranks
// behind the indexed entry is ignored, so grants applied out of commit order
// cannot move a character back. Unknown characters are inserted.
func (r *RankIndex) Advance(_ context.Context, c model.Character) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{level: c.Level, exp: c.Experience, id: c.ID}
	if old, ok := r.keys[c.ID]; ok && !ahead(k, old) {
		return
	}
	r.moveLocked(k)
}

// UpdateProfile stores c's nickname and image unless the indexed profile was
// written after c.UpdatedAt. Progress is left alone.
func (r *RankIndex) UpdateProfile(_ context.Context, c model.Character) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[c.ID]; ok && c.UpdatedAt.Before(p.updatedAt) {
		return
	}
	r.profiles[c.ID] = profile{nickname: c.Nickname, image: c.Image, updatedAt: c.UpdatedAt}
}

func (r *RankIndex) upsertLocked(c model.Character) {
	r.moveLocked(key{level: c.Level, exp: c.Experience, id: c.ID})
	r.profiles[c.ID] = profile{nickname: c.Nickname, image: c.Image, updatedAt: c.UpdatedAt}
}

func (r *RankIndex) moveLocked(k key) {
	if old, ok := r.keys[k.id]; ok {
		if old == k {
			return
		}
		r.root = deleteNode(r.root, old)
	}
	r.root = insert(r.root, k, rand.Uint64())
	r.keys[k.id] = k
}

// Remove drops a character from the index.
func (r *RankIndex) Remove(_ context.Context, characterID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[characterID]; ok {
		r.root = deleteNode(r.root, k)
		delete(r.keys, characterID)
		delete(r.profiles, characterID)
	}
}

// Rank returns the ranking row of one character. O(log n) expected.
func (r *RankIndex) Rank(_ context.Context, characterID int64) (RankEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[characterID]
	if !ok {
		metrics.RecordErrorByComponent("rank_index", "not_found")
		return RankEntry{}, ErrCharacterNotFound
	}
	return r.entryLocked(k, 1+countAhead(r.root, k)), nil
}

// TopN returns the first n rows, skipping excludeID when it is positive.
func (r *RankIndex) TopN(_ context.Context, n int, excludeID int64) ([]RankEntry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("rank_index", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]key, 0, n+1)
	collectTop(r.root, n+1, &keys)

	out := make([]RankEntry, 0, n)
	rank := 0
	for i, k := range keys {
		// Keys come from the top, so a new score group starts at position i+1.
		if i == 0 || ahead(keys[i-1], k) {
			rank = i + 1
		}
		if k.id == excludeID {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, r.entryLocked(k, rank))
	}
	return out, nil
}

func (r *RankIndex) entryLocked(k key, rank int) RankEntry {
	p := r.profiles[k.id]
	return RankEntry{
		Rank:        rank,
		CharacterID: k.id,
		Nickname:    p.nickname,
		Level:       k.level,
		Experience:  k.exp,
		Image:       p.image,
	}
}

// Count returns the number of indexed characters.
func (r *RankIndex) Count(_ context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Close stops the background metrics updater.
func (r *RankIndex) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	return nil
}

func (r *RankIndex) startMetricsUpdater(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRankedCharacters(r.Count(ctx))
			}
		}
	}()
}
