package stats

import (
	"math/rand"
	"sync"
)

const (
	maxLevel         = 32
	levelProbability = 0.25
)

// RankEntry is one key in a Ranking.
type RankEntry struct {
	Key   string
	Score float64
}

type rankNode struct {
	entry RankEntry
	next  []*rankNode
	span  []int // nodes skipped by next at each level
}

// Ranking is a skip list ordered by score descending, then key ascending,
// with span counts for O(log n) rank lookups. Safe for concurrent use.
type Ranking struct {
	mu     sync.RWMutex
	head   *rankNode
	level  int
	length int
	scores map[string]float64
	rng    *rand.Rand
}

func NewRanking() *Ranking {
	return &Ranking{
		head: &rankNode{
			next: make([]*rankNode, maxLevel),
			span: make([]int, maxLevel),
		},
		level:  1,
		scores: make(map[string]float64),
		rng:    rand.New(rand.NewSource(rand.Int63())),
	}
}

func (n *rankNode) before(score float64, key string) bool {
	return n.entry.Score > score || (n.entry.Score == score && n.entry.Key < key)
}

func (r *Ranking) randomLevel() int {
	level := 1
	for level < maxLevel && r.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Set inserts key or moves it to its new score.
func (r *Ranking) Set(key string, score float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.scores[key]; ok {
		if old == score {
			return
		}
		r.remove(key, old)
	}
	r.insert(key, score)
	r.scores[key] = score
}

// Remove deletes key. It reports whether key was present.
func (r *Ranking) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	score, ok := r.scores[key]
	if !ok {
		return false
	}
	delete(r.scores, key)
	return r.remove(key, score)
}

func (r *Ranking) insert(key string, score float64) {
	var update [maxLevel]*rankNode
	var rank [maxLevel]int

	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		if i < r.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && x.next[i].before(score, key) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	level := r.randomLevel()
	if level > r.level {
		for i := r.level; i < level; i++ {
			rank[i] = 0
			update[i] = r.head
			update[i].span[i] = r.length
		}
		r.level = level
	}

	node := &rankNode{
		entry: RankEntry{Key: key, Score: score},
		next:  make([]*rankNode, level),
		span:  make([]int, level),
	}
	for i := 0; i < level; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := level; i < r.level; i++ {
		update[i].span[i]++
	}
	r.length++
}

func (r *Ranking) remove(key string, score float64) bool {
	var update [maxLevel]*rankNode

	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		for x.next[i] != nil && x.next[i].before(score, key) {
			x = x.next[i]
		}
		update[i] = x
	}

	x = x.next[0]
	if x == nil || x.entry.Key != key {
		return false
	}
	for i := 0; i < r.level; i++ {
		if update[i].next[i] == x {
			update[i].span[i] += x.span[i] - 1
			update[i].next[i] = x.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for r.level > 1 && r.head.next[r.level-1] == nil {
		r.level--
	}
	r.length--
	return true
}

// Rank returns key's 1-based rank, or 0 when absent.
func (r *Ranking) Rank(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	score, ok := r.scores[key]
	if !ok {
		return 0
	}
	rank := 0
	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		for x.next[i] != nil && (x.next[i].before(score, key) || x.next[i].entry.Key == key) {
			rank += x.span[i]
			x = x.next[i]
		}
		if x != r.head && x.entry.Key == key {
			return rank
		}
	}
	return 0
}

// Score returns key's score.
func (r *Ranking) Score(key string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scores[key]
	return s, ok
}

// Range returns entries with ranks in [start, end], inclusive and 1-based.
func (r *Ranking) Range(start, end int) []RankEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if start <= 0 {
		start = 1
	}
	if end > r.length {
		end = r.length
	}
	if start > end {
		return nil
	}

	traversed := 0
	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.next[i]
		}
	}

	out := make([]RankEntry, 0, end-start+1)
	for x = x.next[0]; x != nil && traversed < end; x = x.next[0] {
		traversed++
		out = append(out, x.entry)
	}
	return out
}

func (r *Ranking) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.length
}
