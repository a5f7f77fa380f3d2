package spatial

import "sort"

// Interval is an entity's extent on the sweep axis.
type Interval struct {
	Min, Max float64
}

// Pair names two entities whose intervals overlap. A < B always.
type Pair struct {
	A, B uint32
}

type endpoint struct {
	value float64
	id    uint32
	isMin bool
}

// SweepAndPrune is a 1-axis broad phase. Snakes move a few units per tick,
// so the endpoint order from the previous call is nearly sorted and the
// insertion sort stays close to linear.
type SweepAndPrune struct {
	endpoints []endpoint
	active    []uint32
	pairs     []Pair
}

// NewSweepAndPrune preallocates buffers for maxEntities intervals.
func NewSweepAndPrune(maxEntities int) *SweepAndPrune {
	return &SweepAndPrune{
		endpoints: make([]endpoint, 0, maxEntities*2),
		active:    make([]uint32, 0, maxEntities),
		pairs:     make([]Pair, 0, maxEntities),
	}
}

// Overlaps returns every overlapping pair of intervals, where the ids are
// indices into intervals. Pairs come back sorted by (A, B) so callers can
// evaluate them in a stable order. The returned slice is reused.
func (s *SweepAndPrune) Overlaps(intervals []Interval) []Pair {
	s.pairs = s.pairs[:0]
	s.endpoints = s.endpoints[:0]
	s.active = s.active[:0]

	for i, iv := range intervals {
		s.endpoints = append(s.endpoints,
			endpoint{iv.Min, uint32(i), true},
			endpoint{iv.Max, uint32(i), false},
		)
	}
	insertionSort(s.endpoints)

	for _, ep := range s.endpoints {
		if ep.isMin {
			for _, other := range s.active {
				a, b := ep.id, other
				if a > b {
					a, b = b, a
				}
				s.pairs = append(s.pairs, Pair{a, b})
			}
			s.active = append(s.active, ep.id)
			continue
		}
		for i, id := range s.active {
			if id == ep.id {
				s.active[i] = s.active[len(s.active)-1]
				s.active = s.active[:len(s.active)-1]
				break
			}
		}
	}

	sort.Slice(s.pairs, func(i, j int) bool {
		if s.pairs[i].A != s.pairs[j].A {
			return s.pairs[i].A < s.pairs[j].A
		}
		return s.pairs[i].B < s.pairs[j].B
	})
	return s.pairs
}

// insertionSort orders endpoints by value; a min endpoint sorts before a max
// endpoint at the same value so touching intervals count as overlapping.
func insertionSort(eps []endpoint) {
	for i := 1; i < len(eps); i++ {
		key := eps[i]
		j := i - 1
		for j >= 0 && endpointLess(key, eps[j]) {
			eps[j+1] = eps[j]
			j--
		}
		eps[j+1] = key
	}
}

func endpointLess(a, b endpoint) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.isMin && !b.isMin
}
