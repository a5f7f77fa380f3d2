package stats

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

func TestRankingOrder(t *testing.T) {
	r := NewRanking()
	r.Set("a", 10)
	r.Set("b", 30)
	r.Set("c", 20)
	r.Set("d", 20)

	got := r.Range(1, 10)
	want := []string{"b", "c", "d", "a"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	for i, key := range want {
		if got[i].Key != key {
			t.Errorf("Rank %d: expected %s, got %s", i+1, key, got[i].Key)
		}
		if rank := r.Rank(key); rank != i+1 {
			t.Errorf("Rank(%s) = %d, want %d", key, rank, i+1)
		}
	}

	r.Set("a", 40)
	if r.Rank("a") != 1 || r.Len() != 4 {
		t.Errorf("Expected a to move to the top without duplicating, rank=%d len=%d", r.Rank("a"), r.Len())
	}
	if s, ok := r.Score("a"); !ok || s != 40 {
		t.Errorf("Expected score 40, got %v %v", s, ok)
	}

	if !r.Remove("b") || r.Remove("b") {
		t.Error("Expected Remove to succeed once")
	}
	if r.Rank("b") != 0 || r.Len() != 3 {
		t.Errorf("Expected b gone, rank=%d len=%d", r.Rank("b"), r.Len())
	}

	if mid := r.Range(2, 2); len(mid) != 1 || mid[0].Key != "c" {
		t.Errorf("Expected c at rank 2, got %+v", mid)
	}
	if r.Range(5, 9) != nil {
		t.Error("Expected nil for an empty range")
	}
}

func TestRankingMatchesSortedReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRanking()
	ref := make(map[string]float64)

	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("p%d", rng.Intn(150))
		switch rng.Intn(5) {
		case 0:
			r.Remove(key)
			delete(ref, key)
		default:
			score := float64(rng.Intn(40))
			r.Set(key, score)
			ref[key] = score
		}
	}

	keys := make([]string, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if ref[keys[i]] != ref[keys[j]] {
			return ref[keys[i]] > ref[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if r.Len() != len(keys) {
		t.Fatalf("Expected %d entries, got %d", len(keys), r.Len())
	}
	all := r.Range(1, len(keys))
	for i, k := range keys {
		if all[i].Key != k {
			t.Fatalf("Position %d: expected %s, got %s", i+1, k, all[i].Key)
		}
		if rank := r.Rank(k); rank != i+1 {
			t.Fatalf("Rank(%s) = %d, want %d", k, rank, i+1)
		}
	}
}
