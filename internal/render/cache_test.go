package render

import (
	"sync"
	"testing"
	"time"

	"snake-arena/internal/game"
)

func snapshotAt(tick uint64) game.FullSnapshot {
	snap := game.NewEngine(game.EngineConfig{WorldSize: game.WorldSmall, Seed: 1}).FullState()
	snap.Tick = tick
	return snap
}

func TestCacheSharesRenders(t *testing.T) {
	c := NewCache(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.PNG("ROOM", snapshotAt(5), 100); err != nil {
				t.Errorf("PNG failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := c.Renders(); got != 1 {
		t.Errorf("Expected one render for identical requests, got %d", got)
	}

	c.PNG("ROOM", snapshotAt(6), 100)
	c.PNG("ROOM", snapshotAt(6), 200)
	if got := c.Renders(); got != 3 {
		t.Errorf("Expected new tick and size to render, got %d renders", got)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(2)
	for tick := uint64(1); tick <= 3; tick++ {
		c.PNG("ROOM", snapshotAt(tick), 64)
	}
	if c.Size() != 2 {
		t.Fatalf("Expected 2 cached images, got %d", c.Size())
	}

	c.PNG("ROOM", snapshotAt(1), 64)
	if c.Renders() != 4 {
		t.Errorf("Expected the evicted tick to render again, got %d renders", c.Renders())
	}
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(4)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.PNG("ROOM", snapshotAt(0), 64)
	now = now.Add(ImageTTL + time.Millisecond)
	c.PNG("ROOM", snapshotAt(0), 64)

	if c.Renders() != 2 {
		t.Errorf("Expected a stale image to be rendered again, got %d renders", c.Renders())
	}
	if c.Size() != 1 {
		t.Errorf("Expected one live entry, got %d", c.Size())
	}
}

func TestCacheRejectsEmptyWorld(t *testing.T) {
	c := NewCache(1)
	if _, err := c.PNG("ROOM", game.FullSnapshot{}, 64); err == nil {
		t.Error("Expected an error for a zero world size")
	}
	if c.Size() != 0 {
		t.Error("Failed renders must not be cached")
	}
}
