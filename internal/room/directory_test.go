package room

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestDirectory(t *testing.T, maxRooms int) *Directory {
	t.Helper()
	d := NewDirectory(DirectoryConfig{
		MaxRooms:      maxRooms,
		NewSimulation: (&simFactory{}).build,
	})
	t.Cleanup(d.Close)
	return d
}

func waitDone(t *testing.T, r *Room) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Room %s did not stop", r.Code())
	}
}

func TestDirectoryCreateAndGet(t *testing.T) {
	d := newTestDirectory(t, 10)

	r, err := d.Create(Config{Name: "  Pit  "})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	code := r.Code()
	if len(code) != codeLength {
		t.Errorf("Expected %d-char code, got %q", codeLength, code)
	}
	for _, c := range code {
		if !strings.ContainsRune(codeChars, c) {
			t.Errorf("Unexpected character %q in code %s", c, code)
		}
	}

	if got := d.Get(strings.ToLower(code)); got != r {
		t.Error("Expected case-insensitive lookup")
	}
	if d.Get("NOPE00") != nil {
		t.Error("Expected nil for unknown code")
	}
	if _, err := d.Lookup("NOPE00"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}

	cfg := r.Config()
	if cfg.Name != "Pit" || cfg.Mode != ModeLastStanding || cfg.WorldSize != "medium" || cfg.MaxPlayers != 10 {
		t.Errorf("Expected defaults applied, got %+v", cfg)
	}
}

func TestDirectoryLimits(t *testing.T) {
	d := newTestDirectory(t, 2)

	if _, err := d.Create(Config{MaxPlayers: 99}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := d.Create(Config{}); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if _, err := d.Create(Config{}); !errors.Is(err, ErrTooManyRooms) {
		t.Errorf("Expected ErrTooManyRooms, got %v", err)
	}

	list := d.List()
	if len(list) != 2 || list[0].Code >= list[1].Code {
		t.Errorf("Expected 2 rooms sorted by code, got %+v", list)
	}
}

func TestDirectoryRemovesRoomWhenLastPlayerLeaves(t *testing.T) {
	d := newTestDirectory(t, 10)
	r, err := d.Create(Config{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := r.Join(ctx, JoinRequest{PlayerID: "a", Session: newFakeSession()}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := r.Leave(ctx, "a"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	waitDone(t, r)
	if d.Len() != 0 {
		t.Errorf("Expected directory empty, got %d", d.Len())
	}
	if _, err := r.Join(ctx, JoinRequest{PlayerID: "b"}); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("Expected ErrRoomClosed, got %v", err)
	}
}

func TestDirectoryCleanup(t *testing.T) {
	d := newTestDirectory(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	empty, err := d.Create(Config{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	busy, err := d.Create(Config{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := busy.Join(ctx, JoinRequest{PlayerID: "a", Session: newFakeSession()}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if n := d.Cleanup(time.Now()); n != 0 {
		t.Errorf("Expected nothing removed yet, got %d", n)
	}
	later := time.Now().Add(d.cfg.EmptyRoomGrace + time.Second)
	if n := d.Cleanup(later); n != 1 {
		t.Fatalf("Expected 1 room removed, got %d", n)
	}
	waitDone(t, empty)
	if d.Get(empty.Code()) != nil || d.Get(busy.Code()) == nil {
		t.Error("Expected only the empty room removed")
	}
}

func TestDirectoryCleanupStalledRoom(t *testing.T) {
	d := newTestDirectory(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r, err := d.Create(Config{Mode: ModeFreePlay})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s := newFakeSession()
	if _, err := r.Join(ctx, JoinRequest{PlayerID: "a", Session: s}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := r.StartCountdown(ctx, "a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.await(t, "tick", 2*time.Second)

	if n := d.Cleanup(time.Now()); n != 0 {
		t.Fatalf("Expected a ticking room to stay, removed %d", n)
	}
	if n := d.Cleanup(time.Now().Add(d.cfg.StallTimeout + time.Second)); n != 1 {
		t.Fatalf("Expected stalled room removed, got %d", n)
	}
	waitDone(t, r)
	if !s.isClosed() {
		t.Error("Expected member sessions closed")
	}
}

func TestDirectoryClose(t *testing.T) {
	d := NewDirectory(DirectoryConfig{NewSimulation: (&simFactory{}).build})
	a, _ := d.Create(Config{})
	b, _ := d.Create(Config{})

	d.Close()
	waitDone(t, a)
	waitDone(t, b)
	if d.Len() != 0 {
		t.Errorf("Expected no rooms, got %d", d.Len())
	}
}

func TestDirectoryRunStopsWithContext(t *testing.T) {
	d := NewDirectory(DirectoryConfig{CleanupInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
