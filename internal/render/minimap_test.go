package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"snake-arena/internal/game"
)

func TestWritePNG(t *testing.T) {
	e := game.NewEngine(game.EngineConfig{WorldSize: game.WorldSmall, Seed: 9})
	e.SpawnSnake("a", "Alice", "", "#ff0000")
	e.SpawnSnake("b", "Bob", "", "#00ff00")
	for i := 0; i < 10; i++ {
		e.Update()
	}

	var buf bytes.Buffer
	if err := WritePNG(&buf, e.FullState(), 200); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("Expected 200x200, got %v", b)
	}

	r, g, b, _ := img.At(0, 0).RGBA()
	if uint8(r>>8) != backgroundColor.R || uint8(g>>8) != backgroundColor.G || uint8(b>>8) != backgroundColor.B {
		t.Errorf("Expected background in the corner, got %v", img.At(0, 0))
	}
}

func TestMinimapRejectsEmptyWorld(t *testing.T) {
	if _, err := Minimap(game.FullSnapshot{}, 100); err == nil {
		t.Error("Expected error for a zero world size")
	}
}

func TestClampSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultSize},
		{10, MinSize},
		{300, 300},
		{5000, MaxSize},
	}
	for _, tt := range tests {
		if got := ClampSize(tt.in); got != tt.want {
			t.Errorf("ClampSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff8000", color.RGBA{255, 128, 0, 255}},
		{"#ABCDEF", color.RGBA{0xab, 0xcd, 0xef, 255}},
		{"red", color.RGBA{255, 255, 255, 255}},
		{"", color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
