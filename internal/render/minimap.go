// Package render draws a room's current snapshot as a PNG minimap.
package render

import (
	"fmt"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"snake-arena/internal/game"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

var (
	backgroundColor = color.RGBA{12, 12, 28, 255}
	gridColor       = color.RGBA{30, 30, 45, 255}
	boundaryColor   = color.RGBA{255, 62, 62, 255}
	foodColor       = color.RGBA{83, 255, 69, 255}
	bonusFoodColor  = color.RGBA{255, 215, 0, 255}
	deadSnakeColor  = color.RGBA{90, 90, 100, 255}
)

var powerUpColors = map[game.PowerUpType]color.RGBA{
	game.PowerUpSpeed:  {255, 149, 0, 255},
	game.PowerUpShield: {80, 160, 255, 255},
	game.PowerUpGhost:  {200, 200, 255, 255},
}

// ClampSize keeps a requested edge length within [MinSize, MaxSize]. Zero
// means DefaultSize.
func ClampSize(size int) int {
	switch {
	case size == 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}

// Minimap renders snap into a size×size image.
func Minimap(snap game.FullSnapshot, size int) (*gg.Context, error) {
	size = ClampSize(size)
	if snap.WorldSize <= 0 {
		return nil, fmt.Errorf("render minimap: world size %v", snap.WorldSize)
	}
	scale := float64(size) / snap.WorldSize

	dc := gg.NewContext(size, size)
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	step := float64(size) / 8
	for v := step; v < float64(size); v += step {
		dc.DrawLine(v, 0, v, float64(size))
		dc.DrawLine(0, v, float64(size), v)
	}
	dc.Stroke()

	dc.SetColor(boundaryColor)
	dc.SetLineWidth(2)
	dc.DrawCircle(snap.CenterX*scale, snap.CenterY*scale, snap.BoundaryRadius*scale)
	dc.Stroke()

	for _, f := range snap.Food {
		if f.Type == game.FoodBonus {
			dc.SetColor(bonusFoodColor)
		} else {
			dc.SetColor(foodColor)
		}
		dc.DrawPoint(f.X*scale, f.Y*scale, 1)
		dc.Fill()
	}

	for _, p := range snap.PowerUps {
		dc.SetColor(powerUpColors[p.Type])
		dc.DrawCircle(p.X*scale, p.Y*scale, 3)
		dc.Fill()
	}

	// Dead snakes first so the living are drawn on top.
	for _, alive := range []bool{false, true} {
		for _, s := range snap.Snakes {
			if s.Alive == alive {
				drawSnake(dc, s, scale)
			}
		}
	}
	return dc, nil
}

func drawSnake(dc *gg.Context, s game.SnakeView, scale float64) {
	if len(s.Segments) == 0 {
		return
	}
	c := parseHexColor(s.Color)
	if !s.Alive {
		c = deadSnakeColor
	}

	width := game.BodyRadius * 2 * scale
	if width < 2 {
		width = 2
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(s.Segments[0].X*scale, s.Segments[0].Y*scale)
	for _, seg := range s.Segments[1:] {
		dc.LineTo(seg.X*scale, seg.Y*scale)
	}
	dc.Stroke()

	if s.Alive {
		dc.SetColor(color.White)
		dc.DrawCircle(s.Segments[0].X*scale, s.Segments[0].Y*scale, width/2+1)
		dc.Fill()
	}
}

// WritePNG renders snap and encodes it to w.
func WritePNG(w io.Writer, snap game.FullSnapshot, size int) error {
	dc, err := Minimap(snap, size)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{
		R: hexToByte(hex[1], hex[2]),
		G: hexToByte(hex[3], hex[4]),
		B: hexToByte(hex[5], hex[6]),
		A: 255,
	}
}

func hexToByte(h1, h2 byte) uint8 {
	return hexNibble(h1)<<4 | hexNibble(h2)
}

func hexNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
