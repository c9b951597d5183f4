package env

import "fmt"

// Point represents a coordinate on the grid
type Point struct {
	X, Y int
}

// Add returns p shifted by d
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Bounds is the inclusive playable rectangle
type Bounds struct {
	X1, X2, Y1, Y2 int
}

// Contains reports whether p lies inside the rectangle
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X1 && p.X <= b.X2 && p.Y >= b.Y1 && p.Y <= b.Y2
}

// Board is a playable sub-rectangle centered in a fixed maximum grid.
// Width and Height only grow and never exceed Max-2.
type Board struct {
	MaxWidth  int
	MaxHeight int
	Width     int
	Height    int
}

// Validate checks the board against the configured limits
func (b Board) Validate() error {
	if b.MaxWidth <= 0 || b.MaxHeight <= 0 {
		return fmt.Errorf("board max size must be positive (got %dx%d)", b.MaxWidth, b.MaxHeight)
	}
	if b.Width < StartLength || b.Height < StartLength {
		return fmt.Errorf("board size must be at least %dx%d (got %dx%d)", StartLength, StartLength, b.Width, b.Height)
	}
	if b.Width > b.MaxWidth-2 || b.Height > b.MaxHeight-2 {
		return fmt.Errorf("board size %dx%d exceeds limit %dx%d", b.Width, b.Height, b.MaxWidth-2, b.MaxHeight-2)
	}
	return nil
}

// Bounds returns the current playable rectangle. Odd sizes put the extra
// column/row on the high side.
func (b Board) Bounds() Bounds {
	midW, midH := b.MaxWidth/2, b.MaxHeight/2
	return Bounds{
		X1: midW - b.Width/2,
		X2: midW - 1 + b.Width/2 + b.Width%2,
		Y1: midH - b.Height/2,
		Y2: midH - 1 + b.Height/2 + b.Height%2,
	}
}

// Grow enlarges the playable area, clamped to Max-2
func (b *Board) Grow(dw, dh int) {
	if dw < 0 || dh < 0 {
		panic(fmt.Sprintf("env: board cannot shrink (dw=%d dh=%d)", dw, dh))
	}
	b.Width = min(b.Width+dw, b.MaxWidth-2)
	b.Height = min(b.Height+dh, b.MaxHeight-2)
}

// Cells returns the number of playable cells
func (b Board) Cells() int {
	return b.Width * b.Height
}
