package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"snakedqn/internal/env"
)

// Display handles terminal rendering of the whole max grid; cells outside
// the playable rectangle are drawn as wall
type Display struct {
	out   io.Writer
	clear bool
}

// NewDisplay creates a new display
func NewDisplay(out io.Writer, clear bool) *Display {
	return &Display{out: out, clear: clear}
}

// Render draws the world and the action that produced it
func (d *Display) Render(w *env.World, action env.Action) {
	if d.clear {
		clearScreen()
	}
	board := w.Board()
	bounds := w.Bounds()

	// Build grid
	grid := make([][]rune, board.MaxHeight)
	for y := range grid {
		grid[y] = make([]rune, board.MaxWidth)
		for x := range grid[y] {
			if bounds.Contains(env.Point{X: x, Y: y}) {
				grid[y][x] = '·'
			} else {
				grid[y][x] = '░'
			}
		}
	}

	food := w.Food()
	if inGrid(food, board) {
		grid[food.Y][food.X] = '●'
	}

	// Place snake body, head last so it is never covered
	snake := w.Snake()
	body := snake.Body()
	for i := len(body) - 1; i >= 0; i-- {
		p := body[i]
		if !inGrid(p, board) {
			continue
		}
		if i == 0 {
			grid[p.Y][p.X] = directionHead(snake.Dir)
		} else {
			grid[p.Y][p.X] = '█'
		}
	}

	var sb strings.Builder
	sb.WriteString("┌" + strings.Repeat("──", board.MaxWidth) + "┐\n")
	for y := range grid {
		sb.WriteString("│")
		for _, c := range grid[y] {
			sb.WriteRune(' ')
			sb.WriteRune(c)
		}
		sb.WriteString("│\n")
	}
	sb.WriteString("└" + strings.Repeat("──", board.MaxWidth) + "┘\n")
	fmt.Fprint(d.out, sb.String())

	fmt.Fprintf(d.out, "  Steps: %3d | Score: %d | Length: %d | Moves left: %d | Action: %s\n",
		w.Steps(), w.Score(), snake.Len(), snake.Moves, actionName(action))

	if w.Done() {
		fmt.Fprintf(d.out, "  GAME OVER: %s\n", w.LastOutcome())
	}
}

func inGrid(p env.Point, b env.Board) bool {
	return p.X >= 0 && p.X < b.MaxWidth && p.Y >= 0 && p.Y < b.MaxHeight
}

func actionName(a env.Action) string {
	if a < 0 || a >= env.NumActions {
		return "---"
	}
	return strings.ToUpper(env.Direction(a).String())
}

func directionHead(dir env.Direction) rune {
	switch dir {
	case env.DirUp:
		return '▲'
	case env.DirRight:
		return '▶'
	case env.DirDown:
		return '▼'
	case env.DirLeft:
		return '◀'
	}
	return 'O'
}

func clearScreen() {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/c", "cls")
	} else {
		cmd = exec.Command("clear")
	}
	cmd.Stdout = os.Stdout
	cmd.Run()
}
