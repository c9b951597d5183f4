package env

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Rewards observed by the learner
const (
	RewardStep  = -1.0
	RewardFood  = 50.0
	RewardDeath = -50.0
)

// foodAttempts bounds the search for a food cell off the body
const foodAttempts = 64

// StepResult is what the world returns for one tick
type StepResult struct {
	State   []float64
	Reward  float64
	Done    bool
	Outcome Outcome
}

// World represents the snake game environment
type World struct {
	board Board
	rng   *rand.Rand

	// State
	snake *Snake
	food  Point
	steps int
	done  bool
	last  Outcome
}

// NewWorld creates a world; call Reset before stepping
func NewWorld(board Board, rng *rand.Rand) (*World, error) {
	if err := board.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("world requires a random source")
	}
	return &World{board: board, rng: rng}, nil
}

// Reset places a fresh snake and food and returns the initial observation
func (w *World) Reset() []float64 {
	w.steps = 0
	w.done = false
	w.last = OutcomeNone

	b := w.board.Bounds()
	dir := Direction(w.rng.Intn(NumActions))

	// Keep the trailing segments inside the rectangle
	x1, x2, y1, y2 := b.X1, b.X2, b.Y1, b.Y2
	back := dir.Opposite().Delta()
	reach := StartLength - 1
	switch {
	case back.X < 0:
		x1 += reach
	case back.X > 0:
		x2 -= reach
	case back.Y < 0:
		y1 += reach
	case back.Y > 0:
		y2 -= reach
	}
	head := Point{
		X: x1 + w.rng.Intn(x2-x1+1),
		Y: y1 + w.rng.Intn(y2-y1+1),
	}

	moves := max(MinMoves, w.board.Cells())
	w.snake = NewSnake(head, dir, w.board.MaxWidth*w.board.MaxHeight, moves)
	w.food = w.randomFood()
	return w.observe()
}

// Step advances the game by one tick with the given action
func (w *World) Step(action Action) StepResult {
	if w.snake == nil {
		panic("env: Step called before Reset")
	}
	if w.done {
		panic("env: Step called on a finished episode")
	}

	s := w.snake
	s.Dir = s.Dir.Turn(action)
	newHead := s.Head().Add(s.Dir.Delta())
	b := w.board.Bounds()

	res := StepResult{Reward: RewardStep, Outcome: OutcomeNone}
	switch {
	case s.Len() > 2 && s.Occupies(newHead, true):
		res.Reward = RewardDeath
		res.Done = true
		res.Outcome = OutcomeSelf
		s.kill()
	case newHead == w.food:
		s.grow(newHead)
		s.Moves += MoveBonus
		res.Reward = RewardFood
		res.Outcome = OutcomeAte
		w.food = w.randomFood()
	case !b.Contains(newHead):
		res.Reward = RewardDeath
		res.Done = true
		res.Outcome = OutcomeWall
		s.kill()
	default:
		s.advance(newHead)
	}

	if s.Alive {
		w.steps++
		s.Moves--
		if s.Moves < 0 {
			panic(fmt.Sprintf("env: negative move budget %d", s.Moves))
		}
		if s.Moves == 0 {
			res.Done = true
			res.Outcome = OutcomeExhausted
		}
	}

	w.done = res.Done
	w.last = res.Outcome
	res.State = w.observe()
	return res
}

// ChangeSize grows the playable area, clamped to Max-2. It takes effect on the
// next Reset for placement, immediately for collisions.
func (w *World) ChangeSize(dw, dh int) {
	w.board.Grow(dw, dh)
}

// randomFood picks a cell inside the bounds, avoiding the body when it can
func (w *World) randomFood() Point {
	b := w.board.Bounds()
	var p Point
	for i := 0; i < foodAttempts; i++ {
		p = Point{
			X: b.X1 + w.rng.Intn(b.X2-b.X1+1),
			Y: b.Y1 + w.rng.Intn(b.Y2-b.Y1+1),
		}
		if !w.snake.Occupies(p, false) {
			return p
		}
	}
	return p
}

func (w *World) observe() []float64 {
	return Look(w.snake, w.food, w.board.Bounds(), nil)
}

// Snake returns the live snake
func (w *World) Snake() *Snake {
	return w.snake
}

// Food returns the food position
func (w *World) Food() Point {
	return w.food
}

// Board returns the current board dimensions
func (w *World) Board() Board {
	return w.board
}

// Bounds returns the current playable rectangle
func (w *World) Bounds() Bounds {
	return w.board.Bounds()
}

// Score is the number of segments gained this episode
func (w *World) Score() int {
	return w.snake.Len() - StartLength
}

// Steps returns the number of ticks survived this episode
func (w *World) Steps() int {
	return w.steps
}

// Done reports whether the episode has ended
func (w *World) Done() bool {
	return w.done
}

// LastOutcome returns the outcome of the latest step
func (w *World) LastOutcome() Outcome {
	return w.last
}

// Observe returns the current observation without stepping
func (w *World) Observe() []float64 {
	return w.observe()
}
