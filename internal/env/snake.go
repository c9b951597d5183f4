package env

import "fmt"

// Direction represents the snake's absolute heading
type Direction int

const (
	DirLeft Direction = iota
	DirRight
	DirUp
	DirDown
)

// Action requests an absolute heading; ids match Direction values
type Action int

const (
	ActionLeft Action = iota
	ActionRight
	ActionUp
	ActionDown
)

// NumActions is the size of the action space
const NumActions = 4

const (
	// StartLength is the number of segments after reset
	StartLength = 4
	// MoveBonus is added to the move budget per food eaten
	MoveBonus = 100
	// MinMoves is the lower bound of the initial move budget
	MinMoves = 100
)

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	default:
		return "unknown"
	}
}

// Delta returns the unit step for the heading
func (d Direction) Delta() Point {
	switch d {
	case DirLeft:
		return Point{X: -1}
	case DirRight:
		return Point{X: 1}
	case DirUp:
		return Point{Y: -1}
	case DirDown:
		return Point{Y: 1}
	}
	panic(fmt.Sprintf("env: invalid direction %d", d))
}

// Opposite returns the reverse heading
func (d Direction) Opposite() Direction {
	switch d {
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	case DirUp:
		return DirDown
	default:
		return DirUp
	}
}

// Turn applies a requested heading; reversing is read as going straight
func (d Direction) Turn(a Action) Direction {
	if a < 0 || a >= NumActions {
		panic(fmt.Sprintf("env: action %d out of range [0,%d)", a, NumActions))
	}
	want := Direction(a)
	if want == d.Opposite() {
		return d
	}
	return want
}

// Snake is the body stored head-first in a ring buffer
type Snake struct {
	cells []Point
	head  int
	n     int

	Dir   Direction
	Alive bool
	Moves int
}

// NewSnake lays out StartLength segments behind head, opposite to dir
func NewSnake(head Point, dir Direction, capacity, moves int) *Snake {
	if capacity < StartLength {
		capacity = StartLength
	}
	s := &Snake{
		cells: make([]Point, capacity),
		Dir:   dir,
		Alive: true,
		Moves: moves,
	}
	back := dir.Opposite().Delta()
	p := head
	for i := 0; i < StartLength; i++ {
		s.cells[i] = p
		p = p.Add(back)
	}
	s.n = StartLength
	return s
}

// Len returns the number of segments
func (s *Snake) Len() int {
	return s.n
}

// At returns segment i, counted from the head
func (s *Snake) At(i int) Point {
	if i < 0 || i >= s.n {
		panic(fmt.Sprintf("env: segment %d out of range [0,%d)", i, s.n))
	}
	return s.cells[(s.head+i)%len(s.cells)]
}

// Head returns the head position
func (s *Snake) Head() Point {
	return s.cells[s.head]
}

// Tail returns the last segment
func (s *Snake) Tail() Point {
	return s.At(s.n - 1)
}

// Body returns a head-first copy of the segments
func (s *Snake) Body() []Point {
	out := make([]Point, s.n)
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}

// Occupies reports whether p is a body cell. With skipTail the last segment,
// which moves away this tick, is ignored.
func (s *Snake) Occupies(p Point, skipTail bool) bool {
	n := s.n
	if skipTail {
		n--
	}
	for i := 0; i < n; i++ {
		if s.cells[(s.head+i)%len(s.cells)] == p {
			return true
		}
	}
	return false
}

// grow prepends p as the new head
func (s *Snake) grow(p Point) {
	if s.n == len(s.cells) {
		s.resize(2 * len(s.cells))
	}
	s.head = (s.head - 1 + len(s.cells)) % len(s.cells)
	s.cells[s.head] = p
	s.n++
}

// advance moves the head to p; every segment takes its predecessor's cell
func (s *Snake) advance(p Point) {
	// moving the head index back by one drops the old tail from the window
	s.head = (s.head - 1 + len(s.cells)) % len(s.cells)
	s.cells[s.head] = p
}

func (s *Snake) resize(capacity int) {
	cells := make([]Point, capacity)
	for i := 0; i < s.n; i++ {
		cells[i] = s.At(i)
	}
	s.cells = cells
	s.head = 0
}

// kill marks the snake dead
func (s *Snake) kill() {
	s.Alive = false
}
