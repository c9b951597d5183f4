// Package memory implements the experience replay buffer used by the agent.
package memory

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// DefaultCapacity is the number of transitions kept before eviction
const DefaultCapacity = 100000

// ErrUnderpopulated is returned when a sample asks for more entries than stored
var ErrUnderpopulated = errors.New("replay buffer holds fewer experiences than requested")

// Experience is one stored transition
type Experience struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
	Done      bool
}

// Batch is a sample decomposed into parallel arrays; row i of States and
// NextStates belongs to Actions[i], Rewards[i] and Dones[i].
type Batch struct {
	States     *mat.Dense
	Actions    []int
	Rewards    []float64
	NextStates *mat.Dense
	Dones      []bool
}

// Len returns the number of sampled transitions
func (b Batch) Len() int {
	return len(b.Actions)
}

// Buffer is a fixed-capacity ring of experiences. It is not safe for
// concurrent use.
type Buffer struct {
	entries  []Experience
	position int
	size     int
	rng      *rand.Rand
}

// New creates a buffer holding at most capacity experiences
func New(capacity int, rng *rand.Rand) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("replay capacity must be positive (got %d)", capacity)
	}
	if rng == nil {
		return nil, errors.New("replay buffer requires a random source")
	}
	return &Buffer{
		entries: make([]Experience, capacity),
		rng:     rng,
	}, nil
}

// Add stores a copy of e, evicting the oldest entry when full
func (b *Buffer) Add(e Experience) {
	e.State = append([]float64(nil), e.State...)
	e.NextState = append([]float64(nil), e.NextState...)

	b.entries[b.position] = e
	b.position = (b.position + 1) % len(b.entries)
	if b.size < len(b.entries) {
		b.size++
	}
}

// Len returns the number of stored experiences
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the buffer capacity
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// Sample draws n distinct experiences uniformly without replacement
func (b *Buffer) Sample(n int) (Batch, error) {
	if n <= 0 {
		return Batch{}, fmt.Errorf("sample size must be positive (got %d)", n)
	}
	if b.size < n {
		return Batch{}, fmt.Errorf("sample %d of %d: %w", n, b.size, ErrUnderpopulated)
	}

	idx := b.distinct(n)
	dim := len(b.entries[idx[0]].State)
	batch := Batch{
		States:     mat.NewDense(n, dim, nil),
		Actions:    make([]int, n),
		Rewards:    make([]float64, n),
		NextStates: mat.NewDense(n, dim, nil),
		Dones:      make([]bool, n),
	}
	for row, i := range idx {
		e := b.entries[i]
		batch.States.SetRow(row, e.State)
		batch.NextStates.SetRow(row, e.NextState)
		batch.Actions[row] = e.Action
		batch.Rewards[row] = e.Reward
		batch.Dones[row] = e.Done
	}
	return batch, nil
}

// distinct picks n different slots among the stored ones (Floyd's algorithm)
func (b *Buffer) distinct(n int) []int {
	chosen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for j := b.size - n; j < b.size; j++ {
		t := b.rng.Intn(j + 1)
		if _, ok := chosen[t]; ok {
			t = j
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	// Floyd's selection is biased in order, not in membership
	b.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
