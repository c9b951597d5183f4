package env

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/rand"
)

// Trace stores a deterministic action trace for playback
type Trace struct {
	Seed       uint64       `json:"seed"`
	Board      Board        `json:"board"`
	Actions    []Action     `json:"actions"`
	FinalStats EpisodeStats `json:"final_stats"`
}

// NewSeededWorld builds a world whose randomness comes only from seed, so an
// episode can be reproduced from its trace.
func NewSeededWorld(board Board, seed uint64) (*World, error) {
	return NewWorld(board, rand.New(rand.NewSource(seed)))
}

// NewTrace creates a new trace recorder
func NewTrace(seed uint64, board Board) *Trace {
	return &Trace{
		Seed:    seed,
		Board:   board,
		Actions: make([]Action, 0, 256),
	}
}

// Record adds an action to the trace
func (t *Trace) Record(action Action) {
	t.Actions = append(t.Actions, action)
}

// SetFinalStats sets the final episode statistics
func (t *Trace) SetFinalStats(stats EpisodeStats) {
	t.FinalStats = stats
}

// Save writes the trace to a file
func (t *Trace) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadTrace loads a trace from a file
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", path, err)
	}
	return &t, nil
}

// Playback recreates the world from the trace and resets it
func (t *Trace) Playback() (*World, error) {
	w, err := NewSeededWorld(t.Board, t.Seed)
	if err != nil {
		return nil, err
	}
	w.Reset()
	return w, nil
}

// PlaybackStep runs the trace on w up to step n
func (t *Trace) PlaybackStep(w *World, n int) {
	if n > len(t.Actions) {
		n = len(t.Actions)
	}
	for i := 0; i < n && !w.Done(); i++ {
		w.Step(t.Actions[i])
	}
}
