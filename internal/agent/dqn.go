// Package agent implements the Double-DQN learner: epsilon-greedy acting,
// experience storage and bootstrapped updates against a periodically
// synchronized target network.
package agent

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"snakedqn/internal/memory"
	"snakedqn/internal/nn"
	"snakedqn/internal/storage"
)

// Config holds the learning hyperparameters
type Config struct {
	Gamma       float64
	BatchSize   int
	UpdateEvery int
	NumActions  int
}

// Validate rejects settings the learner cannot run with
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be within [0,1] (got %v)", c.Gamma)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive (got %d)", c.BatchSize)
	}
	if c.UpdateEvery <= 0 {
		return fmt.Errorf("update_every must be positive (got %d)", c.UpdateEvery)
	}
	if c.NumActions <= 0 {
		return fmt.Errorf("action count must be positive (got %d)", c.NumActions)
	}
	return nil
}

// Agent owns the local and target networks and the replay buffer
type Agent struct {
	cfg    Config
	local  nn.Approximator
	target nn.Approximator
	memory *memory.Buffer
	rng    *rand.Rand

	tick  int // trained learn calls since the last sync
	syncs int
}

// New wires an agent; the target starts as a copy of local
func New(local, target nn.Approximator, buf *memory.Buffer, rng *rand.Rand, cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if local == nil || target == nil {
		return nil, errors.New("agent requires local and target networks")
	}
	if buf == nil {
		return nil, errors.New("agent requires a replay buffer")
	}
	if rng == nil {
		return nil, errors.New("agent requires a random source")
	}
	if buf.Cap() <= cfg.BatchSize {
		return nil, fmt.Errorf("replay capacity %d must exceed batch size %d", buf.Cap(), cfg.BatchSize)
	}
	if err := target.SyncFrom(local); err != nil {
		return nil, fmt.Errorf("initial target sync: %w", err)
	}
	return &Agent{
		cfg:    cfg,
		local:  local,
		target: target,
		memory: buf,
		rng:    rng,
	}, nil
}

// Act picks a uniformly random action with probability epsilon and the
// highest-valued action otherwise
func (a *Agent) Act(state []float64, epsilon float64) int {
	if a.rng.Float64() < epsilon {
		return a.rng.Intn(a.cfg.NumActions)
	}
	return a.Greedy(state)
}

// Greedy returns the first action with the highest local value
func (a *Agent) Greedy(state []float64) int {
	values := a.local.Predict(mat.NewDense(1, len(state), state))
	return nn.Argmax(values.RawRowView(0))
}

// AddExperience stores a transition
func (a *Agent) AddExperience(e memory.Experience) {
	if e.Action < 0 || e.Action >= a.cfg.NumActions {
		panic(fmt.Sprintf("agent: action %d out of range [0,%d)", e.Action, a.cfg.NumActions))
	}
	a.memory.Add(e)
}

// Learn runs one Double-DQN update. Nothing happens until the buffer holds
// more than a batch; trained reports whether an update took place.
func (a *Agent) Learn() (loss float64, trained bool) {
	if a.memory.Len() <= a.cfg.BatchSize {
		return 0, false
	}
	batch, err := a.memory.Sample(a.cfg.BatchSize)
	if err != nil {
		// Len was checked above; a failure here is a bug in the buffer
		panic(fmt.Sprintf("agent: sample: %v", err))
	}

	target := a.Targets(batch)
	loss = a.local.Train(batch.States, target)

	a.tick++
	if a.tick >= a.cfg.UpdateEvery {
		if err := a.target.SyncFrom(a.local); err != nil {
			panic(fmt.Sprintf("agent: target sync: %v", err))
		}
		a.tick = 0
		a.syncs++
	}
	return loss, true
}

// Targets builds the regression targets for a batch. Every slot starts at
// the local prediction so only taken actions carry error; the taken slot gets
// the reward, plus for non-terminal rows gamma times the target network's
// value of the action the local network prefers in the next state.
func (a *Agent) Targets(batch memory.Batch) *mat.Dense {
	target := a.local.Predict(batch.States)
	nextLocal := a.local.Predict(batch.NextStates)
	nextTarget := a.target.Predict(batch.NextStates)

	for i := 0; i < batch.Len(); i++ {
		value := batch.Rewards[i]
		if !batch.Dones[i] {
			best := nn.Argmax(nextLocal.RawRowView(i))
			value += a.cfg.Gamma * nextTarget.At(i, best)
		}
		target.Set(i, batch.Actions[i], value)
	}
	return target
}

// Gamma returns the discount factor
func (a *Agent) Gamma() float64 {
	return a.cfg.Gamma
}

// Syncs returns how many hard target updates have happened
func (a *Agent) Syncs() int {
	return a.syncs
}

// Local returns the trained network
func (a *Agent) Local() nn.Approximator {
	return a.local
}

// Target returns the target network
func (a *Agent) Target() nn.Approximator {
	return a.target
}

// Memory returns the replay buffer
func (a *Agent) Memory() *memory.Buffer {
	return a.memory
}

// Persist saves the local network under key
func (a *Agent) Persist(ctx context.Context, store storage.Store, key string) error {
	if err := store.SaveParams(ctx, key, a.local.Params()); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// Restore loads key into both networks. found is false when the store has
// no such key, in which case the networks are left as they are.
func (a *Agent) Restore(ctx context.Context, store storage.Store, key string) (found bool, err error) {
	p, ok, err := store.LoadParams(ctx, key)
	if err != nil {
		return false, fmt.Errorf("restore %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := a.local.SetParams(p); err != nil {
		return false, fmt.Errorf("restore %s: %w", key, err)
	}
	if err := a.target.SyncFrom(a.local); err != nil {
		return false, fmt.Errorf("restore %s: %w", key, err)
	}
	return true, nil
}
