// Package eval plays greedy episodes with saved weights over a seed suite.
package eval

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"snakedqn/internal/env"
	"snakedqn/internal/nn"
)

// Config describes an evaluation run
type Config struct {
	Board   env.Board
	Gamma   float64 // discount used for the reported return
	Workers int
}

// Evaluator runs greedy episodes. Every episode builds its own network from
// the params so workers share nothing mutable.
type Evaluator struct {
	cfg    Config
	params nn.Params

	// Render, when set, sees every reset and step; episodes then run one at
	// a time so frames stay in order.
	Render func(w *env.World, action env.Action)
}

// NewEvaluator checks the params against the board's state size
func NewEvaluator(params nn.Params, cfg Config) (*Evaluator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if in := params.Sizes[0]; in != env.StateSize {
		return nil, fmt.Errorf("network expects %d inputs, states have %d", in, env.StateSize)
	}
	if out := params.Sizes[len(params.Sizes)-1]; out != env.NumActions {
		return nil, fmt.Errorf("network produces %d values, there are %d actions", out, env.NumActions)
	}
	if err := cfg.Board.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Evaluator{cfg: cfg, params: params.Clone()}, nil
}

// Seeds returns n consecutive seeds starting at base
func Seeds(base uint64, n int) []uint64 {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = base + uint64(i)
	}
	return seeds
}

// Run plays one episode per seed and returns the stats in seed order
func (e *Evaluator) Run(ctx context.Context, seeds []uint64) ([]env.EpisodeStats, error) {
	if len(seeds) == 0 {
		return nil, errors.New("no evaluation seeds")
	}
	results := make([]env.EpisodeStats, len(seeds))

	workers := e.cfg.Workers
	if e.Render != nil {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats, _, err := e.Episode(seed, false)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Episode plays a single greedy episode on a world seeded with seed. When
// record is set the returned trace replays the episode exactly.
func (e *Evaluator) Episode(seed uint64, record bool) (env.EpisodeStats, *env.Trace, error) {
	net, err := nn.NewMLPFromParams(e.params, nn.DefaultLearningRate)
	if err != nil {
		return env.EpisodeStats{}, nil, err
	}
	w, err := env.NewSeededWorld(e.cfg.Board, seed)
	if err != nil {
		return env.EpisodeStats{}, nil, err
	}
	var trace *env.Trace
	if record {
		trace = env.NewTrace(seed, e.cfg.Board)
	}

	state := w.Reset()
	e.render(w, env.ActionLeft)

	var ret float64
	for {
		values := net.Predict(mat.NewDense(1, len(state), state))
		action := env.Action(nn.Argmax(values.RawRowView(0)))
		if trace != nil {
			trace.Record(action)
		}

		res := w.Step(action)
		e.render(w, action)
		ret = e.cfg.Gamma*ret + res.Reward
		if res.Done {
			break
		}
		state = res.State
	}

	stats := env.EpisodeStats{
		Score:   w.Score(),
		Return:  ret,
		Steps:   w.Steps(),
		Outcome: w.LastOutcome(),
		Seed:    seed,
	}
	if trace != nil {
		trace.SetFinalStats(stats)
	}
	return stats, trace, nil
}

func (e *Evaluator) render(w *env.World, action env.Action) {
	if e.Render != nil {
		e.Render(w, action)
	}
}
