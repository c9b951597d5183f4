// Package trainer runs DQN training episodes: exploration schedule,
// curriculum growth of the board and periodic persistence of the weights.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"snakedqn/internal/agent"
	"snakedqn/internal/env"
	"snakedqn/internal/memory"
	"snakedqn/internal/storage"
)

// Reporter receives one row per finished episode
type Reporter interface {
	LogEpisode(r EpisodeReport) error
}

// RenderFunc is called after every reset and step with the action chosen
type RenderFunc func(w *env.World, action env.Action)

// Deps are the collaborators of a training run. Reporter and Render are
// optional; Log defaults to the standard logger.
type Deps struct {
	Store    storage.Store
	Reporter Reporter
	Render   RenderFunc
	Log      *log.Logger
}

// Curriculum grows the board by (DW, DH) every Every episodes, switching to
// EveryAfter from episode SwitchAt on. A zero period disables growth.
type Curriculum struct {
	Every      int
	EveryAfter int
	SwitchAt   int
	DW, DH     int
}

// GrowAt reports whether the board grows after the given 1-based episode
func (c Curriculum) GrowAt(episode int) bool {
	every := c.Every
	if c.SwitchAt > 0 && episode >= c.SwitchAt {
		every = c.EveryAfter
	}
	return every > 0 && episode%every == 0
}

// Config holds the schedule of a training run
type Config struct {
	Episodes     int
	EpsilonStart float64
	EpsilonMin   float64
	EpsilonDecay float64
	SaveEvery    int
	ModelKey     string
	Curriculum   Curriculum
}

// EpisodeReport summarizes one training episode
type EpisodeReport struct {
	RunID    string      `json:"run_id"`
	Episode  int         `json:"episode"`
	Total    int         `json:"total"`
	Score    int         `json:"score"`
	Return   float64     `json:"return"`
	Epsilon  float64     `json:"epsilon"`
	Steps    int         `json:"steps"`
	Outcome  env.Outcome `json:"outcome"`
	Loss     float64     `json:"loss"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Syncs    int         `json:"syncs"`
	Restored bool        `json:"restored,omitempty"`
}

// Summary is the outcome of a run; the histories are the plotting input
type Summary struct {
	RunID    string
	Episodes int
	Scores   []int
	Returns  []float64
	Epsilon  float64
	Board    env.Board
	Restored bool
}

// Trainer drives one agent on one world
type Trainer struct {
	world *env.World
	agent *agent.Agent
	deps  Deps
	cfg   Config
	runID string
}

// New validates the schedule and wires the collaborators
func New(world *env.World, ag *agent.Agent, deps Deps, cfg Config) (*Trainer, error) {
	if world == nil || ag == nil {
		return nil, errors.New("trainer requires a world and an agent")
	}
	if deps.Store == nil {
		return nil, errors.New("trainer requires a model store")
	}
	if cfg.Episodes <= 0 {
		return nil, fmt.Errorf("episode count must be positive (got %d)", cfg.Episodes)
	}
	if cfg.EpsilonDecay <= 0 || cfg.EpsilonDecay > 1 {
		return nil, fmt.Errorf("epsilon decay must be within (0,1] (got %v)", cfg.EpsilonDecay)
	}
	if cfg.EpsilonMin < 0 || cfg.EpsilonMin > cfg.EpsilonStart || cfg.EpsilonStart > 1 {
		return nil, fmt.Errorf("epsilon range [%v,%v] is not within [0,1]", cfg.EpsilonMin, cfg.EpsilonStart)
	}
	if cfg.ModelKey == "" {
		return nil, errors.New("model key is required")
	}
	if deps.Log == nil {
		deps.Log = log.Default()
	}
	return &Trainer{
		world: world,
		agent: ag,
		deps:  deps,
		cfg:   cfg,
		runID: uuid.NewString(),
	}, nil
}

// RunID identifies this run in reports
func (t *Trainer) RunID() string {
	return t.runID
}

// Run restores any saved weights, trains for the configured number of
// episodes and saves the local network. Cancellation is checked between
// episodes; the weights are saved before a cancelled run returns.
func (t *Trainer) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:   t.runID,
		Scores:  make([]int, 0, t.cfg.Episodes),
		Returns: make([]float64, 0, t.cfg.Episodes),
	}

	restored, err := t.agent.Restore(ctx, t.deps.Store, t.cfg.ModelKey)
	if err != nil {
		return summary, err
	}
	if restored {
		t.deps.Log.Printf("loaded weights %q from a previous session", t.cfg.ModelKey)
	} else {
		t.deps.Log.Printf("no weights %q found, starting from scratch", t.cfg.ModelKey)
	}
	summary.Restored = restored

	eps := t.cfg.EpsilonStart
	for i := 1; i <= t.cfg.Episodes; i++ {
		if err := ctx.Err(); err != nil {
			if perr := t.agent.Persist(context.WithoutCancel(ctx), t.deps.Store, t.cfg.ModelKey); perr != nil {
				t.deps.Log.Printf("save on cancel: %v", perr)
			}
			return t.finish(summary, eps), err
		}

		eps = max(eps*t.cfg.EpsilonDecay, t.cfg.EpsilonMin)
		stats, loss := t.episode(eps)

		summary.Episodes = i
		summary.Scores = append(summary.Scores, stats.Score)
		summary.Returns = append(summary.Returns, stats.Return)

		if t.deps.Reporter != nil {
			board := t.world.Board()
			report := EpisodeReport{
				RunID:    t.runID,
				Episode:  i,
				Total:    t.cfg.Episodes,
				Score:    stats.Score,
				Return:   stats.Return,
				Epsilon:  eps,
				Steps:    stats.Steps,
				Outcome:  stats.Outcome,
				Loss:     loss,
				Width:    board.Width,
				Height:   board.Height,
				Syncs:    t.agent.Syncs(),
				Restored: restored,
			}
			if err := t.deps.Reporter.LogEpisode(report); err != nil {
				return t.finish(summary, eps), fmt.Errorf("report episode %d: %w", i, err)
			}
		}

		if t.cfg.SaveEvery > 0 && i%t.cfg.SaveEvery == 0 {
			if err := t.agent.Persist(ctx, t.deps.Store, t.cfg.ModelKey); err != nil {
				return t.finish(summary, eps), err
			}
		}

		if t.cfg.Curriculum.GrowAt(i) {
			t.world.ChangeSize(t.cfg.Curriculum.DW, t.cfg.Curriculum.DH)
		}
	}

	if err := t.agent.Persist(ctx, t.deps.Store, t.cfg.ModelKey); err != nil {
		return t.finish(summary, eps), err
	}
	return t.finish(summary, eps), nil
}

func (t *Trainer) finish(s Summary, eps float64) Summary {
	s.Epsilon = eps
	s.Board = t.world.Board()
	return s
}

// episode plays until done, learning after every step. It returns the
// episode stats and the mean loss over the steps that trained.
func (t *Trainer) episode(eps float64) (env.EpisodeStats, float64) {
	state := t.world.Reset()
	action := t.agent.Act(state, eps)
	t.render(action)

	var (
		ret     float64
		lossSum float64
		trained int
	)
	gamma := t.agent.Gamma()
	for {
		res := t.world.Step(env.Action(action))
		t.agent.AddExperience(memory.Experience{
			State:     state,
			Action:    action,
			Reward:    res.Reward,
			NextState: res.State,
			Done:      res.Done,
		})
		if loss, ok := t.agent.Learn(); ok {
			lossSum += loss
			trained++
		}
		t.render(action)

		// the terminal reward is folded in like any other
		ret = gamma*ret + res.Reward
		if res.Done {
			break
		}
		state = res.State
		action = t.agent.Act(state, eps)
	}

	var meanLoss float64
	if trained > 0 {
		meanLoss = lossSum / float64(trained)
	}
	return env.EpisodeStats{
		Score:   t.world.Score(),
		Return:  ret,
		Steps:   t.world.Steps(),
		Outcome: t.world.LastOutcome(),
	}, meanLoss
}

func (t *Trainer) render(action int) {
	if t.deps.Render != nil {
		t.deps.Render(t.world, env.Action(action))
	}
}
