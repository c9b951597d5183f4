package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/exp/rand"

	"snakedqn/internal/agent"
	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/logging"
	"snakedqn/internal/memory"
	"snakedqn/internal/nn"
	"snakedqn/internal/storage"
	"snakedqn/internal/trainer"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/train.yaml", "path to config file")
	episodes := flag.Int("episodes", 0, "number of episodes to run (overrides config)")
	seed := flag.Uint64("seed", 0, "random seed (overrides config)")
	storeKind := flag.String("store", "", "model store backend: memory|file|sqlite (overrides config)")
	storePath := flag.String("store-path", "", "model store location (overrides config)")
	quiet := flag.Bool("quiet", false, "suppress per-episode console lines")
	flag.Parse()

	if err := run(*configPath, *episodes, *seed, *storeKind, *storePath, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, episodes int, seed uint64, storeKind, storePath string, quiet bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if episodes > 0 {
		cfg.Train.Episodes = episodes
	}
	if seed > 0 {
		cfg.Seed = seed
	}
	if storeKind != "" {
		cfg.Store.Kind = storeKind
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if quiet {
		cfg.Logging.Quiet = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("Snake DQN Trainer - board %dx%d (max %dx%d)\n",
		cfg.Env.Width, cfg.Env.Height, cfg.Env.MaxWidth, cfg.Env.MaxHeight)
	fmt.Printf("Config: %s, Seed: %d\n", configPath, cfg.Seed)
	fmt.Printf("Network: %v, lr=%g, batch=%d, update_every=%d, gamma=%g\n",
		nn.Sizes(env.StateSize, cfg.Agent.Hidden, env.NumActions), cfg.Agent.LearningRate,
		cfg.Agent.BatchSize, cfg.Agent.UpdateEvery, cfg.Agent.Gamma)
	fmt.Printf("Store: %s %s, key %q\n", cfg.Store.Kind, cfg.Store.Path, cfg.Train.ModelKey)
	fmt.Println("---")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// one seeded stream per consumer: world, agent, networks, replay
	world, err := env.NewWorld(cfg.Env.Board(), rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	ag, err := newAgent(cfg)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init %s store: %w", cfg.Store.Kind, err)
	}
	defer storage.CloseIfSupported(store)

	var console io.Writer
	if !cfg.Logging.Quiet {
		console = os.Stdout
	}
	logger, err := logging.NewLogger(cfg.Logging.CSVPath, cfg.Logging.JSONPath, console)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	tr, err := trainer.New(world, ag, trainer.Deps{Store: store, Reporter: logger}, trainer.Config{
		Episodes:     cfg.Train.Episodes,
		EpsilonStart: cfg.Train.EpsilonStart,
		EpsilonMin:   cfg.Train.EpsilonMin,
		EpsilonDecay: cfg.Train.EpsilonDecay,
		SaveEvery:    cfg.Train.SaveEvery,
		ModelKey:     cfg.Train.ModelKey,
		Curriculum: trainer.Curriculum{
			Every:      cfg.Train.GrowEvery,
			EveryAfter: cfg.Train.GrowEveryAfter,
			SwitchAt:   cfg.Train.GrowSwitchAt,
			DW:         cfg.Train.GrowDW,
			DH:         cfg.Train.GrowDH,
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Run: %s\n", tr.RunID())

	startTime := time.Now()
	summary, err := tr.Run(ctx)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}

	historyPath := filepath.Join(filepath.Dir(cfg.Logging.CSVPath), "history.csv")
	if err := logging.WriteHistory(historyPath, summary.Scores, summary.Returns); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════")
	if interrupted {
		fmt.Printf("  Interrupted after %d episodes\n", summary.Episodes)
	} else {
		fmt.Printf("  Training complete: %d episodes\n", summary.Episodes)
	}
	fmt.Printf("  Time: %v\n", time.Since(startTime).Round(time.Second))
	fmt.Printf("  Final board: %dx%d, eps: %.3f\n", summary.Board.Width, summary.Board.Height, summary.Epsilon)
	fmt.Printf("  Mean score (last 100): %.2f\n", tailMean(summary.Scores, 100))
	fmt.Printf("  History: %s\n", historyPath)
	fmt.Println("═══════════════════════════════════")
	return nil
}

func newAgent(cfg *config.Config) (*agent.Agent, error) {
	sizes := nn.Sizes(env.StateSize, cfg.Agent.Hidden, env.NumActions)
	local, err := nn.NewMLP(sizes, cfg.Agent.LearningRate, rand.New(rand.NewSource(cfg.Seed+2)))
	if err != nil {
		return nil, err
	}
	target, err := nn.NewMLP(sizes, cfg.Agent.LearningRate, rand.New(rand.NewSource(cfg.Seed+3)))
	if err != nil {
		return nil, err
	}
	buf, err := memory.New(cfg.Agent.BufferCapacity, rand.New(rand.NewSource(cfg.Seed+4)))
	if err != nil {
		return nil, err
	}
	return agent.New(local, target, buf, rand.New(rand.NewSource(cfg.Seed+1)), agent.Config{
		Gamma:       cfg.Agent.Gamma,
		BatchSize:   cfg.Agent.BatchSize,
		UpdateEvery: cfg.Agent.UpdateEvery,
		NumActions:  env.NumActions,
	})
}

func tailMean(scores []int, n int) float64 {
	if len(scores) == 0 {
		return 0
	}
	if len(scores) > n {
		scores = scores[len(scores)-n:]
	}
	var sum int
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}
