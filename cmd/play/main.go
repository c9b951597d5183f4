package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/eval"
	"snakedqn/internal/logging"
	"snakedqn/internal/storage"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/train.yaml", "path to config file")
	episodes := flag.Int("episodes", 0, "number of greedy episodes (overrides config)")
	seed := flag.Uint64("seed", 0, "first evaluation seed (overrides config)")
	delay := flag.Int("delay", 100, "delay between frames in milliseconds")
	noDisplay := flag.Bool("no-display", false, "run without display (just print stats)")
	tracePath := flag.String("trace", "", "write the best episode's action trace to this file")
	replayPath := flag.String("replay", "", "play back a saved trace instead of evaluating")
	flag.Parse()

	var err error
	if *replayPath != "" {
		err = replay(*replayPath, time.Duration(*delay)*time.Millisecond)
	} else {
		err = run(*configPath, *episodes, *seed, *delay, *noDisplay, *tracePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, episodes int, seed uint64, delay int, noDisplay bool, tracePath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if episodes > 0 {
		cfg.Eval.Episodes = episodes
	}
	if seed > 0 {
		cfg.Eval.BaseSeed = seed
	}
	// evaluation always runs on the largest board
	cfg.Env.Width = cfg.Env.MaxWidth - 2
	cfg.Env.Height = cfg.Env.MaxHeight - 2
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := storage.NewStore(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init %s store: %w", cfg.Store.Kind, err)
	}
	defer storage.CloseIfSupported(store)

	params, ok, err := store.LoadParams(ctx, cfg.Train.ModelKey)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	if !ok {
		return fmt.Errorf("no weights %q found in %s store %s, unable to proceed",
			cfg.Train.ModelKey, cfg.Store.Kind, cfg.Store.Path)
	}
	fmt.Printf("Loaded weights %q (layers %v)\n", cfg.Train.ModelKey, params.Sizes)
	fmt.Printf("Config: %s, Seeds: %d..%d\n", configPath, cfg.Eval.BaseSeed, cfg.Eval.BaseSeed+uint64(cfg.Eval.Episodes)-1)
	fmt.Println()

	evaluator, err := eval.NewEvaluator(params, eval.Config{
		Board:   cfg.Env.Board(),
		Gamma:   cfg.Agent.Gamma,
		Workers: cfg.Eval.Workers,
	})
	if err != nil {
		return err
	}
	if !noDisplay {
		display := NewDisplay(os.Stdout, true)
		frameDelay := time.Duration(delay) * time.Millisecond
		evaluator.Render = func(w *env.World, action env.Action) {
			display.Render(w, action)
			time.Sleep(frameDelay)
		}
	}

	stats, err := evaluator.Run(ctx, eval.Seeds(cfg.Eval.BaseSeed, cfg.Eval.Episodes))
	if err != nil {
		return err
	}
	fmt.Println()
	logging.LogEvaluation(os.Stdout, stats, env.Aggregate(stats))

	if tracePath != "" {
		best := stats[0]
		for _, s := range stats[1:] {
			if s.Score > best.Score {
				best = s
			}
		}
		evaluator.Render = nil
		_, trace, err := evaluator.Episode(best.Seed, true)
		if err != nil {
			return err
		}
		if err := trace.Save(tracePath); err != nil {
			return fmt.Errorf("save trace: %w", err)
		}
		fmt.Printf("Trace of seed %d (score %d) written to %s\n", best.Seed, best.Score, tracePath)
	}
	return nil
}

func replay(path string, frameDelay time.Duration) error {
	trace, err := env.LoadTrace(path)
	if err != nil {
		return err
	}
	w, err := trace.Playback()
	if err != nil {
		return err
	}

	display := NewDisplay(os.Stdout, true)
	display.Render(w, -1)
	for _, a := range trace.Actions {
		if w.Done() {
			break
		}
		time.Sleep(frameDelay)
		w.Step(a)
		display.Render(w, a)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════")
	fmt.Printf("  Replay of seed %d: %s\n", trace.Seed, w.LastOutcome())
	fmt.Printf("  Score: %d, Steps: %d (recorded score %d)\n", w.Score(), w.Steps(), trace.FinalStats.Score)
	fmt.Println("═══════════════════════════════════")
	return nil
}
