package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"snakedqn/internal/env"
)

// ErrInvalid marks configuration errors found by Validate
var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration structure
type Config struct {
	Seed    uint64      `yaml:"seed"`
	Env     EnvConfig   `yaml:"env"`
	Agent   AgentConfig `yaml:"agent"`
	Train   TrainConfig `yaml:"train"`
	Eval    EvalConfig  `yaml:"eval"`
	Store   StoreConfig `yaml:"store"`
	Logging LogConfig   `yaml:"logging"`
}

// EnvConfig defines the board
type EnvConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
}

// Board converts the section to the environment's board
func (e EnvConfig) Board() env.Board {
	return env.Board{MaxWidth: e.MaxWidth, MaxHeight: e.MaxHeight, Width: e.Width, Height: e.Height}
}

// AgentConfig defines the learner and its network
type AgentConfig struct {
	Gamma          float64 `yaml:"gamma"`
	BatchSize      int     `yaml:"batch_size"`
	UpdateEvery    int     `yaml:"update_every"`
	BufferCapacity int     `yaml:"buffer_capacity"`
	LearningRate   float64 `yaml:"learning_rate"`
	Hidden         []int   `yaml:"hidden"`
}

// TrainConfig defines the episode schedule
type TrainConfig struct {
	Episodes     int     `yaml:"episodes"`
	EpsilonStart float64 `yaml:"epsilon_start"`
	EpsilonMin   float64 `yaml:"epsilon_min"`
	EpsilonDecay float64 `yaml:"epsilon_decay"`

	GrowEvery      int `yaml:"grow_every"`
	GrowEveryAfter int `yaml:"grow_every_after"`
	GrowSwitchAt   int `yaml:"grow_switch_episode"`
	GrowDW         int `yaml:"grow_dw"`
	GrowDH         int `yaml:"grow_dh"`

	SaveEvery int    `yaml:"save_every"`
	ModelKey  string `yaml:"model_key"`
}

// EvalConfig defines greedy evaluation runs
type EvalConfig struct {
	Episodes int    `yaml:"episodes"`
	BaseSeed uint64 `yaml:"base_seed"`
	Workers  int    `yaml:"workers"`
}

// StoreConfig selects the model store backend
type StoreConfig struct {
	Kind string `yaml:"kind"` // memory|file|sqlite
	Path string `yaml:"path"`
}

// LogConfig defines per-episode reporting outputs
type LogConfig struct {
	CSVPath  string `yaml:"csv_path"`
	JSONPath string `yaml:"json_path"`
	Quiet    bool   `yaml:"quiet"`
}

// Load reads a YAML config file and returns a Config
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Seed == 0 {
		cfg.Seed = 1337
	}
	if cfg.Env.MaxWidth == 0 {
		cfg.Env.MaxWidth = 27
	}
	if cfg.Env.MaxHeight == 0 {
		cfg.Env.MaxHeight = 27
	}
	if cfg.Env.Width == 0 {
		cfg.Env.Width = cfg.Env.MaxWidth - 2
	}
	if cfg.Env.Height == 0 {
		cfg.Env.Height = cfg.Env.MaxHeight - 2
	}
	if cfg.Agent.Gamma == 0 {
		cfg.Agent.Gamma = 0.95
	}
	if cfg.Agent.BatchSize == 0 {
		cfg.Agent.BatchSize = 64
	}
	if cfg.Agent.UpdateEvery == 0 {
		cfg.Agent.UpdateEvery = 5
	}
	if cfg.Agent.BufferCapacity == 0 {
		cfg.Agent.BufferCapacity = 100000
	}
	if cfg.Agent.LearningRate == 0 {
		cfg.Agent.LearningRate = 0.01
	}
	if len(cfg.Agent.Hidden) == 0 {
		cfg.Agent.Hidden = []int{32, 18, 10}
	}
	if cfg.Train.Episodes == 0 {
		cfg.Train.Episodes = 20000
	}
	if cfg.Train.EpsilonStart == 0 {
		cfg.Train.EpsilonStart = 1.0
	}
	if cfg.Train.EpsilonMin == 0 {
		cfg.Train.EpsilonMin = 0.05
	}
	if cfg.Train.EpsilonDecay == 0 {
		cfg.Train.EpsilonDecay = 0.9996
	}
	if cfg.Train.GrowEvery == 0 {
		cfg.Train.GrowEvery = 500
	}
	if cfg.Train.GrowEveryAfter == 0 {
		cfg.Train.GrowEveryAfter = 600
	}
	if cfg.Train.GrowSwitchAt == 0 {
		cfg.Train.GrowSwitchAt = 5000
	}
	if cfg.Train.GrowDW == 0 {
		cfg.Train.GrowDW = 1
	}
	if cfg.Train.GrowDH == 0 {
		cfg.Train.GrowDH = 1
	}
	if cfg.Train.SaveEvery == 0 {
		cfg.Train.SaveEvery = 200
	}
	if cfg.Train.ModelKey == "" {
		cfg.Train.ModelKey = "snake"
	}
	if cfg.Eval.Episodes == 0 {
		cfg.Eval.Episodes = 30
	}
	if cfg.Eval.BaseSeed == 0 {
		cfg.Eval.BaseSeed = 2000
	}
	if cfg.Eval.Workers == 0 {
		cfg.Eval.Workers = 4
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = "file"
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Kind {
		case "sqlite":
			cfg.Store.Path = "runs/models.db"
		case "file":
			cfg.Store.Path = "runs/models"
		}
	}
	if cfg.Logging.CSVPath == "" {
		cfg.Logging.CSVPath = "runs/train.csv"
	}
	if cfg.Logging.JSONPath == "" {
		cfg.Logging.JSONPath = "runs/train.jsonl"
	}
}

// Validate reports the first setting a run cannot start with
func (c *Config) Validate() error {
	switch {
	case c.Agent.Gamma < 0 || c.Agent.Gamma > 1:
		return invalid("agent.gamma must be within [0,1] (got %v)", c.Agent.Gamma)
	case c.Agent.BatchSize <= 0:
		return invalid("agent.batch_size must be positive (got %d)", c.Agent.BatchSize)
	case c.Agent.UpdateEvery <= 0:
		return invalid("agent.update_every must be positive (got %d)", c.Agent.UpdateEvery)
	case c.Agent.BufferCapacity <= c.Agent.BatchSize:
		return invalid("agent.buffer_capacity %d must exceed batch_size %d", c.Agent.BufferCapacity, c.Agent.BatchSize)
	case c.Agent.LearningRate <= 0:
		return invalid("agent.learning_rate must be positive (got %v)", c.Agent.LearningRate)
	case c.Train.Episodes <= 0:
		return invalid("train.episodes must be positive (got %d)", c.Train.Episodes)
	case c.Train.EpsilonMin < 0 || c.Train.EpsilonStart > 1 || c.Train.EpsilonMin > c.Train.EpsilonStart:
		return invalid("train epsilon range [%v,%v] is not within [0,1]", c.Train.EpsilonMin, c.Train.EpsilonStart)
	case c.Train.EpsilonDecay <= 0 || c.Train.EpsilonDecay > 1:
		return invalid("train.epsilon_decay must be within (0,1] (got %v)", c.Train.EpsilonDecay)
	case c.Train.GrowEvery < 0 || c.Train.GrowEveryAfter < 0 || c.Train.GrowDW < 0 || c.Train.GrowDH < 0:
		return invalid("train growth settings must not be negative")
	case c.Train.SaveEvery < 0:
		return invalid("train.save_every must not be negative (got %d)", c.Train.SaveEvery)
	case c.Eval.Episodes <= 0:
		return invalid("eval.episodes must be positive (got %d)", c.Eval.Episodes)
	case c.Eval.Workers <= 0:
		return invalid("eval.workers must be positive (got %d)", c.Eval.Workers)
	}
	for _, h := range c.Agent.Hidden {
		if h <= 0 {
			return invalid("agent.hidden sizes must be positive (got %v)", c.Agent.Hidden)
		}
	}
	if err := c.Env.Board().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
