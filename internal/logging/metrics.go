package logging

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"snakedqn/internal/env"
	"snakedqn/internal/trainer"
)

// Logger handles all training output: a CSV row and a JSON line per
// episode plus a console line
type Logger struct {
	csvPath     string
	jsonPath    string
	csvFile     *os.File
	csvWriter   *csv.Writer
	jsonFile    *os.File
	console     io.Writer
	initialized bool
}

var _ trainer.Reporter = (*Logger)(nil)

// NewLogger creates a new logger. Empty paths disable that output and a nil
// console silences the per-episode lines.
func NewLogger(csvPath, jsonPath string, console io.Writer) (*Logger, error) {
	l := &Logger{
		csvPath:  csvPath,
		jsonPath: jsonPath,
		console:  console,
	}

	// Ensure directories exist
	for _, p := range []string{csvPath, jsonPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Init opens the log files, truncating previous runs
func (l *Logger) Init() error {
	var err error

	if l.csvPath != "" {
		l.csvFile, err = os.Create(l.csvPath)
		if err != nil {
			return err
		}
		l.csvWriter = csv.NewWriter(l.csvFile)

		header := []string{
			"run_id", "episode", "score", "return", "epsilon", "steps",
			"outcome", "loss", "width", "height", "syncs",
		}
		if err := l.csvWriter.Write(header); err != nil {
			return err
		}
	}

	if l.jsonPath != "" {
		l.jsonFile, err = os.OpenFile(l.jsonPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
	}

	l.initialized = true
	return nil
}

// Close flushes and closes all log files
func (l *Logger) Close() error {
	var firstErr error
	if l.csvWriter != nil {
		l.csvWriter.Flush()
		firstErr = l.csvWriter.Error()
	}
	if l.csvFile != nil {
		if err := l.csvFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.jsonFile != nil {
		if err := l.jsonFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.initialized = false
	return firstErr
}

// LogEpisode writes one training episode to every configured output
func (l *Logger) LogEpisode(r trainer.EpisodeReport) error {
	if l.console != nil {
		fmt.Fprintf(l.console, "iter: %d/%d, score: %d, cumulative reward: %.3f, eps: %.3f\n",
			r.Episode, r.Total, r.Score, r.Return, r.Epsilon)
	}
	if !l.initialized {
		return nil
	}

	if l.csvWriter != nil {
		row := []string{
			r.RunID,
			strconv.Itoa(r.Episode),
			strconv.Itoa(r.Score),
			strconv.FormatFloat(r.Return, 'f', 4, 64),
			strconv.FormatFloat(r.Epsilon, 'f', 4, 64),
			strconv.Itoa(r.Steps),
			r.Outcome.String(),
			strconv.FormatFloat(r.Loss, 'g', 6, 64),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.Itoa(r.Syncs),
		}
		if err := l.csvWriter.Write(row); err != nil {
			return err
		}
		l.csvWriter.Flush()
		if err := l.csvWriter.Error(); err != nil {
			return err
		}
	}

	if l.jsonFile != nil {
		line, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := l.jsonFile.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// LogEvaluation prints one line per greedy episode followed by the means
func LogEvaluation(w io.Writer, episodes []env.EpisodeStats, agg env.AggregatedStats) {
	for i, ep := range episodes {
		fmt.Fprintf(w, "iter: %d/%d, score: %d, cumulative reward: %.3f, outcome: %s\n",
			i+1, len(episodes), ep.Score, ep.Return, ep.Outcome)
	}
	fmt.Fprintf(w, "Mean reward: %.3f\n", agg.ReturnMean)
	fmt.Fprintf(w, "Mean score: %.3f\n", agg.ScoreMean)
	fmt.Fprintf(w, "Best score: %d | Score std: %.3f | Mean steps: %.1f\n", agg.ScoreMax, agg.ScoreStd, agg.StepsMean)
	fmt.Fprintf(w, "Outcomes: wall=%d self=%d exhausted=%d\n",
		agg.OutcomeCounts[env.OutcomeWall], agg.OutcomeCounts[env.OutcomeSelf], agg.OutcomeCounts[env.OutcomeExhausted])
}

// WriteHistory dumps the score and return histories as CSV for plotting
func WriteHistory(path string, scores []int, returns []float64) error {
	if len(scores) != len(returns) {
		return fmt.Errorf("history length mismatch: %d scores, %d returns", len(scores), len(returns))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"episode", "score", "return"}); err != nil {
		return err
	}
	for i := range scores {
		if err := w.Write([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(scores[i]),
			strconv.FormatFloat(returns[i], 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
