package env

import (
	"fmt"
	"math"
)

// Outcome tags what happened on a step
type Outcome int

const (
	OutcomeNone      Outcome = iota
	OutcomeAte               // food captured
	OutcomeSelf              // ran into own body
	OutcomeWall              // left the playable area
	OutcomeExhausted         // move budget used up
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeAte:
		return "ate"
	case OutcomeSelf:
		return "self-collision"
	case OutcomeWall:
		return "wall"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for c := OutcomeNone; c <= OutcomeExhausted; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Terminal reports whether the outcome ends an episode
func (o Outcome) Terminal() bool {
	return o == OutcomeSelf || o == OutcomeWall || o == OutcomeExhausted
}

// EpisodeStats captures all metrics from a single episode
type EpisodeStats struct {
	Score   int     // final length minus StartLength
	Return  float64 // accumulated as gamma*ret + reward per step
	Steps   int     // ticks survived
	Outcome Outcome // how the episode ended
	Seed    uint64  // seed used for this episode
}

// AggregatedStats holds statistics across multiple episodes
type AggregatedStats struct {
	ScoreMean     float64
	ScoreStd      float64
	ScoreMax      int
	ReturnMean    float64
	StepsMean     float64
	OutcomeCounts map[Outcome]int
	NumEpisodes   int
}

// Aggregate computes statistics from multiple episode stats
func Aggregate(episodes []EpisodeStats) AggregatedStats {
	n := len(episodes)
	if n == 0 {
		return AggregatedStats{OutcomeCounts: make(map[Outcome]int)}
	}

	agg := AggregatedStats{
		OutcomeCounts: make(map[Outcome]int),
		NumEpisodes:   n,
	}

	var scoreSum, returnSum, stepsSum float64
	for _, ep := range episodes {
		scoreSum += float64(ep.Score)
		returnSum += ep.Return
		stepsSum += float64(ep.Steps)
		if ep.Score > agg.ScoreMax {
			agg.ScoreMax = ep.Score
		}
		agg.OutcomeCounts[ep.Outcome]++
	}

	nf := float64(n)
	agg.ScoreMean = scoreSum / nf
	agg.ReturnMean = returnSum / nf
	agg.StepsMean = stepsSum / nf

	var variance float64
	for _, ep := range episodes {
		diff := float64(ep.Score) - agg.ScoreMean
		variance += diff * diff
	}
	agg.ScoreStd = math.Sqrt(variance / nf)

	return agg
}
