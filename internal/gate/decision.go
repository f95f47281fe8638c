package gate

import (
	"sort"

	"github.com/upb/rag-gatekeeper/models"
)

// Decision is the outcome of the gate for one candidate set
type Decision struct {
	Mode models.DecisionMode
	// MaxSimilarity is the best parseable score, nil when there is none.
	MaxSimilarity *float64
	StrongCount   int
	TopScores     []float64
}

// Engine applies Thresholds to candidate sets
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a new decision engine
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Thresholds returns the thresholds the engine was built with
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Decide returns Answer when the best score reaches Hard, SoftAnswer when at
// least MinStrong of the TopN scores reach Soft, and NoInfo otherwise.
// Unparseable (NaN or infinite) scores are dropped, not counted as zero.
func (e *Engine) Decide(candidates []models.RetrievedCandidate) Decision {
	scores := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if !isFinite(c.Similarity) {
			continue
		}
		scores = append(scores, c.Similarity)
	}
	if len(scores) == 0 {
		return Decision{Mode: models.ModeNoInfo}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	top := scores
	if len(top) > e.thresholds.TopN {
		top = top[:e.thresholds.TopN]
	}

	best := top[0]
	strong := 0
	for _, s := range top {
		if s >= e.thresholds.Soft {
			strong++
		}
	}

	d := Decision{
		MaxSimilarity: &best,
		StrongCount:   strong,
		TopScores:     top,
	}

	switch {
	case best >= e.thresholds.Hard:
		d.Mode = models.ModeAnswer
	case strong >= e.thresholds.MinStrong:
		d.Mode = models.ModeSoftAnswer
	default:
		d.Mode = models.ModeNoInfo
	}
	return d
}
