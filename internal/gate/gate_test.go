package gate

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/rag-gatekeeper/models"
)

func candidates(scores ...float64) []models.RetrievedCandidate {
	out := make([]models.RetrievedCandidate, 0, len(scores))
	for i, s := range scores {
		out = append(out, models.RetrievedCandidate{
			Content:    fmt.Sprintf("chunk %d", i),
			Metadata:   models.DocumentMetadata{Source: fmt.Sprintf("doc-%d.pdf", i), OwnerDepartment: "eng"},
			Similarity: s,
		})
	}
	return out
}

func similarities(cs []models.RetrievedCandidate) []float64 {
	out := make([]float64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Similarity)
	}
	return out
}

func TestThresholds_Validate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	tests := []struct {
		name   string
		modify func(*Thresholds)
	}{
		{"hard above one", func(th *Thresholds) { th.Hard = 1.2 }},
		{"soft above hard", func(th *Thresholds) { th.Soft = 0.6 }},
		{"negative soft", func(th *Thresholds) { th.Soft = -0.1 }},
		{"zero top n", func(th *Thresholds) { th.TopN = 0 }},
		{"min strong above top n", func(th *Thresholds) { th.MinStrong = 5 }},
		{"zero min strong", func(th *Thresholds) { th.MinStrong = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.modify(&th)
			assert.Error(t, th.Validate())
		})
	}
}

func TestDecide_Scenarios(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	t.Run("one strong match answers", func(t *testing.T) {
		d := engine.Decide(candidates(0.62, 0.30, 0.10))
		assert.Equal(t, models.ModeAnswer, d.Mode)
		require.NotNil(t, d.MaxSimilarity)
		assert.Equal(t, 0.62, *d.MaxSimilarity)
		assert.Equal(t, 1, d.StrongCount)
	})

	t.Run("three moderate matches soft answer", func(t *testing.T) {
		d := engine.Decide(candidates(0.45, 0.42, 0.41, 0.20))
		assert.Equal(t, models.ModeSoftAnswer, d.Mode)
		assert.Equal(t, 3, d.StrongCount)
		assert.Equal(t, 0.45, *d.MaxSimilarity)
	})

	t.Run("two moderate matches refuse", func(t *testing.T) {
		d := engine.Decide(candidates(0.45, 0.42, 0.10))
		assert.Equal(t, models.ModeNoInfo, d.Mode)
		assert.Equal(t, 2, d.StrongCount)
	})

	t.Run("empty refuses with no max", func(t *testing.T) {
		d := engine.Decide(nil)
		assert.Equal(t, models.ModeNoInfo, d.Mode)
		assert.Nil(t, d.MaxSimilarity)
	})

	t.Run("all unparseable refuses with no max", func(t *testing.T) {
		d := engine.Decide(candidates(math.NaN(), math.NaN(), math.Inf(1)))
		assert.Equal(t, models.ModeNoInfo, d.Mode)
		assert.Nil(t, d.MaxSimilarity)
	})

	t.Run("hard threshold is inclusive", func(t *testing.T) {
		assert.Equal(t, models.ModeAnswer, engine.Decide(candidates(0.50)).Mode)
	})

	t.Run("soft threshold is inclusive", func(t *testing.T) {
		assert.Equal(t, models.ModeSoftAnswer, engine.Decide(candidates(0.40, 0.40, 0.40)).Mode)
	})
}

func TestDecide_UnparseableScoresAreDroppedNotZeroed(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	d := engine.Decide(candidates(math.NaN(), 0.45, math.NaN(), 0.42, math.NaN(), 0.41))
	assert.Equal(t, models.ModeSoftAnswer, d.Mode)
	assert.Equal(t, []float64{0.45, 0.42, 0.41}, d.TopScores)
}

func TestDecide_OnlyTopNCount(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	d := engine.Decide(candidates(0.44, 0.43, 0.42, 0.41, 0.41, 0.40, 0.10))
	assert.Equal(t, []float64{0.44, 0.43, 0.42, 0.41}, d.TopScores)
	assert.Equal(t, 4, d.StrongCount)
	assert.Equal(t, models.ModeSoftAnswer, d.Mode)

	d = engine.Decide(candidates(0.49, 0.39, 0.39, 0.39, 0.45, 0.44))
	assert.Equal(t, []float64{0.49, 0.45, 0.44, 0.39}, d.TopScores)
	assert.Equal(t, models.ModeSoftAnswer, d.Mode)

	d = engine.Decide(candidates(0.49, 0.39, 0.39, 0.39, 0.39, 0.45))
	assert.Equal(t, 2, d.StrongCount)
	assert.Equal(t, models.ModeNoInfo, d.Mode)
}

func TestDecide_AnswerRegardlessOfStrongCount(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		scores := []float64{0.5 + rng.Float64()*0.5}
		for j := rng.Intn(8); j > 0; j-- {
			scores = append(scores, rng.Float64())
		}
		assert.Equal(t, models.ModeAnswer, engine.Decide(candidates(scores...)).Mode, "scores %v", scores)
	}
}

func TestDecide_SoftAnswerBelowHard(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		scores := []float64{
			0.40 + rng.Float64()*0.0999,
			0.40 + rng.Float64()*0.0999,
			0.40 + rng.Float64()*0.0999,
		}
		for j := rng.Intn(5); j > 0; j-- {
			scores = append(scores, rng.Float64()*0.4999)
		}
		assert.Equal(t, models.ModeSoftAnswer, engine.Decide(candidates(scores...)).Mode, "scores %v", scores)
	}
}

func TestDecide_OrderIndependent(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := rng.Intn(9)
		scores := make([]float64, n)
		for j := range scores {
			scores[j] = math.Round(rng.Float64()*100) / 100
			if rng.Intn(10) == 0 {
				scores[j] = math.NaN()
			}
		}
		cs := candidates(scores...)
		want := engine.Decide(cs)

		rng.Shuffle(len(cs), func(a, b int) { cs[a], cs[b] = cs[b], cs[a] })
		got := engine.Decide(cs)

		assert.Equal(t, want.Mode, got.Mode)
		assert.Equal(t, want.StrongCount, got.StrongCount)
		assert.Equal(t, want.TopScores, got.TopScores)
	}
}

func TestDecide_CustomThresholds(t *testing.T) {
	engine := NewEngine(Thresholds{Hard: 0.8, Soft: 0.6, TopN: 2, MinStrong: 2})

	assert.Equal(t, models.ModeNoInfo, engine.Decide(candidates(0.7, 0.5, 0.65)).Mode)
	assert.Equal(t, models.ModeSoftAnswer, engine.Decide(candidates(0.7, 0.65)).Mode)
	assert.Equal(t, models.ModeAnswer, engine.Decide(candidates(0.81)).Mode)
	assert.Equal(t, 0.8, engine.Thresholds().Hard)
}

func TestSelect(t *testing.T) {
	t.Run("returns best three sorted", func(t *testing.T) {
		selected := Select(candidates(0.30, 0.62, 0.10), DefaultMaxDocs)
		assert.Equal(t, []float64{0.62, 0.30, 0.10}, similarities(selected))
	})

	t.Run("caps at max docs", func(t *testing.T) {
		selected := Select(candidates(0.1, 0.9, 0.5, 0.7, 0.3), DefaultMaxDocs)
		assert.Equal(t, []float64{0.9, 0.7, 0.5}, similarities(selected))
	})

	t.Run("ties keep input order", func(t *testing.T) {
		cs := candidates(0.5, 0.5, 0.5, 0.5)
		selected := Select(cs, 2)
		assert.Equal(t, "doc-0.pdf", selected[0].Metadata.Source)
		assert.Equal(t, "doc-1.pdf", selected[1].Metadata.Source)
	})

	t.Run("unparseable scores are never selected", func(t *testing.T) {
		selected := Select(candidates(math.NaN(), 0.2, math.Inf(1), 0.4), 3)
		assert.Equal(t, []float64{0.4, 0.2}, similarities(selected))
	})

	t.Run("only unparseable scores", func(t *testing.T) {
		assert.Empty(t, Select(candidates(math.NaN(), math.NaN()), 3))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		cs := candidates(0.1, 0.9)
		_ = Select(cs, 3)
		assert.Equal(t, []float64{0.1, 0.9}, similarities(cs))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Select(nil, 3))
		assert.Empty(t, Select(candidates(0.5), 0))
	})
}

func TestSelectEvidence(t *testing.T) {
	t.Run("applies cutoff", func(t *testing.T) {
		selected := SelectEvidence(candidates(0.62, 0.58, 0.30, 0.56, 0.57), 3, 0.55)
		assert.Equal(t, []float64{0.62, 0.58, 0.57}, similarities(selected))
	})

	t.Run("falls back when cutoff removes everything", func(t *testing.T) {
		selected := SelectEvidence(candidates(0.45, 0.42, 0.41, 0.20), 3, 0.55)
		assert.Equal(t, []float64{0.45, 0.42, 0.41}, similarities(selected))
	})

	t.Run("fallback skips unparseable scores", func(t *testing.T) {
		selected := SelectEvidence(candidates(0.7, math.NaN()), 3, 0.8)
		assert.Equal(t, []float64{0.7}, similarities(selected))
	})

	t.Run("never exceeds max docs and never empty for non-empty input", func(t *testing.T) {
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 200; i++ {
			n := 1 + rng.Intn(10)
			scores := make([]float64, n)
			for j := range scores {
				scores[j] = rng.Float64()
			}
			maxDocs := 1 + rng.Intn(4)
			selected := SelectEvidence(candidates(scores...), maxDocs, rng.Float64())
			assert.NotEmpty(t, selected)
			assert.LessOrEqual(t, len(selected), maxDocs)
		}
	})
}
