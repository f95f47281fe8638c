package gate

import (
	"math"
	"sort"

	"github.com/upb/rag-gatekeeper/models"
)

// DefaultMaxDocs is the number of evidence documents passed to the generator
const DefaultMaxDocs = 3

// Select returns the maxDocs best candidates by similarity, best first.
// Ties keep their input order. Candidates without a finite score are never
// selected.
func Select(candidates []models.RetrievedCandidate, maxDocs int) []models.RetrievedCandidate {
	if len(candidates) == 0 || maxDocs <= 0 {
		return []models.RetrievedCandidate{}
	}

	sorted := make([]models.RetrievedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if isFinite(c.Similarity) {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})

	if len(sorted) > maxDocs {
		sorted = sorted[:maxDocs]
	}
	return sorted
}

// SelectEvidence applies a minimum-similarity cutoff before selecting. When
// the cutoff removes every candidate, it falls back to Select over the full
// set so an answer is never left without grounding.
func SelectEvidence(candidates []models.RetrievedCandidate, maxDocs int, minSimilarity float64) []models.RetrievedCandidate {
	kept := make([]models.RetrievedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= minSimilarity {
			kept = append(kept, c)
		}
	}

	selected := Select(kept, maxDocs)
	if len(selected) == 0 {
		return Select(candidates, maxDocs)
	}
	return selected
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
