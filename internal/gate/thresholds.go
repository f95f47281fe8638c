// Package gate decides whether a query may be answered from the authorized
// candidates and picks the evidence handed to the generator.
package gate

import "fmt"

// Thresholds are the tunable parameters of the answer gate
type Thresholds struct {
	Hard      float64 `json:"hard"`       // a single score at or above this answers
	Soft      float64 `json:"soft"`       // scores at or above this count as strong
	TopN      int     `json:"top_n"`      // how many of the best scores are inspected
	MinStrong int     `json:"min_strong"` // strong scores needed in the top N for a soft answer
}

// DefaultThresholds returns the production policy
func DefaultThresholds() Thresholds {
	return Thresholds{
		Hard:      0.50,
		Soft:      0.40,
		TopN:      4,
		MinStrong: 3,
	}
}

// Validate checks the thresholds are internally consistent
func (t Thresholds) Validate() error {
	if t.Hard < 0 || t.Hard > 1 {
		return fmt.Errorf("hard threshold must be within [0,1], got %v", t.Hard)
	}
	if t.Soft < 0 || t.Soft > t.Hard {
		return fmt.Errorf("soft threshold must be within [0,hard], got %v", t.Soft)
	}
	if t.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", t.TopN)
	}
	if t.MinStrong < 1 || t.MinStrong > t.TopN {
		return fmt.Errorf("min_strong must be within [1,top_n], got %d", t.MinStrong)
	}
	return nil
}
