package models

// DecisionMode is the tri-state outcome of the answer gate
type DecisionMode string

const (
	ModeAnswer     DecisionMode = "answer"
	ModeSoftAnswer DecisionMode = "soft_answer"
	ModeNoInfo     DecisionMode = "no_info"
)

// AllowsAnswer returns true if the mode permits calling the generator
func (m DecisionMode) AllowsAnswer() bool {
	return m == ModeAnswer || m == ModeSoftAnswer
}

// IsSoft returns true if the answer must carry a partial-confidence disclaimer
func (m DecisionMode) IsSoft() bool {
	return m == ModeSoftAnswer
}

// NoInfoReason is the reason reported to callers for a NoInfo outcome
const NoInfoReason = "insufficient_relevance"
