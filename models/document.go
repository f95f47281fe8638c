package models

// DocumentMetadata is attached to every indexed chunk at ingestion time.
type DocumentMetadata struct {
	Source            string   `json:"source" db:"source" validate:"required"`
	OwnerDepartment   string   `json:"owner_department" db:"owner_department" validate:"required"`
	MinRoleLevel      int      `json:"min_role_level" db:"min_role_level" validate:"gte=0"`
	MinClearanceLevel int      `json:"min_clearance_level" db:"min_clearance_level" validate:"gte=0"`
	AllowedRoles      []string `json:"allowed_roles,omitempty" db:"allowed_roles"`
}

// DocumentSummary describes one indexed document: its chunk count and the
// access metadata its chunks carry.
type DocumentSummary struct {
	Source            string `json:"source"`
	Chunks            int    `json:"chunks"`
	OwnerDepartment   string `json:"owner_department"`
	MinRoleLevel      int    `json:"min_role_level"`
	MinClearanceLevel int    `json:"min_clearance_level"`
}

// RetrievedCandidate is one authorized chunk returned by the index for a
// single request. Similarity is NaN when the index score could not be read.
type RetrievedCandidate struct {
	Content    string           `json:"content"`
	Metadata   DocumentMetadata `json:"metadata"`
	Similarity float64          `json:"similarity"`
}

// SourceRef identifies a document used as evidence for an answer
type SourceRef struct {
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// SourcesOf returns the source references of the given candidates, in order.
func SourcesOf(candidates []RetrievedCandidate) []SourceRef {
	refs := make([]SourceRef, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, SourceRef{Source: c.Metadata.Source, Similarity: c.Similarity})
	}
	return refs
}
