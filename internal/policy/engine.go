package policy

import (
	"github.com/upb/rag-gatekeeper/models"
)

// BuildFilter translates the caller's attributes into the retrieval predicate.
// Members of the shared department are only limited by the role and clearance
// thresholds; everyone else is also scoped to their own department plus the
// shared one.
func BuildFilter(user models.UserContext) Predicate {
	thresholds := []Predicate{
		Lte(FieldMinRoleLevel, user.RoleLevel),
		Lte(FieldMinClearanceLevel, user.ClearanceLevel),
	}

	if user.IsShared() {
		return And(thresholds...)
	}

	department := Or(
		Eq(FieldOwnerDepartment, user.Department),
		Eq(FieldOwnerDepartment, models.SharedDepartment),
	)
	return And(append([]Predicate{department}, thresholds...)...)
}

// IsAuthorized is the document-level reference rule: the user's role must be
// listed in the document's allowed roles, the departments must be equal and
// the user's clearance must reach the document minimum.
func IsAuthorized(user models.UserContext, meta models.DocumentMetadata) bool {
	if user.Department != meta.OwnerDepartment {
		return false
	}
	if user.ClearanceLevel < meta.MinClearanceLevel {
		return false
	}
	for _, role := range meta.AllowedRoles {
		if role == user.Role {
			return true
		}
	}
	return false
}

// Visible reports whether the retrieval filter admits the document for the user.
func Visible(user models.UserContext, meta models.DocumentMetadata) bool {
	return BuildFilter(user).Match(meta)
}

// Check evaluates both definitions for one user/document pair.
func Check(user models.UserContext, meta models.DocumentMetadata) Verdict {
	authorized := IsAuthorized(user, meta)
	visible := Visible(user, meta)
	return Verdict{
		Authorized: authorized,
		Visible:    visible,
		Diverges:   authorized != visible,
	}
}

// Match evaluates the predicate against document metadata in memory.
// Unknown fields and malformed nodes never match.
func (p Predicate) Match(meta models.DocumentMetadata) bool {
	switch p.Op {
	case OpAnd:
		if len(p.Children) == 0 {
			return false
		}
		for _, c := range p.Children {
			if !c.Match(meta) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range p.Children {
			if c.Match(meta) {
				return true
			}
		}
		return false
	case OpEq:
		want, ok := p.Value.(string)
		if !ok || p.Field != FieldOwnerDepartment {
			return false
		}
		return meta.OwnerDepartment == want
	case OpLte:
		limit, ok := p.Value.(int)
		if !ok {
			return false
		}
		switch p.Field {
		case FieldMinRoleLevel:
			return meta.MinRoleLevel <= limit
		case FieldMinClearanceLevel:
			return meta.MinClearanceLevel <= limit
		}
		return false
	default:
		return false
	}
}
