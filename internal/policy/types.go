package policy

import "fmt"

// Field names a document metadata attribute a predicate can test.
type Field string

const (
	FieldOwnerDepartment   Field = "owner_department"
	FieldMinRoleLevel      Field = "min_role_level"
	FieldMinClearanceLevel Field = "min_clearance_level"
)

// Op is the operator of a predicate node.
type Op string

const (
	OpAnd Op = "$and"
	OpOr  Op = "$or"
	OpEq  Op = "$eq"
	OpLte Op = "$lte"
)

// Predicate is a conjunction/disjunction tree over document metadata.
// Leaf nodes carry a Field and a Value; And/Or nodes carry Children.
type Predicate struct {
	Op       Op
	Field    Field
	Value    interface{}
	Children []Predicate
}

// And builds a conjunction of the given predicates.
func And(children ...Predicate) Predicate {
	return Predicate{Op: OpAnd, Children: children}
}

// Or builds a disjunction of the given predicates.
func Or(children ...Predicate) Predicate {
	return Predicate{Op: OpOr, Children: children}
}

// Eq matches documents whose field equals value.
func Eq(field Field, value string) Predicate {
	return Predicate{Op: OpEq, Field: field, Value: value}
}

// Lte matches documents whose field is less than or equal to value.
func Lte(field Field, value int) Predicate {
	return Predicate{Op: OpLte, Field: field, Value: value}
}

// String renders the predicate in a compact infix form for logs.
func (p Predicate) String() string {
	switch p.Op {
	case OpAnd, OpOr:
		sep := " AND "
		if p.Op == OpOr {
			sep = " OR "
		}
		s := "("
		for i, c := range p.Children {
			if i > 0 {
				s += sep
			}
			s += c.String()
		}
		return s + ")"
	case OpEq:
		return fmt.Sprintf("%s == %q", p.Field, p.Value)
	case OpLte:
		return fmt.Sprintf("%s <= %v", p.Field, p.Value)
	default:
		return "<invalid>"
	}
}

// Verdict compares both access definitions for one user/document pair.
type Verdict struct {
	Authorized bool `json:"authorized"`
	Visible    bool `json:"visible"`
	Diverges   bool `json:"diverges"`
}
