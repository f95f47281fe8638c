package policy

import (
	"fmt"
	"strings"
)

var knownFields = map[Field]bool{
	FieldOwnerDepartment:   true,
	FieldMinRoleLevel:      true,
	FieldMinClearanceLevel: true,
}

// ToSQL renders the predicate as a parameterized Postgres boolean expression.
// Placeholders start at $firstArg; alias, when non-empty, qualifies columns.
func (p Predicate) ToSQL(alias string, firstArg int) (string, []interface{}, error) {
	var args []interface{}
	clause, err := p.renderSQL(alias, firstArg, &args)
	if err != nil {
		return "", nil, err
	}
	return clause, args, nil
}

func (p Predicate) renderSQL(alias string, firstArg int, args *[]interface{}) (string, error) {
	switch p.Op {
	case OpAnd, OpOr:
		if len(p.Children) == 0 {
			return "", fmt.Errorf("empty %s predicate", p.Op)
		}
		joiner := " AND "
		if p.Op == OpOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(p.Children))
		for _, c := range p.Children {
			part, err := c.renderSQL(alias, firstArg, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	case OpEq, OpLte:
		if !knownFields[p.Field] {
			return "", fmt.Errorf("unknown predicate field %q", p.Field)
		}
		column := string(p.Field)
		if alias != "" {
			column = alias + "." + column
		}
		*args = append(*args, p.Value)
		op := "="
		if p.Op == OpLte {
			op = "<="
		}
		return fmt.Sprintf("%s %s $%d", column, op, firstArg+len(*args)-1), nil
	default:
		return "", fmt.Errorf("unsupported predicate operator %q", p.Op)
	}
}

// ToWhere renders the predicate as a Chroma-style where document
// ({"$and": [{"field": {"$lte": 2}}, ...]}).
func (p Predicate) ToWhere() map[string]interface{} {
	switch p.Op {
	case OpAnd, OpOr:
		children := make([]interface{}, 0, len(p.Children))
		for _, c := range p.Children {
			children = append(children, c.ToWhere())
		}
		return map[string]interface{}{string(p.Op): children}
	default:
		return map[string]interface{}{
			string(p.Field): map[string]interface{}{string(p.Op): p.Value},
		}
	}
}
