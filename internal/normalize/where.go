package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
)

// WhereBuilder turns loosely typed metadata conditions into a squirrel
// predicate. Only keys present in its column allowlist are used and values
// are always bound as parameters.
//
// Condition shapes:
//   - array: column IN (...)
//   - string containing %: column ILIKE value
//   - {"operator": op, "value": v}: column op v, op in =, !=, <>, >, >=, <, <=
//   - other strings: LOWER(column) = lower-cased value
//   - numbers and booleans: column = value
type WhereBuilder struct {
	columns map[string]string
}

// NewWhereBuilder maps condition keys to SQL column expressions.
func NewWhereBuilder(columns map[string]string) *WhereBuilder {
	return &WhereBuilder{columns: columns}
}

// Build returns the conjunction of all usable conditions and the keys that
// were dropped, either unknown columns or unusable values.
func (b *WhereBuilder) Build(conds map[string]any) (squirrel.And, []string) {
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var and squirrel.And
	var skipped []string
	for _, k := range keys {
		col, ok := b.columns[strings.ToLower(k)]
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		pred, err := condition(col, conds[k])
		if err != nil {
			skipped = append(skipped, k)
			continue
		}
		and = append(and, pred)
	}
	return and, skipped
}

func condition(col string, v any) (squirrel.Sqlizer, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil value for %s", col)
	case []string:
		if len(val) == 0 {
			return nil, fmt.Errorf("empty list for %s", col)
		}
		return squirrel.Eq{col: val}, nil
	case []any:
		if len(val) == 0 {
			return nil, fmt.Errorf("empty list for %s", col)
		}
		vals := make([]string, 0, len(val))
		for _, e := range val {
			vals = append(vals, fmt.Sprint(e))
		}
		return squirrel.Eq{col: vals}, nil
	case map[string]any:
		op, _ := val["operator"].(string)
		value, ok := val["value"]
		if !ok || value == nil {
			return nil, fmt.Errorf("missing value for %s", col)
		}
		return operator(col, strings.TrimSpace(op), value)
	case string:
		if strings.Contains(val, "%") {
			return squirrel.ILike{col: val}, nil
		}
		return squirrel.Expr("LOWER("+col+") = ?", strings.ToLower(val)), nil
	case bool, int, int32, int64, float32, float64:
		return squirrel.Eq{col: val}, nil
	default:
		return nil, fmt.Errorf("unsupported value %T for %s", v, col)
	}
}

func operator(col, op string, v any) (squirrel.Sqlizer, error) {
	switch op {
	case "=", "":
		return squirrel.Eq{col: v}, nil
	case "!=", "<>":
		return squirrel.NotEq{col: v}, nil
	case ">":
		return squirrel.Gt{col: v}, nil
	case ">=":
		return squirrel.GtOrEq{col: v}, nil
	case "<":
		return squirrel.Lt{col: v}, nil
	case "<=":
		return squirrel.LtOrEq{col: v}, nil
	default:
		return nil, fmt.Errorf("operator %q not allowed for %s", op, col)
	}
}
