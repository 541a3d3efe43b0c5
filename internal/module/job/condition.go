package job

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Op is a comparison operator in a step condition.
type Op string

const (
	OpEq        Op = "=="
	OpNe        Op = "!="
	OpGt        Op = ">"
	OpLt        Op = "<"
	OpGte       Op = ">="
	OpLte       Op = "<="
	OpExists    Op = "exists"
	OpNotExists Op = "not_exists"
)

// Condition is a closed expression tree over customer inputs and prior step
// outputs. Exactly one of the comparison form (Field/Op/Value) or a
// composite (All/Any) is set; a nil condition is always true.
type Condition struct {
	Field string      `json:"field,omitempty"`
	Op    Op          `json:"operator,omitempty"`
	Value interface{} `json:"value,omitempty"`

	All []*Condition `json:"and,omitempty"`
	Any []*Condition `json:"or,omitempty"`
}

// Evaluate resolves the condition against ctx. Field references use dotted
// paths into the merged input/output context.
func (c *Condition) Evaluate(ctx map[string]interface{}) bool {
	if c == nil {
		return true
	}

	if len(c.All) > 0 {
		for _, sub := range c.All {
			if !sub.Evaluate(ctx) {
				return false
			}
		}
		return true
	}
	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			if sub.Evaluate(ctx) {
				return true
			}
		}
		return false
	}

	if c.Field == "" || c.Op == "" {
		return true
	}

	value, found := lookupPath(ctx, c.Field)
	switch c.Op {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	case OpEq:
		return found && looseEqual(value, c.Value)
	case OpNe:
		return !found || !looseEqual(value, c.Value)
	case OpGt, OpLt, OpGte, OpLte:
		left, lok := toFloat(value)
		right, rok := toFloat(c.Value)
		if !found || !lok || !rok {
			return false
		}
		switch c.Op {
		case OpGt:
			return left > right
		case OpLt:
			return left < right
		case OpGte:
			return left >= right
		default:
			return left <= right
		}
	}
	return true
}

// lookupPath resolves a dotted path against nested maps.
func lookupPath(ctx map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = ctx
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares numerically when both sides are numeric, otherwise by
// string form. Matches the loose comparison templates were written against.
func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
