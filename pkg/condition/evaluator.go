// Package condition evaluates branching predicates against execution
// variables and message context.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zapllo/zaptick-sub010/pkg/models"
)

// Operator is a predicate comparison kind.
type Operator string

const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "neq"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpContains       Operator = "contains"
	OpRegex          Operator = "regex"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "not_exists"
)

// Condition is a single predicate. Field is a dotted path rooted at "vars.",
// "contact." or "message."; an unrooted path reads from vars.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value,omitempty"`
}

// absent is the sentinel for a missing path. It compares false under every
// operator except not_exists, which is the one way to test for it.
type absent struct{}

// Evaluator resolves dotted paths and applies operators. It is stateless and
// safe for concurrent use.
type Evaluator struct{}

// NewEvaluator creates a condition evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate applies the condition against the variable map and message
// context. A missing path yields false for every operator except
// not_exists; only malformed conditions (unknown operator, bad regex)
// return an error.
func (e *Evaluator) Evaluate(cond Condition, vars map[string]any, msg *models.InboundMessage) (bool, error) {
	value := e.resolve(cond.Field, vars, msg)

	_, missing := value.(absent)

	switch cond.Operator {
	case OpExists:
		return !missing, nil
	case OpNotExists:
		return missing, nil
	}

	if missing {
		return false, nil
	}

	switch cond.Operator {
	case OpEquals:
		return looseEquals(value, cond.Value), nil
	case OpNotEquals:
		return !looseEquals(value, cond.Value), nil
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return compareNumeric(cond.Operator, value, cond.Value), nil
	case OpContains:
		return strings.Contains(stringify(value), stringify(cond.Value)), nil
	case OpRegex:
		re, err := regexp.Compile(stringify(cond.Value))
		if err != nil {
			return false, fmt.Errorf("invalid regex pattern %q: %w", stringify(cond.Value), err)
		}

		return re.MatchString(stringify(value)), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", cond.Operator)
	}
}

// resolve walks the dotted path. The "vars.", "contact." and "message."
// roots select the source; anything else reads from vars directly.
func (e *Evaluator) resolve(path string, vars map[string]any, msg *models.InboundMessage) any {
	parts := strings.Split(path, ".")

	root := parts[0]
	rest := parts[1:]

	switch root {
	case "vars", "variables":
		return walk(vars, rest)
	case "contact":
		if msg == nil {
			return absent{}
		}

		return walk(map[string]any{
			"id":   msg.ContactID,
			"name": msg.ContactName,
		}, rest)
	case "message":
		if msg == nil {
			return absent{}
		}

		return walk(map[string]any{
			"id":         msg.ID,
			"text":       msg.Text,
			"channel_id": msg.ChannelID,
			"tenant_id":  msg.TenantID,
			"metadata":   msg.Metadata,
		}, rest)
	default:
		return walk(vars, parts)
	}
}

func walk(value any, parts []string) any {
	current := value

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return absent{}
		}

		next, found := m[part]
		if !found {
			return absent{}
		}

		current = next
	}

	if current == nil {
		return absent{}
	}

	return current
}

// looseEquals compares numerically when both sides coerce to numbers,
// otherwise by string form.
func looseEquals(a, b any) bool {
	af, aok := toFloat(a)

	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}

	return stringify(a) == stringify(b)
}

func compareNumeric(op Operator, a, b any) bool {
	af, aok := toFloat(a)

	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}

	switch op {
	case OpGreaterThan:
		return af > bf
	case OpGreaterOrEqual:
		return af >= bf
	case OpLessThan:
		return af < bf
	case OpLessOrEqual:
		return af <= bf
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}
