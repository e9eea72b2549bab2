package alerts

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

var (
	ErrInvalidRule  = errors.New("invalid alert rule")
	ErrRuleNotFound = errors.New("alert rule not found")
)

type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

func ParseOperator(raw string) (Operator, error) {
	switch op := Operator(strings.TrimSpace(raw)); op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual, OpNotEqual:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unrecognized comparison operator %q", ErrInvalidRule, raw)
	}
}

// Breached reports whether value <op> threshold holds. NaN never breaches.
func (op Operator) Breached(value, threshold float64) bool {
	if math.IsNaN(value) {
		return false
	}
	switch op {
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLess:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	case OpNotEqual:
		return value != threshold
	default:
		return false
	}
}

// Definition is what a user supplies to create a rule.
type Definition struct {
	Title                string            `json:"title"`
	ConditionDescription string            `json:"condition_description"`
	Operator             string            `json:"comparison_operator"`
	Threshold            *float64          `json:"threshold"`
	Severity             contracts.Level   `json:"severity"`
	Active               *bool             `json:"is_active,omitempty"`
	Binding              contracts.Binding `json:"binding"`
}

// Validate rejects structurally invalid rule definitions.
func Validate(def Definition) error {
	if strings.TrimSpace(def.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRule)
	}
	if _, err := ParseOperator(def.Operator); err != nil {
		return err
	}
	if def.Threshold == nil {
		return fmt.Errorf("%w: threshold is required", ErrInvalidRule)
	}
	if math.IsNaN(*def.Threshold) || math.IsInf(*def.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be a finite number", ErrInvalidRule)
	}
	if !def.Severity.Valid() {
		return fmt.Errorf("%w: unrecognized severity %q", ErrInvalidRule, def.Severity)
	}
	return nil
}

// NewRule builds a rule from a definition. Rules start armed unless the
// definition explicitly asks for an inactive rule.
func NewRule(id string, def Definition, at time.Time) (contracts.AlertRule, error) {
	if err := Validate(def); err != nil {
		return contracts.AlertRule{}, err
	}
	op, _ := ParseOperator(def.Operator)

	active := true
	if def.Active != nil {
		active = *def.Active
	}
	state := contracts.StateArmed
	if !active {
		state = contracts.StateInactive
	}

	return contracts.AlertRule{
		ID:                   id,
		Title:                strings.TrimSpace(def.Title),
		ConditionDescription: def.ConditionDescription,
		Operator:             string(op),
		Threshold:            *def.Threshold,
		Severity:             def.Severity,
		IsActive:             active,
		State:                state,
		Binding:              def.Binding,
		CreatedAt:            at,
		UpdatedAt:            at,
	}, nil
}

// Evaluate applies one observed value to a rule. It fires (returns true)
// only on the edge from not breaching to breaching while the rule is armed;
// a sustained breach, or a breach on an inactive or already triggered rule,
// never fires and never touches LastTriggeredAt.
func Evaluate(rule contracts.AlertRule, value float64, at time.Time) (contracts.AlertRule, bool) {
	if !rule.IsActive {
		return rule, false
	}

	breach := Operator(rule.Operator).Breached(value, rule.Threshold)
	fired := breach && !rule.Breaching && rule.State == contracts.StateArmed

	if breach != rule.Breaching {
		rule.Breaching = breach
		rule.UpdatedAt = at
	}
	if fired {
		ts := at
		rule.State = contracts.StateTriggered
		rule.LastTriggeredAt = &ts
		rule.UpdatedAt = at
	}
	return rule, fired
}

// Dismiss returns a triggered rule to armed. The breach memory is kept, so a
// value that keeps breaching does not fire again until it first recovers.
func Dismiss(rule contracts.AlertRule, at time.Time) contracts.AlertRule {
	if rule.State != contracts.StateTriggered {
		return rule
	}
	rule.State = contracts.StateArmed
	rule.UpdatedAt = at
	return rule
}

// SetActive toggles between inactive and armed. Deactivating clears any
// triggered state and the breach memory.
func SetActive(rule contracts.AlertRule, active bool, at time.Time) contracts.AlertRule {
	if rule.IsActive == active {
		return rule
	}
	rule.IsActive = active
	rule.Breaching = false
	if active {
		rule.State = contracts.StateArmed
	} else {
		rule.State = contracts.StateInactive
	}
	rule.UpdatedAt = at
	return rule
}
