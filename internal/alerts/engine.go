// Package alerts evaluates user-defined threshold rules with edge-triggered
// state. The transition functions are pure; Engine owns the rule set and
// serializes every write behind one mutex.
package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

// Transition records one rule firing.
type Transition struct {
	Rule  contracts.AlertRule
	Value float64
}

type Engine struct {
	mu    sync.Mutex
	rules map[string]contracts.AlertRule
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: make(map[string]contracts.AlertRule),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore replaces the rule set, e.g. with rules loaded from persistence.
// Rules that violate the active/triggered invariant are normalized.
func (e *Engine) Restore(rules []contracts.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = make(map[string]contracts.AlertRule, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			r.State = contracts.StateInactive
			r.Breaching = false
		} else if r.State == contracts.StateInactive || r.State == "" {
			r.State = contracts.StateArmed
		}
		e.rules[r.ID] = r
	}
}

// Put stores rule as-is, replacing any rule with the same id. It is used to
// roll back a change the caller could not persist.
func (e *Engine) Put(rule contracts.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.ID] = rule
}

func (e *Engine) Create(def Definition) (contracts.AlertRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, err := NewRule(e.newID(), def, e.now())
	if err != nil {
		return contracts.AlertRule{}, err
	}
	e.rules[rule.ID] = rule
	return rule, nil
}

func (e *Engine) Get(id string) (contracts.AlertRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return contracts.AlertRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, nil
}

// List returns all rules ordered by creation time, then id.
func (e *Engine) List() []contracts.AlertRule {
	e.mu.Lock()
	out := make([]contracts.AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(e.rules, id)
	return nil
}

func (e *Engine) SetActive(id string, active bool) (contracts.AlertRule, error) {
	return e.update(id, func(r contracts.AlertRule, at time.Time) contracts.AlertRule {
		return SetActive(r, active, at)
	})
}

func (e *Engine) Dismiss(id string) (contracts.AlertRule, error) {
	return e.update(id, Dismiss)
}

// Evaluate feeds one value to one rule and reports whether it fired.
func (e *Engine) Evaluate(id string, value float64) (contracts.AlertRule, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return contracts.AlertRule{}, false, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	next, fired := Evaluate(rule, value, e.now())
	e.rules[id] = next
	return next, fired, nil
}

// Observe evaluates every active rule bound to the observation. It returns
// the rules that fired and every rule whose state changed (fired or breach
// memory flipped), both ordered by rule id.
func (e *Engine) Observe(obs contracts.MetricObservation) ([]Transition, []contracts.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.now()
	var fired []Transition
	var changed []contracts.AlertRule
	for id, rule := range e.rules {
		if !rule.IsActive || !rule.Binding.Matches(obs) {
			continue
		}
		next, ok := Evaluate(rule, obs.Value, at)
		e.rules[id] = next
		if ok {
			fired = append(fired, Transition{Rule: next, Value: obs.Value})
		}
		if ok || next.Breaching != rule.Breaching {
			changed = append(changed, next)
		}
	}

	sort.Slice(fired, func(i, j int) bool { return fired[i].Rule.ID < fired[j].Rule.ID })
	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	return fired, changed
}

func (e *Engine) update(id string, fn func(contracts.AlertRule, time.Time) contracts.AlertRule) (contracts.AlertRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return contracts.AlertRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	next := fn(rule, e.now())
	e.rules[id] = next
	return next, nil
}
