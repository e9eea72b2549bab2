// Package alertsvc connects the alert engine to its collaborators: rule
// persistence, the notification channel and metrics. The engine stays free
// of I/O; this layer performs it after each state change.
package alertsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiroonigami23-ui/market-intelligence/internal/alerts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
)

type Repository interface {
	Save(ctx context.Context, r contracts.AlertRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]contracts.AlertRule, error)
}

// Notifier is invoked only for transitions into the triggered state.
type Notifier interface {
	Notify(ctx context.Context, note contracts.AlertNotification) error
}

// Service is the single writer of the rule set: every change to the engine
// and its persistence happen under one lock, so the stored copy of a rule is
// always the engine's latest. A change that cannot be persisted is rolled
// back in the engine.
type Service struct {
	mu       sync.Mutex
	engine   *alerts.Engine
	repo     Repository
	notifier Notifier
	metrics  *metrics.Collectors
	log      zerolog.Logger
}

func New(engine *alerts.Engine, repo Repository, notifier Notifier, m *metrics.Collectors, log zerolog.Logger) *Service {
	return &Service{
		engine:   engine,
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		log:      log.With().Str("component", "alertsvc").Logger(),
	}
}

// Load restores persisted rules into the engine.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	s.engine.Restore(rules)
	s.log.Info().Int("rules", len(rules)).Msg("rules restored")
	return nil
}

func (s *Service) Create(ctx context.Context, def alerts.Definition) (contracts.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, err := s.engine.Create(def)
	if err != nil {
		return contracts.AlertRule{}, err
	}
	if err := s.repo.Save(ctx, rule); err != nil {
		_ = s.engine.Delete(rule.ID)
		return contracts.AlertRule{}, fmt.Errorf("persist rule %s: %w", rule.ID, err)
	}
	s.log.Info().Str("rule_id", rule.ID).Str("operator", rule.Operator).Float64("threshold", rule.Threshold).Msg("rule created")
	return rule, nil
}

func (s *Service) List() []contracts.AlertRule {
	return s.engine.List()
}

func (s *Service) Get(id string) (contracts.AlertRule, error) {
	return s.engine.Get(id)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (contracts.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, err := s.apply(ctx, id, func() (contracts.AlertRule, error) {
		return s.engine.SetActive(id, active)
	})
	if err != nil {
		return contracts.AlertRule{}, err
	}
	s.metrics.ObserveTransition(rule.State, rule.Severity)
	return rule, nil
}

func (s *Service) Dismiss(ctx context.Context, id string) (contracts.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, err := s.apply(ctx, id, func() (contracts.AlertRule, error) {
		return s.engine.Dismiss(id)
	})
	if err != nil {
		return contracts.AlertRule{}, err
	}
	s.metrics.ObserveTransition(rule.State, rule.Severity)
	return rule, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.engine.Get(id)
	if err != nil {
		return err
	}
	if err := s.engine.Delete(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.engine.Put(prev)
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

// Evaluate feeds a value to one rule directly. A firing is only notified
// once the new state is persisted.
func (s *Service) Evaluate(ctx context.Context, id string, value float64) (contracts.AlertRule, bool, error) {
	var fired bool
	s.mu.Lock()
	rule, err := s.apply(ctx, id, func() (contracts.AlertRule, error) {
		next, ok, err := s.engine.Evaluate(id, value)
		fired = ok
		return next, err
	})
	s.mu.Unlock()
	if err != nil {
		return contracts.AlertRule{}, false, err
	}

	s.metrics.ObserveEvaluation(fired)
	if fired {
		s.dispatch(ctx, alerts.Transition{Rule: rule, Value: value})
	}
	return rule, fired, nil
}

// Observe evaluates every rule bound to a live observation, persists state
// changes and notifies for each firing. A failed save is logged and the
// engine keeps the new state: the observation has already happened and
// replaying it would fire twice.
func (s *Service) Observe(ctx context.Context, obs contracts.MetricObservation) []alerts.Transition {
	s.mu.Lock()
	fired, changed := s.engine.Observe(obs)
	for _, r := range changed {
		if err := s.repo.Save(ctx, r); err != nil {
			s.log.Error().Err(err).Str("rule_id", r.ID).Msg("persist rule state")
		}
	}
	s.mu.Unlock()

	if len(fired) == 0 {
		s.metrics.ObserveEvaluation(false)
	}
	for _, t := range fired {
		s.metrics.ObserveEvaluation(true)
		s.dispatch(ctx, t)
	}
	return fired
}

// apply runs one engine change and persists the result, restoring the
// previous rule if the save fails. Callers hold s.mu.
func (s *Service) apply(ctx context.Context, id string, change func() (contracts.AlertRule, error)) (contracts.AlertRule, error) {
	prev, err := s.engine.Get(id)
	if err != nil {
		return contracts.AlertRule{}, err
	}
	next, err := change()
	if err != nil {
		return contracts.AlertRule{}, err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		s.engine.Put(prev)
		return contracts.AlertRule{}, fmt.Errorf("persist rule %s: %w", id, err)
	}
	return next, nil
}

func (s *Service) dispatch(ctx context.Context, t alerts.Transition) {
	s.metrics.ObserveTransition(t.Rule.State, t.Rule.Severity)

	note := Notification(t)
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.log.Error().Err(err).Str("rule_id", t.Rule.ID).Msg("notify alert")
		return
	}
	s.log.Info().
		Str("rule_id", t.Rule.ID).
		Str("severity", string(t.Rule.Severity)).
		Float64("value", t.Value).
		Msg("alert triggered")
}

// Notification builds the payload handed to the notification collaborator.
func Notification(t alerts.Transition) contracts.AlertNotification {
	note := contracts.AlertNotification{
		ID:          uuid.NewString(),
		RuleID:      t.Rule.ID,
		Title:       t.Rule.Title,
		Description: fmt.Sprintf("value %.2f %s threshold %.2f", t.Value, t.Rule.Operator, t.Rule.Threshold),
		Severity:    t.Rule.Severity,
		Value:       t.Value,
		Threshold:   t.Rule.Threshold,
		Operator:    t.Rule.Operator,
	}
	if t.Rule.ConditionDescription != "" {
		note.Description = t.Rule.ConditionDescription + ": " + note.Description
	}
	if t.Rule.LastTriggeredAt != nil {
		note.TriggeredAt = *t.Rule.LastTriggeredAt
	}
	return note
}
