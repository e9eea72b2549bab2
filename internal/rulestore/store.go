// Package rulestore persists alert rules in SQLite so the alert service
// survives restarts with its armed/triggered state intact.
package rulestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_rules (
	id                    TEXT PRIMARY KEY,
	title                 TEXT NOT NULL,
	condition_description TEXT NOT NULL DEFAULT '',
	comparison_operator   TEXT NOT NULL,
	threshold             REAL NOT NULL,
	severity              TEXT NOT NULL,
	is_active             INTEGER NOT NULL,
	state                 TEXT NOT NULL,
	breaching             INTEGER NOT NULL DEFAULT 0,
	last_triggered_at     TEXT,
	binding_industry      TEXT NOT NULL DEFAULT '',
	binding_region        TEXT NOT NULL DEFAULT '',
	binding_metric        TEXT NOT NULL DEFAULT '',
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open rules db: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate rules db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a rule.
func (s *Store) Save(ctx context.Context, r contracts.AlertRule) error {
	var lastTriggered any
	if r.LastTriggeredAt != nil {
		lastTriggered = r.LastTriggeredAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_rules
			(id, title, condition_description, comparison_operator, threshold, severity, is_active, state,
			 breaching, last_triggered_at, binding_industry, binding_region, binding_metric, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			condition_description = excluded.condition_description,
			comparison_operator = excluded.comparison_operator,
			threshold = excluded.threshold,
			severity = excluded.severity,
			is_active = excluded.is_active,
			state = excluded.state,
			breaching = excluded.breaching,
			last_triggered_at = excluded.last_triggered_at,
			binding_industry = excluded.binding_industry,
			binding_region = excluded.binding_region,
			binding_metric = excluded.binding_metric,
			updated_at = excluded.updated_at`,
		r.ID, r.Title, r.ConditionDescription, r.Operator, r.Threshold, string(r.Severity),
		boolToInt(r.IsActive), string(r.State), boolToInt(r.Breaching), lastTriggered,
		r.Binding.IndustryID, r.Binding.Region, r.Binding.MetricName,
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save rule %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

// List returns every stored rule ordered by creation time.
func (s *Store) List(ctx context.Context) ([]contracts.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, condition_description, comparison_operator, threshold, severity, is_active, state,
		       breaching, last_triggered_at, binding_industry, binding_region, binding_metric, created_at, updated_at
		FROM alert_rules
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []contracts.AlertRule
	for rows.Next() {
		var r contracts.AlertRule
		var severity, state, createdStr, updatedStr string
		var active, breaching int
		var lastTriggered sql.NullString

		if err := rows.Scan(
			&r.ID, &r.Title, &r.ConditionDescription, &r.Operator, &r.Threshold, &severity, &active, &state,
			&breaching, &lastTriggered, &r.Binding.IndustryID, &r.Binding.Region, &r.Binding.MetricName,
			&createdStr, &updatedStr,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}

		r.Severity = contracts.Level(severity)
		r.State = contracts.RuleState(state)
		r.IsActive = active != 0
		r.Breaching = breaching != 0
		if lastTriggered.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastTriggered.String); err == nil {
				r.LastTriggeredAt = &ts
			}
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
