package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/store"
)

// Repository serves metric and forecast snapshots from Postgres. It
// implements store.MetricStore and store.ForecastStore.
type Repository struct {
	pool *pgxpool.Pool
}

var (
	_ store.MetricStore   = (*Repository)(nil)
	_ store.ForecastStore = (*Repository)(nil)
)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) QueryMetrics(ctx context.Context, f store.Filter) ([]contracts.MetricObservation, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT industry_id, region, metric_name, value, unit, observed_at
        FROM metric_observations
        WHERE ($1 = '' OR industry_id = $1)
          AND ($2 = '' OR region = $2)
          AND ($3 = '' OR metric_name = $3)
        ORDER BY observed_at ASC, id ASC
    `, f.IndustryID, f.Region, f.MetricName)
	if err != nil {
		return nil, fmt.Errorf("query metric observations: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.MetricObservation, 0, 64)
	for rows.Next() {
		var o contracts.MetricObservation
		if err := rows.Scan(&o.IndustryID, &o.Region, &o.MetricName, &o.Value, &o.Unit, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("scan metric observation: %w", err)
		}
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric observations: %w", err)
	}

	return results, nil
}

func (r *Repository) QueryForecasts(ctx context.Context, f store.Filter) ([]contracts.ForecastRecord, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT industry_id, region, metric_name, forecast_date, prediction, confidence_interval, model_id
        FROM forecast_records
        WHERE ($1 = '' OR industry_id = $1)
          AND ($2 = '' OR region = $2)
          AND ($3 = '' OR metric_name = $3)
        ORDER BY forecast_date ASC, id ASC
    `, f.IndustryID, f.Region, f.MetricName)
	if err != nil {
		return nil, fmt.Errorf("query forecast records: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.ForecastRecord, 0, 64)
	for rows.Next() {
		var rec contracts.ForecastRecord
		if err := rows.Scan(
			&rec.IndustryID,
			&rec.Region,
			&rec.MetricName,
			&rec.ForecastDate,
			&rec.Prediction,
			&rec.ConfidenceInterval,
			&rec.ModelID,
		); err != nil {
			return nil, fmt.Errorf("scan forecast record: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast records: %w", err)
	}

	return results, nil
}

// InsertObservations writes demo fixtures in one batch.
func (r *Repository) InsertObservations(ctx context.Context, observations []contracts.MetricObservation) error {
	if len(observations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(`
            INSERT INTO metric_observations (industry_id, region, metric_name, value, unit, observed_at)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, o.IndustryID, o.Region, o.MetricName, o.Value, o.Unit, o.Timestamp)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert metric observations: %w", err)
	}
	return nil
}

// InsertForecasts writes demo fixtures in one batch. Confidence values
// outside [0,1] are rejected by the table constraint.
func (r *Repository) InsertForecasts(ctx context.Context, forecasts []contracts.ForecastRecord) error {
	if len(forecasts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range forecasts {
		batch.Queue(`
            INSERT INTO forecast_records (industry_id, region, metric_name, forecast_date, prediction, confidence_interval, model_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, f.IndustryID, f.Region, f.MetricName, f.ForecastDate, f.Prediction, f.ConfidenceInterval, f.ModelID)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert forecast records: %w", err)
	}
	return nil
}
