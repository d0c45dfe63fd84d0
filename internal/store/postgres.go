package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

// PostgresStore persists prediction sets keyed by date, one logical
// record per date. Save replaces the whole set inside a transaction,
// so concurrent writers to the same date serialize (last write wins)
// and readers never observe a partially written set.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new postgres-backed prediction store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is the DDL the store expects. Applied by migrations, kept
// here as the single statement of record.
const Schema = `
CREATE TABLE IF NOT EXISTS predictions.daily_predictions (
	prediction_date DATE NOT NULL,
	rank            INT NOT NULL,
	ticker          TEXT NOT NULL,
	estimate        DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (prediction_date, rank)
)`

// Migrate creates the schema and table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS predictions`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Save stores a ranked prediction set, overwriting any existing set
// for the same date. Ordering descending by estimate is enforced here:
// it is a stored invariant, not re-derived on load.
func (s *PostgresStore) Save(ctx context.Context, set contracts.PredictionSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	set.Sort()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM predictions.daily_predictions WHERE prediction_date = $1`,
		set.Date,
	); err != nil {
		return fmt.Errorf("clear existing set: %w", err)
	}

	batch := &pgx.Batch{}
	for rank, p := range set.Predictions {
		batch.Queue(
			`INSERT INTO predictions.daily_predictions (prediction_date, rank, ticker, estimate)
			 VALUES ($1, $2, $3, $4)`,
			set.Date, rank, p.Ticker, p.Estimate,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range set.Predictions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert prediction: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// Load retrieves the prediction set for a date in stored rank order.
// Returns contracts.ErrPredictionNotFound when no set exists.
func (s *PostgresStore) Load(ctx context.Context, date time.Time) (*contracts.PredictionSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, estimate
		 FROM predictions.daily_predictions
		 WHERE prediction_date = $1
		 ORDER BY rank`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	set := &contracts.PredictionSet{Date: date}
	for rows.Next() {
		p := contracts.Prediction{Date: date}
		if err := rows.Scan(&p.Ticker, &p.Estimate); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		set.Predictions = append(set.Predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}

	if len(set.Predictions) == 0 {
		return nil, fmt.Errorf("%s: %w", contracts.DateKey(date), contracts.ErrPredictionNotFound)
	}

	return set, nil
}

// Dates lists every date with a stored prediction set, ascending.
func (s *PostgresStore) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT prediction_date FROM predictions.daily_predictions ORDER BY prediction_date`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}

	return dates, rows.Err()
}
