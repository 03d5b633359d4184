package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/strategy"
	"github.com/yielddelta/backtester/pkg/database"
)

const postgresSchema = `
CREATE SCHEMA IF NOT EXISTS backtest;

CREATE TABLE IF NOT EXISTS backtest.runs (
    run_id           UUID PRIMARY KEY,
    strategy         TEXT             NOT NULL,
    plan_hash        TEXT             NOT NULL DEFAULT '',
    seed             BIGINT           NOT NULL,
    start_date       TIMESTAMPTZ      NOT NULL,
    end_date         TIMESTAMPTZ      NOT NULL,
    days             INTEGER          NOT NULL,
    initial_capital  DOUBLE PRECISION NOT NULL,
    final_value      DOUBLE PRECISION NOT NULL,
    apy              DOUBLE PRECISION NOT NULL,
    sharpe_ratio     DOUBLE PRECISION NOT NULL,
    max_drawdown_pct DOUBLE PRECISION NOT NULL,
    rebalances       INTEGER          NOT NULL,
    total_fees       DOUBLE PRECISION NOT NULL,
    total_gas        DOUBLE PRECISION NOT NULL,
    total_il         DOUBLE PRECISION NOT NULL,
    config           JSONB            NOT NULL,
    created_at       TIMESTAMPTZ      NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS backtest.run_days (
    run_id           UUID             NOT NULL REFERENCES backtest.runs(run_id) ON DELETE CASCADE,
    day              INTEGER          NOT NULL,
    date             TIMESTAMPTZ      NOT NULL,
    portfolio_value  DOUBLE PRECISION NOT NULL,
    daily_return_pct DOUBLE PRECISION NOT NULL,
    fees_earned      DOUBLE PRECISION NOT NULL,
    impermanent_loss DOUBLE PRECISION NOT NULL,
    gas_spent        DOUBLE PRECISION NOT NULL,
    rebalanced       BOOLEAN          NOT NULL,
    position         JSONB            NOT NULL,
    PRIMARY KEY (run_id, day)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON backtest.runs (created_at DESC);
`

const pgRunColumns = `run_id::text, strategy, plan_hash, seed, start_date, end_date, days,
	initial_capital, final_value, apy, sharpe_ratio, max_drawdown_pct,
	rebalances, total_fees, total_gas, total_il, config, created_at`

// PostgresStore archives runs in the backtest schema.
type PostgresStore struct {
	db  *database.DB
	now func() time.Time
}

// NewPostgresStore takes ownership of db and creates the schema if needed.
func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("archive: apply schema: %w", err)
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Save(ctx context.Context, result *backtest.Result, opts SaveOptions) error {
	sum, err := summarize(result, opts, s.now())
	if err != nil {
		return err
	}
	rows, err := dayRows(result.DailyPerformance)
	if err != nil {
		return err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest.runs (
			run_id, strategy, plan_hash, seed, start_date, end_date, days,
			initial_capital, final_value, apy, sharpe_ratio, max_drawdown_pct,
			rebalances, total_fees, total_gas, total_il, config, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	if _, err := tx.Exec(ctx, query,
		sum.RunID, string(sum.Strategy), sum.PlanHash, sum.Seed, sum.StartDate, sum.EndDate, sum.Days,
		sum.InitialCapital, sum.FinalValue, sum.APY, sum.SharpeRatio, sum.MaxDrawdownPct,
		sum.NumberOfRebalances, sum.TotalFeesEarned, sum.TotalGasSpent, sum.TotalIL,
		sum.ConfigJSON, sum.CreatedAt,
	); err != nil {
		return fmt.Errorf("archive: insert run: %w", err)
	}

	batch := &pgx.Batch{}
	dayQuery := `
		INSERT INTO backtest.run_days (
			run_id, day, date, portfolio_value, daily_return_pct, fees_earned,
			impermanent_loss, gas_spent, rebalanced, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, r := range rows {
		batch.Queue(dayQuery, sum.RunID, r.Day, r.Date, r.PortfolioValue, r.DailyReturnPct,
			r.FeesEarned, r.ImpermanentLoss, r.GasSpent, r.Rebalanced, []byte(r.Position))
	}

	br := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("archive: insert day %d: %w", r.Day, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("archive: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// List returns the most recent runs first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+pgRunColumns+` FROM backtest.runs ORDER BY created_at DESC, run_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0)
	for rows.Next() {
		sum, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, runID string) (*RunSummary, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+pgRunColumns+` FROM backtest.runs WHERE run_id::text = $1`, runID)
	sum, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *PostgresStore) Days(ctx context.Context, runID string) ([]DayRow, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT day, date, portfolio_value, daily_return_pct, fees_earned,
			impermanent_loss, gas_spent, rebalanced, position
		FROM backtest.run_days
		WHERE run_id::text = $1
		ORDER BY day
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("archive: query days: %w", err)
	}
	defer rows.Close()

	out := make([]DayRow, 0)
	for rows.Next() {
		var r DayRow
		var position []byte
		if err := rows.Scan(&r.Day, &r.Date, &r.PortfolioValue, &r.DailyReturnPct,
			&r.FeesEarned, &r.ImpermanentLoss, &r.GasSpent, &r.Rebalanced, &position); err != nil {
			return nil, fmt.Errorf("archive: scan day: %w", err)
		}
		r.Date = r.Date.UTC()
		r.Position = json.RawMessage(position)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanPostgresRun(row pgx.Row) (RunSummary, error) {
	var sum RunSummary
	var strategyID string
	err := row.Scan(
		&sum.RunID, &strategyID, &sum.PlanHash, &sum.Seed, &sum.StartDate, &sum.EndDate, &sum.Days,
		&sum.InitialCapital, &sum.FinalValue, &sum.APY, &sum.SharpeRatio, &sum.MaxDrawdownPct,
		&sum.NumberOfRebalances, &sum.TotalFeesEarned, &sum.TotalGasSpent, &sum.TotalIL,
		&sum.ConfigJSON, &sum.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sum, err
		}
		return sum, fmt.Errorf("archive: scan run: %w", err)
	}

	sum.Strategy = strategy.ID(strategyID)
	sum.StartDate = sum.StartDate.UTC()
	sum.EndDate = sum.EndDate.UTC()
	sum.CreatedAt = sum.CreatedAt.UTC()
	return sum, nil
}
