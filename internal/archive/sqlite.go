package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/strategy"
)

// Times are stored as unix milliseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id           TEXT PRIMARY KEY,
    strategy         TEXT    NOT NULL,
    plan_hash        TEXT    NOT NULL DEFAULT '',
    seed             INTEGER NOT NULL,
    start_date       INTEGER NOT NULL,
    end_date         INTEGER NOT NULL,
    days             INTEGER NOT NULL,
    initial_capital  REAL    NOT NULL,
    final_value      REAL    NOT NULL,
    apy              REAL    NOT NULL,
    sharpe_ratio     REAL    NOT NULL,
    max_drawdown_pct REAL    NOT NULL,
    rebalances       INTEGER NOT NULL,
    total_fees       REAL    NOT NULL,
    total_gas        REAL    NOT NULL,
    total_il         REAL    NOT NULL,
    config           TEXT    NOT NULL,
    created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_days (
    run_id           TEXT    NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    day              INTEGER NOT NULL,
    date             INTEGER NOT NULL,
    portfolio_value  REAL    NOT NULL,
    daily_return_pct REAL    NOT NULL,
    fees_earned      REAL    NOT NULL,
    impermanent_loss REAL    NOT NULL,
    gas_spent        REAL    NOT NULL,
    rebalanced       INTEGER NOT NULL,
    position         TEXT    NOT NULL,
    PRIMARY KEY (run_id, day)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);
`

const runColumns = `run_id, strategy, plan_hash, seed, start_date, end_date, days,
	initial_capital, final_value, apy, sharpe_ratio, max_drawdown_pct,
	rebalances, total_fees, total_gas, total_il, config, created_at`

// SQLiteStore archives runs in a local SQLite file (pure Go driver).
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at path. ":memory:" works
// for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %q: %w", path, err)
	}
	// single writer; also keeps a :memory: database alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: apply schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, result *backtest.Result, opts SaveOptions) error {
	sum, err := summarize(result, opts, s.now())
	if err != nil {
		return err
	}
	rows, err := dayRows(result.DailyPerformance)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, string(sum.Strategy), sum.PlanHash, sum.Seed,
		sum.StartDate.UnixMilli(), sum.EndDate.UnixMilli(), sum.Days,
		sum.InitialCapital, sum.FinalValue, sum.APY, sum.SharpeRatio, sum.MaxDrawdownPct,
		sum.NumberOfRebalances, sum.TotalFeesEarned, sum.TotalGasSpent, sum.TotalIL,
		string(sum.ConfigJSON), sum.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("archive: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_days (
		run_id, day, date, portfolio_value, daily_return_pct, fees_earned,
		impermanent_loss, gas_spent, rebalanced, position
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("archive: prepare days: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		rebalanced := 0
		if r.Rebalanced {
			rebalanced = 1
		}
		if _, err := stmt.ExecContext(ctx,
			sum.RunID, r.Day, r.Date.UnixMilli(), r.PortfolioValue, r.DailyReturnPct,
			r.FeesEarned, r.ImpermanentLoss, r.GasSpent, rebalanced, string(r.Position),
		); err != nil {
			return fmt.Errorf("archive: insert day %d: %w", r.Day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// List returns the most recent runs first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		sum, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, runID string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	sum, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *SQLiteStore) Days(ctx context.Context, runID string) ([]DayRow, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT day, date, portfolio_value, daily_return_pct,
		fees_earned, impermanent_loss, gas_spent, rebalanced, position
		FROM run_days WHERE run_id = ? ORDER BY day`, runID)
	if err != nil {
		return nil, fmt.Errorf("archive: query days: %w", err)
	}
	defer rows.Close()

	var out []DayRow
	for rows.Next() {
		var (
			r          DayRow
			dateMillis int64
			rebalanced int
			position   string
		)
		if err := rows.Scan(&r.Day, &dateMillis, &r.PortfolioValue, &r.DailyReturnPct,
			&r.FeesEarned, &r.ImpermanentLoss, &r.GasSpent, &rebalanced, &position); err != nil {
			return nil, fmt.Errorf("archive: scan day: %w", err)
		}
		r.Date = time.UnixMilli(dateMillis).UTC()
		r.Rebalanced = rebalanced != 0
		r.Position = []byte(position)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scanner) (RunSummary, error) {
	var (
		sum                   RunSummary
		strategyID, cfg       string
		start, end, createdAt int64
	)
	err := row.Scan(
		&sum.RunID, &strategyID, &sum.PlanHash, &sum.Seed, &start, &end, &sum.Days,
		&sum.InitialCapital, &sum.FinalValue, &sum.APY, &sum.SharpeRatio, &sum.MaxDrawdownPct,
		&sum.NumberOfRebalances, &sum.TotalFeesEarned, &sum.TotalGasSpent, &sum.TotalIL,
		&cfg, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sum, err
		}
		return sum, fmt.Errorf("archive: scan run: %w", err)
	}

	sum.Strategy = strategy.ID(strategyID)
	sum.StartDate = time.UnixMilli(start).UTC()
	sum.EndDate = time.UnixMilli(end).UTC()
	sum.CreatedAt = time.UnixMilli(createdAt).UTC()
	sum.ConfigJSON = []byte(cfg)
	return sum, nil
}
