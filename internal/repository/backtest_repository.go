package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

type BacktestRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBacktestRepository(pool PgxPool, tracer trace.Tracer) *BacktestRepository {
	return &BacktestRepository{pool: pool, tracer: tracer}
}

func (r *BacktestRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "backtest-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS backtests (
			id               BIGSERIAL PRIMARY KEY,
			user_id          TEXT NOT NULL,
			coin_id          TEXT NOT NULL,
			days             INT NOT NULL,
			initial_capital  DOUBLE PRECISION NOT NULL,
			min_confidence   INT NOT NULL,
			final_capital    DOUBLE PRECISION NOT NULL,
			total_return_pct DOUBLE PRECISION NOT NULL,
			total_trades     INT NOT NULL,
			winning_trades   INT NOT NULL,
			losing_trades    INT NOT NULL,
			win_rate         DOUBLE PRECISION NOT NULL,
			max_drawdown_pct DOUBLE PRECISION NOT NULL,
			sharpe           DOUBLE PRECISION NOT NULL,
			trades_json      JSONB NOT NULL DEFAULT '[]',
			commentary       TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_backtests_user ON backtests (user_id, created_at DESC);
	`)
	return err
}

// Insert persists one finished run. Results are write-once: there is no
// update path.
func (r *BacktestRepository) Insert(ctx context.Context, res *domain.BacktestResult) (*domain.BacktestResult, error) {
	_, span := r.tracer.Start(ctx, "backtest-repo.insert")
	defer span.End()

	trades, err := json.Marshal(res.Trades)
	if err != nil {
		return nil, err
	}

	out := *res
	err = r.pool.QueryRow(ctx,
		`INSERT INTO backtests (user_id, coin_id, days, initial_capital, min_confidence,
		        final_capital, total_return_pct, total_trades, winning_trades, losing_trades,
		        win_rate, max_drawdown_pct, sharpe, trades_json, commentary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at`,
		res.UserID, res.CoinID, res.Days, res.InitialCapital, res.MinConfidence,
		res.FinalCapital, res.TotalReturnPct, res.TotalTrades, res.WinningTrades, res.LosingTrades,
		res.WinRate, res.MaxDrawdownPct, res.Sharpe, trades, res.Commentary,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BacktestRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.BacktestResult, error) {
	_, span := r.tracer.Start(ctx, "backtest-repo.list-by-user")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, coin_id, days, initial_capital, min_confidence,
		        final_capital, total_return_pct, total_trades, winning_trades, losing_trades,
		        win_rate, max_drawdown_pct, sharpe, trades_json, commentary, created_at
		 FROM backtests
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BacktestResult
	for rows.Next() {
		res, err := scanBacktest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *BacktestRepository) GetByID(ctx context.Context, userID string, id int64) (*domain.BacktestResult, error) {
	_, span := r.tracer.Start(ctx, "backtest-repo.get-by-id")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, coin_id, days, initial_capital, min_confidence,
		        final_capital, total_return_pct, total_trades, winning_trades, losing_trades,
		        win_rate, max_drawdown_pct, sharpe, trades_json, commentary, created_at
		 FROM backtests
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanBacktest(rows)
}

func (r *BacktestRepository) Delete(ctx context.Context, userID string, id int64) error {
	_, span := r.tracer.Start(ctx, "backtest-repo.delete")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM backtests WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBacktest(rows pgx.Rows) (*domain.BacktestResult, error) {
	var res domain.BacktestResult
	var trades []byte
	if err := rows.Scan(
		&res.ID, &res.UserID, &res.CoinID, &res.Days, &res.InitialCapital, &res.MinConfidence,
		&res.FinalCapital, &res.TotalReturnPct, &res.TotalTrades, &res.WinningTrades, &res.LosingTrades,
		&res.WinRate, &res.MaxDrawdownPct, &res.Sharpe, &trades, &res.Commentary, &res.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(trades) > 0 {
		if err := json.Unmarshal(trades, &res.Trades); err != nil {
			return nil, err
		}
	}
	return &res, nil
}
