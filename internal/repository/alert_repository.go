package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

// ErrNotFound is returned when a row does not exist or is not owned by the
// requesting user.
var ErrNotFound = errors.New("not found")

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AlertRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAlertRepository(pool PgxPool, tracer trace.Tracer) *AlertRepository {
	return &AlertRepository{pool: pool, tracer: tracer}
}

func (r *AlertRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "alert-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id            BIGSERIAL PRIMARY KEY,
			user_id       TEXT NOT NULL,
			coin_id       TEXT NOT NULL,
			kind          TEXT NOT NULL,
			condition     TEXT NOT NULL DEFAULT '',
			target_value  DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			is_triggered  BOOLEAN NOT NULL DEFAULT FALSE,
			triggered_at  TIMESTAMPTZ,
			trigger_price DOUBLE PRECISION,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_pending
			ON alerts (coin_id)
			WHERE is_active = TRUE AND is_triggered = FALSE;
		CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts (user_id);
	`)
	return err
}

func (r *AlertRepository) Create(ctx context.Context, a *domain.Alert) (*domain.Alert, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.create")
	defer span.End()

	out := *a
	err := r.pool.QueryRow(ctx,
		`INSERT INTO alerts (user_id, coin_id, kind, condition, target_value)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, is_active, is_triggered, created_at`,
		a.UserID, a.CoinID, string(a.Kind), a.Condition, a.TargetValue,
	).Scan(&out.ID, &out.IsActive, &out.IsTriggered, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPending returns every alert still eligible for evaluation: active and
// never triggered.
func (r *AlertRepository) ListPending(ctx context.Context) ([]domain.Alert, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.list-pending")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, coin_id, kind, condition, target_value,
		        is_active, is_triggered, triggered_at, trigger_price, created_at
		 FROM alerts
		 WHERE is_active = TRUE AND is_triggered = FALSE
		 ORDER BY coin_id, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]domain.Alert, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.list-by-user")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, coin_id, kind, condition, target_value,
		        is_active, is_triggered, triggered_at, trigger_price, created_at
		 FROM alerts
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// MarkTriggered is the terminal transition. The is_triggered guard makes it
// idempotent: once an alert has fired, later calls change nothing.
func (r *AlertRepository) MarkTriggered(ctx context.Context, alertID int64, triggeredAt time.Time, price float64) error {
	_, span := r.tracer.Start(ctx, "alert-repo.mark-triggered")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE alerts
		 SET is_triggered = TRUE, triggered_at = $2, trigger_price = $3
		 WHERE id = $1 AND is_triggered = FALSE`,
		alertID, triggeredAt.UTC(), price,
	)
	return err
}

// Deactivate halts evaluation of an alert without deleting its history.
func (r *AlertRepository) Deactivate(ctx context.Context, userID string, alertID int64) error {
	_, span := r.tracer.Start(ctx, "alert-repo.deactivate")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE alerts SET is_active = FALSE WHERE id = $1 AND user_id = $2`,
		alertID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, userID string, alertID int64) error {
	_, span := r.tracer.Start(ctx, "alert-repo.delete")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM alerts WHERE id = $1 AND user_id = $2`,
		alertID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var kind string
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.CoinID, &kind, &a.Condition, &a.TargetValue,
			&a.IsActive, &a.IsTriggered, &a.TriggeredAt, &a.TriggerPrice, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.Kind = domain.AlertKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}
