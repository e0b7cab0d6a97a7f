package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

func TestAlertRunMigrationsExecutesSchema(t *testing.T) {
	pool := &alertStubPool{}
	repo := NewAlertRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) == 0 {
		t.Fatal("expected Exec to be called")
	}
	if !strings.Contains(pool.execSQL[0], "CREATE TABLE IF NOT EXISTS alerts") {
		t.Fatalf("unexpected migration sql: %s", pool.execSQL[0])
	}
}

func TestAlertListPendingFiltersTriggered(t *testing.T) {
	pool := &alertStubPool{}
	repo := NewAlertRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if _, err := repo.ListPending(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.querySQL) != 1 {
		t.Fatalf("expected one query, got %d", len(pool.querySQL))
	}
	sql := pool.querySQL[0]
	if !strings.Contains(sql, "is_active = TRUE") || !strings.Contains(sql, "is_triggered = FALSE") {
		t.Fatalf("pending query must exclude inactive and triggered alerts: %s", sql)
	}
}

func TestAlertListPendingScansRows(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	pool := &alertStubPool{rowsData: [][]any{{
		int64(7), "user-1", "bitcoin", "price_above", "", 45000.0,
		true, false, (*time.Time)(nil), (*float64)(nil), now,
	}}}
	repo := NewAlertRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	alerts, err := repo.ListPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.ID != 7 || a.Kind != domain.AlertPriceAbove || a.TargetValue != 45000 {
		t.Fatalf("unexpected alert payload: %+v", a)
	}
	if a.TriggeredAt != nil || a.TriggerPrice != nil {
		t.Fatalf("untriggered alert must have nil trigger fields: %+v", a)
	}
}

func TestAlertMarkTriggeredGuardsTerminalState(t *testing.T) {
	pool := &alertStubPool{}
	repo := NewAlertRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.MarkTriggered(context.Background(), 7, time.Now(), 50000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != 1 {
		t.Fatalf("expected one Exec, got %d", len(pool.execSQL))
	}
	if !strings.Contains(pool.execSQL[0], "is_triggered = FALSE") {
		t.Fatalf("update must be guarded on untriggered state: %s", pool.execSQL[0])
	}
}

func TestAlertDeactivateUnknownRowIsNotFound(t *testing.T) {
	pool := &alertStubPool{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewAlertRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.Deactivate(context.Background(), "user-1", 99); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertDeleteIsOwnerScoped(t *testing.T) {
	pool := &alertStubPool{execTag: pgconn.NewCommandTag("DELETE 1")}
	repo := NewAlertRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.Delete(context.Background(), "user-1", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.execSQL[0], "user_id = $2") {
		t.Fatalf("delete must be owner scoped: %s", pool.execSQL[0])
	}
}

type alertStubPool struct {
	execSQL  []string
	querySQL []string
	execTag  pgconn.CommandTag
	rowsData [][]any
}

func (s *alertStubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	return s.execTag, nil
}

func (s *alertStubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (s *alertStubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.querySQL = append(s.querySQL, sql)
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &alertStubRows{data: dataCopy}, nil
}

func (s *alertStubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return alertStubRow{}
}

type alertStubRows struct {
	data [][]any
	idx  int
}

func (r *alertStubRows) Close() {}

func (r *alertStubRows) Err() error { return nil }

func (r *alertStubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *alertStubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *alertStubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *alertStubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	row := r.data[r.idx-1]
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *int64:
			*ptr = row[i].(int64)
		case *float64:
			*ptr = row[i].(float64)
		case *bool:
			*ptr = row[i].(bool)
		case *time.Time:
			*ptr = row[i].(time.Time)
		case **time.Time:
			*ptr = row[i].(*time.Time)
		case **float64:
			*ptr = row[i].(*float64)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}

func (r *alertStubRows) Values() ([]any, error) { return nil, nil }

func (r *alertStubRows) RawValues() [][]byte { return nil }

func (r *alertStubRows) Conn() *pgx.Conn { return nil }

type alertStubRow struct{}

func (alertStubRow) Scan(dest ...any) error { return nil }
