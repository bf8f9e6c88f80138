package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			external_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL,
			client_phone TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'confirmed',
			sync_status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_start ON appointments (start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_phone ON appointments (client_phone, start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_sync ON appointments (sync_status, updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init appointment schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, a Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (
			id, external_id, summary, client_name, client_phone,
			start_time, end_time, description, status, sync_status,
			created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
		)
		ON CONFLICT (id) DO UPDATE SET
			external_id=EXCLUDED.external_id,
			summary=EXCLUDED.summary,
			client_name=EXCLUDED.client_name,
			client_phone=EXCLUDED.client_phone,
			start_time=EXCLUDED.start_time,
			end_time=EXCLUDED.end_time,
			description=EXCLUDED.description,
			status=EXCLUDED.status,
			sync_status=EXCLUDED.sync_status,
			updated_at=EXCLUDED.updated_at`,
		a.ID,
		a.ExternalID,
		a.Summary,
		a.ClientName,
		a.ClientPhone,
		a.StartTime,
		a.EndTime,
		a.Description,
		string(a.Status),
		string(a.SyncStatus),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Appointment, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` FROM appointments WHERE id=$1`, id)
	a, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListRange(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx,
		selectColumns+` FROM appointments
		  WHERE status <> 'deleted' AND start_time >= $1 AND start_time < $2
		  ORDER BY start_time ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments by range: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListByPhone(ctx context.Context, phone string) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx,
		selectColumns+` FROM appointments
		  WHERE status <> 'deleted' AND client_phone=$1
		  ORDER BY start_time ASC`,
		phone,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments by phone: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListPendingSync(ctx context.Context, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		selectColumns+` FROM appointments
		  WHERE sync_status='pending'
		  ORDER BY updated_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) SetSyncState(ctx context.Context, id, externalID string, ifUpdatedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET external_id=$2, sync_status='synced'
		  WHERE id=$1 AND updated_at=$3`,
		id, externalID, ifUpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("set sync state: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// The record was rewritten while the mirror push was in flight. Keep
	// the event id so the next pass updates the existing event.
	if externalID != "" {
		if _, err := s.pool.Exec(ctx,
			`UPDATE appointments SET external_id=$2 WHERE id=$1 AND external_id=''`,
			id, externalID,
		); err != nil {
			return false, fmt.Errorf("attach external id: %w", err)
		}
	}
	return false, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectColumns = `SELECT id, external_id, summary, client_name, client_phone,
	start_time, end_time, description, status, sync_status, created_at, updated_at`

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	out := make([]Appointment, 0, 8)
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointment rows: %w", err)
	}
	return out, nil
}

func scanRow(row pgx.Row) (Appointment, error) {
	var (
		a          Appointment
		status     string
		syncStatus string
	)
	if err := row.Scan(
		&a.ID,
		&a.ExternalID,
		&a.Summary,
		&a.ClientName,
		&a.ClientPhone,
		&a.StartTime,
		&a.EndTime,
		&a.Description,
		&status,
		&syncStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Appointment{}, err
	}
	a.Status = Status(status)
	a.SyncStatus = SyncStatus(syncStatus)
	return a, nil
}
