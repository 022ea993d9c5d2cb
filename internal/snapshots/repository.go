package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the storage operations for daily snapshots.
type Repository interface {
	// Upsert stores the snapshot keyed by its date, overwriting any prior
	// rollup for that date.
	Upsert(ctx context.Context, s *DailySnapshot) error
	GetByDate(ctx context.Context, date time.Time) (*DailySnapshot, error)
	// ListRange returns snapshots with start <= date <= end, ascending.
	ListRange(ctx context.Context, start, end time.Time) ([]*DailySnapshot, error)
}

// PostgresRepository provides snapshot storage on Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new Postgres-backed snapshot repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const snapshotColumns = `date, new_users, active_users, total_sessions,
		average_session_duration, total_transactions, total_gas_used::text,
		top_contracts, top_events, metadata`

func scanSnapshot(row pgx.Row) (*DailySnapshot, error) {
	var s DailySnapshot
	err := row.Scan(
		&s.Date, &s.NewUsers, &s.ActiveUsers, &s.TotalSessions,
		&s.AverageSessionDuration, &s.TotalTransactions, &s.TotalGasUsed,
		&s.TopContracts, &s.TopEvents, &s.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, s *DailySnapshot) error {
	query := `
		INSERT INTO analytics_daily_snapshots (
			date, new_users, active_users, total_sessions,
			average_session_duration, total_transactions, total_gas_used,
			top_contracts, top_events, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)
		ON CONFLICT (date) DO UPDATE SET
			new_users = EXCLUDED.new_users,
			active_users = EXCLUDED.active_users,
			total_sessions = EXCLUDED.total_sessions,
			average_session_duration = EXCLUDED.average_session_duration,
			total_transactions = EXCLUDED.total_transactions,
			total_gas_used = EXCLUDED.total_gas_used,
			top_contracts = EXCLUDED.top_contracts,
			top_events = EXCLUDED.top_events,
			metadata = EXCLUDED.metadata`

	_, err := r.pool.Exec(ctx, query,
		s.Date, s.NewUsers, s.ActiveUsers, s.TotalSessions,
		s.AverageSessionDuration, s.TotalTransactions, s.TotalGasUsed,
		s.TopContracts, s.TopEvents, s.Metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByDate(ctx context.Context, date time.Time) (*DailySnapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM analytics_daily_snapshots WHERE date = $1`, snapshotColumns)

	s, err := scanSnapshot(r.pool.QueryRow(ctx, query, date))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListRange(ctx context.Context, start, end time.Time) ([]*DailySnapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_daily_snapshots
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC`, snapshotColumns)

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*DailySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}
