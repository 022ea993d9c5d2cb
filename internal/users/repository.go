package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the storage operations for user rollups.
type Repository interface {
	GetByWallet(ctx context.Context, wallet string) (*User, error)
	// Insert creates the user record; a concurrent insert for the same wallet
	// is absorbed (first writer wins).
	Insert(ctx context.Context, u *User) error
	// ApplyStats atomically applies one stats increment. Returns nil when the
	// wallet has no record.
	ApplyStats(ctx context.Context, wallet string, sessions, interactions, transactions int, gasSpent string, lastSeen time.Time, metadata map[string]interface{}) (*User, error)
	ListAll(ctx context.Context) ([]*User, error)
	ListActiveSince(ctx context.Context, t time.Time) ([]*User, error)
	ListNewSince(ctx context.Context, t time.Time) ([]*User, error)
	CountActiveSince(ctx context.Context, t time.Time) (int64, error)
	CountNewBetween(ctx context.Context, start, end time.Time) (int64, error)
}

// PostgresRepository provides user rollup storage on Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new Postgres-backed user repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, wallet_address, first_seen, last_seen,
		total_sessions, total_interactions, total_transactions, total_gas_spent::text,
		assets_linked, tokens_held, tags, metadata`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.WalletAddress, &u.FirstSeen, &u.LastSeen,
		&u.TotalSessions, &u.TotalInteractions, &u.TotalTransactions, &u.TotalGasSpent,
		&u.AssetsLinked, &u.TokensHeld, &u.Tags, &u.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) GetByWallet(ctx context.Context, wallet string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM analytics_users WHERE wallet_address = $1`, userColumns)

	u, err := scanUser(r.pool.QueryRow(ctx, query, wallet))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Insert relies on the wallet_address unique constraint: a concurrent create
// for the same wallet becomes a no-op instead of a duplicate.
func (r *PostgresRepository) Insert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO analytics_users (
			id, wallet_address, first_seen, last_seen,
			total_sessions, total_interactions, total_transactions, total_gas_spent,
			assets_linked, tokens_held, tags, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12)
		ON CONFLICT (wallet_address) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.WalletAddress, u.FirstSeen, u.LastSeen,
		u.TotalSessions, u.TotalInteractions, u.TotalTransactions, u.TotalGasSpent,
		u.AssetsLinked, u.TokensHeld, u.Tags, u.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ApplyStats performs the whole increment server-side: counter additions,
// exact NUMERIC gas addition, monotonic last_seen and a shallow jsonb
// metadata merge, all in one statement so concurrent updates never lose an
// increment.
func (r *PostgresRepository) ApplyStats(ctx context.Context, wallet string, sessions, interactions, transactions int, gasSpent string, lastSeen time.Time, metadata map[string]interface{}) (*User, error) {
	query := fmt.Sprintf(`
		UPDATE analytics_users SET
			last_seen = GREATEST(last_seen, $2),
			total_sessions = total_sessions + $3,
			total_interactions = total_interactions + $4,
			total_transactions = total_transactions + $5,
			total_gas_spent = total_gas_spent + $6::numeric,
			metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($7, '{}'::jsonb)
		WHERE wallet_address = $1
		RETURNING %s`, userColumns)

	u, err := scanUser(r.pool.QueryRow(ctx, query, wallet, lastSeen, sessions, interactions, transactions, gasSpent, metadata))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update user stats: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_users
		ORDER BY last_seen DESC, wallet_address`, userColumns)

	return r.list(ctx, query)
}

func (r *PostgresRepository) ListActiveSince(ctx context.Context, t time.Time) ([]*User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_users
		WHERE last_seen >= $1
		ORDER BY last_seen DESC, wallet_address`, userColumns)

	return r.list(ctx, query, t)
}

func (r *PostgresRepository) ListNewSince(ctx context.Context, t time.Time) ([]*User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_users
		WHERE first_seen >= $1
		ORDER BY first_seen DESC, wallet_address`, userColumns)

	return r.list(ctx, query, t)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var list []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		list = append(list, u)
	}
	return list, nil
}

func (r *PostgresRepository) CountActiveSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analytics_users WHERE last_seen >= $1`, t).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CountNewBetween(ctx context.Context, start, end time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM analytics_users WHERE first_seen >= $1 AND first_seen <= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return count, nil
}
