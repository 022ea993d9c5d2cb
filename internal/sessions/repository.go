package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the storage operations for sessions.
type Repository interface {
	Insert(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	// AddStats atomically increments counters on an active session and
	// records the current page as the exit page. Returns nil when the session
	// is missing or already ended.
	AddStats(ctx context.Context, id string, pageViews, interactions int, currentPage *string) (*Session, error)
	// End atomically terminates an active session, setting end time, duration
	// and exit page. Returns nil when the session is missing or already ended.
	End(ctx context.Context, id string, endTime time.Time, exitPage *string) (*Session, error)
	ListActive(ctx context.Context) ([]*Session, error)
	ListByWallet(ctx context.Context, wallet string) ([]*Session, error)
	CountActive(ctx context.Context) (int64, error)

	// Aggregates consumed by the snapshot aggregator.
	CountStartedBetween(ctx context.Context, start, end time.Time) (int64, error)
	// DurationTotals returns the number of sessions started in the range that
	// have a recorded duration, and the exact sum of those durations in
	// milliseconds.
	DurationTotals(ctx context.Context, start, end time.Time) (count int64, totalMs int64, err error)
}

// PostgresRepository provides session storage on Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new Postgres-backed session repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, user_id, wallet_address, start_time, end_time, duration, is_active,
		user_agent, ip_address, referrer, entry_page, exit_page, page_views, interactions, chain_id`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.WalletAddress, &s.StartTime, &s.EndTime, &s.Duration, &s.IsActive,
		&s.UserAgent, &s.IPAddress, &s.Referrer, &s.EntryPage, &s.ExitPage, &s.PageViews, &s.Interactions, &s.ChainID,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO analytics_sessions (
			id, user_id, wallet_address, start_time, end_time, duration, is_active,
			user_agent, ip_address, referrer, entry_page, exit_page, page_views, interactions, chain_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.WalletAddress, s.StartTime, s.EndTime, s.Duration, s.IsActive,
		s.UserAgent, s.IPAddress, s.Referrer, s.EntryPage, s.ExitPage, s.PageViews, s.Interactions, s.ChainID,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM analytics_sessions WHERE id = $1`, sessionColumns)

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// AddStats uses a server-side increment so concurrent updates never lose a
// count; the is_active guard makes ended sessions immutable.
func (r *PostgresRepository) AddStats(ctx context.Context, id string, pageViews, interactions int, currentPage *string) (*Session, error) {
	query := fmt.Sprintf(`
		UPDATE analytics_sessions SET
			page_views = page_views + $2,
			interactions = interactions + $3,
			exit_page = COALESCE($4, exit_page)
		WHERE id = $1 AND is_active
		RETURNING %s`, sessionColumns)

	s, err := scanSession(r.pool.QueryRow(ctx, query, id, pageViews, interactions, currentPage))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update session stats: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) End(ctx context.Context, id string, endTime time.Time, exitPage *string) (*Session, error) {
	query := fmt.Sprintf(`
		UPDATE analytics_sessions SET
			end_time = $2,
			duration = (EXTRACT(EPOCH FROM ($2::timestamptz - start_time)) * 1000)::bigint,
			is_active = FALSE,
			exit_page = COALESCE($3, exit_page)
		WHERE id = $1 AND is_active
		RETURNING %s`, sessionColumns)

	s, err := scanSession(r.pool.QueryRow(ctx, query, id, endTime, exitPage))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_sessions
		WHERE is_active
		ORDER BY start_time DESC, id DESC`, sessionColumns)

	return r.list(ctx, query)
}

func (r *PostgresRepository) ListByWallet(ctx context.Context, wallet string) ([]*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_sessions
		WHERE wallet_address = $1
		ORDER BY start_time DESC, id DESC`, sessionColumns)

	return r.list(ctx, query, wallet)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var list []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		list = append(list, s)
	}
	return list, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analytics_sessions WHERE is_active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CountStartedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM analytics_sessions
		WHERE start_time >= $1 AND start_time <= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions started: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) DurationTotals(ctx context.Context, start, end time.Time) (int64, int64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(duration), 0)
		FROM analytics_sessions
		WHERE start_time >= $1 AND start_time <= $2 AND duration IS NOT NULL`

	var count, total int64
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&count, &total); err != nil {
		return 0, 0, fmt.Errorf("session duration totals: %w", err)
	}
	return count, total, nil
}
