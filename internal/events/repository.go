package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"getchainpulse.com/chainpulse/pkg/bignum"
)

// Repository defines the storage operations for analytics events. Two
// implementations exist: PostgresRepository against the relational store and
// MemoryRepository as the in-process fallback.
type Repository interface {
	Insert(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, f Filter) ([]*Event, int64, error)
	CountsByType(ctx context.Context, start, end *time.Time) (map[string]int64, error)

	// Aggregates consumed by the snapshot aggregator.
	DistinctWallets(ctx context.Context, start, end time.Time) (int64, error)
	CountTypeInRange(ctx context.Context, eventType string, start, end time.Time) (int64, error)
	CountInRange(ctx context.Context, start, end time.Time) (int64, error)
	SumGasUsed(ctx context.Context, start, end time.Time) (string, error)
	TopContracts(ctx context.Context, start, end time.Time, limit int) ([]ContractCount, error)
	TopEventNames(ctx context.Context, start, end time.Time, limit int) ([]EventNameCount, error)
	Recent(ctx context.Context, since time.Time, limit int) ([]*Event, error)
}

// PostgresRepository provides event storage on Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new Postgres-backed event repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const eventColumns = `id, event_type, timestamp, wallet_address, chain_id,
		contract_address, event_name, transaction_hash, block_number, log_index,
		return_values, gas_used::text, gas_price::text,
		session_id, url, referrer, user_agent, ip_address, element, action, value,
		metadata`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.EventType, &e.Timestamp, &e.WalletAddress, &e.ChainID,
		&e.ContractAddress, &e.EventName, &e.TransactionHash, &e.BlockNumber, &e.LogIndex,
		&e.ReturnValues, &e.GasUsed, &e.GasPrice,
		&e.SessionID, &e.URL, &e.Referrer, &e.UserAgent, &e.IPAddress, &e.Element, &e.Action, &e.Value,
		&e.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert persists an event
func (r *PostgresRepository) Insert(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO analytics_events (
			id, event_type, timestamp, wallet_address, chain_id,
			contract_address, event_name, transaction_hash, block_number, log_index,
			return_values, gas_used, gas_price,
			session_id, url, referrer, user_agent, ip_address, element, action, value,
			metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.EventType, e.Timestamp, e.WalletAddress, e.ChainID,
		e.ContractAddress, e.EventName, e.TransactionHash, e.BlockNumber, e.LogIndex,
		e.ReturnValues, e.GasUsed, e.GasPrice,
		e.SessionID, e.URL, e.Referrer, e.UserAgent, e.IPAddress, e.Element, e.Action, e.Value,
		e.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by id, or nil when absent
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM analytics_events WHERE id = $1`, eventColumns)

	e, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// DeleteByID removes an event, reporting whether a row was removed
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analytics_events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Query retrieves a filtered, paginated list of events plus the total count
// of matching rows. Ties on the sort key are broken by id so ordering is
// deterministic across backends.
func (r *PostgresRepository) Query(ctx context.Context, f Filter) ([]*Event, int64, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if f.StartTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argNum))
		args = append(args, *f.StartTime)
		argNum++
	}
	if f.EndTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argNum))
		args = append(args, *f.EndTime)
		argNum++
	}
	if f.WalletAddress != nil {
		conditions = append(conditions, fmt.Sprintf("wallet_address = $%d", argNum))
		args = append(args, *f.WalletAddress)
		argNum++
	}
	if f.ContractAddress != nil {
		conditions = append(conditions, fmt.Sprintf("contract_address = $%d", argNum))
		args = append(args, *f.ContractAddress)
		argNum++
	}
	if f.EventType != nil {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argNum))
		args = append(args, *f.EventType)
		argNum++
	}
	if f.ChainID != nil {
		conditions = append(conditions, fmt.Sprintf("chain_id = $%d", argNum))
		args = append(args, *f.ChainID)
		argNum++
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM analytics_events WHERE %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	dir := "DESC"
	if strings.EqualFold(f.SortDir, "asc") {
		dir = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics_events
		WHERE %s
		ORDER BY timestamp %s, id %s
		LIMIT $%d OFFSET $%d`, eventColumns, where, dir, dir, argNum, argNum+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var list []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, e)
	}
	return list, total, nil
}

// CountsByType returns event counts grouped by event type, optionally bounded
// by an inclusive time range
func (r *PostgresRepository) CountsByType(ctx context.Context, start, end *time.Time) (map[string]int64, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if start != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argNum))
		args = append(args, *start)
		argNum++
	}
	if end != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argNum))
		args = append(args, *end)
		argNum++
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT event_type, COUNT(*)
		FROM analytics_events
		WHERE %s
		GROUP BY event_type`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[eventType] = count
	}
	return counts, nil
}

// DistinctWallets counts distinct wallet addresses with any event in the range
func (r *PostgresRepository) DistinctWallets(ctx context.Context, start, end time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT wallet_address)
		FROM analytics_events
		WHERE wallet_address IS NOT NULL AND timestamp >= $1 AND timestamp <= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count distinct wallets: %w", err)
	}
	return count, nil
}

// CountTypeInRange counts events of one type in an inclusive time range
func (r *PostgresRepository) CountTypeInRange(ctx context.Context, eventType string, start, end time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM analytics_events
		WHERE event_type = $1 AND timestamp >= $2 AND timestamp <= $3`

	var count int64
	if err := r.pool.QueryRow(ctx, query, eventType, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events of type: %w", err)
	}
	return count, nil
}

// CountInRange counts all events in an inclusive time range
func (r *PostgresRepository) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM analytics_events
		WHERE timestamp >= $1 AND timestamp <= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// SumGasUsed returns the exact sum of gas used over events in the range as a
// decimal string. NUMERIC keeps the server-side sum exact.
func (r *PostgresRepository) SumGasUsed(ctx context.Context, start, end time.Time) (string, error) {
	query := `
		SELECT COALESCE(SUM(gas_used), 0)::text
		FROM analytics_events
		WHERE gas_used IS NOT NULL AND timestamp >= $1 AND timestamp <= $2`

	var sum string
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&sum); err != nil {
		return bignum.Zero, fmt.Errorf("sum gas used: %w", err)
	}
	return sum, nil
}

// TopContracts ranks contracts by interaction count within the range
func (r *PostgresRepository) TopContracts(ctx context.Context, start, end time.Time, limit int) ([]ContractCount, error) {
	query := `
		SELECT contract_address, COUNT(*) AS interactions
		FROM analytics_events
		WHERE event_type = $1 AND contract_address IS NOT NULL
			AND timestamp >= $2 AND timestamp <= $3
		GROUP BY contract_address
		ORDER BY interactions DESC, contract_address
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, TypeContractInteraction, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top contracts: %w", err)
	}
	defer rows.Close()

	var top []ContractCount
	for rows.Next() {
		var c ContractCount
		if err := rows.Scan(&c.Address, &c.Count); err != nil {
			return nil, fmt.Errorf("scan top contract: %w", err)
		}
		top = append(top, c)
	}
	return top, nil
}

// TopEventNames ranks event names by occurrence count within the range
func (r *PostgresRepository) TopEventNames(ctx context.Context, start, end time.Time, limit int) ([]EventNameCount, error) {
	query := `
		SELECT event_name, COUNT(*) AS occurrences
		FROM analytics_events
		WHERE event_name IS NOT NULL AND timestamp >= $1 AND timestamp <= $2
		GROUP BY event_name
		ORDER BY occurrences DESC, event_name
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top event names: %w", err)
	}
	defer rows.Close()

	var top []EventNameCount
	for rows.Next() {
		var n EventNameCount
		if err := rows.Scan(&n.Name, &n.Count); err != nil {
			return nil, fmt.Errorf("scan top event name: %w", err)
		}
		top = append(top, n)
	}
	return top, nil
}

// Recent returns the most recent events since a time, newest first
func (r *PostgresRepository) Recent(ctx context.Context, since time.Time, limit int) ([]*Event, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics_events
		WHERE timestamp >= $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`, eventColumns)

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var list []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, e)
	}
	return list, nil
}
