package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the storage operations for contract rollups.
type Repository interface {
	GetByAddress(ctx context.Context, address string) (*Contract, error)
	// Insert creates the contract record; a concurrent insert for the same
	// address is absorbed (first writer wins).
	Insert(ctx context.Context, c *Contract) error
	// MarkUserSeen records the (contract, wallet) pair and reports whether
	// the wallet was new to this contract.
	MarkUserSeen(ctx context.Context, address, wallet string, at time.Time) (bool, error)
	// ApplyInteraction atomically applies one interaction: counter and
	// per-event-name tally increments, exact gas addition, monotonic
	// last_interaction and a shallow metadata merge. newUsers is 0 or 1.
	// Returns nil when the contract has no record.
	ApplyInteraction(ctx context.Context, address, eventName string, newUsers int, gasUsed string, at time.Time, metadata map[string]interface{}) (*Contract, error)
	ListAll(ctx context.Context) ([]*Contract, error)
	Top(ctx context.Context, limit int) ([]*Contract, error)
}

// PostgresRepository provides contract rollup storage on Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new Postgres-backed contract repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const contractColumns = `address, name, type, deployed_at, deployer_address,
		total_interactions, unique_users, last_interaction, gas_used::text, events, metadata`

func scanContract(row pgx.Row) (*Contract, error) {
	var c Contract
	err := row.Scan(
		&c.Address, &c.Name, &c.Type, &c.DeployedAt, &c.DeployerAddress,
		&c.TotalInteractions, &c.UniqueUsers, &c.LastInteraction, &c.GasUsed, &c.Events, &c.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) GetByAddress(ctx context.Context, address string) (*Contract, error) {
	query := fmt.Sprintf(`SELECT %s FROM analytics_contracts WHERE address = $1`, contractColumns)

	c, err := scanContract(r.pool.QueryRow(ctx, query, address))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, c *Contract) error {
	query := `
		INSERT INTO analytics_contracts (
			address, name, type, deployed_at, deployer_address,
			total_interactions, unique_users, last_interaction, gas_used, events, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11)
		ON CONFLICT (address) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		c.Address, c.Name, c.Type, c.DeployedAt, c.DeployerAddress,
		c.TotalInteractions, c.UniqueUsers, c.LastInteraction, c.GasUsed, c.Events, c.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

// MarkUserSeen leans on the pair table's primary key: the insert either lands
// (first interaction for this wallet) or is a no-op, and the reported row
// count tells the two apart.
func (r *PostgresRepository) MarkUserSeen(ctx context.Context, address, wallet string, at time.Time) (bool, error) {
	query := `
		INSERT INTO analytics_contract_users (contract_address, wallet_address, first_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_address, wallet_address) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, address, wallet, at)
	if err != nil {
		return false, fmt.Errorf("mark contract user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) ApplyInteraction(ctx context.Context, address, eventName string, newUsers int, gasUsed string, at time.Time, metadata map[string]interface{}) (*Contract, error) {
	query := fmt.Sprintf(`
		UPDATE analytics_contracts SET
			total_interactions = total_interactions + 1,
			unique_users = unique_users + $2,
			gas_used = gas_used + $3::numeric,
			last_interaction = GREATEST(COALESCE(last_interaction, $4), $4),
			events = jsonb_set(events, ARRAY[$5], to_jsonb(COALESCE((events->>$5)::bigint, 0) + 1)),
			metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($6, '{}'::jsonb)
		WHERE address = $1
		RETURNING %s`, contractColumns)

	c, err := scanContract(r.pool.QueryRow(ctx, query, address, newUsers, gasUsed, at, eventName, metadata))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update contract analytics: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Contract, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_contracts
		ORDER BY total_interactions DESC, address ASC`, contractColumns)
	return r.list(ctx, query)
}

func (r *PostgresRepository) Top(ctx context.Context, limit int) ([]*Contract, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_contracts
		ORDER BY total_interactions DESC, address ASC
		LIMIT $1`, contractColumns)
	return r.list(ctx, query, limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*Contract, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return out, nil
}
