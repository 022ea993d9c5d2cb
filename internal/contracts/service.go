package contracts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/pkg/bignum"
	"getchainpulse.com/chainpulse/pkg/ethaddr"
)

// DefaultTopN bounds top-contract listings when the caller passes no limit.
const DefaultTopN = 10

// Service provides the per-contract rollup ledger behind the storage gateway.
type Service struct {
	gw       *storage.Gateway
	primary  Repository
	fallback Repository
	log      zerolog.Logger

	now func() time.Time
}

// NewService creates a new contract ledger service
func NewService(gw *storage.Gateway, primary, fallback Repository, log zerolog.Logger) *Service {
	return &Service{
		gw:       gw,
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "contracts").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateContractAnalytics looks up the rollup for a contract address,
// lazily creating it on first observation.
func (s *Service) GetOrCreateContractAnalytics(ctx context.Context, address string, params CreateParams) (*Contract, error) {
	address = ethaddr.Normalize(address)

	getOrCreate := func(repo Repository) func(context.Context) (*Contract, error) {
		return func(ctx context.Context) (*Contract, error) {
			c, err := repo.GetByAddress(ctx, address)
			if err != nil || c != nil {
				return c, err
			}
			candidate := &Contract{
				Address:         address,
				Name:            params.Name,
				Type:            params.Type,
				DeployedAt:      params.DeployedAt,
				DeployerAddress: params.DeployerAddress,
				GasUsed:         bignum.Zero,
				Events:          map[string]int64{},
				Metadata:        params.Metadata,
			}
			if err := repo.Insert(ctx, candidate); err != nil {
				return nil, err
			}
			return repo.GetByAddress(ctx, address)
		}
	}

	return storage.Execute(ctx, s.gw, "contracts.getOrCreate",
		getOrCreate(s.primary), getOrCreate(s.fallback))
}

// UpdateContractAnalytics applies one interaction to an existing rollup.
// uniqueUsers grows only on a wallet's first interaction with the contract,
// tracked through the (contract, wallet) pair table so the check does not
// depend on events having been stored. Returns nil when the contract was
// never created.
func (s *Service) UpdateContractAnalytics(ctx context.Context, address, eventName string, userAddress *string, gasUsed string, metadata map[string]interface{}) (*Contract, error) {
	address = ethaddr.Normalize(address)
	wallet := ethaddr.NormalizePtr(userAddress)
	now := s.now()
	if !bignum.IsValid(gasUsed) {
		gasUsed = bignum.Zero
	}

	update := func(repo Repository) func(context.Context) (*Contract, error) {
		return func(ctx context.Context) (*Contract, error) {
			// Establish the contract exists before touching the pair table:
			// a rejected update must leave no trace, or the wallet's first
			// counted interaction later would find its pair already marked.
			existing, err := repo.GetByAddress(ctx, address)
			if err != nil || existing == nil {
				return nil, err
			}
			newUsers := 0
			if wallet != nil {
				first, err := repo.MarkUserSeen(ctx, address, *wallet, now)
				if err != nil {
					return nil, err
				}
				if first {
					newUsers = 1
				}
			}
			return repo.ApplyInteraction(ctx, address, eventName, newUsers, gasUsed, now, metadata)
		}
	}

	return storage.Execute(ctx, s.gw, "contracts.update",
		update(s.primary), update(s.fallback))
}

// GetContractAnalytics returns the rollup, or nil when the address is unknown.
func (s *Service) GetContractAnalytics(ctx context.Context, address string) (*Contract, error) {
	address = ethaddr.Normalize(address)
	return storage.Execute(ctx, s.gw, "contracts.get",
		func(ctx context.Context) (*Contract, error) { return s.primary.GetByAddress(ctx, address) },
		func(ctx context.Context) (*Contract, error) { return s.fallback.GetByAddress(ctx, address) },
	)
}

// GetAllContractAnalytics lists every rollup, most interacted with first.
func (s *Service) GetAllContractAnalytics(ctx context.Context) ([]*Contract, error) {
	return storage.Execute(ctx, s.gw, "contracts.listAll",
		func(ctx context.Context) ([]*Contract, error) { return s.primary.ListAll(ctx) },
		func(ctx context.Context) ([]*Contract, error) { return s.fallback.ListAll(ctx) },
	)
}

// GetTopContracts lists the limit most interacted-with rollups.
func (s *Service) GetTopContracts(ctx context.Context, limit int) ([]*Contract, error) {
	if limit <= 0 {
		limit = DefaultTopN
	}
	return storage.Execute(ctx, s.gw, "contracts.top",
		func(ctx context.Context) ([]*Contract, error) { return s.primary.Top(ctx, limit) },
		func(ctx context.Context) ([]*Contract, error) { return s.fallback.Top(ctx, limit) },
	)
}
