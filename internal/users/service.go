package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/pkg/bignum"
	"getchainpulse.com/chainpulse/pkg/ethaddr"
)

// ActivityWindow is the lookback used for "active" and "new" user queries.
const ActivityWindow = 24 * time.Hour

// Service provides the per-wallet user ledger behind the storage gateway.
type Service struct {
	gw       *storage.Gateway
	primary  Repository
	fallback Repository
	log      zerolog.Logger

	now func() time.Time
}

// NewService creates a new user ledger service
func NewService(gw *storage.Gateway, primary, fallback Repository, log zerolog.Logger) *Service {
	return &Service{
		gw:       gw,
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "users").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateUser looks up the rollup for a wallet, lazily creating it on
// first observation. Creation is idempotent: a second call returns the same
// record with firstSeen unchanged.
func (s *Service) GetOrCreateUser(ctx context.Context, wallet string, metadata map[string]interface{}) (*User, error) {
	wallet = ethaddr.Normalize(wallet)
	now := s.now()

	getOrCreate := func(repo Repository) func(context.Context) (*User, error) {
		return func(ctx context.Context) (*User, error) {
			u, err := repo.GetByWallet(ctx, wallet)
			if err != nil || u != nil {
				return u, err
			}
			candidate := &User{
				ID:            uuid.NewString(),
				WalletAddress: wallet,
				FirstSeen:     now,
				LastSeen:      now,
				TotalGasSpent: bignum.Zero,
				Metadata:      metadata,
			}
			if err := repo.Insert(ctx, candidate); err != nil {
				return nil, err
			}
			// Re-read: a concurrent create may have won the unique key.
			return repo.GetByWallet(ctx, wallet)
		}
	}

	return storage.Execute(ctx, s.gw, "users.getOrCreate",
		getOrCreate(s.primary), getOrCreate(s.fallback))
}

// UpdateUserStats applies one activity increment to an existing rollup.
// Returns nil when the wallet was never created; callers are expected to
// GetOrCreateUser first.
func (s *Service) UpdateUserStats(ctx context.Context, wallet string, update StatsUpdate) (*User, error) {
	wallet = ethaddr.Normalize(wallet)
	now := s.now()

	sessions := 0
	if update.NewSession {
		sessions = 1
	}
	interactions := 0
	if update.NewInteraction {
		interactions = 1
	}
	transactions := 0
	if update.NewTransaction {
		transactions = 1
	}
	gas := update.GasSpent
	if !bignum.IsValid(gas) {
		gas = bignum.Zero
	}

	return storage.Execute(ctx, s.gw, "users.updateStats",
		func(ctx context.Context) (*User, error) {
			return s.primary.ApplyStats(ctx, wallet, sessions, interactions, transactions, gas, now, update.Metadata)
		},
		func(ctx context.Context) (*User, error) {
			return s.fallback.ApplyStats(ctx, wallet, sessions, interactions, transactions, gas, now, update.Metadata)
		},
	)
}

// GetUserByWallet returns the rollup, or nil when the wallet is unknown.
func (s *Service) GetUserByWallet(ctx context.Context, wallet string) (*User, error) {
	wallet = ethaddr.Normalize(wallet)
	return storage.Execute(ctx, s.gw, "users.get",
		func(ctx context.Context) (*User, error) { return s.primary.GetByWallet(ctx, wallet) },
		func(ctx context.Context) (*User, error) { return s.fallback.GetByWallet(ctx, wallet) },
	)
}

// GetAllUsers lists every rollup, most recently seen first.
func (s *Service) GetAllUsers(ctx context.Context) ([]*User, error) {
	return storage.Execute(ctx, s.gw, "users.listAll",
		func(ctx context.Context) ([]*User, error) { return s.primary.ListAll(ctx) },
		func(ctx context.Context) ([]*User, error) { return s.fallback.ListAll(ctx) },
	)
}

// GetActiveUsers lists users seen within the activity window.
func (s *Service) GetActiveUsers(ctx context.Context) ([]*User, error) {
	cutoff := s.now().Add(-ActivityWindow)
	return storage.Execute(ctx, s.gw, "users.listActive",
		func(ctx context.Context) ([]*User, error) { return s.primary.ListActiveSince(ctx, cutoff) },
		func(ctx context.Context) ([]*User, error) { return s.fallback.ListActiveSince(ctx, cutoff) },
	)
}

// GetNewUsers lists users first seen within the activity window.
func (s *Service) GetNewUsers(ctx context.Context) ([]*User, error) {
	cutoff := s.now().Add(-ActivityWindow)
	return storage.Execute(ctx, s.gw, "users.listNew",
		func(ctx context.Context) ([]*User, error) { return s.primary.ListNewSince(ctx, cutoff) },
		func(ctx context.Context) ([]*User, error) { return s.fallback.ListNewSince(ctx, cutoff) },
	)
}

// CountActiveUsers counts users seen within the activity window.
func (s *Service) CountActiveUsers(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-ActivityWindow)
	return storage.Execute(ctx, s.gw, "users.countActive",
		func(ctx context.Context) (int64, error) { return s.primary.CountActiveSince(ctx, cutoff) },
		func(ctx context.Context) (int64, error) { return s.fallback.CountActiveSince(ctx, cutoff) },
	)
}

// CountNewBetween counts users first seen in the inclusive range.
func (s *Service) CountNewBetween(ctx context.Context, start, end time.Time) (int64, error) {
	return storage.Execute(ctx, s.gw, "users.countNew",
		func(ctx context.Context) (int64, error) { return s.primary.CountNewBetween(ctx, start, end) },
		func(ctx context.Context) (int64, error) { return s.fallback.CountNewBetween(ctx, start, end) },
	)
}
