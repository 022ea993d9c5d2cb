// Package app wires the analytics components together: storage gateway,
// primary and fallback repositories, the five services and the snapshot
// scheduler.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/cache"
	"getchainpulse.com/chainpulse/internal/config"
	"getchainpulse.com/chainpulse/internal/contracts"
	"getchainpulse.com/chainpulse/internal/database"
	"getchainpulse.com/chainpulse/internal/events"
	"getchainpulse.com/chainpulse/internal/sessions"
	"getchainpulse.com/chainpulse/internal/snapshots"
	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/internal/users"
)

// App is the assembled analytics engine. Callers record activity through the
// Events, Sessions, Users and Contracts services and read rollups through
// Snapshots.
type App struct {
	Gateway   *storage.Gateway
	Events    *events.Service
	Sessions  *sessions.Service
	Users     *users.Service
	Contracts *contracts.Service
	Snapshots *snapshots.Service

	db    *database.DB
	cache *cache.Cache
}

// New builds the engine from configuration. A failed database connection is
// not fatal: the gateway starts with the primary disabled and every
// operation is served from the in-memory fallback.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) *App {
	var (
		db   *database.DB
		pool *pgxpool.Pool
	)
	primaryEnabled := false
	if !cfg.DisableDatabase {
		var err error
		db, err = database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, running on in-memory fallback")
		} else {
			pool = db.Pool()
			primaryEnabled = true
		}
	}

	c, err := cache.New(&cache.Config{
		URL:       cfg.RedisURL,
		KeyPrefix: cfg.CacheKeyPrefix,
		Enabled:   cfg.CacheEnabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cache unavailable, continuing without it")
		c, _ = cache.New(&cache.Config{Enabled: false})
	}

	gw := storage.NewGateway(log, primaryEnabled)

	eventSvc := events.NewService(gw,
		events.NewPostgresRepository(pool), events.NewMemoryRepository(), log)
	sessionSvc := sessions.NewService(gw,
		sessions.NewPostgresRepository(pool), sessions.NewMemoryRepository(), log)
	userSvc := users.NewService(gw,
		users.NewPostgresRepository(pool), users.NewMemoryRepository(), log)
	contractSvc := contracts.NewService(gw,
		contracts.NewPostgresRepository(pool), contracts.NewMemoryRepository(), log)
	snapshotSvc := snapshots.NewService(gw,
		snapshots.NewPostgresRepository(pool), snapshots.NewMemoryRepository(),
		eventSvc, sessionSvc, userSvc, c,
		cfg.SnapshotTopN, cfg.SnapshotHourUTC, log)

	return &App{
		Gateway:   gw,
		Events:    eventSvc,
		Sessions:  sessionSvc,
		Users:     userSvc,
		Contracts: contractSvc,
		Snapshots: snapshotSvc,
		db:        db,
		cache:     c,
	}
}

// DatabaseConnected reports whether the primary store was reachable at
// startup.
func (a *App) DatabaseConnected() bool {
	return a.db != nil
}

// CacheEnabled reports whether the Redis cache is in use.
func (a *App) CacheEnabled() bool {
	return a.cache.IsEnabled()
}

// Start launches background work (the daily snapshot scheduler).
func (a *App) Start(ctx context.Context) {
	a.Snapshots.Start(ctx)
}

// Stop halts background work and releases connections.
func (a *App) Stop() {
	a.Snapshots.Stop()
	if a.db != nil {
		a.db.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
}
