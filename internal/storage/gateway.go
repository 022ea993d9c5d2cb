// Package storage implements the dual-backend execution gateway.
//
// Every analytics operation exists twice: once against the relational store
// and once against an in-process fallback store. The gateway runs the primary
// path and, on any failure or when the primary is administratively disabled,
// transparently serves the call from the fallback. Failures are not sticky;
// the next call tries the primary again.
package storage

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Gateway coordinates primary/fallback execution and tracks degraded state.
type Gateway struct {
	log            zerolog.Logger
	primaryEnabled bool

	warned    atomic.Bool
	fallbacks atomic.Int64
}

// NewGateway creates a gateway. primaryEnabled=false routes every call
// straight to the fallback store.
func NewGateway(log zerolog.Logger, primaryEnabled bool) *Gateway {
	return &Gateway{log: log, primaryEnabled: primaryEnabled}
}

// PrimaryEnabled reports whether the relational path is in use at all.
func (g *Gateway) PrimaryEnabled() bool {
	return g.primaryEnabled
}

// Degraded reports whether any call has been served from the fallback store
// during this process lifetime. Fallback writes are not persisted, so a
// degraded process may hold data the primary store never saw.
func (g *Gateway) Degraded() bool {
	return g.fallbacks.Load() > 0
}

// FallbackCount returns how many calls were served from the fallback store.
func (g *Gateway) FallbackCount() int64 {
	return g.fallbacks.Load()
}

// noteFallback records a fallback activation. Only the first activation per
// process emits a log line to avoid flooding during an extended outage.
func (g *Gateway) noteFallback(op string, err error) {
	g.fallbacks.Add(1)
	if g.warned.CompareAndSwap(false, true) {
		evt := g.log.Warn().Str("op", op)
		if err != nil {
			evt = evt.Err(err)
		}
		evt.Msg("primary store unavailable, serving from in-memory fallback store")
	}
}

// Execute runs primary and returns its result, unless the primary path is
// disabled or fails, in which case it runs fallback instead. The caller never
// sees a primary-store error.
func Execute[T any](ctx context.Context, g *Gateway, op string, primary, fallback func(context.Context) (T, error)) (T, error) {
	if g.primaryEnabled {
		v, err := primary(ctx)
		if err == nil {
			return v, nil
		}
		g.noteFallback(op, err)
	} else {
		g.noteFallback(op, nil)
	}
	return fallback(ctx)
}
