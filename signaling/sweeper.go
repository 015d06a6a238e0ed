package signaling

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/broker"
	"github.com/tusharsach16/LawProject-sub001/metrics"
	"github.com/tusharsach16/LawProject-sub001/registry"
)

// Sweeper prunes connections whose heartbeats have gone stale. It runs on a
// fixed interval, independent of any per-connection lifecycle: a client that
// vanished without a close frame is still evicted, its presence entry
// cleared and its departure announced, exactly like a graceful close.
type Sweeper struct {
	registry *registry.Registry
	presence Presence
	bus      broker.Bus
	maxAge   time.Duration
	interval time.Duration
}

func NewSweeper(reg *registry.Registry, p Presence, bus broker.Bus, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry: reg,
		presence: p,
		bus:      bus,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pruning pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	stale := s.registry.PruneStale(s.maxAge)
	for _, entry := range stale {
		metrics.StaleConnectionsPruned.Inc()
		log.Info().Str("user_id", entry.UserID).Str("call_room_id", entry.RoomID).
			Time("last_heartbeat_at", entry.LastHeartbeatAt).
			Msg("pruned stale connection")
		announceDeparture(ctx, s.presence, s.bus, entry.RoomID, entry.UserID)
	}
}
