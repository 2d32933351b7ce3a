package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/models"
)

type UserStore interface {
	SetStatus(ctx context.Context, userID, status string, lastSeen time.Time) error
	ListByStatus(ctx context.Context, status string) ([]*models.User, error)
}

// SweepResult is returned by the administrative reconciliation trigger.
type SweepResult struct {
	Evicted   int       `json:"evicted"`
	Corrected int       `json:"corrected"`
	SweptAt   time.Time `json:"sweptAt"`
}

// Sweeper evicts sessions whose liveness timestamp has gone stale. It is the
// sole timeout mechanism; a user that misses one full sweep cycle with no
// heartbeat is presumed dead. Failures inside a tick are logged and never
// stop the loop.
type Sweeper struct {
	registry    *Registry
	users       UserStore
	broadcaster *Broadcaster
	interval    time.Duration
	staleAfter  time.Duration
	log         *zap.SugaredLogger
	now         func() time.Time
}

func NewSweeper(registry *Registry, users UserStore, broadcaster *Broadcaster, interval, staleAfter time.Duration, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		registry:    registry,
		users:       users,
		broadcaster: broadcaster,
		interval:    interval,
		staleAfter:  staleAfter,
		log:         log,
		now:         time.Now,
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
			s.EvictStale(ctx)
		}
	}
}

// EvictStale runs one sweep over the live registry and returns the number of
// sessions evicted.
func (s *Sweeper) EvictStale(ctx context.Context) int {
	now := s.now()
	evicted := 0
	for userID, sess := range s.registry.Snapshot() {
		if now.Sub(sess.LastLivenessAt) <= s.staleAfter {
			continue
		}
		// Evict before notifying so a concurrent reconnect that re-registered
		// is left alone; Evict false means someone else already handled it.
		if !s.registry.EvictConnection(userID, sess.ConnectionID) {
			continue
		}
		evicted++
		metrics.SweeperEvictions.Inc()
		s.markOffline(ctx, userID, now)
	}
	return evicted
}

// Reconcile is the administrative trigger: it evicts stale live sessions and
// additionally corrects every user the durable store still marks ONLINE but
// the registry no longer knows about.
func (s *Sweeper) Reconcile(ctx context.Context) SweepResult {
	now := s.now()
	res := SweepResult{SweptAt: now.UTC()}
	res.Evicted = s.EvictStale(ctx)

	online, err := s.users.ListByStatus(ctx, models.StatusOnline)
	if err != nil {
		s.log.Errorw("reconcile: list online users failed", "err", err)
		return res
	}
	for _, u := range online {
		if _, live := s.registry.Lookup(u.ID); live {
			continue
		}
		res.Corrected++
		s.markOffline(ctx, u.ID, now)
	}
	return res
}

func (s *Sweeper) markOffline(ctx context.Context, userID string, at time.Time) {
	if err := s.users.SetStatus(ctx, userID, models.StatusOffline, at); err != nil {
		s.log.Errorw("persist offline status failed", "user", userID, "err", err)
	}
	s.broadcaster.NotifyStatus(ctx, userID, models.StatusOffline, at)
}
