// Package maintenance runs the periodic upkeep jobs referenced by
// SPEC_FULL.md's domain stack table: a cache TTL sweep / snapshot
// cadence and a provider update-index refresh. It is grounded on the
// teacher's internal/core.Scheduler (github.com/robfig/cron/v3 driving
// a cron.Cron against time-of-day download windows), generalized from
// a single start/stop download schedule to a small fixed set of
// maintenance jobs — this spec has no notion of a download curfew, but
// the cache and provider index both need exactly the kind of
// "run this on a cadence in the background" behavior cron already
// provides.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tachyon-launcher/internal/cache"
	"tachyon-launcher/internal/envmanager"
)

const snapshotRetain = 30 * 24 * time.Hour

// Scheduler owns a cron.Cron driving cache and provider upkeep.
type Scheduler struct {
	logger *slog.Logger
	cron   *cron.Cron
	cache  *cache.Cache
	env    *envmanager.Manager
}

// New builds a Scheduler. Call Start to register jobs and begin
// running them; Stop drains in-flight jobs before returning.
func New(logger *slog.Logger, c *cache.Cache, env *envmanager.Manager) *Scheduler {
	return &Scheduler{logger: logger, cron: cron.New(), cache: c, env: env}
}

// Start registers the fixed maintenance jobs and starts the cron
// loop. It is not re-entrant; call it once per Scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1h", s.sweepExpiredCache); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 15m", s.snapshotCache); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 6h", s.refreshUpdateIndex); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop blocks until any running job finishes, then stops the cron loop.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepExpiredCache() {
	n, err := s.cache.CleanExpired(true)
	if err != nil {
		s.logger.Error("maintenance: cache sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("maintenance: cache sweep removed expired entries", "count", n)
	}
}

func (s *Scheduler) snapshotCache() {
	if err := s.cache.Snapshot(snapshotRetain); err != nil {
		s.logger.Error("maintenance: cache snapshot failed", "error", err)
	}
}

// refreshUpdateIndex re-checks every known environment's installed
// version against its provider's newest known version, logging a
// summary. It is the maintenance-cadence counterpart to the host API's
// on-demand CheckAllUpdates call.
func (s *Scheduler) refreshUpdateIndex() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	checks := s.env.CheckAllUpdates(ctx)
	if len(checks) > 0 {
		s.logger.Info("maintenance: updates available", "count", len(checks))
	}
}
