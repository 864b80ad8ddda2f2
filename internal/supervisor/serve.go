package supervisor

import (
	"context"
	"time"

	"github.com/netfleetops/pppfleet/internal/config"
	"github.com/netfleetops/pppfleet/internal/liveness"
	"github.com/netfleetops/pppfleet/internal/rotation"
	"github.com/netfleetops/pppfleet/internal/stats"
	"golang.org/x/sync/errgroup"
)

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

// Serve runs the stats, liveness (if enabled) and rotation background
// loops under one errgroup.Group so that any of them exiting is
// observable and shutdown of the others is coordinated (§4, §5). It
// blocks until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context, cfg *config.AppConfig) error {
	g, gctx := errgroup.WithContext(ctx)

	statsCollector := stats.New(stats.SysfsReader{}, m)
	g.Go(func() error {
		statsCollector.Run(gctx)
		return nil
	})

	if cfg.HealthCheckEnabled {
		prober := liveness.New(
			m,
			m.netRunner,
			secondsToDuration(cfg.HealthCheckInterval),
			cfg.HealthCheckThreshold,
			cfg.HealthCheckTarget,
		)
		g.Go(func() error {
			prober.Run(gctx)
			return nil
		})
	}

	scheduler := rotation.New(m, cfg.Rotation.RotationTime, cfg.Rotation.WaitSeconds)
	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})

	return g.Wait()
}
