// Package feeds drives the simulated live-condition feed used for demos and
// drills: periodic small perturbations of the weather snapshot so observers
// see the dashboard move.
package feeds

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/tbayops/stormdesk/internal/config"
	"github.com/tbayops/stormdesk/internal/events"
	"github.com/tbayops/stormdesk/internal/ops"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
)

// Simulator nudges the weather snapshot on a fixed interval and notifies
// observers through the hub.
type Simulator struct {
	store store.Store
	pub   ops.Publisher
	cfg   config.FeedsConfig
	log   *zap.Logger
}

// NewSimulator wires a Simulator over the store and event publisher.
func NewSimulator(st store.Store, pub ops.Publisher, cfg config.FeedsConfig, logger *zap.Logger) *Simulator {
	return &Simulator{store: st, pub: pub, cfg: cfg, log: logger.Named("feeds")}
}

// Run ticks until ctx is canceled. It returns nil on cancellation so it can
// sit directly in an errgroup.
func (s *Simulator) Run(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Condition feed running", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Simulator) tick(ctx context.Context) {
	w, err := s.store.Weather(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("Failed to read weather snapshot", zap.Error(err))
		}
		return
	}

	wind := clamp(w.WindSpeedMPH+jitter(5), 60, 160)
	surge := clamp(w.StormSurgeFeet+jitter(0.4), 2, 12)
	now := time.Now().UTC()

	if _, err := s.store.UpdateWeather(ctx, store.WeatherUpdate{
		WindSpeedMPH:   &wind,
		StormSurgeFeet: &surge,
		Timestamp:      &now,
	}); err != nil {
		s.log.Warn("Failed to update weather snapshot", zap.Error(err))
		return
	}

	s.pub.Publish(events.Event{Type: events.TypeStoreChanged})
	s.log.Debug("Conditions updated",
		zap.Float64("wind_speed_mph", wind),
		zap.Float64("storm_surge_feet", surge))
}

// jitter returns a uniform value in [-scale, scale].
func jitter(scale float64) float64 {
	return (rand.Float64()*2 - 1) * scale
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
