package services

import (
	"context"
	"time"

	"github.com/amirphl/safelink/models"
)

// CountdownRunner drives a gate session with a ticker and publishes its view after every tick
type CountdownRunner struct {
	interval time.Duration
}

// NewCountdownRunner creates a runner ticking at the given interval
func NewCountdownRunner(interval time.Duration) *CountdownRunner {
	if interval <= 0 {
		interval = time.Second
	}
	return &CountdownRunner{interval: interval}
}

// Start runs one session in its own goroutine. The first view is sent immediately.
// The channel is closed once the step's control becomes enabled or ctx is done,
// and nothing is sent after ctx is cancelled.
func (r *CountdownRunner) Start(ctx context.Context, params models.GateParams, timing models.GateTiming) <-chan models.GateView {
	out := make(chan models.GateView)
	session := models.NewGateSession(params, "", timing)

	go func() {
		defer close(out)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			view := session.View()
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- view:
			}
			if view.VerifyEnabled || view.FinishEnabled {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				session.Tick()
			}
		}
	}()

	return out
}
