package jobregistry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically sweeps terminal job records past their TTL.
//
// It runs outside the request hot path; eviction is opt-in so the default
// contract (a job's status stays queryable for the process lifetime) holds
// unless an operator asks otherwise.
type Janitor struct {
	registry *Registry
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewJanitor(registry *Registry, ttl, interval time.Duration, log *zap.Logger) *Janitor {
	return &Janitor{
		registry: registry,
		ttl:      ttl,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.registry.Sweep(j.ttl); n > 0 {
				j.log.Info("evicted terminal jobs",
					zap.Int("evicted", n),
					zap.Duration("ttl", j.ttl),
					zap.Int("remaining", j.registry.Len()))
			}
		}
	}
}
