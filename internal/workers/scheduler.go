package workers

import (
	"context"
	"sync"
	"time"

	"projecthub/internal/platform/config"
)

func intervalFor(cfg config.JobsConfig, name string) time.Duration {
	switch name {
	case JobReminders:
		return cfg.ReminderInterval
	case JobRecurring:
		return cfg.RecurringInterval
	case JobDigest:
		return cfg.DigestInterval
	case JobInvitationSweep:
		return cfg.InvitationSweepInterval
	}
	return 0
}

// Schedule runs each job on its own ticker until ctx is cancelled. Jobs with
// a zero interval are disabled. Every enabled job also runs once at start.
func (r *Runner) Schedule(ctx context.Context, cfg config.JobsConfig) {
	var wg sync.WaitGroup
	for _, j := range r.Jobs() {
		interval := intervalFor(cfg, j.Name)
		if interval <= 0 {
			r.log.Info().Str("job", j.Name).Msg("Job disabled")
			continue
		}
		wg.Add(1)
		go func(j NamedJob, interval time.Duration) {
			defer wg.Done()
			r.loop(ctx, j, interval)
		}(j, interval)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, j NamedJob, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info().Str("job", j.Name).Dur("interval", interval).Msg("Job scheduled")
	_, _ = r.run(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.run(ctx, j)
		}
	}
}
