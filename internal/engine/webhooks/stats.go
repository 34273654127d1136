package webhooks

import "sync/atomic"

// Stats counts deliveries since process start.
type Stats struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	disabled  atomic.Int64
}

type StatsSnapshot struct {
	Attempted int64 `json:"attempted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Disabled  int64 `json:"disabled"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Attempted: s.attempted.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Disabled:  s.disabled.Load(),
	}
}
