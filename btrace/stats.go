package btrace

import "go.uber.org/atomic"

// Stats are running counts kept by the decoder.
type Stats struct {
	Entries         atomic.Uint64
	Records         atomic.Uint64
	Unknown         atomic.Uint64
	SelfTerminating atomic.Uint64

	// Orphaned syscalls entered the kernel on a thread that exited before returning.
	Orphaned atomic.Uint64

	// Replaced counts entries that found an earlier syscall still pending on the same thread.
	Replaced      atomic.Uint64
	WriteFailures atomic.Uint64
}

// StatsSnapshot is a point in time copy of Stats.
type StatsSnapshot struct {
	Entries         uint64 `json:"entries"`
	Records         uint64 `json:"records"`
	Unknown         uint64 `json:"unknown"`
	SelfTerminating uint64 `json:"self_terminating"`
	Orphaned        uint64 `json:"orphaned"`
	Replaced        uint64 `json:"replaced"`
	WriteFailures   uint64 `json:"write_failures"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Entries:         s.Entries.Load(),
		Records:         s.Records.Load(),
		Unknown:         s.Unknown.Load(),
		SelfTerminating: s.SelfTerminating.Load(),
		Orphaned:        s.Orphaned.Load(),
		Replaced:        s.Replaced.Load(),
		WriteFailures:   s.WriteFailures.Load(),
	}
}
