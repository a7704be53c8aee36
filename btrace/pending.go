package btrace

import (
	"sync"

	"github.com/tcassar-diss/btrace/syscalls"
)

const nShards = 64

// Pending is a syscall that has entered the kernel and not yet been seen returning.
type Pending struct {
	Number uint32

	// Descriptor is nil for syscalls missing from the table.
	Descriptor *syscalls.Descriptor

	// Prefix is the rendered "name(args)" waiting for its result.
	Prefix string
}

func (p *Pending) selfTerminating() bool {
	return p.Descriptor != nil && p.Descriptor.SelfTerminating
}

type shard struct {
	mu      sync.Mutex
	pending map[int32]Pending
}

// PendingTable holds at most one pending syscall per thread. It is safe for concurrent use.
type PendingTable struct {
	shards [nShards]shard
}

func NewPendingTable() *PendingTable {
	var p PendingTable

	for i := range p.shards {
		p.shards[i].pending = make(map[int32]Pending)
	}

	return &p
}

func (p *PendingTable) shard(tid int32) *shard {
	return &p.shards[uint32(tid)%nShards]
}

// Set records pending for tid, returning whatever it replaced.
func (p *PendingTable) Set(tid int32, pending Pending) (Pending, bool) {
	s := p.shard(tid)

	s.mu.Lock()
	old, ok := s.pending[tid]
	s.pending[tid] = pending
	s.mu.Unlock()

	return old, ok
}

// Take removes and returns the pending syscall of tid.
func (p *PendingTable) Take(tid int32) (Pending, bool) {
	s := p.shard(tid)

	s.mu.Lock()
	pending, ok := s.pending[tid]
	if ok {
		delete(s.pending, tid)
	}
	s.mu.Unlock()

	return pending, ok
}

// Len counts pending syscalls across all threads.
func (p *PendingTable) Len() int {
	n := 0

	for i := range p.shards {
		s := &p.shards[i]

		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}

	return n
}
