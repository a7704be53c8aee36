package btrace

import (
	"fmt"

	"github.com/tcassar-diss/btrace/syscalls"
	"go.uber.org/zap"
)

// Decoder pairs syscall entries with the probe that follows them and writes one record per
// syscall to the sink.
//
// OnEntry, OnProbe and OnThreadExit may be called concurrently for different threads; calls
// for one thread must arrive in that thread's program order.
type Decoder struct {
	logger  *zap.SugaredLogger
	table   *syscalls.Table
	mem     Memory
	pending *PendingTable
	sink    *Sink
	stats   Stats
}

func NewDecoder(logger *zap.SugaredLogger, table *syscalls.Table, mem Memory, sink *Sink) *Decoder {
	return &Decoder{
		logger:  logger,
		table:   table,
		mem:     mem,
		pending: NewPendingTable(),
		sink:    sink,
	}
}

// OnEntry handles a thread about to execute a syscall. regs must be captured before the
// kernel runs the call.
//
// The only error is a failure to read the mmap argument block, which leaves the trace
// unusable.
func (d *Decoder) OnEntry(tid int32, regs *Regs) error {
	d.stats.Entries.Inc()

	call, err := Extract(d.mem, tid, regs)
	if err != nil {
		return fmt.Errorf("thread %d: %w", tid, err)
	}

	pending := Pending{Number: call.Number}

	desc, ok := d.table.Lookup(call.Number)

	switch {
	case !ok:
		d.stats.Unknown.Inc()
		pending.Prefix = syscalls.FallbackEnter(call)
	case desc.SelfTerminating:
		// the thread may never run again, so the record is finished now and the probe
		// (if any) only clears the slot
		d.stats.SelfTerminating.Inc()
		pending.Descriptor = desc
		d.commit(tid, record(desc.Prefix(threadMemory{mem: d.mem, tid: tid}, call.Args), "?"))
	default:
		pending.Descriptor = desc
		pending.Prefix = desc.Prefix(threadMemory{mem: d.mem, tid: tid}, call.Args)
	}

	if old, replaced := d.pending.Set(tid, pending); replaced {
		d.stats.Replaced.Inc()
		d.logger.Warnw("syscall entered while another is pending", "tid", tid, "pending", old.Number, "syscall", call.Number)
	}

	return nil
}

// OnProbe handles the first point a thread runs after a syscall may have returned. regs.Eax
// is taken as the return value. Threads with nothing pending return immediately.
func (d *Decoder) OnProbe(tid int32, regs *Regs) {
	pending, ok := d.pending.Take(tid)
	if !ok {
		return
	}

	if pending.selfTerminating() {
		return
	}

	ret := regs.Eax

	var result string
	if pending.Descriptor == nil {
		result = syscalls.FallbackExit(ret)
	} else {
		result = pending.Descriptor.Suffix(ret)
	}

	d.commit(tid, record(pending.Prefix, result))
}

// OnThreadExit drops whatever tid left pending. Orphaned calls are counted, never written.
func (d *Decoder) OnThreadExit(tid int32) {
	pending, ok := d.pending.Take(tid)
	if !ok || pending.selfTerminating() {
		return
	}

	d.stats.Orphaned.Inc()
	d.logger.Debugw("thread exited inside a syscall", "tid", tid, "syscall", pending.Number)
}

// Stats returns the live counters.
func (d *Decoder) Stats() *Stats {
	return &d.stats
}

// Pending counts threads that are currently inside a syscall.
func (d *Decoder) Pending() int {
	return d.pending.Len()
}

func (d *Decoder) commit(tid int32, rec string) {
	if err := d.sink.Commit(rec); err != nil {
		d.stats.WriteFailures.Inc()
		d.logger.Errorw("failed to write trace record", "tid", tid, "err", err)

		return
	}

	d.stats.Records.Inc()
}

func record(prefix, result string) string {
	return prefix + " = " + result + "\n"
}
