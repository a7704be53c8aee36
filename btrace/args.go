package btrace

import (
	"errors"
	"fmt"

	"github.com/tcassar-diss/btrace/syscalls"
)

var ErrIndirectArgs = errors.New("failed to read indirect mmap arguments")

// Regs is an i386 register snapshot.
//
// At a syscall entry Eax holds the syscall number; at the probe that follows it holds the
// return value.
type Regs struct {
	Eax uint32
	Ebx uint32
	Ecx uint32
	Edx uint32
	Esi uint32
	Edi uint32

	// Ebp carries a sixth argument. It is captured but never decoded: records show five.
	Ebp uint32
}

// Memory reads from the address space of a traced thread.
type Memory interface {
	CString(tid int32, addr uint32, limit int) (string, error)
	Words(tid int32, addr uint32, n int) ([]uint32, error)
}

// threadMemory binds Memory to one thread for the syscall renderers.
type threadMemory struct {
	mem Memory
	tid int32
}

func (t threadMemory) CString(addr uint32, limit int) (string, error) {
	return t.mem.CString(t.tid, addr, limit)
}

// Extract reads the syscall number and its five arguments from regs.
//
// The old i386 mmap passes a single pointer to its argument block; that block is read and
// replaces the ordinal arguments. Only five words are read: the sixth (offset) is not shown.
func Extract(mem Memory, tid int32, regs *Regs) (syscalls.Call, error) {
	call := syscalls.Call{
		Number: regs.Eax,
		Args:   syscalls.Args{regs.Ebx, regs.Ecx, regs.Edx, regs.Esi, regs.Edi},
	}

	if call.Number != syscalls.SysMmap {
		return call, nil
	}

	// Unchecked dereference of a tracee pointer: the host guarantees the thread is stopped
	// with its address space mapped, nothing validates the pointer itself.
	words, err := mem.Words(tid, regs.Ebx, len(call.Args))
	if err != nil {
		return call, fmt.Errorf("%w: pointer 0x%x: %w", ErrIndirectArgs, regs.Ebx, err)
	}

	copy(call.Args[:], words)

	return call, nil
}
