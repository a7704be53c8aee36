package btrace

import "golang.org/x/sys/unix"

// A 32-bit tracee seen from a 64-bit tracer: the i386 registers are the low halves of their
// x86-64 counterparts and orig_rax holds the i386 syscall number.

func entryRegs(r *unix.PtraceRegs) Regs {
	regs := exitRegs(r)
	regs.Eax = uint32(r.Orig_rax)

	return regs
}

func exitRegs(r *unix.PtraceRegs) Regs {
	return Regs{
		Eax: uint32(r.Rax),
		Ebx: uint32(r.Rbx),
		Ecx: uint32(r.Rcx),
		Edx: uint32(r.Rdx),
		Esi: uint32(r.Rsi),
		Edi: uint32(r.Rdi),
		Ebp: uint32(r.Rbp),
	}
}
