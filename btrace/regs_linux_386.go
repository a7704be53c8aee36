package btrace

import "golang.org/x/sys/unix"

// entryRegs takes the syscall number from orig_eax: eax already holds -ENOSYS at the entry
// stop.
func entryRegs(r *unix.PtraceRegs) Regs {
	regs := exitRegs(r)
	regs.Eax = uint32(r.Orig_eax)

	return regs
}

func exitRegs(r *unix.PtraceRegs) Regs {
	return Regs{
		Eax: uint32(r.Eax),
		Ebx: uint32(r.Ebx),
		Ecx: uint32(r.Ecx),
		Edx: uint32(r.Edx),
		Esi: uint32(r.Esi),
		Edi: uint32(r.Edi),
		Ebp: uint32(r.Ebp),
	}
}
