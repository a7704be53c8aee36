package syscalls

// i386 syscall numbers (arch/x86/entry/syscalls/syscall_32.tbl).
const (
	SysExit       = 1
	SysFork       = 2
	SysRead       = 3
	SysWrite      = 4
	SysOpen       = 5
	SysClose      = 6
	SysCreat      = 8
	SysExecve     = 11
	SysChdir      = 12
	SysTime       = 13
	SysChmod      = 15
	SysGetpid     = 20
	SysSetuid     = 23
	SysGetuid     = 24
	SysAccess     = 33
	SysKill       = 37
	SysRename     = 38
	SysMkdir      = 39
	SysRmdir      = 40
	SysBrk        = 45
	SysIoctl      = 54
	SysChroot     = 61
	SysReboot     = 88
	SysMmap       = 90
	SysStat       = 106
	SysFstat      = 108
	SysMprotect   = 125
	SysGetdents   = 141
	SysChown      = 182
	SysMmap2      = 192
	SysFstat64    = 197
	SysGetdents64 = 220
	SysExitGroup  = 252
)

var curated = []Descriptor{
	{Number: SysExit, Name: "exit", Enter: enter(signed), Exit: retNone, SelfTerminating: true},
	{Number: SysFork, Name: "fork", Enter: enter(), Exit: retUnsigned},
	{Number: SysRead, Name: "read", Enter: enter(signed, buffer, unsigned), Exit: retCount},
	{Number: SysWrite, Name: "write", Enter: enter(signed, buffer, unsigned), Exit: retCount},
	{Number: SysOpen, Name: "open", Enter: enter(path, openMode, octal), Exit: retSigned},
	{Number: SysClose, Name: "close", Enter: enter(unsigned), Exit: retSigned},
	{Number: SysCreat, Name: "creat", Enter: enter(path, octal), Exit: retSigned},
	{Number: SysExecve, Name: "execve", Enter: enter(path, hex, hex), Exit: retSigned},
	{Number: SysChdir, Name: "chdir", Enter: enter(path), Exit: retSigned},
	{Number: SysTime, Name: "time", Enter: enter(signed), Exit: retUnsigned},
	{Number: SysChmod, Name: "chmod", Enter: enter(path, octal), Exit: retSigned},
	{Number: SysGetpid, Name: "getpid", Enter: enter(), Exit: retUnsigned},
	{Number: SysSetuid, Name: "setuid", Enter: enter(unsigned), Exit: retSigned},
	{Number: SysGetuid, Name: "getuid", Enter: enter(), Exit: retUnsigned},
	{Number: SysAccess, Name: "access", Enter: enter(path, signed), Exit: retAccess},
	{Number: SysKill, Name: "kill", Enter: enter(signed, signed), Exit: retSigned},
	{Number: SysRename, Name: "rename", Enter: enter(path, path), Exit: retSigned},
	{Number: SysMkdir, Name: "mkdir", Enter: enter(path, octal), Exit: retSigned},
	{Number: SysRmdir, Name: "rmdir", Enter: enter(path), Exit: retSigned},
	{Number: SysBrk, Name: "brk", Enter: enter(hex), Exit: retSigned},
	{Number: SysIoctl, Name: "ioctl", Enter: enter(signed, unsigned, hex), Exit: retSigned},
	{Number: SysChroot, Name: "chroot", Enter: enter(path), Exit: retSigned},
	{Number: SysReboot, Name: "reboot", Enter: enter(signed), Exit: retSigned},
	{Number: SysMmap, Name: "mmap", Enter: enter(hex, unsigned, signed, signed, signed), Exit: retHex},
	{Number: SysStat, Name: "stat", Enter: enter(path, hex), Exit: retSigned},
	{Number: SysFstat, Name: "fstat", Enter: enter(signed, hex), Exit: retSigned},
	{Number: SysMprotect, Name: "mprotect", Enter: enter(hex, unsigned, unsigned), Exit: retSigned},
	{Number: SysGetdents, Name: "getdents", Enter: enter(unsigned, hex, unsigned), Exit: retHex},
	{Number: SysChown, Name: "chown", Enter: enter(path, unsigned, unsigned), Exit: retSigned},
	{Number: SysMmap2, Name: "mmap2", Enter: enter(hex, unsigned, signed, signed, signed), Exit: retHex},
	{Number: SysFstat64, Name: "fstat64", Enter: enter(signed, hex), Exit: retSigned},
	{Number: SysGetdents64, Name: "getdents64", Enter: enter(unsigned, hex, unsigned), Exit: retHex},
	{Number: SysExitGroup, Name: "exit_group", Enter: enter(signed), Exit: retNone, SelfTerminating: true},
}
